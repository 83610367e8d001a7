/*
   Aphid - Apple parallel port hard drive emulator
   Copyright (c) 2022, The Aphid Authors

   This file is part of Aphid.

   Aphid is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Aphid is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Aphid. If not, see <http://www.gnu.org/licenses/>.
*/

package run

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cameo-aphid/aphid/pkg/control"
)

// EnvPrefix is prepended to the upper case setting name to form the name of
// the environment variable for a setting.
const EnvPrefix = "APHID_"

var runnerHelpEpilogue = `- All settings can also be made via environment variables. The variable name
  is the setting name in upper case, with dashes replaced by underscores, and
  prefixed with APHID_, e.g. APHID_ADDRESS for --address. Flags take
  precedence over environment variables.

`

var apiClient = &http.Client{Timeout: 5 * time.Minute}

//
type setting struct {
	ref      interface{}
	name     string
	required bool
}

/*
	NewRunner creates a runner for a sub-command. exec is called when the
	command is run, and is expected to call ParseSettings first.
*/
func NewRunner(use, short, long, help, epilogue string,
	exec func() error) *Runner {

	r := &Runner{viper: viper.New()}
	r.Command = cobra.Command{
		Use:          use,
		Short:        short,
		Long:         long,
		Example:      help,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return exec()
		},
	}

	r.Flags().SetNormalizeFunc(normalizeFlag)

	if epilogue != "" {
		r.SetUsageTemplate(r.UsageTemplate() + "\nNotes:\n" + epilogue)
	}

	return r
}

// normalizeFlag lets flags be given with underscores instead of dashes.
func normalizeFlag(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// Runner is the base of all sub-commands.
type Runner struct {
	cobra.Command
	//
	Address  string
	LogLevel string
	//
	viper    *viper.Viper
	settings []*setting
}

// AddBaseSettings adds the settings every command has.
func (r *Runner) AddBaseSettings() {
	r.AddSetting(&r.Address, "address", "a", "", "localhost",
		fmt.Sprintf("address of the API server, port defaults to %d",
			control.DefaultPort), false)
	r.AddSetting(&r.LogLevel, "log-level", "l", "", "info",
		"log level: panic, fatal, error, warn, info, debug, trace", false)
}

/*
	AddSetting adds a setting stored in ref, which has to be a pointer to a
	string, int, uint, bool, duration, or string slice. The setting can be
	given as flag name, short flag, or via environment variable env. If env
	is empty, the variable name is derived from name.
*/
func (r *Runner) AddSetting(ref interface{}, name, short, env string,
	dflt interface{}, usage string, required bool) {

	fs := r.Flags()

	switch v := ref.(type) {
	case *string:
		d, _ := dflt.(string)
		fs.StringVarP(v, name, short, d, usage)
	case *int:
		d, _ := dflt.(int)
		fs.IntVarP(v, name, short, d, usage)
	case *uint:
		d, _ := dflt.(uint)
		fs.UintVarP(v, name, short, d, usage)
	case *bool:
		d, _ := dflt.(bool)
		fs.BoolVarP(v, name, short, d, usage)
	case *time.Duration:
		d, _ := dflt.(time.Duration)
		fs.DurationVarP(v, name, short, d, usage)
	case *[]string:
		d, _ := dflt.([]string)
		fs.StringSliceVarP(v, name, short, d, usage)
	default:
		panic(fmt.Sprintf("unsupported type for setting %s: %T", name, ref))
	}

	if env == "" {
		env = EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	}

	r.viper.BindPFlag(name, fs.Lookup(name))
	r.viper.BindEnv(name, env)
	r.settings = append(r.settings, &setting{ref: ref, name: name,
		required: required})
}

// ParseSettings fills in all settings, flags taking precedence over
// environment, and sets the log level.
func (r *Runner) ParseSettings() error {

	for _, s := range r.settings {

		if s.required && !r.viper.IsSet(s.name) {
			return fmt.Errorf("missing required setting: --%s", s.name)
		}

		switch v := s.ref.(type) {
		case *string:
			*v = r.viper.GetString(s.name)
		case *int:
			*v = r.viper.GetInt(s.name)
		case *uint:
			*v = r.viper.GetUint(s.name)
		case *bool:
			*v = r.viper.GetBool(s.name)
		case *time.Duration:
			*v = r.viper.GetDuration(s.name)
		case *[]string:
			*v = r.viper.GetStringSlice(s.name)
		}
	}

	if r.LogLevel != "" {
		level, err := log.ParseLevel(r.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %v", err)
		}
		log.SetLevel(level)
	}

	return nil
}

// IsSet reports whether setting name was given, as flag or via environment.
func (r *Runner) IsSet(name string) bool {
	return r.viper.IsSet(name)
}

/*
	apiCall calls the API of the daemon at Address. On success, the body of
	the response is returned. Any other status than OK is turned into an
	error, carrying the message the daemon sent.
*/
func (r *Runner) apiCall(method, path string, json bool,
	body io.Reader) (io.ReadCloser, error) {

	addr := r.Address
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, control.DefaultPort)
	}

	req, err := http.NewRequest(method, fmt.Sprintf("http://%s%s", addr, path),
		body)
	if err != nil {
		return nil, err
	}
	if json {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("API call failed: %s", resp.Status)
		}
		return nil, fmt.Errorf("%s (%d)", strings.TrimSpace(string(msg)),
			resp.StatusCode)
	}

	return resp.Body, nil
}

// printReply copies a reply to stdout, surrounded by blank lines.
func printReply(w io.Writer, resp io.Reader) error {
	fmt.Fprintln(w)
	if _, err := io.Copy(w, resp); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}
