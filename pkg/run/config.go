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
	"net/url"
	"os"
	"strconv"
	"strings"
)

//
func NewConfig() *Config {

	c := &Config{}
	c.Runner = *NewRunner(
		"config [-a|--address {address}] [-i|--item {item} [-v|--value {value}]]",
		"get or change daemon settings",
		`
Use the config command to look at or change settings of the running daemon.
Without item, all settings are shown. Settings are:

  verify      verify sectors handed to the control core (on/off)
  flushdelay  minimum seconds between two image flushes, applies from the
              next session on`,
		"", runnerHelpEpilogue, c.Run)

	c.AddBaseSettings()
	c.AddSetting(&c.Item, "item", "i", "", "", "setting to get or change", false)
	c.AddSetting(&c.Value, "value", "v", "", "", "new value", false)

	return c
}

//
type Config struct {
	Runner
	//
	Item  string
	Value string
}

//
func (c *Config) Run() error {

	if err := c.ParseSettings(); err != nil {
		return err
	}

	var resp io.ReadCloser
	var err error

	params := url.Values{}
	if c.Item != "" {
		params.Set("item", c.Item)
	}

	if c.Value == "" {
		resp, err = c.apiCall("GET", "/config?"+params.Encode(), false, nil)

	} else {
		if c.Item == "" {
			return fmt.Errorf("no item to set")
		}
		arg, err := configValue(c.Value)
		if err != nil {
			return err
		}
		params.Set("arg1", strconv.Itoa(arg))
		resp, err = c.apiCall("PUT", "/config?"+params.Encode(), false, nil)
		if err != nil {
			return err
		}
	}

	if err != nil {
		return err
	}
	defer resp.Close()

	return printReply(os.Stdout, resp)
}

// configValue turns a setting value into the byte argument understood by
// the daemon.
func configValue(v string) (int, error) {

	switch strings.ToLower(v) {
	case "on", "true", "yes":
		return 1, nil
	case "off", "false", "no":
		return 0, nil
	}

	ret, err := strconv.Atoi(v)
	if err != nil || ret < 0 || ret > 255 {
		return 0, fmt.Errorf("invalid value %s, must be on/off or 0-255", v)
	}
	return ret, nil
}
