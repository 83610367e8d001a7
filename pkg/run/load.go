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
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

//
func NewLoad() *Load {

	l := &Load{}
	l.Runner = *NewRunner(
		`load [-a|--address {address}] [-n|--name {image}] [-r|--ref {reference}]
      [-i|--input {file}] [-c|--compressor {compressor}] [-f|--force]`,
		"switch the daemon to another image",
		`
Use the load command to switch the daemon to another image. Without reference or
input file, the named image needs to be present in the daemon's image directory.
Otherwise, the image is first imported into the image directory, either from the
daemon's repository (repo://{path}), from the web (http(s)://...), or from a
local file. Images compressed with gzip, zip, or 7z are unpacked on import.`,
		"", runnerHelpEpilogue, l.Run)

	l.AddBaseSettings()
	l.AddSetting(&l.Name, "name", "n", "", "",
		"name of the image in the image directory", false)
	l.AddSetting(&l.Ref, "ref", "r", "", "", "image reference", false)
	l.AddSetting(&l.Input, "input", "i", "", "", "local image file", false)
	l.AddSetting(&l.Compressor, "compressor", "c", "", "",
		"compressor of the input file, derived from its name if not set", false)
	l.AddSetting(&l.Force, "force", "f", "", false,
		"replace an existing image when importing", false)

	return l
}

//
type Load struct {
	Runner
	//
	Name       string
	Ref        string
	Input      string
	Compressor string
	Force      bool
}

//
func (l *Load) Run() error {

	if err := l.ParseSettings(); err != nil {
		return err
	}

	if l.Name == "" && l.Ref == "" && l.Input == "" {
		return fmt.Errorf("no image given")
	}
	if l.Ref != "" && l.Input != "" {
		return fmt.Errorf("reference and input file are mutually exclusive")
	}

	params := url.Values{}
	var body io.Reader

	if l.Input != "" {
		f, err := os.Open(l.Input)
		if err != nil {
			return err
		}
		defer f.Close()
		body = bufio.NewReader(f)
		if l.Name == "" {
			l.Name = filepath.Base(l.Input)
		}
	}

	if l.Name != "" {
		params.Set("name", l.Name)
	}
	if l.Ref != "" {
		params.Set("ref", l.Ref)
	}
	if l.Compressor != "" {
		params.Set("compressor", l.Compressor)
	}
	if l.Force {
		params.Set("force", "true")
	}

	resp, err := l.apiCall("PUT", "/image?"+params.Encode(), false, body)
	if err != nil {
		return err
	}
	defer resp.Close()

	return printReply(os.Stdout, resp)
}
