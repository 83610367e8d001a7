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
	"os"
)

//
func NewImages() *Images {
	i := &Images{}
	i.Runner = *NewRunner(
		"ls [-a|--address {address}]",
		"list images in the daemon's image directory",
		`
Use the ls command to list the images the daemon can switch to.`,
		"", runnerHelpEpilogue, i.Run)
	i.AddBaseSettings()
	return i
}

//
type Images struct {
	Runner
}

//
func (i *Images) Run() error {

	if err := i.ParseSettings(); err != nil {
		return err
	}

	resp, err := i.apiCall("GET", "/images", false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	return printReply(os.Stdout, resp)
}
