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
func NewStatus() *Status {
	s := &Status{}
	s.Runner = *NewRunner(
		"status [-a|--address {address}] [-j|--json]",
		"get daemon status",
		`
Use the status command to see which image the daemon serves, and how many
commands it has handled.`,
		"", runnerHelpEpilogue, s.Run)
	s.AddBaseSettings()
	s.AddSetting(&s.JSON, "json", "j", "", false, "output status as JSON", false)
	return s
}

//
type Status struct {
	Runner
	//
	JSON bool
}

//
func (s *Status) Run() error {

	if err := s.ParseSettings(); err != nil {
		return err
	}

	resp, err := s.apiCall("GET", "/status", s.JSON, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	return printReply(os.Stdout, resp)
}
