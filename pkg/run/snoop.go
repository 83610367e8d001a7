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
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/cameo-aphid/aphid/pkg/shmem"
)

//
func NewSnoop() *Snoop {

	s := &Snoop{}
	s.Runner = *NewRunner(
		"snoop [-a|--address {address}] [-p|--pru-memory] [-o|--once] [-i|--interval {interval}]",
		"watch the shared memory of the drive",
		`
Use the snoop command to watch the shared memory region of control core and data
pump: the data pump command slot and statistics, the host handshake, command,
and status, and the debug words. The region is fetched from the daemon, or with
--pru-memory, read directly from the real PRUs, which requires root. Press q to
quit.`,
		"", runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddSetting(&s.PRUMemory, "pru-memory", "p", "", false,
		"read shared memory of the real PRUs", false)
	s.AddSetting(&s.Once, "once", "o", "", false,
		"show one snapshot and quit", false)
	s.AddSetting(&s.Interval, "interval", "i", "", 500*time.Millisecond,
		"refresh interval", false)

	return s
}

//
type Snoop struct {
	Runner
	//
	PRUMemory bool
	Once      bool
	Interval  time.Duration
}

//
func (s *Snoop) Run() error {

	if err := s.ParseSettings(); err != nil {
		return err
	}

	snapshot := s.fromAPI
	if s.PRUMemory {
		phys, err := shmem.MapPhysical()
		if err != nil {
			return err
		}
		defer phys.Close()
		snapshot = func() ([]byte, error) {
			return phys.Snapshot(), nil
		}
	}

	out := int(os.Stdout.Fd())
	if s.Once || !term.IsTerminal(out) {
		return s.show(os.Stdout, snapshot, "\n")
	}

	in := int(os.Stdin.Fd())
	if state, err := term.MakeRaw(in); err == nil {
		defer term.Restore(in, state)
	}

	quit := make(chan struct{})
	go func() {
		key := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(key)
			// q, Ctrl-C, Ctrl-D
			if err != nil || (n == 1 &&
				(key[0] == 'q' || key[0] == 0x03 || key[0] == 0x04)) {
				close(quit)
				return
			}
		}
	}()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		fmt.Print("\033[H\033[2J")
		if err := s.show(os.Stdout, snapshot, "\r\n"); err != nil {
			fmt.Printf("\r\n  %v\r\n", err)
		}
		fmt.Print("\r\n  press q to quit\r\n")

		select {
		case <-quit:
			fmt.Print("\r\n")
			return nil
		case <-ticker.C:
		}
	}
}

// show writes a decoded snapshot to w, with line breaks replaced by nl.
func (s *Snoop) show(w io.Writer, snapshot func() ([]byte, error),
	nl string) error {

	raw, err := snapshot()
	if err != nil {
		return err
	}

	view, err := shmem.Parse(raw)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	view.Emit(&buf)
	_, err = io.WriteString(w, strings.ReplaceAll(buf.String(), "\n", nl))
	return err
}

//
func (s *Snoop) fromAPI() ([]byte, error) {
	resp, err := s.apiCall("GET", "/shmem?raw", false, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	return io.ReadAll(resp)
}
