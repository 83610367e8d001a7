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

package daemon

import (
	"fmt"
	"io"
	"sort"
)

// daemon states
const (
	StateStarting = "starting"
	StateReady    = "ready"
	StateHalted   = "halted"
	StateStopped  = "stopped"
	StateFailed   = "failed"
)

// Status is a snapshot of what the daemon is doing.
type Status struct {
	State       string            `json:"state"`
	Image       string            `json:"image,omitempty"`
	Kind        string            `json:"kind,omitempty"`
	Blocks      int               `json:"blocks"`
	ReadOnly    bool              `json:"readOnly"`
	Plugins     map[string]string `json:"plugins,omitempty"`
	Sessions    uint32            `json:"sessions"`
	Reads       uint32            `json:"reads"`
	Writes      uint32            `json:"writes"`
	Unknown     uint32            `json:"unknown"`
	Failed      uint32            `json:"failed"`
	Flushes     int               `json:"flushes"`
	LastCommand string            `json:"lastCommand,omitempty"`
}

//
func (d *Daemon) Status() *Status {

	d.mutex.Lock()
	defer d.mutex.Unlock()

	ret := &Status{
		State:       d.state,
		LastCommand: d.lastCommand,
		Sessions:    d.stats.sessions.Load(),
		Reads:       d.stats.reads.Load(),
		Writes:      d.stats.writes.Load(),
		Unknown:     d.stats.unknown.Load(),
		Failed:      d.stats.failed.Load(),
	}

	if d.image != nil {
		ret.Image = d.image.Name()
		ret.Kind = d.image.Kind()
		ret.Blocks = d.image.Sectors()
		ret.ReadOnly = d.image.ReadOnly()
	}
	if d.flusher != nil {
		ret.Flushes = d.flusher.Flushes()
	}
	if len(d.plugins) > 0 {
		ret.Plugins = d.plugins.Names()
	}

	return ret
}

// Emit writes the status in human readable form.
func (s *Status) Emit(w io.Writer) {

	fmt.Fprintf(w, "\nstate:     %s\n", s.State)

	if s.Image != "" {
		ro := ""
		if s.ReadOnly {
			ro = ", read-only"
		}
		fmt.Fprintf(w, "image:     %s (%s, %d blocks%s)\n",
			s.Image, s.Kind, s.Blocks, ro)
	} else {
		fmt.Fprintf(w, "image:     none\n")
	}

	fmt.Fprintf(w, "sessions:  %d\n", s.Sessions)
	fmt.Fprintf(w, "commands:  %d reads, %d writes, %d unknown, %d failed\n",
		s.Reads, s.Writes, s.Unknown, s.Failed)
	fmt.Fprintf(w, "flushes:   %d\n", s.Flushes)

	if s.LastCommand != "" {
		fmt.Fprintf(w, "last:      %s\n", s.LastCommand)
	}

	if len(s.Plugins) > 0 {
		var blocks []string
		for b := range s.Plugins {
			blocks = append(blocks, b)
		}
		sort.Strings(blocks)
		fmt.Fprintf(w, "plugins:\n")
		for _, b := range blocks {
			fmt.Fprintf(w, "  %s  %s\n", b, s.Plugins[b])
		}
	}

	fmt.Fprintln(w)
}
