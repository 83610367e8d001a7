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

package core

import (
	"testing"

	"github.com/cameo-aphid/aphid/pkg/channel"
	"github.com/cameo-aphid/aphid/pkg/hw"
)

//
func TestDispatcher(t *testing.T) {

	ec := hw.NewEventController()
	h, ep, r := newTestHandler()
	d := NewDispatcher(ec, h)

	if m := d.Handle(); m != None {
		t.Errorf("nothing pending: want none, got %v", m)
	}

	ec.Raise(hw.PumpToControl)
	ec.Raise(hw.SupervisorToControl)
	ep.queue(t, channel.Proceed())

	if m := d.Handle(); m != Pump {
		t.Errorf("want pump first, got %v", m)
	}
	if ec.Pending(hw.PumpToControl) {
		t.Error("pump event not cleared")
	}
	if !ec.Pending(hw.SupervisorToControl) {
		t.Error("supervisor event should still be pending")
	}

	if m := d.Handle(); m != Proceed {
		t.Errorf("want proceed, got %v", m)
	}
	if ec.Pending(hw.SupervisorToControl) {
		t.Error("supervisor event not cleared")
	}
	if r.Debug().Channel&chanDone == 0 {
		t.Error("channel debug word not marked done")
	}
}

//
func TestDispatcherKeepsBacklog(t *testing.T) {

	ec := hw.NewEventController()
	h, ep, _ := newTestHandler()
	d := NewDispatcher(ec, h)

	// two messages, but only one event
	ep.queue(t, channel.Store(0, []byte{1, 2}))
	ep.queue(t, channel.Proceed())
	ec.Raise(hw.SupervisorToControl)

	if m := d.Handle(); m != Handled {
		t.Errorf("want handled, got %v", m)
	}
	if !ec.Pending(hw.SupervisorToControl) {
		t.Fatal("event for remaining message lost")
	}
	if m := d.Handle(); m != Proceed {
		t.Errorf("want proceed, got %v", m)
	}
	if ec.Pending(hw.SupervisorToControl) {
		t.Error("event pending without messages")
	}
}

//
func TestDispatcherSupervisorOnly(t *testing.T) {

	ec := hw.NewEventController()
	h, _, _ := newTestHandler()
	d := NewDispatcher(ec, h)

	ec.Raise(hw.PumpToControl)
	if m := d.Supervisor(); m != None {
		t.Errorf("want none, got %v", m)
	}
	if !ec.Pending(hw.PumpToControl) {
		t.Error("pump event must be left alone")
	}
}
