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

/*
	Package hw abstracts the signal lines and interrupt events the control
	core works with, so that the control core can run against real pins as
	well as against a simulated bus.
*/
package hw

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Signals is a sample of the input lines, using electrical levels: a set bit
// means the line is high.
type Signals uint32

//
const (
	// Cmd is \PCMD. The host pulls it low when it wants the drive's
	// attention.
	Cmd Signals = 1 << 9
	// RW is PR/\W. While high, the drive may drive the data lines; while
	// low, the host does.
	RW Signals = 1 << 15
	// Strobe is \PSTRB, clocked by the host. Only the data pump cares.
	Strobe Signals = 1 << 16
)

// Has reports whether all lines in mask are high.
func (s Signals) Has(mask Signals) bool {
	return s&mask == mask
}

// Match reports whether the lines selected by mask have exactly the levels
// given in want.
func (s Signals) Match(mask, want Signals) bool {
	return s&mask == want
}

//
func (s Signals) String() string {
	var sb strings.Builder
	for _, l := range []struct {
		s    Signals
		name string
	}{{Cmd, "CMD"}, {RW, "RW"}, {Strobe, "STRB"}} {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		level := "L"
		if s.Has(l.s) {
			level = "H"
		}
		sb.WriteString(fmt.Sprintf("%s=%s", l.name, level))
	}
	return sb.String()
}

// Lines is the control core's view of the parallel port. BUSY is the only
// control output; the data lines belong to the data pump, except that the
// control core may snoop them, and must be able to throw them back into
// input mode when the host claims the bus.
type Lines interface {
	// Sample returns the current levels of the input lines.
	Sample() Signals
	// SetBusy drives \PBSY. High means the drive is open for business.
	SetBusy(high bool)
	// Snoop reads the data lines without any strobe.
	Snoop() byte
	// ReleaseData puts the data lines into input mode immediately.
	ReleaseData()
}

// Event is a one-bit interrupt between two parties.
type Event uint

//
const (
	PumpToControl Event = iota
	ControlToPump
	SupervisorToControl
	ControlToSupervisor
	eventCount
)

//
func (e Event) String() string {
	switch e {
	case PumpToControl:
		return "pump->control"
	case ControlToPump:
		return "control->pump"
	case SupervisorToControl:
		return "supervisor->control"
	case ControlToSupervisor:
		return "control->supervisor"
	}
	return fmt.Sprintf("event(%d)", uint(e))
}

// Intc is the interrupt controller: raising, checking & clearing events is
// all that is needed.
type Intc interface {
	Raise(e Event)
	Pending(e Event) bool
	Clear(e Event)
}

// AnyToControl is the consolidated interrupt line of the control core.
func AnyToControl(i Intc) bool {
	return i.Pending(PumpToControl) || i.Pending(SupervisorToControl)
}

// NewEventController creates an in-process interrupt controller. Raising
// and observing an event are atomic, so they also order the memory accesses
// made by the two parties around them.
func NewEventController() *EventController {
	return &EventController{}
}

//
type EventController struct {
	events atomic.Uint32
	raised [eventCount]atomic.Uint32
}

//
func (ec *EventController) Raise(e Event) {
	for {
		old := ec.events.Load()
		if ec.events.CompareAndSwap(old, old|1<<e) {
			break
		}
	}
	ec.raised[e].Add(1)
}

//
func (ec *EventController) Pending(e Event) bool {
	return ec.events.Load()&(1<<e) != 0
}

//
func (ec *EventController) Clear(e Event) {
	for {
		old := ec.events.Load()
		if ec.events.CompareAndSwap(old, old&^(1<<e)) {
			break
		}
	}
}

// Raised is the number of times e has been raised so far.
func (ec *EventController) Raised(e Event) uint32 {
	return ec.raised[e].Load()
}
