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
	"github.com/cameo-aphid/aphid/pkg/hw"
)

// Meaning is what the dispatcher found when asked to handle an interrupt.
type Meaning int

//
const (
	// None means no interrupt was pending.
	None Meaning = iota
	// Pump means the data pump signalled; what that means is up to the
	// caller.
	Pump
	// Handled means a supervisor message was dealt with.
	Handled
	// Failed means a supervisor command could not be carried out.
	Failed
	// Proceed means the supervisor is done with the buffers.
	Proceed
)

//
func (m Meaning) String() string {
	switch m {
	case None:
		return "none"
	case Pump:
		return "pump"
	case Handled:
		return "handled"
	case Failed:
		return "failed"
	case Proceed:
		return "proceed"
	}
	return "unknown"
}

// NewDispatcher creates a dispatcher for interrupts on i, passing supervisor
// messages to h.
func NewDispatcher(i hw.Intc, h *Handler) *Dispatcher {
	return &Dispatcher{intc: i, handler: h}
}

/*
	Dispatcher is the control core's single entry point for pending
	interrupts. It never blocks, and it leaves data pump transfers alone, so
	any polling loop may call it.
*/
type Dispatcher struct {
	intc    hw.Intc
	handler *Handler
}

// Handle deals with one pending interrupt. Data pump interrupts take
// precedence. Callers should only call Handle when an interrupt is pending.
func (d *Dispatcher) Handle() Meaning {
	if d.intc.Pending(hw.PumpToControl) {
		d.intc.Clear(hw.PumpToControl)
		return Pump
	}
	return d.Supervisor()
}

/*
	Supervisor handles a pending supervisor interrupt, if any, leaving data
	pump interrupts alone. When more messages are waiting after the one just
	handled, the interrupt is raised again, so none are left behind.
*/
func (d *Dispatcher) Supervisor() Meaning {

	if !d.intc.Pending(hw.SupervisorToControl) {
		return None
	}

	ret := d.handler.Handle()
	d.intc.Clear(hw.SupervisorToControl)
	if d.handler.debug {
		d.handler.region.OrChannel(chanDone)
	}

	if d.handler.endpoint.Pending() {
		d.intc.Raise(hw.SupervisorToControl)
	}

	return ret
}
