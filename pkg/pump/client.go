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
	Package pump is the control core's side of the data pump contract. The
	data pump is a separate core that moves bytes across the data lines,
	clocked by the host. The control core places a command in the slot at the
	start of the shared memory region and raises an event; the data pump
	answers by overwriting the status byte and raising an event back.
*/
package pump

import (
	"fmt"
	"runtime"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/hw"
	"github.com/cameo-aphid/aphid/pkg/shmem"
)

// data pump operations
const (
	OpRead    byte = 0x00
	OpWrite   byte = 0x01
	OpInvalid byte = 0x80
)

// data pump status codes
const (
	StatusOK            byte = 0x00
	StatusInvalid       byte = 0x01
	StatusReadNoStrobe  byte = 0x02
	StatusReadAborted   byte = 0x03
	StatusWriteNoStrobe byte = 0x04
	StatusWriteAborted  byte = 0x05
	StatusCancelled     byte = 0x06
)

// DefaultResetBudget is how many polls Reset waits for each attempt.
const DefaultResetBudget uint32 = 0x100000

//
func StatusText(s byte) string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalid:
		return "invalid command"
	case StatusReadNoStrobe:
		return "read: no strobe"
	case StatusReadAborted:
		return "read: aborted"
	case StatusWriteNoStrobe:
		return "write: no strobe"
	case StatusWriteAborted:
		return "write: aborted"
	case StatusCancelled:
		return "cancelled"
	case shmem.StatusPending:
		return "pending"
	}
	return fmt.Sprintf("unknown status %02x", s)
}

// NewClient creates a data pump client. service is called whenever a
// supervisor event needs attention while the client is waiting on the data
// pump; it may be nil.
func NewClient(r *shmem.Region, l hw.Lines, i hw.Intc, service func()) *Client {
	return &Client{region: r, lines: l, intc: i, service: service}
}

//
type Client struct {
	region  *shmem.Region
	lines   hw.Lines
	intc    hw.Intc
	service func()
}

/*
	Start places a command in the slot and wakes up the data pump. It returns
	immediately. Every Start must be followed by a wait before the next Start,
	and for sending, the wait must follow very shortly, since only the wait
	watches for the host claiming the bus.
*/
func (c *Client) Start(op byte, addr shmem.Addr, size uint16) {
	c.region.SetSlot(shmem.DataPumpCommand{
		Status: shmem.StatusPending,
		Op:     op,
		Size:   size,
		Addr:   addr,
	})
	c.intc.Clear(hw.PumpToControl)
	c.intc.Raise(hw.ControlToPump)
}

/*
	WaitSend waits for the data pump to finish sending. If PR/\W falls while
	waiting, the host has claimed the bus: the data lines are put into input
	mode immediately, and the data pump is told to cancel. The same happens
	when budget polls have passed, unless budget is 0. In either case, the
	acknowledgement of the data pump is still awaited, so the slot is idle on
	return.

	The data pump may still report success after a cancellation, if the last
	byte went out. Sometimes the host does not clock the last byte, and just
	drops PR/\W to get on with its handshake.

	Supervisor events arriving in the meantime are left pending and serviced
	once the transfer is over.
*/
func (c *Client) WaitSend(budget uint32) byte {

	cancelled := false

	for t := uint32(0); ; t++ {
		// level, not edge: the host may have dropped PR/\W before we got here
		if !c.lines.Sample().Has(hw.RW) || (budget > 0 && t > budget) {
			c.lines.ReleaseData()
			c.intc.Raise(hw.ControlToPump)
			cancelled = true
			break
		}
		if c.intc.Pending(hw.PumpToControl) {
			break
		}
	}

	if cancelled {
		c.drain()
	}
	c.intc.Clear(hw.PumpToControl)

	if c.service != nil && c.intc.Pending(hw.SupervisorToControl) {
		c.service()
	}

	ret := c.region.SlotStatus()
	if cancelled {
		log.WithField("status", StatusText(ret)).Trace("send cancelled")
	}
	return ret
}

// Send starts sending size pairs at addr and waits for completion, without
// any budget. Use for single bytes that need no interleaved work.
func (c *Client) Send(addr shmem.Addr, size uint16) byte {
	c.Start(OpWrite, addr, size)
	return c.WaitSend(0)
}

/*
	Receive has the data pump read size bytes from the data lines into addr,
	and waits for completion. If \PCMD falls while waiting, the host has
	started something new, and the data pump is told to cancel; likewise when
	budget polls have passed, unless budget is 0. Supervisor events are
	serviced while waiting.
*/
func (c *Client) Receive(addr shmem.Addr, size uint16, budget uint32) byte {
	c.Start(OpRead, addr, size)
	return c.WaitReceive(budget)
}

//
func (c *Client) WaitReceive(budget uint32) byte {

	cancelled := false

	for t := uint32(0); ; t++ {
		if c.intc.Pending(hw.PumpToControl) {
			break
		}
		if c.intc.Pending(hw.SupervisorToControl) && c.service != nil {
			c.service()
		}
		if !c.lines.Sample().Has(hw.Cmd) || (budget > 0 && t > budget) {
			c.intc.Raise(hw.ControlToPump)
			cancelled = true
			break
		}
	}

	if cancelled {
		c.drain()
	}
	c.intc.Clear(hw.PumpToControl)

	ret := c.region.SlotStatus()
	if cancelled {
		log.WithField("status", StatusText(ret)).Trace("receive cancelled")
	}
	return ret
}

// drain waits for the data pump's acknowledgement, however long it takes.
// It yields while waiting, so a data pump running in the same process gets
// to answer even on a single CPU.
func (c *Client) drain() {
	for !c.intc.Pending(hw.PumpToControl) {
		runtime.Gosched()
	}
}

/*
	Reset brings a data pump in unknown state back to idle, by issuing
	invalid commands until it answers with StatusInvalid. A data pump still
	busy with a previous command will take the first one as a cancellation.
	This loops forever if the data pump never answers properly. Each attempt
	waits budget polls for an answer, DefaultResetBudget if 0, yielding the
	processor between polls. Returns the number of attempts made.
*/
func (c *Client) Reset(budget uint32) int {

	if budget == 0 {
		budget = DefaultResetBudget
	}

	for attempt := 1; ; attempt++ {
		c.Start(OpInvalid, 0, 0)
		for t := uint32(0); t < budget; t++ {
			if c.intc.Pending(hw.PumpToControl) {
				break
			}
			runtime.Gosched()
		}
		if c.intc.Pending(hw.PumpToControl) {
			c.intc.Clear(hw.PumpToControl)
			if c.region.SlotStatus() == StatusInvalid {
				log.WithField("attempts", attempt).Debug("data pump reset")
				return attempt
			}
		}
	}
}
