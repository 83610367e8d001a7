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

package sim

import (
	"context"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/hw"
	"github.com/cameo-aphid/aphid/pkg/pump"
	"github.com/cameo-aphid/aphid/pkg/shmem"
)

// DefaultStrobeTimeout is how long the data pump waits for the host to clock
// the next byte.
const DefaultStrobeTimeout = 2 * time.Second

// NewPump creates a simulated data pump core working on region r and bus b,
// answering commands signalled through i.
func NewPump(r *shmem.Region, b *Bus, i hw.Intc) *Pump {
	return &Pump{
		region:  r,
		bus:     b,
		intc:    i,
		Timeout: DefaultStrobeTimeout,
	}
}

/*
	Pump is the data pump core. It sits idle until the control core raises
	an event, then carries out the command found in the slot, and answers by
	storing a status code and raising an event back.
*/
type Pump struct {
	Timeout time.Duration

	region *shmem.Region
	bus    *Bus
	intc   hw.Intc
}

// Run serves commands until ctx is done.
func (p *Pump) Run(ctx context.Context) {

	log.Debug("data pump running")

	for t := 0; ; t++ {

		if t&0xff == 0 {
			select {
			case <-ctx.Done():
				log.Debug("data pump stopped")
				return
			default:
			}
			runtime.Gosched()
		}

		if !p.intc.Pending(hw.ControlToPump) {
			continue
		}

		// Late cancellations of commands already answered also land here;
		// only a pending status marks a new command.
		p.intc.Clear(hw.ControlToPump)
		if p.region.SlotStatus() != shmem.StatusPending {
			continue
		}

		cmd := p.region.Slot()
		var status byte

		switch cmd.Op {
		case pump.OpRead:
			status = p.read(cmd)
		case pump.OpWrite:
			status = p.write(cmd)
		default:
			status = pump.StatusInvalid
		}

		log.WithFields(log.Fields{
			"op":     cmd.Op,
			"size":   cmd.Size,
			"addr":   cmd.Addr,
			"status": pump.StatusText(status),
		}).Trace("PUMP")

		p.region.SetSlotStatus(status)
		p.intc.Raise(hw.PumpToControl)
	}
}

// read receives bytes clocked in by the host.
func (p *Pump) read(cmd shmem.DataPumpCommand) byte {

	dst := p.region.Bytes(cmd.Addr, int(cmd.Size))
	if dst == nil {
		return pump.StatusInvalid
	}

	p.region.AddStatistic(shmem.StatReadRequested, uint32(cmd.Size))
	deadline := time.Now().Add(p.Timeout)
	got := 0

	defer func() {
		p.region.AddStatistic(shmem.StatReadSucceeded, uint32(got))
	}()

	for got < len(dst) {

		select {
		case b := <-p.bus.fromHost:
			dst[got] = b
			got++
			deadline = time.Now().Add(p.Timeout)
			continue
		default:
		}

		if p.intc.Pending(hw.ControlToPump) {
			p.intc.Clear(hw.ControlToPump)
			return pump.StatusCancelled
		}

		if time.Now().After(deadline) {
			if got == 0 {
				return pump.StatusReadNoStrobe
			}
			return pump.StatusReadAborted
		}

		runtime.Gosched()
	}

	return pump.StatusOK
}

// write sends byte/parity pairs to the host, one per strobe.
func (p *Pump) write(cmd shmem.DataPumpCommand) byte {

	src := p.region.Bytes(cmd.Addr, int(cmd.Size)*shmem.PairSize)
	if src == nil {
		return pump.StatusInvalid
	}

	p.region.AddStatistic(shmem.StatWriteRequested, uint32(cmd.Size))
	deadline := time.Now().Add(p.Timeout)
	sent := 0

	p.bus.drive(true)
	defer func() {
		p.bus.drive(false)
		p.region.AddStatistic(shmem.StatWriteSucceeded, uint32(sent))
	}()

	for sent < int(cmd.Size) {

		pair := shmem.Pair{
			Data:   src[sent*shmem.PairSize],
			Parity: src[sent*shmem.PairSize+1],
		}
		p.bus.present(pair.Data)

		// lines thrown back into input mode by the control core
		// carry nothing until the cancellation arrives
		if p.bus.Driving() {
			select {
			case p.bus.toHost <- pair:
				sent++
				deadline = time.Now().Add(p.Timeout)
				continue
			default:
			}
		}

		if p.intc.Pending(hw.ControlToPump) {
			p.intc.Clear(hw.ControlToPump)
			return pump.StatusCancelled
		}

		if time.Now().After(deadline) {
			if sent == 0 {
				return pump.StatusWriteNoStrobe
			}
			return pump.StatusWriteAborted
		}

		runtime.Gosched()
	}

	return pump.StatusOK
}
