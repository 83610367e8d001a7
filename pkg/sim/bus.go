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
	Package sim provides simulated stand-ins for the hardware around the
	control core: the parallel bus, the data pump core, and an Apple host
	speaking the ProFile protocol. Together with package core, they form a
	complete drive that can be exercised without any real hardware.
*/
package sim

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/cameo-aphid/aphid/pkg/hw"
	"github.com/cameo-aphid/aphid/pkg/shmem"
)

/*
	Bus is the simulated parallel port. Levels of the control lines are kept
	in atomics. Strobed data transfers are modelled as rendezvous on
	unbuffered channels: a byte only changes hands when both the host and the
	data pump are ready for it, which is the essence of a clocked transfer.

	Bus implements hw.Lines for the control core.
*/
type Bus struct {
	lines    atomic.Uint32
	busy     atomic.Bool
	hostData atomic.Uint32
	pumpData atomic.Uint32
	driving  atomic.Bool
	toHost   chan shmem.Pair
	fromHost chan byte
}

// NewBus creates a bus at rest: \PCMD high, PR/\W low, and nobody driving
// the data lines.
func NewBus() *Bus {
	b := &Bus{
		toHost:   make(chan shmem.Pair),
		fromHost: make(chan byte),
	}
	b.lines.Store(uint32(hw.Cmd | hw.Strobe))
	return b
}

// Sample yields the processor before reading, so that busy polling loops in
// tests share the CPU with the host and data pump goroutines.
func (b *Bus) Sample() hw.Signals {
	runtime.Gosched()
	return hw.Signals(b.lines.Load())
}

//
func (b *Bus) SetBusy(high bool) {
	b.busy.Store(high)
}

// Snoop reads whatever is on the data lines.
func (b *Bus) Snoop() byte {
	if b.driving.Load() {
		return byte(b.pumpData.Load())
	}
	return byte(b.hostData.Load())
}

//
func (b *Bus) ReleaseData() {
	b.driving.Store(false)
}

// Driving reports whether the drive side currently drives the data lines.
func (b *Bus) Driving() bool {
	return b.driving.Load()
}

// Busy is the level of \PBSY as seen by the host.
func (b *Bus) Busy() bool {
	return b.busy.Load()
}

// SetLine sets the level of host controlled lines in mask.
func (b *Bus) SetLine(mask hw.Signals, high bool) {
	for {
		old := b.lines.Load()
		nu := old &^ uint32(mask)
		if high {
			nu |= uint32(mask)
		}
		if b.lines.CompareAndSwap(old, nu) {
			return
		}
	}
}

// SetData puts b onto the data lines from the host side.
func (b *Bus) SetData(d byte) {
	b.hostData.Store(uint32(d))
}

// Take clocks one pair in from the drive, once the data pump offers one.
func (b *Bus) Take(ctx context.Context) (shmem.Pair, error) {
	select {
	case p := <-b.toHost:
		return p, nil
	case <-ctx.Done():
		return shmem.Pair{}, ctx.Err()
	}
}

// Give clocks d out to the drive, once the data pump is ready for it.
func (b *Bus) Give(ctx context.Context, d byte) error {
	select {
	case b.fromHost <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drive is used by the data pump to take or give up the data lines.
func (b *Bus) drive(on bool) {
	b.driving.Store(on)
}

// present is used by the data pump to put a byte onto the data lines.
func (b *Bus) present(d byte) {
	b.pumpData.Store(uint32(d))
}
