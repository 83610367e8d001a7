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

package pump_test

import (
	"bytes"
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/cameo-aphid/aphid/pkg/hw"
	"github.com/cameo-aphid/aphid/pkg/pump"
	"github.com/cameo-aphid/aphid/pkg/shmem"
	"github.com/cameo-aphid/aphid/pkg/sim"
)

//
type bench struct {
	region   *shmem.Region
	bus      *sim.Bus
	ec       *hw.EventController
	client   *pump.Client
	services int
}

// newBench starts a simulated data pump, and creates a client for it with
// a service function that counts calls and consumes supervisor events.
func newBench(t *testing.T) *bench {

	b := &bench{
		region: shmem.New(),
		bus:    sim.NewBus(),
		ec:     hw.NewEventController(),
	}
	b.client = pump.NewClient(b.region, b.bus, b.ec, func() {
		b.services++
		b.ec.Clear(hw.SupervisorToControl)
	})

	p := sim.NewPump(b.region, b.bus, b.ec)
	p.Timeout = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	return b
}

// take clocks n pairs in from the drive in the background.
func (b *bench) take(n int) <-chan []shmem.Pair {
	ret := make(chan []shmem.Pair, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var got []shmem.Pair
		for ix := 0; ix < n; ix++ {
			p, err := b.bus.Take(ctx)
			if err != nil {
				break
			}
			got = append(got, p)
		}
		ret <- got
	}()
	return ret
}

//
func (b *bench) give(data []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, d := range data {
			if b.bus.Give(ctx, d) != nil {
				return
			}
		}
	}()
}

//
func TestStatusText(t *testing.T) {
	for s, want := range map[byte]string{
		pump.StatusOK:        "ok",
		pump.StatusCancelled: "cancelled",
		shmem.StatusPending:  "pending",
		0x42:                 "unknown status 42",
	} {
		if got := pump.StatusText(s); got != want {
			t.Errorf("%02x: want '%s', got '%s'", s, want, got)
		}
	}
}

//
func TestSend(t *testing.T) {

	b := newBench(t)
	b.bus.SetLine(hw.RW, true)

	data := []byte("PROFILE")
	b.region.FillDriveSector(data)
	got := b.take(len(data))

	if st := b.client.Send(shmem.AddrDriveSector, uint16(len(data))); st != pump.StatusOK {
		t.Fatalf("want ok, got %s", pump.StatusText(st))
	}

	pairs := <-got
	if len(pairs) != len(data) {
		t.Fatalf("want %d pairs, got %d", len(data), len(pairs))
	}
	for ix, p := range pairs {
		if p.Data != data[ix] || !p.OddParity() {
			t.Errorf("pair %d: unexpected %+v", ix, p)
		}
	}

	if b.ec.Pending(hw.PumpToControl) {
		t.Error("acknowledgement not consumed")
	}
	if b.bus.Driving() {
		t.Error("data lines still driven")
	}
	st := b.region.Statistics()
	if st.WriteWordsRequested != uint32(len(data)) ||
		st.WriteWordsSucceeded != uint32(len(data)) {
		t.Errorf("unexpected statistics: %+v", st)
	}
}

//
func TestSendSingleByte(t *testing.T) {

	b := newBench(t)
	b.bus.SetLine(hw.RW, true)
	got := b.take(1)

	if st := b.client.Send(shmem.PairAddr(0x01), 1); st != pump.StatusOK {
		t.Fatalf("want ok, got %s", pump.StatusText(st))
	}
	if pairs := <-got; len(pairs) != 1 || pairs[0].Data != 0x01 ||
		!pairs[0].OddParity() {
		t.Errorf("unexpected pairs: %+v", pairs)
	}
}

//
func TestSendCancelledByHost(t *testing.T) {

	b := newBench(t)
	b.bus.SetLine(hw.RW, true)

	got := make(chan int, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n := 0
		for ; n < 3; n++ {
			if _, err := b.bus.Take(ctx); err != nil {
				break
			}
		}
		// the host claims the bus
		b.bus.SetLine(hw.RW, false)
		got <- n
	}()

	b.client.Start(pump.OpWrite, shmem.AddrDriveSector, shmem.SectorSize)
	st := b.client.WaitSend(0)

	switch st {
	case pump.StatusCancelled, pump.StatusWriteAborted:
	default:
		t.Errorf("want cancelled or aborted, got %s", pump.StatusText(st))
	}
	if n := <-got; n != 3 {
		t.Errorf("host took %d bytes", n)
	}
	if b.bus.Driving() {
		t.Error("data lines still driven")
	}
	if b.ec.Pending(hw.PumpToControl) {
		t.Error("acknowledgement not consumed")
	}
	if b.region.SlotStatus() == shmem.StatusPending {
		t.Error("slot still pending")
	}
}

//
func TestSendLineAlreadyLow(t *testing.T) {

	b := newBench(t)

	// PR/\W low before the wait even starts
	b.client.Start(pump.OpWrite, shmem.AddrDriveStatus, shmem.StatusSize)
	st := b.client.WaitSend(0)

	switch st {
	case pump.StatusCancelled, pump.StatusWriteNoStrobe:
	default:
		t.Errorf("want cancelled, got %s", pump.StatusText(st))
	}
	if b.bus.Driving() {
		t.Error("data lines still driven")
	}
}

//
func TestSendBudget(t *testing.T) {

	b := newBench(t)
	b.bus.SetLine(hw.RW, true)

	// nobody clocks
	b.client.Start(pump.OpWrite, shmem.AddrDriveSector, 10)
	st := b.client.WaitSend(1000)

	switch st {
	case pump.StatusCancelled, pump.StatusWriteNoStrobe:
	default:
		t.Errorf("want cancelled, got %s", pump.StatusText(st))
	}
	if b.region.Statistics().WriteWordsSucceeded != 0 {
		t.Error("nothing should have been sent")
	}
}

//
func TestReceive(t *testing.T) {

	b := newBench(t)
	cmd := []byte{0x01, 0x00, 0x12, 0x34, 0x0a, 0x03}
	b.give(cmd)

	st := b.client.Receive(shmem.AddrHostCommand, shmem.CommandSize, 0)
	if st != pump.StatusOK {
		t.Fatalf("want ok, got %s", pump.StatusText(st))
	}
	if !bytes.Equal(b.region.HostCommand(), cmd) {
		t.Errorf("want %x, got %x", cmd, b.region.HostCommand())
	}
	st2 := b.region.Statistics()
	if st2.ReadBytesRequested != shmem.CommandSize ||
		st2.ReadBytesSucceeded != shmem.CommandSize {
		t.Errorf("unexpected statistics: %+v", st2)
	}
}

//
func TestReceiveCancelledByHost(t *testing.T) {

	b := newBench(t)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		b.bus.Give(ctx, 0xaa)
		b.bus.Give(ctx, 0xbb)
		// the host starts something new
		b.bus.SetLine(hw.Cmd, false)
	}()

	st := b.client.Receive(shmem.AddrHostSector, shmem.SectorSize, 0)

	switch st {
	case pump.StatusCancelled, pump.StatusReadAborted:
	default:
		t.Errorf("want cancelled, got %s", pump.StatusText(st))
	}
	if !bytes.Equal(b.region.HostSector()[:2], []byte{0xaa, 0xbb}) {
		t.Error("bytes received before cancellation lost")
	}
	if b.ec.Pending(hw.PumpToControl) {
		t.Error("acknowledgement not consumed")
	}
}

//
func TestReceiveBudget(t *testing.T) {

	b := newBench(t)

	st := b.client.Receive(shmem.AddrHostCommand, shmem.CommandSize, 1000)
	switch st {
	case pump.StatusCancelled, pump.StatusReadNoStrobe:
	default:
		t.Errorf("want cancelled, got %s", pump.StatusText(st))
	}
}

//
func TestServiceDuringTransfers(t *testing.T) {

	b := newBench(t)
	b.bus.SetLine(hw.RW, true)

	// send: serviced once the transfer is over
	b.ec.Raise(hw.SupervisorToControl)
	got := b.take(2)
	if st := b.client.Send(shmem.AddrDriveSector, 2); st != pump.StatusOK {
		t.Fatalf("want ok, got %s", pump.StatusText(st))
	}
	<-got
	if b.services != 1 {
		t.Errorf("want 1 service call, got %d", b.services)
	}

	// receive: serviced while waiting
	b.ec.Raise(hw.SupervisorToControl)
	time.AfterFunc(10*time.Millisecond, func() {
		b.give([]byte{1, 2, 3, 4, 5, 6})
	})
	if st := b.client.Receive(shmem.AddrHostCommand, 6, 0); st != pump.StatusOK {
		t.Fatalf("want ok, got %s", pump.StatusText(st))
	}
	if b.services != 2 {
		t.Errorf("want 2 service calls, got %d", b.services)
	}
	if b.ec.Pending(hw.PumpToControl) {
		t.Error("service must not consume the acknowledgement")
	}
}

//
func TestReset(t *testing.T) {

	for _, procs := range []int{0, 1} {

		if procs > 0 {
			prev := runtime.GOMAXPROCS(procs)
			defer runtime.GOMAXPROCS(prev)
		}

		b := newBench(t)

		n := b.client.Reset(0)
		if n < 1 {
			t.Errorf("procs %d: want at least 1 attempt, got %d", procs, n)
		}
		if st := b.region.SlotStatus(); st != pump.StatusInvalid {
			t.Errorf("procs %d: want invalid, got %s", procs, pump.StatusText(st))
		}
		if r := b.ec.Raised(hw.ControlToPump); r != uint32(n) {
			t.Errorf("procs %d: want %d commands, got %d", procs, n, r)
		}
		if r := b.ec.Raised(hw.PumpToControl); r != 1 {
			t.Errorf("procs %d: want 1 answer, got %d", procs, r)
		}
		if b.ec.Pending(hw.PumpToControl) {
			t.Errorf("procs %d: acknowledgement not consumed", procs)
		}
	}
}

//
func TestResetBusyPump(t *testing.T) {

	b := newBench(t)
	b.bus.SetLine(hw.RW, true)

	// a transfer nobody clocks, abandoned without waiting
	b.client.Start(pump.OpWrite, shmem.AddrDriveSector, 10)
	for !b.bus.Driving() {
		time.Sleep(time.Millisecond)
	}

	if n := b.client.Reset(1 << 26); n < 2 {
		t.Errorf("busy data pump: want at least 2 attempts, got %d", n)
	}
	if st := b.region.SlotStatus(); st != pump.StatusInvalid {
		t.Errorf("want invalid, got %s", pump.StatusText(st))
	}
}
