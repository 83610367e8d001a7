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
	"fmt"
	"runtime"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/hw"
	"github.com/cameo-aphid/aphid/pkg/shmem"
)

// Phase names the points in a ProFile transaction where the host presents
// a handshake byte on the data lines.
type Phase int

//
const (
	PhaseCommand Phase = iota
	PhaseRead
	PhaseWrite
	PhaseCommit
	phaseCount
)

// host side ProFile protocol constants
const (
	Sentinel    byte = 0x55
	AckCommand  byte = 0x01
	AckRead     byte = 0x02
	AckReceived byte = 0x06

	OpRead  byte = 0x00
	OpWrite byte = 0x01
)

// Reply is what the host got back from the drive for a command: the four
// status bytes, and for successful reads, the sector.
type Reply struct {
	Status []byte
	Data   []byte
}

// OK reports whether the drive signalled success.
func (r *Reply) OK() bool {
	return r != nil && len(r.Status) == shmem.StatusSize && r.Status[0] == 0x00
}

// NewHost creates a host talking to the drive through b. All handshake bytes
// are initially the sentinel.
func NewHost(b *Bus) *Host {
	h := &Host{bus: b}
	for ix := range h.Handshake {
		h.Handshake[ix] = Sentinel
	}
	return h
}

/*
	Host plays the role of the Apple side of the ProFile protocol. It drives
	\PCMD & PR/\W, watches \PBSY, presents handshake bytes, and clocks data
	in and out. Each method runs one complete transaction and gives up with
	an error when ctx is done.
*/
type Host struct {
	// Handshake holds the byte presented at each phase. Anything other
	// than the sentinel makes the drive abandon or fail the transaction.
	Handshake [phaseCount]byte

	bus *Bus
}

// Command builds a six byte ProFile command.
func Command(op byte, sector uint32, retry, sparing byte) []byte {
	return []byte{op, byte(sector >> 16), byte(sector >> 8), byte(sector),
		retry, sparing}
}

// Read reads sector from the drive.
func (h *Host) Read(ctx context.Context, sector uint32, retry,
	sparing byte) (*Reply, error) {

	if err := h.request(ctx, Command(OpRead, sector, retry, sparing)); err != nil {
		return nil, err
	}

	if err := h.acknowledge(ctx, AckRead, PhaseRead); err != nil {
		return nil, err
	}

	reply, err := h.status(ctx)
	if err != nil {
		return nil, err
	}

	if reply.OK() {
		if reply.Data, err = h.readBytes(ctx, shmem.SectorSize); err != nil {
			return nil, fmt.Errorf("error reading sector: %v", err)
		}
	}

	log.WithFields(log.Fields{
		"sector": fmt.Sprintf("%06X", sector),
		"status": fmt.Sprintf("%x", reply.Status),
	}).Debug("HOST READ")

	return reply, nil
}

// Write writes data to sector. op selects the write variant, 1 through 3.
func (h *Host) Write(ctx context.Context, op byte, sector uint32, retry,
	sparing byte, data []byte) (*Reply, error) {

	if len(data) != shmem.SectorSize {
		return nil, fmt.Errorf("sector data must be %d bytes, got %d",
			shmem.SectorSize, len(data))
	}

	if err := h.request(ctx, Command(op, sector, retry, sparing)); err != nil {
		return nil, err
	}

	if err := h.acknowledge(ctx, op+2, PhaseWrite); err != nil {
		return nil, err
	}
	if err := h.waitBusy(ctx, true); err != nil {
		return nil, err
	}
	if err := h.writeBytes(ctx, data); err != nil {
		return nil, fmt.Errorf("error writing sector: %v", err)
	}

	if err := h.acknowledge(ctx, AckReceived, PhaseCommit); err != nil {
		return nil, err
	}

	reply, err := h.status(ctx)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"sector": fmt.Sprintf("%06X", sector),
		"status": fmt.Sprintf("%x", reply.Status),
	}).Debug("HOST WRITE")

	return reply, nil
}

// request gets the drive's attention and sends the command.
func (h *Host) request(ctx context.Context, cmd []byte) error {

	if err := h.waitBusy(ctx, true); err != nil {
		return fmt.Errorf("drive not ready: %v", err)
	}

	h.bus.SetLine(hw.RW, false)
	h.bus.SetLine(hw.Cmd, false)

	if err := h.waitBusy(ctx, false); err != nil {
		return fmt.Errorf("no response to command request: %v", err)
	}

	h.bus.SetLine(hw.RW, true)
	if err := h.expect(ctx, AckCommand); err != nil {
		return err
	}

	h.present(PhaseCommand)
	if err := h.waitBusy(ctx, true); err != nil {
		return fmt.Errorf("drive did not accept handshake: %v", err)
	}

	if err := h.writeBytes(ctx, cmd); err != nil {
		return fmt.Errorf("error sending command: %v", err)
	}
	return nil
}

// acknowledge waits for the drive to echo ack, then presents the handshake
// byte for phase.
func (h *Host) acknowledge(ctx context.Context, ack byte, phase Phase) error {

	h.bus.SetLine(hw.RW, true)
	h.bus.SetLine(hw.Cmd, false)

	if err := h.expect(ctx, ack); err != nil {
		return err
	}
	if err := h.waitBusy(ctx, false); err != nil {
		return err
	}

	h.present(phase)
	return nil
}

// status waits for the drive to finish, then reads the status bytes.
func (h *Host) status(ctx context.Context) (*Reply, error) {

	if err := h.waitBusy(ctx, true); err != nil {
		return nil, fmt.Errorf("drive did not finish: %v", err)
	}

	h.bus.SetLine(hw.RW, true)
	st, err := h.readBytes(ctx, shmem.StatusSize)
	if err != nil {
		return nil, fmt.Errorf("error reading status: %v", err)
	}
	return &Reply{Status: st}, nil
}

// present puts the handshake byte onto the data lines, then hands the bus
// over to the host: PR/\W goes low before \PCMD is released.
func (h *Host) present(phase Phase) {
	h.bus.SetData(h.Handshake[phase])
	h.bus.SetLine(hw.RW, false)
	h.bus.SetLine(hw.Cmd, true)
}

//
func (h *Host) expect(ctx context.Context, want byte) error {
	got, err := h.readBytes(ctx, 1)
	if err != nil {
		return fmt.Errorf("waiting for %02x: %v", want, err)
	}
	if got[0] != want {
		return fmt.Errorf("expected %02x, got %02x", want, got[0])
	}
	return nil
}

//
func (h *Host) waitBusy(ctx context.Context, high bool) error {
	for h.bus.Busy() != high {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			runtime.Gosched()
		}
	}
	return nil
}

// readBytes clocks in n bytes from the drive, checking parity.
func (h *Host) readBytes(ctx context.Context, n int) ([]byte, error) {
	ret := make([]byte, n)
	for ix := range ret {
		p, err := h.bus.Take(ctx)
		if err != nil {
			return nil, fmt.Errorf("after %d of %d bytes: %v", ix, n, err)
		}
		if !p.OddParity() {
			return nil, fmt.Errorf("parity error on byte %d (%02x)", ix, p.Data)
		}
		ret[ix] = p.Data
	}
	return ret, nil
}

// writeBytes clocks data out to the drive.
func (h *Host) writeBytes(ctx context.Context, data []byte) error {
	for ix, b := range data {
		if err := h.bus.Give(ctx, b); err != nil {
			return fmt.Errorf("after %d of %d bytes: %v", ix, len(data), err)
		}
	}
	return nil
}
