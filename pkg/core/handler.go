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
	"encoding/binary"

	"github.com/cameo-aphid/aphid/pkg/channel"
	"github.com/cameo-aphid/aphid/pkg/shmem"
)

// SendTries is how often a reply to the supervisor is attempted.
const SendTries = 5

// channel debug words
const (
	chanStart     uint16 = 0x0000
	chanReceived  uint16 = 0x0100
	chanCommand   uint16 = 0x0200
	chanProceed   uint16 = 0x0300
	chanFetch     uint16 = 0x0400
	chanFetchFail uint16 = 0x0499
	chanStore     uint16 = 0x0500
	chanStoreCopy uint16 = 0x0501
	chanStoreFail uint16 = 0x0599
	chanSum       uint16 = 0x0600
	chanSumFail   uint16 = 0x0699
	chanDone      uint16 = 0x1000
)

// NewHandler creates a handler for buffer commands arriving through ep.
func NewHandler(r *shmem.Region, ep channel.Endpoint, debug bool) *Handler {
	return &Handler{region: r, endpoint: ep, debug: debug}
}

/*
	Handler executes buffer commands from the supervisor against the region.
	It owns the receive buffer, which is reused for every message.
*/
type Handler struct {
	region   *shmem.Region
	endpoint channel.Endpoint
	debug    bool
	buf      [channel.ReceiveBufferSize]byte
	sum      [2]byte
}

/*
	Handle drains one pending message and executes the command in it.
	Messages too short for a command, such as the supervisor's startup
	greeting, and messages with unknown opcodes are dropped, but count as
	handled.
*/
func (h *Handler) Handle() Meaning {

	if h.debug {
		h.region.RollChannel()
		h.region.MarkChannel(chanStart)
	}

	// a stale opcode from an earlier message must not pass for a new one
	binary.LittleEndian.PutUint32(h.buf[:], 0)

	received := h.endpoint.Receive(h.buf[:])
	h.mark(chanReceived)

	if received < channel.HeaderSize {
		return Handled
	}
	h.mark(chanCommand)

	start := binary.LittleEndian.Uint16(h.buf[4:])
	length := binary.LittleEndian.Uint16(h.buf[6:])

	switch binary.LittleEndian.Uint32(h.buf[:]) {

	case channel.OpProceed:
		h.mark(chanProceed)
		return Proceed

	case channel.OpFetchHostSector:
		h.mark(chanFetch)
		if !h.fetch(start, length) {
			h.mark(chanFetchFail)
			return Failed
		}

	case channel.OpStoreDriveSector:
		h.mark(chanStore)
		if !h.store(start, length, received) {
			h.mark(chanStoreFail)
			return Failed
		}

	case channel.OpChecksum:
		h.mark(chanSum)
		if !h.checksum() {
			h.mark(chanSumFail)
			return Failed
		}
	}

	return Handled
}

// fetch sends part of the host sector to the supervisor. A part larger
// than a message fails to send.
func (h *Handler) fetch(start, length uint16) bool {
	from, to := clamp(start, length, shmem.SectorSize)
	return h.send(h.region.HostSector()[from:to])
}

// store copies payload into the drive sector. The message must have carried
// at least as much payload as is to be copied.
func (h *Handler) store(start, length uint16, received int) bool {
	sec := h.region.DriveSector()
	from, to := clamp(start, length, len(sec))
	if received-channel.HeaderSize < to-from {
		return false
	}
	h.mark(chanStoreCopy)
	copy(sec[from:to], h.buf[channel.HeaderSize:])
	return true
}

// checksum sends the checksum of the drive sector to the supervisor.
func (h *Handler) checksum() bool {
	binary.LittleEndian.PutUint16(h.sum[:], Checksum(h.region.DriveSector()))
	return h.send(h.sum[:])
}

//
func (h *Handler) send(p []byte) bool {
	for ix := 0; ix < SendTries; ix++ {
		if h.debug {
			h.region.BumpChannel()
		}
		if h.endpoint.Send(p) == nil {
			return true
		}
	}
	return false
}

//
func (h *Handler) mark(w uint16) {
	if h.debug {
		h.region.MarkChannel(w)
	}
}

// clamp confines the range of length bytes starting at start to [0, size].
// A range starting beyond size collapses to an empty one at size.
func clamp(start, length uint16, size int) (from, to int) {
	from = int(start)
	if from > size {
		from = size
	}
	to = from + int(length)
	if to > size {
		to = size
	}
	return from, to
}

/*
	Checksum computes the 16 bit checksum of data: each byte is added to the
	sum, then the sum is rotated left by one bit.
*/
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
		sum = sum<<1 | sum>>15
	}
	return sum
}
