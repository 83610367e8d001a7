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
	Package channel implements the message channel between the control core
	and the supervisor, and the command format the supervisor uses to get
	data into and out of the control core's sector buffers.

	There is no framing beyond what the transport provides. Instead, the
	opcodes are unusual values: neither they, nor any pair of adjacent bytes
	within them, have been observed in Lisa Office System or Workshop disk
	images, so sector data can surround commands in the channel without being
	mistaken for one.
*/
package channel

import (
	"encoding/binary"
	"fmt"
)

// transport limits
const (
	// BufferSize is the size of a transport buffer.
	BufferSize = 512
	// TransportHeaderSize is what the transport claims of each buffer.
	TransportHeaderSize = 16
	// MaxMessage is the largest message that can be sent in one go.
	MaxMessage = BufferSize - TransportHeaderSize
	// HeaderSize is the size of a command without payload.
	HeaderSize = 8
	// MaxPayload is the largest payload a command can carry.
	MaxPayload = MaxMessage - HeaderSize
	// ReceiveBufferSize is the size of the control core's receive buffer.
	// Only the first BufferSize bytes are guaranteed to hold data.
	ReceiveBufferSize = 2 * BufferSize
)

// opcodes; little endian on the wire
const (
	OpFetchHostSector  uint32 = 0xf137a98c
	OpStoreDriveSector uint32 = 0xc74b95db
	OpChecksum         uint32 = 0xa35bb99d
	OpProceed          uint32 = 0xea7393a6
)

/*
	Command is a supervisor request. Start and Length are byte offsets into
	the buffer the opcode refers to. On the wire:

		0..3	opcode
		4..5	start
		6..7	length
		8..		payload
*/
type Command struct {
	Opcode  uint32
	Start   uint16
	Length  uint16
	Payload []byte
}

// Fetch asks for length bytes of the host sector, starting at start.
func Fetch(start, length uint16) *Command {
	return &Command{Opcode: OpFetchHostSector, Start: start, Length: length}
}

// Store places data into the drive sector, starting at start.
func Store(start uint16, data []byte) *Command {
	return &Command{Opcode: OpStoreDriveSector, Start: start,
		Length: uint16(len(data)), Payload: data}
}

// Checksum asks for the checksum of the drive sector.
func Checksum() *Command {
	return &Command{Opcode: OpChecksum}
}

// Proceed tells the control core the supervisor is done with the buffers.
func Proceed() *Command {
	return &Command{Opcode: OpProceed}
}

// Encode renders the command for sending.
func (c *Command) Encode() ([]byte, error) {
	if len(c.Payload) > MaxPayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds maximum of %d",
			len(c.Payload), MaxPayload)
	}
	ret := make([]byte, HeaderSize+len(c.Payload))
	binary.LittleEndian.PutUint32(ret, c.Opcode)
	binary.LittleEndian.PutUint16(ret[4:], c.Start)
	binary.LittleEndian.PutUint16(ret[6:], c.Length)
	copy(ret[HeaderSize:], c.Payload)
	return ret, nil
}

// Decode parses a received message. The payload refers to msg.
func Decode(msg []byte) (*Command, error) {
	if len(msg) < HeaderSize {
		return nil, fmt.Errorf("message of %d bytes too short for a command",
			len(msg))
	}
	return &Command{
		Opcode:  binary.LittleEndian.Uint32(msg),
		Start:   binary.LittleEndian.Uint16(msg[4:]),
		Length:  binary.LittleEndian.Uint16(msg[6:]),
		Payload: msg[HeaderSize:],
	}, nil
}

//
func (c *Command) String() string {
	return fmt.Sprintf("%s start=%d length=%d payload=%d",
		OpName(c.Opcode), c.Start, c.Length, len(c.Payload))
}

//
func OpName(op uint32) string {
	switch op {
	case OpFetchHostSector:
		return "FETCH"
	case OpStoreDriveSector:
		return "STORE"
	case OpChecksum:
		return "CHECKSUM"
	case OpProceed:
		return "PROCEED"
	}
	return fmt.Sprintf("UNKNOWN(%08x)", op)
}
