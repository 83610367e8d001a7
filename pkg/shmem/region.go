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

package shmem

import (
	"encoding/binary"
	"math/bits"
	"sync/atomic"
)

/*
	Region is the memory shared between the control core and the data pump.
	It is laid out exactly like the memory of the PRU firmware, so
	that tools reading it byte by byte (snoop, /dev/mem mapping) see the same
	thing regardless of whether the cores are real or simulated:

		offset  size  content
		     0     8  data pump command {status, op, size, addr}
		     8    16  data pump statistics, 4 x uint32
		    24     2  handshake byte from host, padded
		    26     6  command from host
		    32     8  drive status, 4 byte/parity pairs
		    40  1064  drive sector, 532 byte/parity pairs
		  1104   532  host sector
		  1636   512  byte/parity lookup table
		  2148     8  debug words, 4 x uint16

	The drive status must immediately precede the drive sector, so that both
	can go out to the host in a single transfer.

	There are no locks. The control core owns the region, except for the
	status byte of the command slot and the statistics, which belong to the
	data pump. Ordering between the two cores is established by the interrupt
	events in package hw.
*/
type Region struct {
	mem    [RegionSize]byte
	status atomic.Uint32
	stats  [4]atomic.Uint32
	debug  [4]atomic.Uint32
}

//
const (
	SectorSize  = 532
	CommandSize = 6
	StatusSize  = 4
	PairSize    = 2
	RegionSize  = 2156
)

// Addr is an offset into the region. The data pump resolves the address in
// its command slot against the region.
type Addr uint32

//
const (
	AddrCommand     Addr = 0
	AddrStatistics  Addr = 8
	AddrHandshake   Addr = 24
	AddrHostCommand Addr = 26
	AddrDriveStatus Addr = 32
	AddrDriveSector Addr = 40
	AddrHostSector  Addr = 1104
	AddrParityTable Addr = 1636
	AddrDebug       Addr = 2148
)

// StatusPending is placed in the command slot by the control core; the data
// pump replaces it when done.
const StatusPending byte = 0xff

// ParityMask selects the bit of a parity byte that drives the PARITY line.
const ParityMask byte = 0x40

// Pair is a data byte with its precomputed parity byte.
type Pair struct {
	Data   byte
	Parity byte
}

// PairOf computes the pair for b. The parity byte is either 0x00 or 0xff,
// making the total number of set bits across data and parity bit odd.
func PairOf(b byte) Pair {
	if bits.OnesCount8(b)%2 == 0 {
		return Pair{Data: b, Parity: 0xff}
	}
	return Pair{Data: b, Parity: 0x00}
}

// OddParity reports whether data plus the PARITY bit of p has odd parity.
func (p Pair) OddParity() bool {
	n := bits.OnesCount8(p.Data)
	if p.Parity&ParityMask != 0 {
		n++
	}
	return n%2 == 1
}

// WithParity expands plain data into byte/parity pairs, as expected in the
// drive sector.
func WithParity(data []byte) []byte {
	ret := make([]byte, 0, len(data)*PairSize)
	for _, b := range data {
		p := PairOf(b)
		ret = append(ret, p.Data, p.Parity)
	}
	return ret
}

// DataPumpCommand is the content of the command slot at AddrCommand.
type DataPumpCommand struct {
	Status byte
	Op     byte
	Size   uint16
	Addr   Addr
}

// Statistics are accumulated by the data pump after each operation.
type Statistics struct {
	ReadBytesRequested  uint32 `json:"readBytesRequested"`
	ReadBytesSucceeded  uint32 `json:"readBytesSucceeded"`
	WriteWordsRequested uint32 `json:"writeWordsRequested"`
	WriteWordsSucceeded uint32 `json:"writeWordsSucceeded"`
}

//
const (
	StatReadRequested = iota
	StatReadSucceeded
	StatWriteRequested
	StatWriteSucceeded
)

// DebugWords are advisory progress markers. Nothing reads them to make
// decisions.
type DebugWords struct {
	Control     uint16 `json:"control"`
	LastControl uint16 `json:"lastControl"`
	Channel     uint16 `json:"channel"`
	LastChannel uint16 `json:"lastChannel"`
}

//
const (
	debugControl = iota
	debugLastControl
	debugChannel
	debugLastChannel
)

// New creates a region in its power-up state: an invalid command in the
// slot, the parity table filled in, and debug words at their start markers.
func New() *Region {
	r := &Region{}
	r.SetSlot(DataPumpCommand{Status: StatusPending, Op: 0x80})
	for b := 0; b < 256; b++ {
		p := PairOf(byte(b))
		off := int(AddrParityTable) + b*PairSize
		r.mem[off] = p.Data
		r.mem[off+1] = p.Parity
	}
	r.debug[debugControl].Store(0xffff)
	r.debug[debugLastControl].Store(0xfdfd)
	r.debug[debugChannel].Store(0xffff)
	r.debug[debugLastChannel].Store(0xfdfd)
	return r
}

// Bytes returns the n bytes starting at addr, or nil if that range lies
// outside of the region.
func (r *Region) Bytes(addr Addr, n int) []byte {
	if n < 0 || int(addr)+n > RegionSize {
		return nil
	}
	return r.mem[addr : int(addr)+n]
}

// Slot reads the command slot. The status byte is read first; once it
// shows a value other than StatusPending stored by the other core, the
// remaining fields are consistent with it.
func (r *Region) Slot() DataPumpCommand {
	return DataPumpCommand{
		Status: r.SlotStatus(),
		Op:     r.mem[AddrCommand+1],
		Size:   binary.LittleEndian.Uint16(r.mem[AddrCommand+2:]),
		Addr:   Addr(binary.LittleEndian.Uint32(r.mem[AddrCommand+4:])),
	}
}

// SetSlot writes the command slot, status byte last.
func (r *Region) SetSlot(c DataPumpCommand) {
	r.mem[AddrCommand+1] = c.Op
	binary.LittleEndian.PutUint16(r.mem[AddrCommand+2:], c.Size)
	binary.LittleEndian.PutUint32(r.mem[AddrCommand+4:], uint32(c.Addr))
	r.SetSlotStatus(c.Status)
}

// SlotStatus is the only field of the slot both cores write, hence it is
// accessed atomically.
func (r *Region) SlotStatus() byte {
	return byte(r.status.Load())
}

//
func (r *Region) SetSlotStatus(s byte) {
	r.status.Store(uint32(s))
}

//
func (r *Region) Handshake() byte {
	return r.mem[AddrHandshake]
}

//
func (r *Region) SetHandshake(b byte) {
	r.mem[AddrHandshake] = b
}

// HostCommand is the 6 byte command most recently received from the host.
func (r *Region) HostCommand() []byte {
	return r.mem[AddrHostCommand : AddrHostCommand+CommandSize]
}

// DriveStatus holds the 4 status pairs as raw bytes.
func (r *Region) DriveStatus() []byte {
	return r.mem[AddrDriveStatus : AddrDriveStatus+StatusSize*PairSize]
}

// DriveSector holds the 532 outgoing sector pairs as raw bytes.
func (r *Region) DriveSector() []byte {
	return r.mem[AddrDriveSector : AddrDriveSector+SectorSize*PairSize]
}

// HostSector holds the 532 bytes most recently written by the host.
func (r *Region) HostSector() []byte {
	return r.mem[AddrHostSector : AddrHostSector+SectorSize]
}

// PairFor looks up b in the parity table.
func (r *Region) PairFor(b byte) Pair {
	off := int(AddrParityTable) + int(b)*PairSize
	return Pair{Data: r.mem[off], Parity: r.mem[off+1]}
}

// PairAddr is the address of the table entry for b, suitable for sending a
// single byte to the host.
func PairAddr(b byte) Addr {
	return AddrParityTable + Addr(b)*PairSize
}

// SetStatusReply composes the 4 status pairs: status followed by three zero
// bytes.
func (r *Region) SetStatusReply(status byte) {
	st := r.DriveStatus()
	p := r.PairFor(status)
	st[0], st[1] = p.Data, p.Parity
	z := r.PairFor(0)
	for ix := 1; ix < StatusSize; ix++ {
		st[ix*PairSize], st[ix*PairSize+1] = z.Data, z.Parity
	}
}

// FillDriveSector puts plain data into the drive sector, adding parity.
// Data beyond the sector size is ignored, missing data is zero filled.
func (r *Region) FillDriveSector(data []byte) {
	sec := r.DriveSector()
	for ix := 0; ix < SectorSize; ix++ {
		var b byte
		if ix < len(data) {
			b = data[ix]
		}
		p := r.PairFor(b)
		sec[ix*PairSize], sec[ix*PairSize+1] = p.Data, p.Parity
	}
}

// DriveSectorData strips parity from the drive sector.
func (r *Region) DriveSectorData() []byte {
	sec := r.DriveSector()
	ret := make([]byte, SectorSize)
	for ix := range ret {
		ret[ix] = sec[ix*PairSize]
	}
	return ret
}

//
func (r *Region) AddStatistic(which int, n uint32) {
	r.stats[which].Add(n)
}

//
func (r *Region) Statistics() Statistics {
	return Statistics{
		ReadBytesRequested:  r.stats[StatReadRequested].Load(),
		ReadBytesSucceeded:  r.stats[StatReadSucceeded].Load(),
		WriteWordsRequested: r.stats[StatWriteRequested].Load(),
		WriteWordsSucceeded: r.stats[StatWriteSucceeded].Load(),
	}
}

// MarkControl records the state machine's current state.
func (r *Region) MarkControl(w uint16) {
	r.debug[debugControl].Store(uint32(w))
}

// RollControl keeps the control word of the previous pass around.
func (r *Region) RollControl() {
	r.debug[debugLastControl].Store(r.debug[debugControl].Load())
}

// MarkChannel records progress of the channel protocol.
func (r *Region) MarkChannel(w uint16) {
	r.debug[debugChannel].Store(uint32(w))
}

//
func (r *Region) OrChannel(w uint16) {
	r.debug[debugChannel].Store(r.debug[debugChannel].Load() | uint32(w))
}

//
func (r *Region) BumpChannel() {
	r.debug[debugChannel].Store((r.debug[debugChannel].Load() + 1) & 0xffff)
}

//
func (r *Region) RollChannel() {
	r.debug[debugLastChannel].Store(r.debug[debugChannel].Load())
}

//
func (r *Region) Debug() DebugWords {
	return DebugWords{
		Control:     uint16(r.debug[debugControl].Load()),
		LastControl: uint16(r.debug[debugLastControl].Load()),
		Channel:     uint16(r.debug[debugChannel].Load()),
		LastChannel: uint16(r.debug[debugLastChannel].Load()),
	}
}

/*
	Snapshot copies the whole region in its byte layout. Slot status and
	statistics are read atomically. The buffers are copied without any
	synchronization with the cores, so while they are running, contents may
	be torn, and the race detector reports the copy as a data race. This is
	accepted for diagnostic views such as snoop and the shmem API. Anything
	that needs consistent buffer contents must take the snapshot while the
	control core is idle.
*/
func (r *Region) Snapshot() []byte {
	ret := make([]byte, RegionSize)
	copy(ret, r.mem[:])
	ret[AddrCommand] = r.SlotStatus()
	st := r.Statistics()
	for ix, v := range []uint32{st.ReadBytesRequested, st.ReadBytesSucceeded,
		st.WriteWordsRequested, st.WriteWordsSucceeded} {
		binary.LittleEndian.PutUint32(ret[int(AddrStatistics)+4*ix:], v)
	}
	dw := r.Debug()
	for ix, v := range []uint16{
		dw.Control, dw.LastControl, dw.Channel, dw.LastChannel} {
		binary.LittleEndian.PutUint16(ret[int(AddrDebug)+2*ix:], v)
	}
	return ret
}
