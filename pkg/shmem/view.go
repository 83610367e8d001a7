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
	"fmt"
	"io"
)

// View is a decoded snapshot of a region, as used by snoop & the control
// API.
type View struct {
	Slot struct {
		Status byte   `json:"status"`
		Op     byte   `json:"op"`
		Size   uint16 `json:"size"`
		Addr   uint32 `json:"addr"`
	} `json:"slot"`
	Statistics  Statistics `json:"statistics"`
	Handshake   byte       `json:"handshake"`
	Command     []byte     `json:"command"`
	DriveStatus []byte     `json:"driveStatus"`
	Debug       DebugWords `json:"debug"`
}

// Parse decodes a snapshot taken with Region.Snapshot, or read from the
// memory of the real PRUs.
func Parse(raw []byte) (*View, error) {

	if len(raw) < RegionSize {
		return nil, fmt.Errorf(
			"region snapshot too short: want %d, got %d", RegionSize, len(raw))
	}

	v := &View{}
	v.Slot.Status = raw[AddrCommand]
	v.Slot.Op = raw[AddrCommand+1]
	v.Slot.Size = binary.LittleEndian.Uint16(raw[AddrCommand+2:])
	v.Slot.Addr = binary.LittleEndian.Uint32(raw[AddrCommand+4:])

	s := raw[AddrStatistics:]
	v.Statistics = Statistics{
		ReadBytesRequested:  binary.LittleEndian.Uint32(s[0:]),
		ReadBytesSucceeded:  binary.LittleEndian.Uint32(s[4:]),
		WriteWordsRequested: binary.LittleEndian.Uint32(s[8:]),
		WriteWordsSucceeded: binary.LittleEndian.Uint32(s[12:]),
	}

	v.Handshake = raw[AddrHandshake]
	v.Command = append([]byte{}, raw[AddrHostCommand:AddrHostCommand+CommandSize]...)

	v.DriveStatus = make([]byte, StatusSize)
	for ix := range v.DriveStatus {
		v.DriveStatus[ix] = raw[int(AddrDriveStatus)+ix*PairSize]
	}

	d := raw[AddrDebug:]
	v.Debug = DebugWords{
		Control:     binary.LittleEndian.Uint16(d[0:]),
		LastControl: binary.LittleEndian.Uint16(d[2:]),
		Channel:     binary.LittleEndian.Uint16(d[4:]),
		LastChannel: binary.LittleEndian.Uint16(d[6:]),
	}

	return v, nil
}

//
func (v *View) Emit(w io.Writer) {
	fmt.Fprintf(w, "\n  [data pump]                    (bytes)          in         out\n")
	fmt.Fprintf(w, "  command: %02x  size: %04x      succeeded  %10d  %10d\n",
		v.Slot.Op, v.Slot.Size, v.Statistics.ReadBytesSucceeded,
		v.Statistics.WriteWordsSucceeded)
	fmt.Fprintf(w, "  retcode: %02x  addr: %08x  requested  %10d  %10d\n\n",
		v.Slot.Status, v.Slot.Addr, v.Statistics.ReadBytesRequested,
		v.Statistics.WriteWordsRequested)
	fmt.Fprintf(w, "  host: handshake = %02x, command = %x  drive: status = %x\n\n",
		v.Handshake, v.Command, v.DriveStatus)
	fmt.Fprintf(w, "  control word = %04x  (last %04x)\n",
		v.Debug.Control, v.Debug.LastControl)
	fmt.Fprintf(w, "  channel word = %04x  (last %04x)\n\n",
		v.Debug.Channel, v.Debug.LastChannel)
}
