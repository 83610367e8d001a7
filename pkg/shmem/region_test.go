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
	"bytes"
	"testing"
)

//
func TestLayout(t *testing.T) {

	sizes := []struct {
		addr Addr
		next Addr
		size int
	}{
		{AddrCommand, AddrStatistics, 8},
		{AddrStatistics, AddrHandshake, 16},
		{AddrHandshake, AddrHostCommand, 2},
		{AddrHostCommand, AddrDriveStatus, CommandSize},
		{AddrDriveStatus, AddrDriveSector, StatusSize * PairSize},
		{AddrDriveSector, AddrHostSector, SectorSize * PairSize},
		{AddrHostSector, AddrParityTable, SectorSize},
		{AddrParityTable, AddrDebug, 256 * PairSize},
		{AddrDebug, RegionSize, 8},
	}

	for _, s := range sizes {
		if int(s.next-s.addr) != s.size {
			t.Errorf("field at %d: want size %d, got %d",
				s.addr, s.size, s.next-s.addr)
		}
	}
}

//
func TestParityTable(t *testing.T) {
	r := New()
	for b := 0; b < 256; b++ {
		p := r.PairFor(byte(b))
		if p.Data != byte(b) {
			t.Fatalf("table entry %02x holds data %02x", b, p.Data)
		}
		if !p.OddParity() {
			t.Errorf("table entry %02x does not have odd parity", b)
		}
		if p != PairOf(byte(b)) {
			t.Errorf("table entry %02x differs from computed pair", b)
		}
	}
}

//
func TestPowerUpSlot(t *testing.T) {
	c := New().Slot()
	if c.Status != StatusPending || c.Op != 0x80 {
		t.Errorf("unexpected power-up slot: %+v", c)
	}
}

//
func TestSlotRoundTrip(t *testing.T) {
	r := New()
	want := DataPumpCommand{
		Status: 0x06, Op: 0x01, Size: 536, Addr: AddrDriveStatus}
	r.SetSlot(want)
	if got := r.Slot(); got != want {
		t.Errorf("want %+v, got %+v", want, got)
	}
	if r.SlotStatus() != 0x06 {
		t.Errorf("status byte not at offset 0")
	}
}

//
func TestStatusReplyPrecedesSector(t *testing.T) {

	r := New()
	r.SetStatusReply(0x81)
	r.FillDriveSector([]byte{0x12, 0x34})

	out := r.Bytes(AddrDriveStatus, (StatusSize+SectorSize)*PairSize)
	if out == nil {
		t.Fatal("status and sector not contiguous")
	}

	want := []byte{0x81, 0x00, 0x00, 0x00, 0x12, 0x34, 0x00}
	for ix, w := range want {
		if got := out[ix*PairSize]; got != w {
			t.Errorf("byte %d: want %02x, got %02x", ix, w, got)
		}
		if !(Pair{Data: out[ix*PairSize], Parity: out[ix*PairSize+1]}).OddParity() {
			t.Errorf("byte %d: bad parity", ix)
		}
	}

	if !bytes.Equal(r.DriveSectorData()[:3], []byte{0x12, 0x34, 0x00}) {
		t.Errorf("unexpected sector data: %x", r.DriveSectorData()[:3])
	}
}

//
func TestBytesOutOfRange(t *testing.T) {
	r := New()
	if r.Bytes(AddrDebug, 9) != nil {
		t.Error("range beyond region end should yield nil")
	}
	if r.Bytes(AddrDebug, 8) == nil {
		t.Error("range up to region end should be valid")
	}
}

//
func TestSnapshotParse(t *testing.T) {

	r := New()
	r.MarkControl(0x1200)
	r.RollControl()
	r.MarkControl(0x1300)
	r.MarkChannel(0x0500)
	r.OrChannel(0x1000)
	r.AddStatistic(StatReadRequested, 6)
	r.AddStatistic(StatWriteSucceeded, 536)
	r.SetHandshake(0x55)
	copy(r.HostCommand(), []byte{0, 0, 0, 1, 10, 3})
	r.SetStatusReply(0x05)

	v, err := Parse(r.Snapshot())
	if err != nil {
		t.Fatal(err)
	}

	if v.Debug != (DebugWords{Control: 0x1300, LastControl: 0x1200,
		Channel: 0x1500, LastChannel: 0xfdfd}) {
		t.Errorf("unexpected debug words: %+v", v.Debug)
	}
	if v.Statistics.ReadBytesRequested != 6 ||
		v.Statistics.WriteWordsSucceeded != 536 {
		t.Errorf("unexpected statistics: %+v", v.Statistics)
	}
	if v.Handshake != 0x55 || !bytes.Equal(v.Command, []byte{0, 0, 0, 1, 10, 3}) {
		t.Errorf("unexpected handshake/command: %02x %x", v.Handshake, v.Command)
	}
	if !bytes.Equal(v.DriveStatus, []byte{0x05, 0, 0, 0}) {
		t.Errorf("unexpected drive status: %x", v.DriveStatus)
	}

	if _, err := Parse(make([]byte, 10)); err == nil {
		t.Error("short snapshot should not parse")
	}
}

//
func TestWithParity(t *testing.T) {
	got := WithParity([]byte{0x00, 0x01, 0x03})
	want := []byte{0x00, 0xff, 0x01, 0x00, 0x03, 0xff}
	if !bytes.Equal(got, want) {
		t.Errorf("want %x, got %x", want, got)
	}
}
