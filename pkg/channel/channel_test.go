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

package channel

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/cameo-aphid/aphid/pkg/hw"
)

//
func TestLimits(t *testing.T) {
	if MaxMessage != 496 || MaxPayload != 488 || ReceiveBufferSize != 1024 {
		t.Errorf("unexpected limits: message %d, payload %d, receive %d",
			MaxMessage, MaxPayload, ReceiveBufferSize)
	}
}

//
func TestCommandWireFormat(t *testing.T) {

	raw, err := Store(354, []byte{0xaa, 0xbb}).Encode()
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{0xdb, 0x95, 0x4b, 0xc7, 0x62, 0x01, 0x02, 0x00, 0xaa, 0xbb}
	if !bytes.Equal(raw, want) {
		t.Errorf("want %x, got %x", want, raw)
	}

	cmd, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Opcode != OpStoreDriveSector || cmd.Start != 354 ||
		cmd.Length != 2 || !bytes.Equal(cmd.Payload, []byte{0xaa, 0xbb}) {
		t.Errorf("unexpected decoded command: %v", cmd)
	}
}

//
func TestCommandErrors(t *testing.T) {

	if _, err := Store(0, make([]byte, MaxPayload+1)).Encode(); err == nil {
		t.Error("oversized payload should not encode")
	}
	if _, err := Store(0, make([]byte, MaxPayload)).Encode(); err != nil {
		t.Errorf("maximum payload should encode: %v", err)
	}
	if _, err := Decode(make([]byte, HeaderSize-1)); err == nil {
		t.Error("short message should not decode")
	}
}

//
func TestOpcodesAreUnusual(t *testing.T) {

	// no opcode may share an adjacent byte pair with another, so a fragment
	// of one can never pass for a different one
	pairs := map[[2]byte]uint32{}

	for _, op := range []uint32{OpFetchHostSector, OpStoreDriveSector,
		OpChecksum, OpProceed} {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, op)
		for ix := 0; ix < 3; ix++ {
			p := [2]byte{b[ix], b[ix+1]}
			if other, ok := pairs[p]; ok && other != op {
				t.Errorf("%08x and %08x share byte pair %x", op, other, p)
			}
			pairs[p] = op
		}
	}
}

//
func TestPipe(t *testing.T) {

	ec := hw.NewEventController()
	p := NewPipe(ec)
	ctl := p.Control()
	sup := p.Supervisor()
	ctx := context.Background()

	buf := make([]byte, ReceiveBufferSize)
	if n := ctl.Receive(buf); n != 0 {
		t.Fatalf("empty pipe delivered %d bytes", n)
	}

	if err := sup.Send(ctx, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := sup.Send(ctx, []byte("second")); err != nil {
		t.Fatal(err)
	}
	if !ec.Pending(hw.SupervisorToControl) {
		t.Error("supervisor message did not raise event")
	}

	if n := ctl.Receive(buf); string(buf[:n]) != "first" {
		t.Errorf("want first message, got %q", buf[:n])
	}
	if !ctl.Pending() {
		t.Error("second message should be pending")
	}
	if n := ctl.Receive(buf[:3]); string(buf[:n]) != "sec" {
		t.Errorf("want truncated second message, got %q", buf[:n])
	}
	if ctl.Pending() {
		t.Error("no message should be pending")
	}

	if err := ctl.Send(make([]byte, MaxMessage+1)); err == nil {
		t.Error("oversized message should not be sent")
	}
	ctl.Send([]byte{1, 2})
	ctl.Send([]byte{3})
	if !ec.Pending(hw.ControlToSupervisor) {
		t.Error("control message did not raise event")
	}

	got, err := sup.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("supervisor should drain all pending data, got %x", got)
	}

	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := sup.Receive(tctx); err == nil {
		t.Error("receive on empty pipe should time out")
	}
}

//
func TestPipeControlNeverBlocks(t *testing.T) {

	ctl := NewPipe(hw.NewEventController()).Control()

	var err error
	for ix := 0; ix <= PipeDepth && err == nil; ix++ {
		err = ctl.Send([]byte{byte(ix)})
	}
	if err == nil {
		t.Error("send to a full pipe should fail")
	}
}

//
func TestStreamConn(t *testing.T) {

	local, remote := net.Pipe()
	conn := NewStreamConn(local)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		remote.Write([]byte{3, 0, 'a', 'b', 'c'})
	}()

	got, err := conn.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abc" {
		t.Errorf("want abc, got %q", got)
	}

	frame := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4)
		n, _ := remote.Read(buf)
		frame <- buf[:n]
	}()

	if err := conn.Send(ctx, []byte{0x42, 0x43}); err != nil {
		t.Fatal(err)
	}
	if f := <-frame; !bytes.Equal(f, []byte{2, 0, 0x42, 0x43}) {
		t.Errorf("unexpected frame: %x", f)
	}

	remote.Close()
	if _, err := conn.Receive(ctx); err == nil {
		t.Error("receive from closed stream should fail")
	}
}
