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

package daemon

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cameo-aphid/aphid/pkg/channel"
	"github.com/cameo-aphid/aphid/pkg/core"
	"github.com/cameo-aphid/aphid/pkg/image"
	"github.com/cameo-aphid/aphid/pkg/shmem"
	"github.com/cameo-aphid/aphid/pkg/util"
)

// fakeConn records what is sent, and hands out scripted replies.
type fakeConn struct {
	sent    [][]byte
	replies [][]byte
}

//
func (f *fakeConn) Send(ctx context.Context, p []byte) error {
	f.sent = append(f.sent, append([]byte{}, p...))
	return nil
}

//
func (f *fakeConn) Receive(ctx context.Context) ([]byte, error) {
	if len(f.replies) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ret := f.replies[0]
	f.replies = f.replies[1:]
	return ret, nil
}

//
func (f *fakeConn) Close() error {
	return nil
}

//
func (f *fakeConn) commands(t *testing.T) []*channel.Command {
	var ret []*channel.Command
	for _, msg := range f.sent {
		c, err := channel.Decode(msg)
		if err != nil {
			t.Fatalf("invalid message sent: %x", msg)
		}
		ret = append(ret, c)
	}
	return ret
}

//
func fill(b byte) []byte {
	return bytes.Repeat([]byte{b}, image.SectorSize)
}

//
func newTestConduit(conn channel.Conn, verify bool) *conduit {
	return newConduit(conn, 50*time.Millisecond,
		util.NewSetting(SettingVerify, verify))
}

//
func TestCommand(t *testing.T) {

	if _, err := newCommand([]byte{0, 1, 2}); err == nil {
		t.Error("short command accepted")
	}

	c, _ := newCommand([]byte{0x02, 0x12, 0x34, 0x56, 0x0a, 0x03})
	if c.op() != OpWriteVerify || c.block() != 0x123456 || c.retry() != 0x0a ||
		c.sparing() != 0x03 || !c.isWrite() || c.isConclusion() {
		t.Errorf("command not parsed correctly: %s", c)
	}
	if c.String() != "021234560a03" {
		t.Errorf("unexpected rendering: %s", c)
	}

	tests := []struct {
		cmd  []byte
		want bool
	}{
		{[]byte{0x01, 0xff, 0xff, 0xfd, 0xfe, 0xaf}, true},
		{[]byte{0x03, 0xff, 0xff, 0xfd, 0xfe, 0xaf}, true},
		{[]byte{0x00, 0xff, 0xff, 0xfd, 0xfe, 0xaf}, false},
		{[]byte{0x01, 0xff, 0xff, 0xfd, 0xfe, 0xae}, false},
		{[]byte{0x01, 0xff, 0xff, 0xfd, 0xff, 0xaf}, false},
		{[]byte{0x01, 0xff, 0xff, 0xfc, 0xfe, 0xaf}, false},
		{[]byte{0x04, 0xff, 0xff, 0xfd, 0xfe, 0xaf}, false},
	}

	for _, tc := range tests {
		if got := command(tc.cmd).isConclusion(); got != tc.want {
			t.Errorf("%x: want conclusion %v, got %v", tc.cmd, tc.want, got)
		}
	}
}

//
func TestSpareTable(t *testing.T) {

	tests := []struct {
		size   int64
		head   string
		ident  []byte
		blocks []byte
	}{
		{image.SizeProFile, "PROFILE      ",
			[]byte{0x00, 0x00, 0x00, 0x03, 0x98}, []byte{0x00, 0x26, 0x00}},
		{image.SizeProFile10, "PROFILE 10M  ",
			[]byte{0x00, 0x00, 0x10, 0x04, 0x04}, []byte{0x00, 0x4c, 0x00}},
		{100 * image.SectorSize, "PROFILE      ",
			[]byte{0x00, 0x00, 0x00, 0x03, 0x98}, []byte{0x00, 0x00, 0x64}},
	}

	for _, tc := range tests {

		st := SpareTable(tc.size)

		if len(st) != image.SectorSize {
			t.Fatalf("size %d: spare table has %d bytes", tc.size, len(st))
		}
		if string(st[:13]) != tc.head || !bytes.Equal(st[13:18], tc.ident) ||
			!bytes.Equal(st[18:21], tc.blocks) {
			t.Errorf("size %d: unexpected drive info: %x", tc.size, st[:21])
		}

		want := []byte{0x02, 0x14, 0x20, 0x00, 0x00,
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
		if !bytes.Equal(st[21:32], want) {
			t.Errorf("size %d: unexpected table: %x", tc.size, st[21:32])
		}
		if string(st[32:48]) != Signature {
			t.Errorf("size %d: signature missing", tc.size)
		}
		if !bytes.Equal(st[48:], make([]byte, image.SectorSize-48)) {
			t.Errorf("size %d: padding not zero", tc.size)
		}
	}
}

//
func TestReceiveKeepsLast(t *testing.T) {

	conn := &fakeConn{replies: [][]byte{
		{1, 2, 3, 4, 5, 6, 7, 8},
		{9, 10},
	}}
	c := newTestConduit(conn, false)

	data, err := c.receive(context.Background(), 6, time.Second)
	if err != nil || !bytes.Equal(data, []byte{3, 4, 5, 6, 7, 8}) {
		t.Errorf("want last 6 bytes, got %v, %v", data, err)
	}

	data, err = c.receive(context.Background(), 6, time.Second)
	if err != nil || !bytes.Equal(data, []byte{9, 10}) {
		t.Errorf("want short data as is, got %v, %v", data, err)
	}

	if _, err := c.receive(context.Background(), 6,
		10*time.Millisecond); err == nil {
		t.Error("no error on timeout")
	}
}

//
func TestAwaitCommand(t *testing.T) {

	conn := &fakeConn{replies: [][]byte{
		{0x0a},
		{0x00, 0x00, 0x00, 0x07, 0x01, 0x02},
	}}
	c := newTestConduit(conn, false)

	cmd, err := c.awaitCommand(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cmd.block() != 7 {
		t.Errorf("unexpected command: %s", cmd)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.awaitCommand(ctx); err == nil {
		t.Error("no error with done context")
	}
}

//
func TestGetSector(t *testing.T) {

	host := make([]byte, image.SectorSize)
	for ix := range host {
		host[ix] = byte(ix)
	}

	conn := &fakeConn{replies: [][]byte{host[:266], host[266:]}}
	c := newTestConduit(conn, false)

	data, err := c.getSector(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, host) {
		t.Error("sector not assembled correctly")
	}

	cmds := conn.commands(t)
	if len(cmds) != 2 {
		t.Fatalf("want 2 fetches, got %d", len(cmds))
	}
	for ix, want := range [][2]uint16{{0, 266}, {266, 266}} {
		if cmds[ix].Opcode != channel.OpFetchHostSector ||
			cmds[ix].Start != want[0] || cmds[ix].Length != want[1] {
			t.Errorf("unexpected fetch: %s", cmds[ix])
		}
	}

	conn = &fakeConn{replies: [][]byte{host[:266], host[:100]}}
	if _, err := newTestConduit(conn, false).getSector(
		context.Background()); err == nil {
		t.Error("short sector accepted")
	}
}

//
func TestPutSector(t *testing.T) {

	data := fill(0x41)
	pairs := shmem.WithParity(data)

	conn := &fakeConn{}
	c := newTestConduit(conn, false)

	if err := c.putSector(context.Background(), data); err != nil {
		t.Fatal(err)
	}

	cmds := conn.commands(t)
	if len(cmds) != 3 {
		t.Fatalf("want 3 stores, got %d", len(cmds))
	}
	var got []byte
	for ix, want := range [][2]uint16{{0, 354}, {354, 354}, {708, 356}} {
		if cmds[ix].Opcode != channel.OpStoreDriveSector ||
			cmds[ix].Start != want[0] || cmds[ix].Length != want[1] {
			t.Errorf("unexpected store: %s", cmds[ix])
		}
		got = append(got, cmds[ix].Payload...)
	}
	if !bytes.Equal(got, pairs) {
		t.Error("stored data does not match sector with parity")
	}

	if err := c.putSector(context.Background(), data[:10]); err == nil {
		t.Error("short sector accepted")
	}

	// verified
	sum := make([]byte, 2)
	binary.LittleEndian.PutUint16(sum, core.Checksum(pairs))
	conn = &fakeConn{replies: [][]byte{sum}}
	if err := newTestConduit(conn, true).putSector(
		context.Background(), data); err != nil {
		t.Errorf("verification failed: %v", err)
	}
	if cmds := conn.commands(t); len(cmds) != 4 ||
		cmds[3].Opcode != channel.OpChecksum {
		t.Error("checksum not requested")
	}

	conn = &fakeConn{replies: [][]byte{{0x12, 0x34}}}
	if err := newTestConduit(conn, true).putSector(
		context.Background(), data); err == nil ||
		!strings.Contains(err.Error(), "mismatch") {
		t.Errorf("want checksum mismatch, got %v", err)
	}
}

// newTestDaemon creates a daemon serving a fresh image, without running
// a session.
func newTestDaemon(t *testing.T, conn channel.Conn) *Daemon {

	dir := t.TempDir()
	path := filepath.Join(dir, "disk.image")

	img, err := image.Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	f := image.NewFlusher(img, time.Hour)
	f.Start()
	t.Cleanup(func() {
		f.Stop()
		img.Close()
	})

	d := NewDaemon(conn, Config{Image: path})
	d.conduit.readDelay = 50 * time.Millisecond
	d.mount(img, f, Plugins{})
	d.lastData = make([]byte, image.SectorSize)

	return d
}

//
func TestExecute(t *testing.T) {

	conn := &fakeConn{}
	d := newTestDaemon(t, conn)
	ctx := context.Background()

	// write
	conn.replies = [][]byte{fill(0x77)[:266], fill(0x77)[266:]}
	data, concluded, err := d.execute(ctx,
		command{OpWrite, 0x00, 0x00, 0x10, 0, 0})
	if err != nil || concluded || !bytes.Equal(data, fill(0x77)) {
		t.Fatalf("write failed: %v", err)
	}
	if stored, _ := d.image.Get(0x10); !bytes.Equal(stored, fill(0x77)) {
		t.Error("sector not written to image")
	}
	cmds := conn.commands(t)
	if cmds[len(cmds)-1].Opcode != channel.OpProceed {
		t.Error("no go ahead after write")
	}

	// reads
	tests := []struct {
		block uint32
		want  []byte
	}{
		{0x10, fill(0x77)},
		{BlockLastData, fill(0x77)},
		{BlockSpareTable, SpareTable(image.SizeProFile)},
		{0x123456, fill(0)},
		{0xff1234, fill(0)},
	}

	for _, tc := range tests {
		conn.sent = nil
		cmd := command{OpRead, byte(tc.block >> 16), byte(tc.block >> 8),
			byte(tc.block), 0, 0}
		if _, _, err := d.execute(ctx, cmd); err != nil {
			t.Fatalf("read %06X failed: %v", tc.block, err)
		}
		cmds := conn.commands(t)
		if len(cmds) != 4 || cmds[3].Opcode != channel.OpProceed {
			t.Fatalf("read %06X: unexpected exchange", tc.block)
		}
		var got []byte
		for _, c := range cmds[:3] {
			got = append(got, c.Payload...)
		}
		if !bytes.Equal(got, shmem.WithParity(tc.want)) {
			t.Errorf("read %06X: unexpected data", tc.block)
		}
	}

	// unknown op still goes ahead, and leaves last data alone
	conn.sent = nil
	before := d.lastData
	if _, _, err := d.execute(ctx, command{0x07, 0, 0, 1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if cmds := conn.commands(t); len(cmds) != 1 ||
		cmds[0].Opcode != channel.OpProceed {
		t.Error("no go ahead for unknown command")
	}
	if !bytes.Equal(d.lastData, before) {
		t.Error("last data changed by unknown command")
	}

	// conclusion does not touch the image
	conn.replies = [][]byte{fill(0x55)[:266], fill(0x55)[266:]}
	_, concluded, err = d.execute(ctx,
		command{OpWrite, 0xff, 0xff, 0xfd, 0xfe, 0xaf})
	if err != nil || !concluded {
		t.Errorf("conclusion not recognized: %v", err)
	}

	st := d.Status()
	if st.Reads != 5 || st.Writes != 2 || st.Unknown != 1 {
		t.Errorf("unexpected statistics: %+v", st)
	}
}

//
func TestExecuteFailure(t *testing.T) {

	conn := &fakeConn{}
	d := newTestDaemon(t, conn)

	// no sector data coming
	if _, _, err := d.execute(context.Background(),
		command{OpWrite, 0, 0, 1, 0, 0}); err == nil {
		t.Fatal("no error")
	}
	for _, c := range conn.commands(t) {
		if c.Opcode == channel.OpProceed {
			t.Error("go ahead after failure")
		}
	}
}

//
func TestConclude(t *testing.T) {

	d := newTestDaemon(t, &fakeConn{})
	dir := d.imageDir()
	current := filepath.Join(dir, "disk.image")

	if err := image.Create(filepath.Join(dir, "other.image")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		data string
		next string
		halt bool
	}{
		{"HALT", current, true},
		{"HALT\x00garbage", current, true},
		{"HALTING", current, false},
		{"IMAGE:other.image", filepath.Join(dir, "other.image"), false},
		{"IMAGE:other.image\x00more", filepath.Join(dir, "other.image"), false},
		{"IMAGE:missing.image", current, false},
		{"IMAGE:notes.txt", current, false},
		{"IMAGE:../other.image", current, false},
		{"IMAGE:", current, false},
		{"", current, false},
		{"\x00HALT", current, false},
	}

	for _, tc := range tests {
		data := make([]byte, image.SectorSize)
		copy(data, tc.data)
		next, halt := d.conclude(current, data)
		if next != tc.next || halt != tc.halt {
			t.Errorf("%q: want %s, %v, got %s, %v", tc.data, tc.next, tc.halt,
				next, halt)
		}
	}
}

//
func TestConfig(t *testing.T) {

	d := NewDaemon(&fakeConn{}, Config{Image: "/tmp/x.image"})

	if v, err := d.GetConfig(SettingVerify); err != nil || v != false {
		t.Errorf("unexpected verify setting: %v, %v", v, err)
	}
	if v, _ := d.GetConfig(SettingFlushDelay); v != 4 {
		t.Errorf("unexpected flush delay: %v", v)
	}

	if err := d.SetConfig(SettingVerify, 1, 0); err != nil {
		t.Fatal(err)
	}
	if !d.conduit.verify.Bool() {
		t.Error("verification not switched on")
	}
	if err := d.SetConfig(SettingFlushDelay, 10, 0); err != nil {
		t.Fatal(err)
	}
	if v, _ := d.GetConfig(SettingFlushDelay); v != 10 {
		t.Errorf("flush delay not changed: %v", v)
	}
	if all := d.Settings(); len(all) != 2 || all[SettingVerify] != true {
		t.Errorf("unexpected settings: %v", all)
	}

	if _, err := d.GetConfig("rumble"); err == nil {
		t.Error("unknown item accepted")
	}
	if err := d.SetConfig("rumble", 1, 0); err == nil {
		t.Error("unknown item accepted")
	}
}

//
func TestPlugins(t *testing.T) {

	dir := t.TempDir()

	scripts := map[string]string{
		"profile_plugin_FF0001_echo.lua": `
stored = ""
function plugin(op, block, retry, sparing, data)
	if op == 0 then
		return string.format("%06X:%d:%d:", block, retry, sparing) .. stored
	end
	stored = string.sub(data, 1, 4)
end
closed = false
function close()
	closed = true
end
`,
		"profile_plugin_FF0002_long.lua": `
function plugin(op, block, retry, sparing, data)
	return string.rep("x", 600)
end
`,
		"profile_plugin_FF0003_broken.lua":  `function plugin(`,
		"profile_plugin_FF0004_nofunc.lua":  `x = 1`,
		"profile_plugin_FFFFFF_outside.lua": `function plugin() return "" end`,
		"profile_plugin_ff0005_lower.lua":   `function plugin() return "" end`,
		"profile_plugin_FF0006_error.lua":   `function plugin() error("boom") end`,
	}
	for name, src := range scripts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src),
			0644); err != nil {
			t.Fatal(err)
		}
	}

	plugins, err := LoadPlugins(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer plugins.Close()

	if len(plugins) != 3 {
		t.Fatalf("want 3 plugins, got %v", plugins.Names())
	}
	if plugins.Names()["FF0001"] != "profile_plugin_FF0001_echo.lua" {
		t.Errorf("unexpected names: %v", plugins.Names())
	}

	read := func(block uint32) ([]byte, bool, error) {
		return plugins.Call(command{OpRead, byte(block >> 16),
			byte(block >> 8), byte(block), 3, 4}, nil)
	}

	data, ok, err := read(0xff0001)
	if !ok || err != nil {
		t.Fatalf("plugin not called: %v", err)
	}
	want := make([]byte, image.SectorSize)
	copy(want, "FF0001:3:4:")
	if !bytes.Equal(data, want) {
		t.Errorf("unexpected plugin data: %q", data[:16])
	}

	if _, ok, err := plugins.Call(command{OpWrite, 0xff, 0x00, 0x01, 0, 0},
		[]byte("ABCDEFG")); !ok || err != nil {
		t.Fatalf("plugin write failed: %v", err)
	}
	data, _, _ = read(0xff0001)
	if !strings.HasPrefix(string(data), "FF0001:3:4:ABCD\x00") {
		t.Errorf("plugin did not see write: %q", data[:16])
	}

	if data, _, _ := read(0xff0002); len(data) != image.SectorSize ||
		data[image.SectorSize-1] != 'x' {
		t.Error("long plugin result not truncated")
	}

	if _, ok, err := read(0xff0006); !ok || err == nil {
		t.Error("plugin error not reported")
	}

	if _, ok, _ := read(0xff0007); ok {
		t.Error("call for block without plugin")
	}

	if plugins, err := LoadPlugins(""); err != nil || len(plugins) != 0 {
		t.Error("plugins loaded without directory")
	}
}

//
func TestBundledPlugins(t *testing.T) {

	t.Setenv("APHID_KV_STORE", filepath.Join(t.TempDir(), "kv.db"))

	plugins, err := LoadPlugins(filepath.Join("..", "..", "plugins"))
	if err != nil {
		t.Fatal(err)
	}
	defer plugins.Close()

	data, ok, err := plugins.Call(command{OpRead, 0xff, 0xfe, 0xfd, 0, 0}, nil)
	if !ok || err != nil {
		t.Fatalf("system info plugin not called: %v", err)
	}
	if len(data) != image.SectorSize {
		t.Fatalf("unexpected data size: %d", len(data))
	}
	for ix, b := range data[:10] {
		if b != ' ' && (b < '0' || b > '9') {
			t.Errorf("uptime byte %d not a digit: %q", ix, data[:10])
			break
		}
	}
	if string(data[10:25]) != strings.Repeat(" ", 15) {
		t.Errorf("unexpected free bytes: %q", data[10:25])
	}

	if data, ok, err = plugins.Call(command{OpWrite, 0xff, 0xfe, 0xfd, 0, 0},
		make([]byte, image.SectorSize)); !ok || err != nil || data != nil {
		t.Errorf("write not ignored: %v", err)
	}
}

//
func TestKeyValueStorePlugin(t *testing.T) {

	store := filepath.Join(t.TempDir(), "kv.db")
	t.Setenv("APHID_KV_STORE", store)

	load := func() Plugins {
		plugins, err := LoadPlugins(filepath.Join("..", "..", "plugins"))
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := plugins[0xfffeff]; !ok {
			t.Fatal("key/value store plugin not loaded")
		}
		return plugins
	}

	read := func(p Plugins, retry, sparing byte) []byte {
		data, ok, err := p.Call(command{OpRead, 0xff, 0xfe, 0xff, retry, sparing}, nil)
		if !ok || err != nil {
			t.Fatalf("read not handled: %v", err)
		}
		return data
	}

	write := func(p Plugins, retry, sparing byte, data []byte) {
		if _, ok, err := p.Call(command{OpWrite, 0xff, 0xfe, 0xff, retry, sparing},
			data); !ok || err != nil {
			t.Fatalf("write not handled: %v", err)
		}
	}

	key := []byte(strings.Repeat("K", 20))
	entry := append(append([]byte{}, key...), fill(7)[:512]...)

	plugins := load()
	write(plugins, 0x01, 0x02, entry)
	if got := read(plugins, 0x01, 0x02); !bytes.Equal(got, entry) {
		t.Error("cache entry not written")
	}
	if got := read(plugins, 0x03, 0x04); !bytes.Equal(got, make([]byte, image.SectorSize)) {
		t.Error("empty cache entry not all zero")
	}
	plugins.Close()

	if info, err := os.Stat(store); err != nil || info.Size() != image.SectorSize {
		t.Fatalf("store not written: %v", err)
	}

	// the cache does not survive, the store does
	plugins = load()
	defer plugins.Close()
	if got := read(plugins, 0x01, 0x02); !bytes.Equal(got, make([]byte, image.SectorSize)) {
		t.Error("cache survived reload")
	}

	unknown := []byte(strings.Repeat("U", 20))
	req := []byte{2, 0x03, 0x04}
	req = append(req, key...)
	req = append(req, 0x05, 0x06)
	req = append(req, unknown...)
	write(plugins, 0xff, 0xff, req)

	if got := read(plugins, 0x03, 0x04); !bytes.Equal(got, entry) {
		t.Error("stored value not loaded into cache")
	}
	want := append(append([]byte{}, unknown...), make([]byte, 512)...)
	if got := read(plugins, 0x05, 0x06); !bytes.Equal(got, want) {
		t.Error("unknown key not loaded as zeros")
	}
}

//
func TestImport(t *testing.T) {

	d := newTestDaemon(t, &fakeConn{})
	content := append(fill(1), fill(2)...)

	if err := d.Import("new.image", bytes.NewReader(content), false); err != nil {
		t.Fatal(err)
	}
	stored, err := os.ReadFile(filepath.Join(d.imageDir(), "new.image"))
	if err != nil || !bytes.Equal(stored, content) {
		t.Errorf("image not imported: %v", err)
	}

	if err := d.Import("new.image", bytes.NewReader(fill(3)), false); err == nil {
		t.Error("existing image replaced")
	}
	if err := d.Import("new.image", bytes.NewReader(fill(3)), true); err != nil {
		t.Errorf("forced import failed: %v", err)
	}
	if stored, _ := os.ReadFile(filepath.Join(d.imageDir(),
		"new.image")); !bytes.Equal(stored, fill(3)) {
		t.Error("image not replaced")
	}

	if err := d.Import("disk.image", bytes.NewReader(fill(3)), true); err == nil {
		t.Error("image in use replaced")
	}

	for _, name := range []string{"sub/x.image", "x.dsk", "../x.image", ""} {
		if err := d.Import(name, bytes.NewReader(fill(3)), true); err == nil {
			t.Errorf("invalid name %q accepted", name)
		}
	}

	if err := d.Load("new.image"); err != nil {
		t.Errorf("imported image not loadable: %v", err)
	}

	images, err := d.Images()
	if err != nil || strings.Join(images, ",") != "disk.image,new.image" {
		t.Errorf("unexpected image list: %v, %v", images, err)
	}
}
