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

package run

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cameo-aphid/aphid/pkg/daemon"
	"github.com/cameo-aphid/aphid/pkg/image"
	"github.com/cameo-aphid/aphid/pkg/sim"
)

//
func NewSim() *Sim {

	s := &Sim{}
	s.Runner = *NewRunner(
		`sim -i|--image {image} [-c|--create] [-r|--read {block},...]
      [-w|--write {block} -f|--file {data file}] [--conclude {text}]`,
		"run host commands against a simulated drive",
		`
Use the sim command to run a complete drive in process, serving the given image,
and play the host: write a block, read blocks, and conclude the session. Reads
are shown as hex dumps. Block numbers can be given in decimal, or in hex with a
0x prefix. Writes happen before reads, the conclusion comes last.`,
		"", runnerHelpEpilogue, s.Run)

	s.AddSetting(&s.LogLevel, "log-level", "l", "", "warn",
		"log level: panic, fatal, error, warn, info, debug, trace", false)
	s.AddSetting(&s.Image, "image", "i", "", nil, "disk image to serve", true)
	s.AddSetting(&s.Create, "create", "c", "", false,
		"create a blank 5 MB image if it does not exist", false)
	s.AddSetting(&s.Read, "read", "r", "", nil, "blocks to read", false)
	s.AddSetting(&s.Write, "write", "w", "", "", "block to write", false)
	s.AddSetting(&s.File, "file", "f", "", "",
		"data to write, padded or cut to sector size", false)
	s.AddSetting(&s.Conclude, "conclude", "", "", "",
		"conclude session with this text, e.g. HALT or IMAGE:other.image", false)
	s.AddSetting(&s.Verify, "verify", "", "", false,
		"verify sectors handed to the control core", false)

	return s
}

//
type Sim struct {
	Runner
	//
	Image    string
	Create   bool
	Read     []string
	Write    string
	File     string
	Conclude string
	Verify   bool
}

//
func (s *Sim) Run() error {

	if err := s.ParseSettings(); err != nil {
		return err
	}

	reads := make([]uint32, 0, len(s.Read))
	for _, r := range s.Read {
		b, err := parseBlock(r)
		if err != nil {
			return err
		}
		reads = append(reads, b)
	}

	var write []byte
	var wBlock uint32
	if s.Write != "" {
		var err error
		if wBlock, err = parseBlock(s.Write); err != nil {
			return err
		}
		if write, err = readSector(s.File); err != nil {
			return err
		}
	}

	drive := sim.NewDrive(sim.SimConfig())
	d := daemon.NewDaemon(drive.Conn(), daemon.Config{
		Image:  s.Image,
		Create: s.Create,
		Verify: s.Verify,
	})

	ctx, cancel := context.WithCancel(context.Background())
	wait := drive.Start(ctx)
	served := make(chan error, 1)
	go func() {
		served <- d.Serve(ctx)
	}()

	defer func() {
		cancel()
		wait()
		<-served
	}()

	if err := awaitReady(d, served); err != nil {
		return err
	}

	if write != nil {
		if err := s.hostWrite(ctx, drive.Host, sim.OpWrite, wBlock, 10, 3,
			write); err != nil {
			return err
		}
	}

	for _, b := range reads {
		if err := s.hostRead(ctx, drive.Host, b); err != nil {
			return err
		}
	}

	if s.Conclude != "" {
		data := make([]byte, image.SectorSize)
		copy(data, s.Conclude)
		if err := s.hostWrite(ctx, drive.Host, sim.OpWrite,
			daemon.BlockConclusion, 0xfe, 0xaf, data); err != nil {
			return err
		}
		if s.Conclude == "HALT" {
			select {
			case <-served:
				served <- nil
			case <-time.After(5 * time.Second):
			}
		}
	}

	d.Status().Emit(os.Stdout)
	return nil
}

//
func (s *Sim) hostRead(ctx context.Context, h *sim.Host, block uint32) error {

	hctx, cancel := context.WithTimeout(ctx, sim.DefaultHostTimeout)
	defer cancel()

	reply, err := h.Read(hctx, block, 10, 3)
	if err != nil {
		return fmt.Errorf("error reading block %06X: %v", block, err)
	}

	fmt.Printf("\nread block %06X, status %x\n\n", block, reply.Status)
	if reply.OK() {
		d := hex.Dumper(os.Stdout)
		d.Write(reply.Data)
		d.Close()
	}
	return nil
}

//
func (s *Sim) hostWrite(ctx context.Context, h *sim.Host, op byte,
	block uint32, retry, sparing byte, data []byte) error {

	hctx, cancel := context.WithTimeout(ctx, sim.DefaultHostTimeout)
	defer cancel()

	reply, err := h.Write(hctx, op, block, retry, sparing, data)
	if err != nil {
		return fmt.Errorf("error writing block %06X: %v", block, err)
	}

	fmt.Printf("\nwrote block %06X, status %x\n", block, reply.Status)
	return nil
}

// awaitReady waits until the daemon serves its image.
func awaitReady(d *daemon.Daemon, served chan error) error {

	deadline := time.Now().Add(10 * time.Second)

	for d.Status().State != daemon.StateReady {
		select {
		case err := <-served:
			served <- err
			if err == nil {
				err = fmt.Errorf("daemon stopped")
			}
			return err
		default:
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon not ready, state: %s", d.Status().State)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// parseBlock parses a block number in decimal, or hex with 0x prefix.
func parseBlock(b string) (uint32, error) {
	n, err := strconv.ParseUint(b, 0, 24)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %s: %v", b, err)
	}
	return uint32(n), nil
}

// readSector reads a sector's worth of data from file, padding with zeros.
func readSector(file string) ([]byte, error) {

	if file == "" {
		return nil, fmt.Errorf("no data file for write")
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ret := make([]byte, image.SectorSize)
	if _, err := io.ReadFull(f, ret); err != nil &&
		err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return ret, nil
}
