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
	"context"
	"encoding/binary"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/channel"
	"github.com/cameo-aphid/aphid/pkg/core"
	"github.com/cameo-aphid/aphid/pkg/shmem"
	"github.com/cameo-aphid/aphid/pkg/util"
)

// DefaultReadDelay is how long to wait for data from the control core.
const DefaultReadDelay = 5 * time.Second

// commandAttempts is how many malformed commands are tolerated in a row.
const commandAttempts = 600

// chunk boundaries for moving a sector through the channel
var (
	fetchChunks = [][2]uint16{{0, 266}, {266, 266}}
	storeChunks = [][2]uint16{{0, 354}, {354, 354}, {708, 356}}
)

//
func newConduit(conn channel.Conn, readDelay time.Duration,
	verify *util.Setting) *conduit {
	return &conduit{conn: conn, readDelay: readDelay, verify: verify}
}

/*
	conduit speaks the buffer command protocol with the control core. All
	exchanges are synchronous: one command out, at most one answer back.
*/
type conduit struct {
	conn      channel.Conn
	readDelay time.Duration
	verify    *util.Setting
}

// hello sends the greeting that gets the control core's channel going.
func (c *conduit) hello(ctx context.Context) error {
	return c.conn.Send(ctx, []byte("\n"))
}

//
func (c *conduit) send(ctx context.Context, cmd *channel.Command) error {
	msg, err := cmd.Encode()
	if err != nil {
		return err
	}
	if err := c.conn.Send(ctx, msg); err != nil {
		return fmt.Errorf("error sending %s: %v", channel.OpName(cmd.Opcode), err)
	}
	return nil
}

/*
	receive waits up to delay for data from the control core, and returns the
	last n bytes of everything that was pending. Anything before that is left
	over from an earlier exchange that went wrong. A delay of 0 waits until
	ctx is done.
*/
func (c *conduit) receive(ctx context.Context, n int,
	delay time.Duration) ([]byte, error) {

	if delay > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, delay)
		defer cancel()
	}

	data, err := c.conn.Receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for data from control core: %v", err)
	}

	if len(data) != n {
		log.WithFields(log.Fields{
			"expected": n,
			"received": len(data),
		}).Warn("unexpected amount of data from control core")
	}

	if len(data) > n {
		data = data[len(data)-n:]
	}
	return data, nil
}

// awaitCommand waits for the next ProFile command, for as long as it takes.
func (c *conduit) awaitCommand(ctx context.Context) (command, error) {

	for ix := 0; ix < commandAttempts; ix++ {
		data, err := c.receive(ctx, CommandSize, 0)
		if err != nil {
			return nil, err
		}
		if cmd, err := newCommand(data); err == nil {
			return cmd, nil
		}
	}

	return nil, fmt.Errorf(
		"%d attempts to receive a command from the control core failed",
		commandAttempts)
}

// getSector retrieves the sector the host has written.
func (c *conduit) getSector(ctx context.Context) ([]byte, error) {

	ret := make([]byte, 0, shmem.SectorSize)

	for _, ch := range fetchChunks {
		if err := c.send(ctx, channel.Fetch(ch[0], ch[1])); err != nil {
			return nil, err
		}
		part, err := c.receive(ctx, int(ch[1]), c.readDelay)
		if err != nil {
			return nil, err
		}
		ret = append(ret, part...)
	}

	if len(ret) != shmem.SectorSize {
		return nil, fmt.Errorf(
			"fetching host sector from control core failed, got %d bytes",
			len(ret))
	}
	return ret, nil
}

// putSector places data, with parity added, into the control core's drive
// sector. With verification on, the result is checked against the checksum
// the control core computes.
func (c *conduit) putSector(ctx context.Context, data []byte) error {

	if len(data) != shmem.SectorSize {
		return fmt.Errorf("sector data is %d bytes, should be %d",
			len(data), shmem.SectorSize)
	}

	pairs := shmem.WithParity(data)
	for _, ch := range storeChunks {
		cmd := channel.Store(ch[0], pairs[ch[0]:ch[0]+ch[1]])
		if err := c.send(ctx, cmd); err != nil {
			return err
		}
	}

	if !c.verify.Bool() {
		return nil
	}

	if err := c.send(ctx, channel.Checksum()); err != nil {
		return err
	}
	sum, err := c.receive(ctx, 2, c.readDelay)
	if err != nil {
		return err
	}
	if len(sum) != 2 {
		return fmt.Errorf("invalid checksum reply: %x", sum)
	}

	got := binary.LittleEndian.Uint16(sum)
	if want := core.Checksum(pairs); got != want {
		return fmt.Errorf("drive sector checksum mismatch: want %04x, got %04x",
			want, got)
	}
	return nil
}

// goahead lets the control core continue with the host.
func (c *conduit) goahead(ctx context.Context) error {
	return c.send(ctx, channel.Proceed())
}
