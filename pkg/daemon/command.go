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
	"encoding/hex"
	"fmt"
)

// ProFile command ops
const (
	OpRead            byte = 0x00
	OpWrite           byte = 0x01
	OpWriteVerify     byte = 0x02
	OpWriteForceSpare byte = 0x03
)

// magic blocks
const (
	BlockSpareTable  uint32 = 0xffffff
	BlockLastData    uint32 = 0xfffffe
	BlockConclusion  uint32 = 0xfffffd
	BlockPluginFirst uint32 = 0xff0000
	BlockPluginLast  uint32 = 0xfffeff
)

// retry count and sparing threshold that turn a write to BlockConclusion
// into the end of a session
const (
	conclusionRetry   byte = 0xfe
	conclusionSparing byte = 0xaf
)

// CommandSize is the length of a ProFile command.
const CommandSize = 6

/*
	command is a ProFile command as forwarded by the control core:

		0	op
		1-3	block, big endian
		4	retry count
		5	sparing threshold
*/
type command []byte

//
func newCommand(data []byte) (command, error) {
	if len(data) != CommandSize {
		return nil, fmt.Errorf("invalid command length: %d", len(data))
	}
	return command(data), nil
}

//
func (c command) op() byte {
	return c[0]
}

//
func (c command) block() uint32 {
	return uint32(c[1])<<16 | uint32(c[2])<<8 | uint32(c[3])
}

//
func (c command) retry() byte {
	return c[4]
}

//
func (c command) sparing() byte {
	return c[5]
}

//
func (c command) isWrite() bool {
	switch c.op() {
	case OpWrite, OpWriteVerify, OpWriteForceSpare:
		return true
	}
	return false
}

// isConclusion reports whether this is the write that ends a session.
func (c command) isConclusion() bool {
	return c.isWrite() && c.block() == BlockConclusion &&
		c.retry() == conclusionRetry && c.sparing() == conclusionSparing
}

//
func (c command) String() string {
	return hex.EncodeToString(c)
}
