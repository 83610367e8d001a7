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
	"context"
	"fmt"
)

// Endpoint is the control core's end of the channel. None of its methods
// block.
type Endpoint interface {
	// Send sends up to MaxMessage bytes. A non-nil error means the message
	// did not go out; retrying is up to the caller.
	Send(p []byte) error
	// Receive drains the next pending message into buf, and returns the
	// number of bytes placed there, 0 if nothing was pending. Whatever does
	// not fit into buf is discarded.
	Receive(buf []byte) int
	// Pending reports whether there are messages waiting to be received.
	Pending() bool
}

// Conn is the supervisor's end of the channel.
type Conn interface {
	// Send sends one message of up to MaxMessage bytes.
	Send(ctx context.Context, p []byte) error
	// Receive waits for data from the control core, then returns everything
	// that is pending at that point.
	Receive(ctx context.Context) ([]byte, error)
	//
	Close() error
}

//
func checkSize(p []byte) error {
	if len(p) > MaxMessage {
		return fmt.Errorf("message of %d bytes exceeds maximum of %d",
			len(p), MaxMessage)
	}
	return nil
}
