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

	"github.com/cameo-aphid/aphid/pkg/hw"
)

// PipeDepth is the number of messages a pipe buffers in each direction.
const PipeDepth = 16

// NewPipe creates an in-process channel. Messages from the supervisor raise
// hw.SupervisorToControl on i, messages from the control core raise
// hw.ControlToSupervisor.
func NewPipe(i hw.Intc) *Pipe {
	return &Pipe{
		intc:         i,
		toControl:    make(chan []byte, PipeDepth),
		toSupervisor: make(chan []byte, PipeDepth),
	}
}

/*
	Pipe connects a control core and a supervisor running in the same
	process. Its control side never blocks; its supervisor side blocks until
	the other end has made room, or the context is done.
*/
type Pipe struct {
	intc         hw.Intc
	toControl    chan []byte
	toSupervisor chan []byte
}

//
func (p *Pipe) Control() Endpoint {
	return &pipeControl{p}
}

//
func (p *Pipe) Supervisor() Conn {
	return &pipeSupervisor{p}
}

//
type pipeControl struct {
	*Pipe
}

//
func (c *pipeControl) Send(p []byte) error {
	if err := checkSize(p); err != nil {
		return err
	}
	msg := make([]byte, len(p))
	copy(msg, p)
	select {
	case c.toSupervisor <- msg:
		c.intc.Raise(hw.ControlToSupervisor)
		return nil
	default:
		return fmt.Errorf("supervisor not draining")
	}
}

//
func (c *pipeControl) Receive(buf []byte) int {
	select {
	case msg := <-c.toControl:
		return copy(buf, msg)
	default:
		return 0
	}
}

//
func (c *pipeControl) Pending() bool {
	return len(c.toControl) > 0
}

//
type pipeSupervisor struct {
	*Pipe
}

//
func (s *pipeSupervisor) Send(ctx context.Context, p []byte) error {
	if err := checkSize(p); err != nil {
		return err
	}
	msg := make([]byte, len(p))
	copy(msg, p)
	select {
	case s.toControl <- msg:
		s.intc.Raise(hw.SupervisorToControl)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sending to control core: %v", ctx.Err())
	}
}

//
func (s *pipeSupervisor) Receive(ctx context.Context) ([]byte, error) {

	var ret []byte

	select {
	case msg := <-s.toSupervisor:
		ret = append(ret, msg...)
	case <-ctx.Done():
		return nil, fmt.Errorf("receiving from control core: %v", ctx.Err())
	}

	for {
		select {
		case msg := <-s.toSupervisor:
			ret = append(ret, msg...)
		default:
			s.intc.Clear(hw.ControlToSupervisor)
			return ret, nil
		}
	}
}

//
func (s *pipeSupervisor) Close() error {
	return nil
}
