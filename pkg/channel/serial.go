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
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

// DefaultBaudRate for serial channel connections
const DefaultBaudRate = 1000000

// OpenSerial opens a serial port leading to a control core, for use by the
// supervisor.
func OpenSerial(port string, baud uint) (*StreamConn, error) {

	opts := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}

	rwc, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cannot open serial port: %v", err)
	}

	log.WithFields(log.Fields{"port": port, "baud": baud}).Info(
		"serial channel opened")
	return NewStreamConn(rwc), nil
}

/*
	StreamConn is a Conn over a byte stream, such as a serial line. Since a
	stream does not keep message boundaries, each message is preceded by its
	length, as 16 bit little endian value.
*/
type StreamConn struct {
	rwc      io.ReadWriteCloser
	incoming chan []byte
	failure  error
}

// NewStreamConn starts reading messages from rwc.
func NewStreamConn(rwc io.ReadWriteCloser) *StreamConn {
	s := &StreamConn{
		rwc:      rwc,
		incoming: make(chan []byte, PipeDepth),
	}
	go s.listen()
	return s
}

//
func (s *StreamConn) listen() {

	hdr := make([]byte, 2)

	for {
		if _, err := io.ReadFull(s.rwc, hdr); err != nil {
			s.failure = err
			close(s.incoming)
			return
		}

		msg := make([]byte, binary.LittleEndian.Uint16(hdr))
		if _, err := io.ReadFull(s.rwc, msg); err != nil {
			s.failure = err
			close(s.incoming)
			return
		}

		s.incoming <- msg
	}
}

//
func (s *StreamConn) Send(ctx context.Context, p []byte) error {

	if err := checkSize(p); err != nil {
		return err
	}

	frame := make([]byte, 2+len(p))
	binary.LittleEndian.PutUint16(frame, uint16(len(p)))
	copy(frame[2:], p)

	if _, err := s.rwc.Write(frame); err != nil {
		return fmt.Errorf("error writing to stream: %v", err)
	}
	return nil
}

//
func (s *StreamConn) Receive(ctx context.Context) ([]byte, error) {

	var ret []byte

	select {
	case msg, ok := <-s.incoming:
		if !ok {
			return nil, fmt.Errorf("stream closed: %v", s.failure)
		}
		ret = append(ret, msg...)
	case <-ctx.Done():
		return nil, fmt.Errorf("receiving from stream: %v", ctx.Err())
	}

	for {
		select {
		case msg, ok := <-s.incoming:
			if !ok {
				return ret, nil
			}
			ret = append(ret, msg...)
		default:
			return ret, nil
		}
	}
}

//
func (s *StreamConn) Close() error {
	return s.rwc.Close()
}
