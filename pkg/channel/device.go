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
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultDevice is the character device the kernel creates for the control
// core's message channel.
const DefaultDevice = "/dev/rpmsg_pru31"

// chunk size for draining the device
const deviceReadSize = 2048

// OpenDevice opens the message channel device at path, for use by the
// supervisor.
func OpenDevice(path string) (*DeviceConn, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open channel device: %v", err)
	}
	log.WithField("device", path).Info("channel device opened")
	return &DeviceConn{file: f}, nil
}

// DeviceConn is a Conn backed by a character device, where each write is
// one message, and each read returns at most one message.
type DeviceConn struct {
	file *os.File
}

//
func (d *DeviceConn) Send(ctx context.Context, p []byte) error {

	if err := checkSize(p); err != nil {
		return err
	}

	if dl, ok := ctx.Deadline(); ok {
		d.setDeadline(d.file.SetWriteDeadline, dl)
	}

	for written := 0; written < len(p); {
		n, err := d.file.Write(p[written:])
		if err != nil {
			return fmt.Errorf("error writing to channel device: %v", err)
		}
		written += n
	}
	return nil
}

//
func (d *DeviceConn) Receive(ctx context.Context) ([]byte, error) {

	dl, _ := ctx.Deadline()
	d.setDeadline(d.file.SetReadDeadline, dl)

	var ret []byte
	buf := make([]byte, deviceReadSize)

	for {
		n, err := d.file.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) && len(ret) > 0 {
				return ret, nil
			}
			return nil, fmt.Errorf("error reading from channel device: %v", err)
		}
		ret = append(ret, buf[:n]...)
		if n < deviceReadSize {
			return ret, nil
		}
	}
}

//
func (d *DeviceConn) Close() error {
	return d.file.Close()
}

// setDeadline applies a deadline where the device supports it; a zero dl
// clears it.
func (d *DeviceConn) setDeadline(set func(time.Time) error, dl time.Time) {
	if err := set(dl); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		log.Debugf("cannot set deadline on channel device: %v", err)
	}
}
