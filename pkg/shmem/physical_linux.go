//go:build linux

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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// PhysicalBase is where the PRU shared memory appears in the ARM's physical
// address space on AM335x.
const PhysicalBase = 0x4a310000

/*
	MapPhysical maps the shared memory of real PRUs via /dev/mem, read-only.
	This requires superuser privileges. The returned mapping yields raw
	snapshots that can be decoded with Parse.
*/
func MapPhysical() (*Physical, error) {

	f, err := os.Open("/dev/mem")
	if err != nil {
		return nil, fmt.Errorf("cannot open /dev/mem: %v", err)
	}
	defer f.Close()

	page := unix.Getpagesize()
	mem, err := unix.Mmap(int(f.Fd()), PhysicalBase, (RegionSize/page+1)*page,
		unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("cannot map PRU shared memory: %v", err)
	}

	log.WithField("base", fmt.Sprintf("%08x", PhysicalBase)).Debug(
		"mapped PRU shared memory")
	return &Physical{mem: mem}, nil
}

//
type Physical struct {
	mem []byte
}

//
func (p *Physical) Snapshot() []byte {
	ret := make([]byte, RegionSize)
	copy(ret, p.mem)
	return ret
}

//
func (p *Physical) Close() error {
	if p.mem == nil {
		return nil
	}
	err := unix.Munmap(p.mem)
	p.mem = nil
	return err
}
