//go:build !linux

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

import "fmt"

// PhysicalBase is where the PRU shared memory appears in the ARM's physical
// address space on AM335x.
const PhysicalBase = 0x4a310000

// MapPhysical is only supported on Linux.
func MapPhysical() (*Physical, error) {
	return nil, fmt.Errorf("mapping PRU shared memory is only supported on Linux")
}

//
type Physical struct{}

//
func (p *Physical) Snapshot() []byte {
	return make([]byte, RegionSize)
}

//
func (p *Physical) Close() error {
	return nil
}
