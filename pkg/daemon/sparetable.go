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
	"github.com/cameo-aphid/aphid/pkg/image"
)

// Signature identifies the drive and the version of its magic block
// protocol to software on the Apple.
const Signature = "Cameo/Aphid 0001"

/*
	SpareTable computes the contents of block $FFFFFF for an image of size
	bytes. An image of exactly ProFile-10 size makes the drive pose as a
	ProFile-10. Any other size yields a 5 MB ProFile with as many blocks as
	fit into the image.

		 0-12	device name
		13-15	device number
		16-17	firmware revision
		18-20	available blocks
		21-22	block size
		23		spare blocks on device
		24		spare blocks allocated
		25		bad blocks allocated
		26-28	end of spare block list
		29-31	end of bad block list
		32-47	signature
*/
func SpareTable(size int64) []byte {

	ret := make([]byte, 0, image.SectorSize)

	if size == image.SizeProFile10 {
		ret = append(ret, "PROFILE 10M  "...)
		ret = append(ret, 0x00, 0x00, 0x10, 0x04, 0x04)
	} else {
		ret = append(ret, "PROFILE      "...)
		ret = append(ret, 0x00, 0x00, 0x00, 0x03, 0x98)
	}

	blocks := uint32(size / image.SectorSize)
	ret = append(ret, byte(blocks>>16), byte(blocks>>8), byte(blocks))
	ret = append(ret, image.SectorSize>>8, image.SectorSize&0xff)
	ret = append(ret, 0x20, 0x00, 0x00)
	ret = append(ret, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	ret = append(ret, Signature...)

	return ret[:image.SectorSize]
}
