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
	"fmt"
)

/*
	Some blocks are magic. Reading them does not touch the image:

		$FFFFFF		spare table
		$FFFFFE		data of the previous read or write
		$FF0000 -
		$FFFEFF		plugin blocks, where a plugin is loaded

	Writes to plugin blocks go to the plugin. A write to $FFFFFD with retry
	count $FE and sparing threshold $AF ends the session, see conclude.
*/

// mapRead obtains the data for a read of c's block.
func (c command) mapRead(d *Daemon) ([]byte, string, error) {

	switch c.block() {

	case BlockSpareTable:
		return d.spareTable, "spare table", nil

	case BlockLastData:
		return d.lastData, "last data", nil
	}

	if data, ok, err := d.plugins.Call(c, nil); ok {
		return data, "plugin", err
	}

	data, err := d.image.Get(c.block())
	if err != nil {
		return nil, "", fmt.Errorf("error reading block %06X: %v", c.block(), err)
	}
	return data, "image", nil
}

// mapWrite stores data according to c's block. It reports whether the
// write concludes the session.
func (c command) mapWrite(d *Daemon, data []byte) (string, bool, error) {

	if c.isConclusion() {
		return "conclusion", true, nil
	}

	if _, ok, err := d.plugins.Call(c, data); ok {
		return "plugin", false, err
	}

	changed, err := d.image.Put(c.block(), data)
	if err != nil {
		return "", false, fmt.Errorf("error writing block %06X: %v",
			c.block(), err)
	}
	if changed {
		d.flusher.Dirty()
	}
	return "image", false, nil
}
