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
	"fmt"

	log "github.com/sirupsen/logrus"
)

/*
	A read hands the block data to the control core, which then sends it on
	to the host once told to go ahead.
*/
func (c command) get(ctx context.Context, d *Daemon) ([]byte, error) {

	data, source, err := c.mapRead(d)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"command": c.String(),
		"block":   fmt.Sprintf("%06X", c.block()),
		"source":  source}).Info("READ")

	if err := d.conduit.putSector(ctx, data); err != nil {
		return nil, err
	}

	d.stats.reads.Add(1)
	return data, nil
}
