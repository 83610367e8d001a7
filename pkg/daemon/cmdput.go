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
	A write collects the sector the host sent from the control core, and
	stores it where the block maps to. The returned flag is set when the
	write concludes the session; the data is then the conclusion.

	All three write ops (plain, verify, force spare) are treated the same.
*/
func (c command) put(ctx context.Context, d *Daemon) ([]byte, bool, error) {

	data, err := d.conduit.getSector(ctx)
	if err != nil {
		return nil, false, err
	}

	target, concluded, err := c.mapWrite(d, data)
	if err != nil {
		return nil, false, err
	}

	log.WithFields(log.Fields{
		"command": c.String(),
		"block":   fmt.Sprintf("%06X", c.block()),
		"target":  target}).Info("WRITE")

	d.stats.writes.Add(1)
	return data, concluded, nil
}
