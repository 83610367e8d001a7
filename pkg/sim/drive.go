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

package sim

import (
	"context"
	"sync"
	"time"

	"github.com/cameo-aphid/aphid/pkg/channel"
	"github.com/cameo-aphid/aphid/pkg/core"
	"github.com/cameo-aphid/aphid/pkg/hw"
	"github.com/cameo-aphid/aphid/pkg/shmem"
)

// NewDrive assembles a simulated drive: a control core configured by cfg,
// a data pump, and a host, all on one bus.
func NewDrive(cfg core.Config) *Drive {

	ec := hw.NewEventController()
	r := shmem.New()
	bus := NewBus()
	pipe := channel.NewPipe(ec)

	return &Drive{
		Region:  r,
		Bus:     bus,
		Host:    NewHost(bus),
		Pump:    NewPump(r, bus, ec),
		Machine: core.NewMachine(cfg, r, bus, ec, pipe.Control()),
		Events:  ec,
		pipe:    pipe,
	}
}

/*
	Drive is a complete drive running in process. The supervisor end of its
	channel is left to the caller, as is playing the host. Until started,
	fields may be adjusted, for example the data pump's strobe timeout.
*/
type Drive struct {
	Region  *shmem.Region
	Bus     *Bus
	Host    *Host
	Pump    *Pump
	Machine *core.Machine
	Events  *hw.EventController

	pipe *channel.Pipe
}

// Conn is the supervisor end of the drive's channel.
func (d *Drive) Conn() channel.Conn {
	return d.pipe.Supervisor()
}

// Start runs data pump and control core until ctx is done. The returned
// function waits for both to stop.
func (d *Drive) Start(ctx context.Context) (wait func()) {

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		d.Pump.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		d.Machine.Run(ctx)
	}()

	return wg.Wait
}

// SimConfig is a control core configuration with budgets suitable for a
// simulated drive, where a polling iteration is much slower than on the
// real thing.
func SimConfig() core.Config {
	return core.Config{
		Timeout:           1 << 20,
		SupervisorTimeout: 1 << 30,
		Debug:             true,
	}
}

// DefaultHostTimeout bounds a single host transaction on a simulated drive.
const DefaultHostTimeout = 30 * time.Second
