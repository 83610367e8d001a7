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

/*
	Package core is the control core: the ProFile protocol state machine
	driving the host handshake, the interrupt dispatcher it consults while
	waiting, and the handler for buffer commands from the supervisor.

	The control core is strictly single threaded. It shares the region with
	the data pump and the supervisor's buffer commands, but those only touch
	it at points where the control core explicitly waits for them.
*/
package core

// DefaultTimeout is the number of polling iterations after which a wait on
// the host gives up.
const DefaultTimeout uint32 = 0x10000000

// Config holds the control core settings.
type Config struct {
	// Timeout is the polling budget for waits on signal lines.
	Timeout uint32
	// SupervisorTimeout is the polling budget for waiting on the supervisor
	// to finish with the buffers. If 0, four times Timeout is used.
	SupervisorTimeout uint32
	// Armless makes the control core answer read and write commands
	// without involving the supervisor. Buffer commands from the
	// supervisor are still served.
	Armless bool
	// Debug enables updating the debug words in the region.
	Debug bool
}

// DefaultConfig is the configuration of a normal drive.
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
		Debug:   true,
	}
}

//
func (c Config) supervisorTimeout() uint32 {
	if c.SupervisorTimeout > 0 {
		return c.SupervisorTimeout
	}
	if c.Timeout > 0xffffffff>>2 {
		return 0xffffffff
	}
	return c.Timeout << 2
}
