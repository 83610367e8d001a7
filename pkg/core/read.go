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

package core

import (
	"github.com/cameo-aphid/aphid/pkg/hw"
	"github.com/cameo-aphid/aphid/pkg/pump"
	"github.com/cameo-aphid/aphid/pkg/shmem"
)

/*
	The read sequence, after the command has been received:

		R0	await \PCMD low & PR/\W high
		R1	send $02, lower \PBSY
		R2a	await \PCMD high & PR/\W low, snoop handshake
		R2b	forward command to supervisor
		R2c	await supervisor, compose status, raise \PBSY
		R2d	await PR/\W high, send status & sector
*/

//
func (m *Machine) readAwaitRequest() State {
	if !m.await(hw.Cmd|hw.RW, hw.RW) {
		return m.abandon("no read request")
	}
	return ReadAck
}

//
func (m *Machine) readAck() State {
	m.pump.Start(pump.OpWrite, shmem.PairAddr(AckRead), 1)
	m.lines.SetBusy(false)
	if st := m.pump.WaitSend(0); st != pump.StatusOK {
		return m.abandon("sending read ack: " + pump.StatusText(st))
	}
	return ReadHandshake
}

//
func (m *Machine) readHandshake() State {
	if !m.await(hw.Cmd|hw.RW, hw.Cmd) {
		return m.abandon("no read handshake")
	}
	m.handshake()
	return ReadForward
}

//
func (m *Machine) readForward() State {
	m.forward()
	return ReadAwaitSupervisor
}

//
func (m *Machine) readAwaitSupervisor() State {
	m.awaitSupervisor()
	return ReadReply
}

//
func (m *Machine) readReply() State {
	return m.reply(true)
}
