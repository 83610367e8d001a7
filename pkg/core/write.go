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
	"fmt"

	"github.com/cameo-aphid/aphid/pkg/hw"
	"github.com/cameo-aphid/aphid/pkg/pump"
	"github.com/cameo-aphid/aphid/pkg/shmem"
)

/*
	The write sequence, after the command has been received:

		W0	await \PCMD low & PR/\W high
		W1	send op+2, lower \PBSY
		W2	await \PCMD high & PR/\W low, snoop handshake
		W3	raise \PBSY, receive sector unless handshake is off
		W4	await \PCMD low & PR/\W high
		W5	send $06, lower \PBSY
		W6a	await \PCMD high & PR/\W low, snoop handshake
		W6b	forward command to supervisor
		W6c	await supervisor, compose status, raise \PBSY
		W6d	await PR/\W high, send status
*/

//
func (m *Machine) writeAwaitRequest() State {
	if !m.await(hw.Cmd|hw.RW, hw.RW) {
		return m.abandon("no write request")
	}
	return WriteAck
}

//
func (m *Machine) writeAck() State {
	m.pump.Start(pump.OpWrite, shmem.PairAddr(m.op+2), 1)
	m.lines.SetBusy(false)
	if st := m.pump.WaitSend(0); st != pump.StatusOK {
		return m.abandon("sending write ack: " + pump.StatusText(st))
	}
	return WriteHandshake
}

//
func (m *Machine) writeHandshake() State {
	if !m.await(hw.Cmd|hw.RW, hw.Cmd) {
		return m.abandon("no write handshake")
	}
	m.region.SetHandshake(m.lines.Snoop())
	return WriteReceive
}

//
func (m *Machine) writeReceive() State {

	m.lines.SetBusy(true)
	if hs := m.region.Handshake(); hs != Sentinel {
		return m.abandon(fmt.Sprintf("write handshake %02x", hs))
	}

	m.debug(uint16(WriteReceive) | 0x01)
	st := m.pump.Receive(shmem.AddrHostSector, shmem.SectorSize, 0)
	if st != pump.StatusOK {
		return m.abandon("receiving sector: " + pump.StatusText(st))
	}
	return WriteAwaitCommit
}

//
func (m *Machine) writeAwaitCommit() State {
	if !m.await(hw.Cmd|hw.RW, hw.RW) {
		return m.abandon("no commit request")
	}
	return WriteCommitAck
}

//
func (m *Machine) writeCommitAck() State {
	m.pump.Start(pump.OpWrite, shmem.PairAddr(AckReceived), 1)
	m.lines.SetBusy(false)
	if st := m.pump.WaitSend(0); st != pump.StatusOK {
		return m.abandon("sending commit ack: " + pump.StatusText(st))
	}
	return WriteCommitHandshake
}

//
func (m *Machine) writeCommitHandshake() State {
	if !m.await(hw.Cmd|hw.RW, hw.Cmd) {
		return m.abandon("no commit handshake")
	}
	m.handshake()
	return WriteForward
}

//
func (m *Machine) writeForward() State {
	m.forward()
	return WriteAwaitSupervisor
}

//
func (m *Machine) writeAwaitSupervisor() State {
	m.awaitSupervisor()
	return WriteReply
}

//
func (m *Machine) writeReply() State {
	return m.reply(false)
}
