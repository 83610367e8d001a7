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
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/channel"
	"github.com/cameo-aphid/aphid/pkg/hw"
	"github.com/cameo-aphid/aphid/pkg/pump"
	"github.com/cameo-aphid/aphid/pkg/shmem"
)

// ProFile protocol bytes
const (
	Sentinel       byte = 0x55
	AckCommand     byte = 0x01
	AckRead        byte = 0x02
	AckReceived    byte = 0x06
	OpRead         byte = 0x00
	OpWrite        byte = 0x01
	OpWriteVerify  byte = 0x02
	OpWriteSparing byte = 0x03
)

// ProFile status bytes
const (
	StatusOK        byte = 0x00
	StatusTimeout   byte = 0x05
	StatusHandshake byte = 0x81
)

// State of the protocol state machine. The value is also the debug word
// recorded in the region while in that state.
type State uint16

//
const (
	Idle        State = 0x0000
	RequestAck  State = 0x0100
	CommandWait State = 0x0200
	Dispatch    State = 0x0400

	ReadAwaitRequest    State = 0x1000
	ReadAck             State = 0x1100
	ReadHandshake       State = 0x1200
	ReadForward         State = 0x1300
	ReadAwaitSupervisor State = 0x1400
	ReadReply           State = 0x1500

	WriteAwaitRequest    State = 0x2000
	WriteAck             State = 0x2100
	WriteHandshake       State = 0x2200
	WriteReceive         State = 0x2300
	WriteAwaitCommit     State = 0x2400
	WriteCommitAck       State = 0x2500
	WriteCommitHandshake State = 0x2600
	WriteForward         State = 0x2700
	WriteAwaitSupervisor State = 0x2800
	WriteReply           State = 0x2900
)

//
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RequestAck:
		return "request-ack"
	case CommandWait:
		return "command-wait"
	case Dispatch:
		return "dispatch"
	case ReadAwaitRequest:
		return "read/await-request"
	case ReadAck:
		return "read/ack"
	case ReadHandshake:
		return "read/handshake"
	case ReadForward:
		return "read/forward"
	case ReadAwaitSupervisor:
		return "read/await-supervisor"
	case ReadReply:
		return "read/reply"
	case WriteAwaitRequest:
		return "write/await-request"
	case WriteAck:
		return "write/ack"
	case WriteHandshake:
		return "write/handshake"
	case WriteReceive:
		return "write/receive"
	case WriteAwaitCommit:
		return "write/await-commit"
	case WriteCommitAck:
		return "write/commit-ack"
	case WriteCommitHandshake:
		return "write/commit-handshake"
	case WriteForward:
		return "write/forward"
	case WriteAwaitSupervisor:
		return "write/await-supervisor"
	case WriteReply:
		return "write/reply"
	}
	return fmt.Sprintf("state(%04x)", uint16(s))
}

// how many idle polls pass between checks for cancellation
const idleCheckInterval = 0x1000

// NewMachine creates the control core. It talks to the host through l, to
// the data pump through r & i, and to the supervisor through ep.
func NewMachine(cfg Config, r *shmem.Region, l hw.Lines, i hw.Intc,
	ep channel.Endpoint) *Machine {

	h := NewHandler(r, ep, cfg.Debug)
	d := NewDispatcher(i, h)

	return &Machine{
		cfg:        cfg,
		region:     r,
		lines:      l,
		intc:       i,
		endpoint:   ep,
		dispatcher: d,
		pump:       pump.NewClient(r, l, i, func() { d.Supervisor() }),
		state:      Idle,
	}
}

/*
	Machine is the protocol state machine. Each state does its work, which
	may include bounded waits on the host, and names its successor. Any
	deviation from the protocol leads back to Idle, from where the next
	command starts afresh.
*/
type Machine struct {
	cfg        Config
	region     *shmem.Region
	lines      hw.Lines
	intc       hw.Intc
	endpoint   channel.Endpoint
	dispatcher *Dispatcher
	pump       *pump.Client

	state  State
	op     byte
	status byte
}

// Run resets the data pump, then runs the state machine until ctx is done.
func (m *Machine) Run(ctx context.Context) error {

	log.WithFields(log.Fields{
		"timeout": m.cfg.Timeout,
		"armless": m.cfg.Armless,
	}).Info("control core starting")

	m.pump.Reset(0)
	m.state = Idle

	for ctx.Err() == nil {
		m.Step(ctx)
	}

	log.Info("control core stopped")
	return nil
}

// State is the state the next Step will execute.
func (m *Machine) State() State {
	return m.state
}

// Dispatcher gives access to the machine's interrupt dispatcher.
func (m *Machine) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// Step executes the current state and returns the next one.
func (m *Machine) Step(ctx context.Context) State {

	if m.cfg.Debug {
		m.region.MarkControl(uint16(m.state))
	}

	var next State

	switch m.state {
	case Idle:
		next = m.idle(ctx)
	case RequestAck:
		next = m.requestAck()
	case CommandWait:
		next = m.commandWait()
	case Dispatch:
		next = m.dispatch()

	case ReadAwaitRequest:
		next = m.readAwaitRequest()
	case ReadAck:
		next = m.readAck()
	case ReadHandshake:
		next = m.readHandshake()
	case ReadForward:
		next = m.readForward()
	case ReadAwaitSupervisor:
		next = m.readAwaitSupervisor()
	case ReadReply:
		next = m.readReply()

	case WriteAwaitRequest:
		next = m.writeAwaitRequest()
	case WriteAck:
		next = m.writeAck()
	case WriteHandshake:
		next = m.writeHandshake()
	case WriteReceive:
		next = m.writeReceive()
	case WriteAwaitCommit:
		next = m.writeAwaitCommit()
	case WriteCommitAck:
		next = m.writeCommitAck()
	case WriteCommitHandshake:
		next = m.writeCommitHandshake()
	case WriteForward:
		next = m.writeForward()
	case WriteAwaitSupervisor:
		next = m.writeAwaitSupervisor()
	case WriteReply:
		next = m.writeReply()

	default:
		next = Idle
	}

	m.state = next
	return next
}

// idle raises \PBSY and waits for the host to lower \PCMD, serving
// interrupts in the meantime. Returns Idle if ctx is done before that.
func (m *Machine) idle(ctx context.Context) State {

	if m.cfg.Debug {
		m.region.RollControl()
	}
	m.lines.SetBusy(true)

	for t := 0; ; t++ {
		if !m.lines.Sample().Has(hw.Cmd) {
			return RequestAck
		}
		if hw.AnyToControl(m.intc) {
			m.dispatcher.Handle()
		}
		if t%idleCheckInterval == 0 && ctx.Err() != nil {
			return Idle
		}
	}
}

// requestAck lowers \PBSY, and once the host raises PR/\W, acknowledges.
func (m *Machine) requestAck() State {

	m.lines.SetBusy(false)
	if !m.await(hw.RW, hw.RW) {
		return m.abandon("no PR/\\W after command request")
	}

	m.debug(0x0101)
	if st := m.pump.Send(shmem.PairAddr(AckCommand), 1); st != pump.StatusOK {
		return m.abandon("sending command ack: " + pump.StatusText(st))
	}
	return CommandWait
}

// commandWait waits for \PCMD to rise, checks the handshake, and receives
// the command.
func (m *Machine) commandWait() State {

	if !m.await(hw.Cmd, hw.Cmd) {
		return m.abandon("\\PCMD not released")
	}
	if m.lines.Sample().Has(hw.RW) {
		return m.abandon("PR/\\W high at command handshake")
	}
	m.region.SetHandshake(m.lines.Snoop())

	m.debug(0x0300)
	m.lines.SetBusy(true)
	if hs := m.region.Handshake(); hs != Sentinel {
		return m.abandon(fmt.Sprintf("command handshake %02x", hs))
	}

	m.debug(0x0301)
	st := m.pump.Receive(shmem.AddrHostCommand, shmem.CommandSize, 0)
	if st != pump.StatusOK {
		return m.abandon("receiving command: " + pump.StatusText(st))
	}
	return Dispatch
}

// dispatch branches on the command's op byte.
func (m *Machine) dispatch() State {

	cmd := m.region.HostCommand()
	if log.IsLevelEnabled(log.DebugLevel) {
		log.WithField("command", fmt.Sprintf("%x", cmd)).Debug("COMMAND")
	}

	switch cmd[0] {
	case OpRead:
		return ReadAwaitRequest
	case OpWrite, OpWriteVerify, OpWriteSparing:
		m.op = cmd[0]
		return WriteAwaitRequest
	}
	return m.abandon(fmt.Sprintf("unknown op %02x", cmd[0]))
}

// await polls the lines until those in mask show the levels in want, or
// the budget runs out.
func (m *Machine) await(mask, want hw.Signals) bool {
	for t := uint32(0); !m.lines.Sample().Match(mask, want); t++ {
		if t > m.cfg.Timeout {
			return false
		}
	}
	return true
}

// handshake snoops the host's handshake byte and derives the preliminary
// status from it.
func (m *Machine) handshake() {
	hs := m.lines.Snoop()
	m.region.SetHandshake(hs)
	if hs == Sentinel {
		m.status = StatusOK
	} else {
		m.status = StatusHandshake
	}
}

// forward sends the host's command to the supervisor, unless something has
// already gone wrong.
func (m *Machine) forward() {
	if m.cfg.Armless || m.status != StatusOK {
		return
	}
	for ix := 0; ix < SendTries; ix++ {
		if m.endpoint.Send(m.region.HostCommand()) == nil {
			return
		}
	}
	m.status = StatusTimeout
}

/*
	awaitSupervisor waits for the supervisor to signal that it is done with
	the buffers, serving its buffer commands in the meantime. The budget
	restarts with each interrupt. Then the status reply is composed, and
	\PBSY raised.
*/
func (m *Machine) awaitSupervisor() {

	if !m.cfg.Armless && m.status == StatusOK {
		m.status = m.awaitProceed()
	}

	m.region.SetStatusReply(m.status)
	m.lines.SetBusy(true)
}

//
func (m *Machine) awaitProceed() byte {
	budget := m.cfg.supervisorTimeout()
	for {
		for t := uint32(0); !hw.AnyToControl(m.intc); t++ {
			if t > budget {
				log.Debug("supervisor did not proceed in time")
				return StatusTimeout
			}
		}
		if m.dispatcher.Handle() == Proceed {
			return StatusOK
		}
	}
}

// reply sends status, and sector data if any, once the host raises PR/\W.
func (m *Machine) reply(sector bool) State {

	if !m.await(hw.RW, hw.RW) {
		return m.abandon("no PR/\\W for status")
	}

	size := uint16(shmem.StatusSize)
	if sector && m.status == StatusOK {
		size += shmem.SectorSize
	}
	st := m.pump.Send(shmem.AddrDriveStatus, size)

	if log.IsLevelEnabled(log.DebugLevel) {
		log.WithFields(log.Fields{
			"status": fmt.Sprintf("%02x", m.status),
			"size":   size,
			"pump":   pump.StatusText(st),
		}).Debug("REPLY")
	}
	return Idle
}

//
func (m *Machine) debug(w uint16) {
	if m.cfg.Debug {
		m.region.MarkControl(w)
	}
}

// abandon gives up on the current transaction.
func (m *Machine) abandon(reason string) State {
	if log.IsLevelEnabled(log.DebugLevel) {
		log.WithFields(log.Fields{
			"state":  m.state.String(),
			"reason": reason,
		}).Debug("abandoned")
	}
	return Idle
}
