// session.go - the Session runtime object (Section 3 "Session", Section
// 4.4, Section 4.5, Section 5).
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/katzenpost/core/log"
	"gopkg.in/op/go-logging.v1"

	"github.com/theAkito/simplex-chat/internal/remote/constants"
	"github.com/theAkito/simplex-chat/internal/remote/remoteerr"
	"github.com/theAkito/simplex-chat/internal/remote/transport"
)

// Role distinguishes the two peer roles sharing this state machine.
type Role int

const (
	RoleHost Role = iota
	RoleSatellite
)

// TransitionHook is invoked synchronously after every successful
// Transition, once the session lock has been released. It also fires
// when the phase is unchanged (for example Pairing -> Pairing), except
// for Dispose re-applied to an already-Disposed session.
type TransitionHook func(s *Session, from, to Phase, event Event)

// Session binds one RemoteDevice's runtime state: its current phase,
// its owned transport channel (if any), its in-flight Satellite
// commands, and whichever bounded queue its role needs to survive a
// Suspended interval.
type Session struct {
	deviceID int64
	role     Role

	mu      sync.Mutex
	phase   Phase
	channel *transport.Channel

	pending      *PendingTable
	commandQueue *CommandQueue // Satellite role
	eventBuffer  *EventBuffer  // Host role

	commandTimeout time.Duration
	nextCorrID     uint64

	lastActivity atomic.Value // time.Time

	log  *logging.Logger
	hook TransitionHook
}

// queuedCommand is what CommandQueue stores while Suspended.
type queuedCommand struct {
	corrID  uint64
	payload json.RawMessage
}

// New creates an Idle Session for deviceID. commandTimeout defaults to
// constants.DefaultCommandTimeout when zero.
func New(role Role, deviceID int64, logBackend *log.Backend, commandTimeout time.Duration, hook TransitionHook) *Session {
	if commandTimeout <= 0 {
		commandTimeout = constants.DefaultCommandTimeout
	}
	name := fmt.Sprintf("session-%d", deviceID)
	s := &Session{
		deviceID:       deviceID,
		role:           role,
		phase:          Idle,
		pending:        NewPendingTable(logBackend, name),
		commandQueue:   NewCommandQueue(constants.SatelliteCommandQueueDepth),
		eventBuffer:    NewEventBuffer(constants.HostEventBufferDepth),
		commandTimeout: commandTimeout,
		log:            logBackend.GetLogger(name),
		hook:           hook,
	}
	s.lastActivity.Store(time.Now())
	return s
}

// DeviceID returns the bound RemoteDevice id.
func (s *Session) DeviceID() int64 { return s.deviceID }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastActivity returns the last time Touch was called.
func (s *Session) LastActivity() time.Time {
	return s.lastActivity.Load().(time.Time)
}

// Touch refreshes the idle-timeout clock; callers mark activity on
// every frame sent or received.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now())
}

// Transition applies event to the state machine under the session
// lock, invoking the registered hook exactly once if the transition
// succeeds. Dispose (deregister/terminate) is idempotent per Section
// 8 Property 6: re-applying it against an already-Disposed session
// succeeds and fires no hook.
func (s *Session) Transition(event Event) error {
	s.mu.Lock()
	from := s.phase
	to, err := Next(from, event)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	already := from == to && to == Disposed
	s.phase = to
	if to != Active && to != Suspended {
		s.releaseChannelLocked()
	}
	s.mu.Unlock()

	if s.log != nil {
		s.log.Debugf("%s -> %s (%s)", from, to, event)
	}
	if !already && s.hook != nil {
		s.hook(s, from, to, event)
	}
	return nil
}

// AttachChannel binds ch as this session's active transport. Any
// previously attached channel is closed first.
func (s *Session) AttachChannel(ch *transport.Channel) {
	s.mu.Lock()
	old := s.channel
	s.channel = ch
	s.mu.Unlock()
	if old != nil && old != ch {
		old.Close()
	}
	s.Touch()
}

// releaseChannelLocked closes and forgets the channel; must be called
// with mu held.
func (s *Session) releaseChannelLocked() {
	if s.channel != nil {
		s.channel.Close()
		s.channel = nil
	}
}

func (s *Session) channelLocked() *transport.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// SendCommand is the Satellite-side entry point: it assigns a
// correlation id and either sends immediately (Active) or queues the
// command (Suspended), per Section 4.5. Disposed sessions fail every
// command with SessionDisposed.
func (s *Session) SendCommand(cmd json.RawMessage) (<-chan CommandResult, error) {
	phase := s.Phase()
	switch phase {
	case Disposed:
		return nil, remoteerr.New(remoteerr.KindSessionDisposed, nil)
	}

	corrID := atomic.AddUint64(&s.nextCorrID, 1)
	result := s.pending.Register(corrID, s.commandTimeout)

	if phase == Active {
		ch := s.channelLocked()
		if ch == nil {
			return nil, remoteerr.New(remoteerr.KindSessionSuspended, nil)
		}
		if err := ch.Send(transport.NewCmd(corrID, cmd)); err != nil {
			return nil, err
		}
		s.Touch()
		return result, nil
	}

	// Suspended: queue for the eventual reconnect flush. A full queue
	// evicts the oldest entry, which resolves with SessionSuspended
	// rather than leaving its caller waiting past a timeout it never
	// gets to see.
	evicted, wasEvicted := s.commandQueue.Push(queuedCommand{corrID: corrID, payload: cmd})
	if wasEvicted {
		if qc, ok := evicted.(queuedCommand); ok {
			s.pending.Fail(qc.corrID, remoteerr.New(remoteerr.KindSessionSuspended, nil))
		}
	}
	return result, nil
}

// FlushQueuedCommands sends every queued Satellite command over the
// now-Active channel in insertion order (Section 4.5: "on reconnect
// they flush in insertion order").
func (s *Session) FlushQueuedCommands() error {
	ch := s.channelLocked()
	if ch == nil {
		return remoteerr.New(remoteerr.KindSessionSuspended, nil)
	}
	for _, item := range s.commandQueue.DrainAll() {
		qc, ok := item.(queuedCommand)
		if !ok {
			continue
		}
		if err := ch.Send(transport.NewCmd(qc.corrID, qc.payload)); err != nil {
			return err
		}
	}
	s.Touch()
	return nil
}

// Send writes f over the currently attached channel, failing with
// SessionSuspended if none is attached.
func (s *Session) Send(f *transport.Frame) error {
	ch := s.channelLocked()
	if ch == nil {
		return remoteerr.New(remoteerr.KindSessionSuspended, nil)
	}
	if err := ch.Send(f); err != nil {
		return err
	}
	s.Touch()
	return nil
}

// ResolveReply matches an inbound `reply` frame to its pending
// command. It reports false for an orphan reply, which the caller
// should log and drop (Section 4.5).
func (s *Session) ResolveReply(corrID uint64, resp json.RawMessage) bool {
	s.Touch()
	return s.pending.Resolve(corrID, resp)
}

// BufferEvent records a Host-side chat engine event while Suspended,
// for replay once the channel reconnects.
func (s *Session) BufferEvent(resp json.RawMessage) {
	s.eventBuffer.Append(resp)
}

// DrainEvents returns and clears every buffered event, in original
// emission order, for mirroring onto a freshly reconnected channel.
func (s *Session) DrainEvents() []json.RawMessage {
	items := s.eventBuffer.DrainAll()
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		if resp, ok := item.(json.RawMessage); ok {
			out = append(out, resp)
		}
	}
	return out
}

// FlushBufferedEvents re-sends every event buffered while Suspended
// over the now-Active channel, in original emission order (Section
// 4.4: "quick reconnect resumes delivery without loss"). Mirrors
// FlushQueuedCommands' Satellite-side counterpart.
func (s *Session) FlushBufferedEvents() error {
	ch := s.channelLocked()
	if ch == nil {
		return remoteerr.New(remoteerr.KindSessionSuspended, nil)
	}
	for _, ev := range s.DrainEvents() {
		if err := ch.Send(transport.NewEvent(ev)); err != nil {
			return err
		}
	}
	s.Touch()
	return nil
}

// Dispose transitions the session to Disposed, tears down its
// channel, and fails every outstanding pending command with
// SessionDisposed. Calling Dispose on an already-Disposed session is
// a no-op that returns nil (Section 8 Property 6).
func (s *Session) Dispose() error {
	if err := s.Transition(EventTerminate); err != nil {
		return err
	}
	disposedErr := remoteerr.New(remoteerr.KindSessionDisposed, nil)
	for _, item := range s.commandQueue.DrainAll() {
		if qc, ok := item.(queuedCommand); ok {
			s.pending.Fail(qc.corrID, disposedErr)
		}
	}
	s.pending.CancelAll(disposedErr)
	s.pending.Shutdown()
	return nil
}
