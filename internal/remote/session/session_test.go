// session_test.go
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package session

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/katzenpost/core/log"
	"github.com/stretchr/testify/require"

	"github.com/theAkito/simplex-chat/internal/remote/cryptobox"
	"github.com/theAkito/simplex-chat/internal/remote/remoteerr"
	"github.com/theAkito/simplex-chat/internal/remote/transport"
)

// pairedKeys builds two ChannelKeys sharing one DH root, mirroring what
// a real handshake's Complete would produce, for tests that need an
// actual wire-level Channel rather than just the Session state machine.
func pairedKeys(t *testing.T) (hostSide, satSide *cryptobox.ChannelKeys) {
	t.Helper()
	hostEph, err := cryptobox.GenerateEphemeral()
	require.NoError(t, err)
	satEph, err := cryptobox.GenerateEphemeral()
	require.NoError(t, err)

	hostRoot := cryptobox.DeriveSessionRoot(hostEph.Private, satEph.Public)
	satRoot := cryptobox.DeriveSessionRoot(satEph.Private, hostEph.Public)

	hostSide = &cryptobox.ChannelKeys{
		Send: cryptobox.NewSealer(hostRoot, cryptobox.DirHostToSat),
		Recv: cryptobox.NewOpener(hostRoot, cryptobox.DirSatToHost),
	}
	satSide = &cryptobox.ChannelKeys{
		Send: cryptobox.NewSealer(satRoot, cryptobox.DirSatToHost),
		Recv: cryptobox.NewOpener(satRoot, cryptobox.DirHostToSat),
	}
	return hostSide, satSide
}

func newTestSession(t *testing.T, role Role, hook TransitionHook) *Session {
	t.Helper()
	logBackend, err := log.New("", "DEBUG", false)
	require.NoError(t, err)
	return New(role, 7, logBackend, 50*time.Millisecond, hook)
}

func activate(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.Transition(EventRequestIdentity))
	require.NoError(t, s.Transition(EventIdentityConfirm))
	require.Equal(t, Active, s.Phase())
}

func TestTransitionTableMatchesDiagram(t *testing.T) {
	s := newTestSession(t, RoleHost, nil)
	require.Equal(t, Idle, s.Phase())

	activate(t, s)

	require.NoError(t, s.Transition(EventTakeover))
	require.Equal(t, Suspended, s.Phase())

	require.NoError(t, s.Transition(EventReconnect))
	require.Equal(t, Active, s.Phase())

	require.NoError(t, s.Transition(EventDeregister))
	require.Equal(t, Disposed, s.Phase())
}

func TestIllegalTransitionRejected(t *testing.T) {
	s := newTestSession(t, RoleHost, nil)
	err := s.Transition(EventIdentityConfirm)
	require.Error(t, err)
	require.Equal(t, Idle, s.Phase())
}

// TestIdempotentDispose covers Section 8 Property 6: Dispose on a
// Disposed session is a no-op that returns success.
func TestIdempotentDispose(t *testing.T) {
	s := newTestSession(t, RoleHost, nil)
	activate(t, s)

	require.NoError(t, s.Dispose())
	require.Equal(t, Disposed, s.Phase())

	require.NoError(t, s.Dispose())
	require.Equal(t, Disposed, s.Phase())
}

// TestSendCommandOnDisposedSessionFails exercises the
// Satellite-role path: a command issued against a Disposed session is
// rejected immediately rather than queued.
func TestSendCommandOnDisposedSessionFails(t *testing.T) {
	s := newTestSession(t, RoleSatellite, nil)
	activate(t, s)
	require.NoError(t, s.Dispose())

	_, err := s.SendCommand(json.RawMessage(`{"type":"apiSendMessage"}`))
	require.True(t, remoteerr.Is(err, remoteerr.KindSessionDisposed))
}

// TestSuspendedCommandsQueueAndFlushOnReconnect covers Scenario S3
// (takeover/resume): a command issued while Suspended is queued, and
// after reconnect a flush with no attached channel fails, leaving the
// command queued and unresolved.
func TestSuspendedCommandsQueueAndFlushOnReconnect(t *testing.T) {
	s := newTestSession(t, RoleSatellite, nil)
	activate(t, s)

	require.NoError(t, s.Transition(EventTakeover))
	require.Equal(t, Suspended, s.Phase())

	resultCh, err := s.SendCommand(json.RawMessage(`{"type":"apiSendMessage","id":42}`))
	require.NoError(t, err)
	require.Equal(t, 1, s.commandQueue.Len())

	require.NoError(t, s.Transition(EventReconnect))
	require.Equal(t, Active, s.Phase())

	// No channel attached in this unit test, so flush reports the
	// session still effectively unusable for sending; the queue
	// contents remain intact for inspection rather than silently lost.
	err = s.FlushQueuedCommands()
	require.Error(t, err)
	require.Equal(t, 1, s.commandQueue.Len())

	select {
	case <-resultCh:
		t.Fatal("command should not have resolved without a real channel flush")
	case <-time.After(10 * time.Millisecond):
	}
}

// TestCommandTimeoutResolvesExactlyOnce covers Section 8 Property 4:
// either a reply or a Timeout resolves a pending entry, never both.
func TestCommandTimeoutResolvesExactlyOnce(t *testing.T) {
	s := newTestSession(t, RoleSatellite, nil)
	activate(t, s)

	corrID := uint64(1)
	resultCh := s.pending.Register(corrID, 10*time.Millisecond)

	select {
	case res := <-resultCh:
		require.Error(t, res.Err)
		var timeoutErr *ErrCommandTimeout
		require.ErrorAs(t, res.Err, &timeoutErr)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout never fired")
	}

	// A late reply for the same id is an orphan and must not re-resolve.
	require.False(t, s.ResolveReply(corrID, json.RawMessage(`{}`)))
}

// TestEventBufferReplaysInOrderWithinCapacity covers Section 8
// Property 5 for the Host-side buffered-events half of reconnect.
func TestEventBufferReplaysInOrderWithinCapacity(t *testing.T) {
	s := newTestSession(t, RoleHost, nil)
	activate(t, s)
	require.NoError(t, s.Transition(EventTakeover))

	s.BufferEvent(json.RawMessage(`{"n":1}`))
	s.BufferEvent(json.RawMessage(`{"n":2}`))
	s.BufferEvent(json.RawMessage(`{"n":3}`))

	drained := s.DrainEvents()
	require.Len(t, drained, 3)
	require.JSONEq(t, `{"n":1}`, string(drained[0]))
	require.JSONEq(t, `{"n":3}`, string(drained[2]))

	require.Empty(t, s.DrainEvents())
}

// TestFlushBufferedEventsReplaysOverReconnectedChannel covers Scenario
// S4 and Section 8 Property 5 end to end: events buffered while
// Suspended must actually reach the peer once the channel comes back,
// not just sit drained in memory.
func TestFlushBufferedEventsReplaysOverReconnectedChannel(t *testing.T) {
	s := newTestSession(t, RoleHost, nil)
	activate(t, s)
	require.NoError(t, s.Transition(EventChannelBroken))

	s.BufferEvent(json.RawMessage(`{"n":1}`))
	s.BufferEvent(json.RawMessage(`{"n":2}`))

	hostConn, peerConn := net.Pipe()
	hostKeys, peerKeys := pairedKeys(t)

	received := make(chan *transport.Frame, 2)
	hostCh := transport.NewChannel(hostConn, hostKeys, 0, nil, func(f *transport.Frame) {}, func(error) {})
	defer hostCh.Close()
	peerCh := transport.NewChannel(peerConn, peerKeys, 0, nil, func(f *transport.Frame) { received <- f }, func(error) {})
	defer peerCh.Close()

	s.AttachChannel(hostCh)
	require.NoError(t, s.Transition(EventReconnect))
	require.NoError(t, s.FlushBufferedEvents())

	want := []string{`{"n":1}`, `{"n":2}`}
	for _, w := range want {
		select {
		case f := <-received:
			require.Equal(t, transport.KindEvent, f.Kind)
			require.JSONEq(t, w, string(f.Resp))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for replayed event")
		}
	}
	require.Empty(t, s.DrainEvents())
}

func TestTransitionHookFiresOnceWithOldAndNewPhase(t *testing.T) {
	type transitionRecord struct {
		from, to Phase
		event    Event
	}
	var seen []transitionRecord
	s := newTestSession(t, RoleHost, func(sess *Session, from, to Phase, event Event) {
		seen = append(seen, transitionRecord{from, to, event})
	})

	activate(t, s)
	require.Len(t, seen, 2)
	require.Equal(t, Idle, seen[0].from)
	require.Equal(t, Pairing, seen[0].to)
	require.Equal(t, Pairing, seen[1].from)
	require.Equal(t, Active, seen[1].to)
}
