// router_test.go
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package router

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/katzenpost/core/log"
	"github.com/stretchr/testify/require"

	"github.com/theAkito/simplex-chat/internal/remote/engine"
	"github.com/theAkito/simplex-chat/internal/remote/remoteerr"
	"github.com/theAkito/simplex-chat/internal/remote/session"
	"github.com/theAkito/simplex-chat/internal/remote/transport"
)

var allCommandTags = []string{
	"APIStopChat", "APISuspendChat", "APIActivateChat",
	"APIExportArchive", "APIImportArchive", "APIDeleteStorage", "APIStorageEncryption",
	"APIExecuteSQL", "APISlowSQLQueries",
	"APIDeleteUser", "APIHideUser", "APIUnhideUser",
	"APISetNetworkConfig", "ReconnectAllServers",
	"APIRegisterToken", "APIVerifyToken", "APIDeleteToken",
	"APISendMessage", "APIChatRead", "APIChatItemReaction", "APIGetChats",
}

// TestClassifyIsTotal covers Section 8 Property 3: every command tag
// classifies as exactly one of {forward, denied}.
func TestClassifyIsTotal(t *testing.T) {
	for _, tag := range allCommandTags {
		verdict, _ := Classify(tag)
		require.Contains(t, []Verdict{Forward, Denied}, verdict)
	}
}

func TestDeniedTagsAllDenied(t *testing.T) {
	denied := []string{
		"APIStopChat", "APISuspendChat", "APIActivateChat",
		"APIExportArchive", "APIImportArchive", "APIDeleteStorage", "APIStorageEncryption",
		"APIDeleteUser", "APIHideUser", "APIUnhideUser",
		"APISetNetworkConfig", "ReconnectAllServers",
		"APIRegisterToken", "APIVerifyToken", "APIDeleteToken",
	}
	for _, tag := range denied {
		verdict, reason := Classify(tag)
		require.Equal(t, Denied, verdict, tag)
		require.NotEmpty(t, reason, tag)
	}
}

func TestForwardableTagRequiresNoReason(t *testing.T) {
	verdict, reason := Classify("APISendMessage")
	require.Equal(t, Forward, verdict)
	require.Empty(t, reason)
}

func TestMirrorTagsNamedInSpec(t *testing.T) {
	require.True(t, RequiresMirror("APIChatRead"))
	require.True(t, RequiresMirror("APIChatItemReaction"))
	require.False(t, RequiresMirror("APISendMessage"))
}

type fakeEngine struct {
	injected []engine.Command
	sub      func(corrID uint64, resp engine.Response)
}

func (f *fakeEngine) Inject(corrID uint64, cmd engine.Command) error {
	f.injected = append(f.injected, cmd)
	return nil
}

func (f *fakeEngine) Subscribe(onResponse func(corrID uint64, resp engine.Response)) func() {
	f.sub = onResponse
	return func() { f.sub = nil }
}

type fakeView struct {
	applied []engine.Command
}

func (v *fakeView) ApplyMirror(cmd engine.Command) error {
	v.applied = append(v.applied, cmd)
	return nil
}

func newActiveHostSession(t *testing.T) *session.Session {
	t.Helper()
	logBackend, err := log.New("", "DEBUG", false)
	require.NoError(t, err)
	s := session.New(session.RoleHost, 7, logBackend, 30*time.Second, nil)
	require.NoError(t, s.Transition(session.EventRequestIdentity))
	require.NoError(t, s.Transition(session.EventIdentityConfirm))
	return s
}

// TestDeniedCommandScenario covers Scenario S2: a denied command
// produces an immediate reply carrying DeniedCommand and never reaches
// the engine.
func TestDeniedCommandScenario(t *testing.T) {
	sess := newActiveHostSession(t)
	eng := &fakeEngine{}
	r := NewHostRouter(sess, eng, nil, nil)
	defer r.Close()

	cmd := json.RawMessage(`{"type":"APIDeleteStorage"}`)
	id := uint64(1)
	reply, err := r.HandleFrame(transport.NewCmd(id, cmd))
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.Equal(t, transport.KindReply, reply.Kind)
	require.Equal(t, id, *reply.ID)
	require.Contains(t, string(reply.Resp), string(remoteerr.KindDeniedCommand))
	require.Empty(t, eng.injected)
}

func TestForwardedCommandReachesEngineAndMirror(t *testing.T) {
	sess := newActiveHostSession(t)
	eng := &fakeEngine{}
	view := &fakeView{}
	r := NewHostRouter(sess, eng, view, nil)
	defer r.Close()

	cmd := json.RawMessage(`{"type":"APIChatRead","itemId":9}`)
	reply, err := r.HandleFrame(transport.NewCmd(5, cmd))
	require.NoError(t, err)
	require.Nil(t, reply)
	require.Len(t, eng.injected, 1)
	require.Equal(t, "APIChatRead", eng.injected[0].Tag)
	require.Len(t, view.applied, 1)
}

// TestSatelliteRouterResolvesReplyAndDropsOrphan covers Section 8
// Property 4 on the Satellite side: a matching reply resolves the
// pending command, and a reply with no matching id is dropped.
func TestSatelliteRouterResolvesReplyAndDropsOrphan(t *testing.T) {
	logBackend, err := log.New("", "DEBUG", false)
	require.NoError(t, err)
	sess := session.New(session.RoleSatellite, 7, logBackend, time.Second, nil)
	require.NoError(t, sess.Transition(session.EventRequestIdentity))
	require.NoError(t, sess.Transition(session.EventIdentityConfirm))

	var events []json.RawMessage
	r := NewSatelliteRouter(sess, func(resp json.RawMessage) { events = append(events, resp) }, nil)

	// Sending fails for lack of an attached channel, but it still
	// registers the pending entry we want to resolve below.
	_, _ = r.IssueCommand(json.RawMessage(`{"type":"apiSendMessage"}`))

	// An orphan reply (unknown id) must not panic and changes nothing
	// observable beyond a logged warning.
	r.DispatchFrame(transport.NewReply(999, json.RawMessage(`{}`)))

	// The reply carrying the first correlation id resolves the pending
	// entry, so it is no longer outstanding.
	r.DispatchFrame(transport.NewReply(1, json.RawMessage(`{}`)))
	require.False(t, sess.ResolveReply(1, json.RawMessage(`{}`)))

	r.DispatchFrame(transport.NewEvent(json.RawMessage(`{"kind":"newItem"}`)))
	require.Len(t, events, 1)
}
