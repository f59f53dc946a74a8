// controller_test.go
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package controller

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/katzenpost/core/log"
	"github.com/stretchr/testify/require"

	"github.com/theAkito/simplex-chat/internal/remote/cryptobox"
	"github.com/theAkito/simplex-chat/internal/remote/pairing"
	"github.com/theAkito/simplex-chat/internal/remote/registry"
	"github.com/theAkito/simplex-chat/internal/remote/session"
)

func newHostController(t *testing.T) (*Controller, *registry.Registry, *[]Response) {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	identity, err := cryptobox.GenerateIdentity()
	require.NoError(t, err)
	nonces := pairing.NewNonceCache(time.Hour)
	t.Cleanup(func() { nonces.Halt() })

	var responses []Response
	c := NewHostController(reg, nonces, identity, func(r Response) { responses = append(responses, r) }, mustLogBackend(t))
	return c, reg, &responses
}

func mustLogBackend(t *testing.T) *log.Backend {
	t.Helper()
	lb, err := log.New("", "DEBUG", false)
	require.NoError(t, err)
	return lb
}

// TestPairingHappyPath covers Scenario S1: Satellite generates a
// token, Host accepts and confirms it, and the registry row ends up
// active with the Session Active.
func TestPairingHappyPath(t *testing.T) {
	satIdentity, err := cryptobox.GenerateIdentity()
	require.NoError(t, err)
	sat := NewSatelliteController(satIdentity, "", func(Response) {}, mustLogBackend(t))

	token, err := sat.BeginPairing(mustLogBackend(t))
	require.NoError(t, err)
	require.Regexp(t, `^rp1:`, token)

	host, reg, responses := newHostController(t)
	deviceID, err := host.AcceptPairingAnswer(token, mustLogBackend(t))
	require.NoError(t, err)
	require.NotZero(t, deviceID)

	require.NoError(t, host.ConfirmPairing(deviceID))

	dev, err := reg.ByID(deviceID)
	require.NoError(t, err)
	require.Equal(t, registry.StatusActive, dev.DeviceStatus)
	require.Equal(t, session.Active, host.Session().Phase())

	var kinds []ResponseKind
	for _, r := range *responses {
		kinds = append(kinds, r.Kind)
	}
	require.Contains(t, kinds, RespSatIdentityRecord)
	require.Contains(t, kinds, RespSatIdentityConfirm)
}

// TestPairingReplayRejected covers Section 8 Property 1: replaying a
// captured token within the window fails PairingReplay.
func TestPairingReplayRejected(t *testing.T) {
	satIdentity, err := cryptobox.GenerateIdentity()
	require.NoError(t, err)
	sat := NewSatelliteController(satIdentity, "", func(Response) {}, mustLogBackend(t))
	token, err := sat.BeginPairing(mustLogBackend(t))
	require.NoError(t, err)

	host, _, _ := newHostController(t)
	_, err = host.AcceptPairingAnswer(token, mustLogBackend(t))
	require.NoError(t, err)

	_, err = host.AcceptPairingAnswer(token, mustLogBackend(t))
	require.Error(t, err)
}

func pairedHostController(t *testing.T) (*Controller, *registry.Registry, int64) {
	t.Helper()
	satIdentity, err := cryptobox.GenerateIdentity()
	require.NoError(t, err)
	sat := NewSatelliteController(satIdentity, "", func(Response) {}, mustLogBackend(t))
	token, err := sat.BeginPairing(mustLogBackend(t))
	require.NoError(t, err)

	host, reg, _ := newHostController(t)
	deviceID, err := host.AcceptPairingAnswer(token, mustLogBackend(t))
	require.NoError(t, err)
	require.NoError(t, host.ConfirmPairing(deviceID))
	return host, reg, deviceID
}

// TestTakeoverThenResume covers Scenario S3: the Host UI reclaims the
// foreground, then resumes.
func TestTakeoverThenResume(t *testing.T) {
	host, _, _ := pairedHostController(t)

	require.NoError(t, host.Takeover())
	require.Equal(t, session.Suspended, host.Session().Phase())

	// Resume transitions back to Active even though flushing fails for
	// lack of a real attached channel in this test.
	_ = host.Resume()
	require.Equal(t, session.Active, host.Session().Phase())
}

// TestDeregisterRevokesDevice covers Scenario S5: deregistering moves
// the session to Disposed and the registry row to revoked.
func TestDeregisterRevokesDevice(t *testing.T) {
	host, reg, deviceID := pairedHostController(t)

	require.NoError(t, host.Deregister(deviceID))
	require.Equal(t, session.Disposed, host.Session().Phase())

	dev, err := reg.ByID(deviceID)
	require.NoError(t, err)
	require.Equal(t, registry.StatusRevoked, dev.DeviceStatus)

	_, err = reg.LookupActiveBinding(dev.DevicePublicKey, dev.LocalPublicKey)
	require.ErrorIs(t, err, registry.ErrNotFound)
}

// TestDisposeIsIdempotent covers Section 8 Property 6 at the
// Controller layer.
func TestDisposeIsIdempotent(t *testing.T) {
	host, _, deviceID := pairedHostController(t)
	require.NoError(t, host.Dispose(deviceID))
	require.NoError(t, host.Dispose(deviceID))
	require.Equal(t, session.Disposed, host.Session().Phase())
}
