// pairing_test.go
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package pairing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now()
	p, err := NewPayload([]byte("satellite-ephemeral-pub"), "host-hint", "10.0.0.5:9999", 10*time.Minute, now)
	require.NoError(t, err)

	tok, err := Encode(p)
	require.NoError(t, err)
	require.Regexp(t, `^rp1:`, tok)

	decoded, err := Decode(tok, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, p.SatPub, decoded.SatPub)
	require.Equal(t, p.Addr, decoded.Addr)
	require.Equal(t, ModeSatelliteServer, decoded.EffectiveMode())
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	now := time.Now()
	p, err := NewPayload([]byte("pub"), "hint", "", time.Minute, now)
	require.NoError(t, err)
	tok, err := Encode(p)
	require.NoError(t, err)

	_, err = Decode(tok, now.Add(2*time.Minute))
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestDecodeRejectsMalformedToken(t *testing.T) {
	_, err := Decode("not-a-token", time.Now())
	require.ErrorIs(t, err, ErrBadToken)
}

func TestHostServerModeWhenAddrEmpty(t *testing.T) {
	now := time.Now()
	p, err := NewPayload([]byte("pub"), "hint", "", time.Minute, now)
	require.NoError(t, err)
	require.Equal(t, ModeHostServer, p.EffectiveMode())
}

func TestNonceCacheRejectsReplayWithinWindow(t *testing.T) {
	c := NewNonceCache(time.Hour)
	defer c.Halt()

	nonce := []byte("abc123")
	now := time.Now()
	require.True(t, c.CheckAndRecord(nonce, now))
	require.False(t, c.CheckAndRecord(nonce, now.Add(time.Minute)))
}

func TestNonceCacheAllowsReuseAfterWindow(t *testing.T) {
	c := NewNonceCache(time.Hour)
	defer c.Halt()

	nonce := []byte("xyz789")
	now := time.Now()
	require.True(t, c.CheckAndRecord(nonce, now))
	require.True(t, c.CheckAndRecord(nonce, now.Add(2*time.Hour)))
}
