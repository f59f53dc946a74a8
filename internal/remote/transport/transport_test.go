// transport_test.go
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package transport

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theAkito/simplex-chat/internal/remote/cryptobox"
)

// pairedKeys builds two ChannelKeys that share one DH root, one end
// keyed host->sat for send and sat->host for recv, the other the
// mirror image, as Complete would produce for a real handshake.
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

func TestChannelRoundTrip(t *testing.T) {
	hostConn, satConn := net.Pipe()
	hostKeys, satKeys := pairedKeys(t)

	received := make(chan *Frame, 1)
	hostCh := NewChannel(hostConn, hostKeys, 0, nil, func(f *Frame) {}, func(error) {})
	defer hostCh.Close()
	satCh := NewChannel(satConn, satKeys, 0, nil, func(f *Frame) { received <- f }, func(error) {})
	defer satCh.Close()

	payload, err := json.Marshal(map[string]string{"hello": "world"})
	require.NoError(t, err)
	require.NoError(t, hostCh.Send(NewCmd(1, payload)))

	select {
	case f := <-received:
		require.Equal(t, KindCmd, f.Kind)
		require.Equal(t, uint64(1), *f.ID)
		require.JSONEq(t, `{"hello":"world"}`, string(f.Cmd))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestChannelRejectsOversizeFrame(t *testing.T) {
	hostConn, satConn := net.Pipe()
	hostKeys, satKeys := pairedKeys(t)

	broken := make(chan error, 1)
	hostCh := NewChannel(hostConn, hostKeys, 64, nil, func(f *Frame) {}, func(error) {})
	defer hostCh.Close()
	satCh := NewChannel(satConn, satKeys, 64, nil, func(f *Frame) {}, func(err error) { broken <- err })
	defer satCh.Close()

	big := make([]byte, 4096)
	err := hostCh.Send(NewCmd(1, json.RawMessage(append([]byte(`"`), append(big, '"')...))))
	require.Error(t, err)

	select {
	case <-broken:
	case <-time.After(200 * time.Millisecond):
		// Send failed locally before anything reached the wire; the
		// peer channel staying healthy is the expected outcome.
	}
}

func TestChannelDetectsReplay(t *testing.T) {
	hostConn, satConn := net.Pipe()
	hostKeys, satKeys := pairedKeys(t)

	// Seal one frame directly against the cipher rather than through
	// Send, then open the same sealed record twice, simulating a
	// replayed wire record delivered out of band.
	payload, err := json.Marshal(NewPing())
	require.NoError(t, err)
	sealed, err := hostKeys.Send.Seal(payload)
	require.NoError(t, err)

	_, err = satKeys.Recv.Open(sealed)
	require.NoError(t, err)

	_, err = satKeys.Recv.Open(sealed)
	require.ErrorIs(t, err, cryptobox.ErrReplay)

	hostConn.Close()
	satConn.Close()
}
