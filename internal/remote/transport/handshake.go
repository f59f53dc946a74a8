// handshake.go - wire exchange of the Section 4.3 ephemeral offers,
// bridging cryptobox's key agreement primitives onto a raw net.Conn
// before a Channel exists to carry framed traffic.
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

package transport

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"

	"gopkg.in/op/go-logging.v1"

	"github.com/theAkito/simplex-chat/internal/remote/constants"
	"github.com/theAkito/simplex-chat/internal/remote/cryptobox"
)

const handshakeMaxSize = 4096

func writeHandshake(conn net.Conn, msg *cryptobox.HandshakeMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var lenPrefix [constants.FrameLengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(payload)))
	if _, err := conn.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err = conn.Write(payload)
	return err
}

func readHandshake(conn net.Conn) (*cryptobox.HandshakeMessage, error) {
	var lenPrefix [constants.FrameLengthPrefixSize]byte
	if _, err := io.ReadFull(conn, lenPrefix[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenPrefix[:])
	if size > handshakeMaxSize {
		return nil, io.ErrShortBuffer
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	msg := &cryptobox.HandshakeMessage{}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// EstablishHost performs the Host side of the Section 4.3 handshake over
// an already-dialed/accepted conn and returns a running Channel. Each
// side writes its own offer before reading the peer's, which works
// because both offers are independent of each other.
func EstablishHost(
	conn net.Conn,
	identity ed25519.PrivateKey,
	satIdentity ed25519.PublicKey,
	ephemeral *cryptobox.EphemeralKeyPair,
	maxFrameSize int,
	log *logging.Logger,
	onFrame func(*Frame),
	onBroken func(error),
) (*Channel, error) {
	ours := cryptobox.Offer(identity, ephemeral)
	if err := writeHandshake(conn, ours); err != nil {
		return nil, err
	}
	peer, err := readHandshake(conn)
	if err != nil {
		return nil, err
	}
	keys, err := cryptobox.Complete(satIdentity, peer, ephemeral, cryptobox.DirHostToSat, cryptobox.DirSatToHost)
	if err != nil {
		return nil, err
	}
	return NewChannel(conn, keys, maxFrameSize, log, onFrame, onBroken), nil
}

// EstablishSatellite performs the Satellite side of the handshake,
// deriving the complementary pair of directional ciphers so that
// Host->Satellite and Satellite->Host traffic never share a key.
func EstablishSatellite(
	conn net.Conn,
	identity ed25519.PrivateKey,
	hostIdentity ed25519.PublicKey,
	ephemeral *cryptobox.EphemeralKeyPair,
	maxFrameSize int,
	log *logging.Logger,
	onFrame func(*Frame),
	onBroken func(error),
) (*Channel, error) {
	ours := cryptobox.Offer(identity, ephemeral)
	if err := writeHandshake(conn, ours); err != nil {
		return nil, err
	}
	peer, err := readHandshake(conn)
	if err != nil {
		return nil, err
	}
	keys, err := cryptobox.Complete(hostIdentity, peer, ephemeral, cryptobox.DirSatToHost, cryptobox.DirHostToSat)
	if err != nil {
		return nil, err
	}
	return NewChannel(conn, keys, maxFrameSize, log, onFrame, onBroken), nil
}
