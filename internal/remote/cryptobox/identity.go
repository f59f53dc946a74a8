// identity.go - long-lived and ephemeral key material for paired devices.
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

// Package cryptobox implements the Section 4.3 authenticated key
// agreement and AEAD record layer: long-lived Ed25519 identities sign
// ephemeral X25519 keys, whose Diffie-Hellman output seeds a pair of
// per-direction secretbox ciphers.
package cryptobox

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

// IdentityKeyPair is a device's long-lived binding key pair (the
// RemoteDevice devicePublicKey / localPrivateKey+localPublicKey fields).
type IdentityKeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateIdentity creates a fresh long-lived Ed25519 identity key pair,
// used once per RemoteDevice binding as required by the Data Model
// invariant in Section 3.
func GenerateIdentity() (*IdentityKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &IdentityKeyPair{Public: pub, Private: priv}, nil
}

// EphemeralKeyPair is the per-handshake X25519 key pair used for the
// Diffie-Hellman session root.
type EphemeralKeyPair struct {
	Public  *[32]byte
	Private *[32]byte
}

// GenerateEphemeral creates a fresh X25519 ephemeral key pair.
func GenerateEphemeral() (*EphemeralKeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &EphemeralKeyPair{Public: pub, Private: priv}, nil
}

// SignEphemeral signs an ephemeral public key with a long-lived identity
// private key, so the peer can authenticate the DH share.
func SignEphemeral(identity ed25519.PrivateKey, ephemeralPub *[32]byte) []byte {
	return ed25519.Sign(identity, ephemeralPub[:])
}

// VerifyEphemeral checks a signature produced by SignEphemeral against a
// peer's recorded long-lived public key.
func VerifyEphemeral(peerIdentity ed25519.PublicKey, ephemeralPub *[32]byte, sig []byte) error {
	if len(peerIdentity) != ed25519.PublicKeySize {
		return errors.New("cryptobox: malformed peer identity key")
	}
	if !ed25519.Verify(peerIdentity, ephemeralPub[:], sig) {
		return errors.New("cryptobox: ephemeral signature verification failed")
	}
	return nil
}
