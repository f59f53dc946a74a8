// record.go - per-direction AEAD record cipher with replay detection.
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

package cryptobox

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrReplay is returned by Open when the peer's frame counter does not
// strictly advance (Section 3: "replay is detected by counter
// regression").
var ErrReplay = errors.New("cryptobox: nonce counter regression")

// DeriveSessionRoot computes the shared DH secret for a pair of X25519
// ephemeral key shares (Section 4.3's "X25519-style Diffie-Hellman ...
// yields a session root").
func DeriveSessionRoot(ourPrivate, theirPublic *[32]byte) *[32]byte {
	var shared [32]byte
	box.Precompute(&shared, theirPublic, ourPrivate)
	return &shared
}

// directionKey derives a distinct secretbox key per traffic direction
// from one shared session root, so that a Host->Satellite frame can
// never be replayed back as Satellite->Host.
func directionKey(root *[32]byte, direction string) [32]byte {
	h := sha256.New()
	h.Write(root[:])
	h.Write([]byte(direction))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// RecordCipher seals or opens frames for a single direction of a
// session, enforcing a strictly monotonic 64-bit nonce counter.
type RecordCipher struct {
	mu      sync.Mutex
	key     [32]byte
	counter uint64
	peerMax uint64
	isFirst bool
}

// NewSealer returns a RecordCipher for encrypting outbound frames.
func NewSealer(root *[32]byte, direction string) *RecordCipher {
	return &RecordCipher{key: directionKey(root, direction)}
}

// NewOpener returns a RecordCipher for decrypting inbound frames. The
// first record may carry any nonzero counter; later records must carry
// a strictly greater one.
func NewOpener(root *[32]byte, direction string) *RecordCipher {
	return &RecordCipher{key: directionKey(root, direction), isFirst: true}
}

// Seal encrypts plaintext, advancing and embedding this cipher's nonce
// counter into the wire nonce.
func (c *RecordCipher) Seal(plaintext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	var nonce [24]byte
	binary.BigEndian.PutUint64(nonce[:8], c.counter)

	prefixed := make([]byte, 8, 8+len(plaintext)+secretbox.Overhead)
	binary.BigEndian.PutUint64(prefixed, c.counter)
	return secretbox.Seal(prefixed, plaintext, &nonce, &c.key), nil
}

// Open decrypts a sealed record, rejecting any counter that does not
// strictly exceed the highest counter seen so far.
func (c *RecordCipher) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < 8 {
		return nil, errors.New("cryptobox: sealed record too short")
	}
	counter := binary.BigEndian.Uint64(sealed[:8])

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isFirst && counter <= c.peerMax {
		return nil, ErrReplay
	}
	if c.isFirst && counter == 0 {
		return nil, ErrReplay
	}

	var nonce [24]byte
	binary.BigEndian.PutUint64(nonce[:8], counter)
	plaintext, ok := secretbox.Open(nil, sealed[8:], &nonce, &c.key)
	if !ok {
		return nil, errors.New("cryptobox: secretbox authentication failed")
	}

	c.isFirst = false
	c.peerMax = counter
	return plaintext, nil
}
