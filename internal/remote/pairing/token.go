// token.go - C2 OOB pairing token (Section 4.2, Section 6).
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

// Package pairing generates and consumes the out-of-band handshake
// token and classifies which discovery mode it describes (Section 4.2);
// dialing and listening live in package transport.
package pairing

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/theAkito/simplex-chat/internal/remote/constants"
)

// ErrBadToken is returned for any structurally invalid token.
var ErrBadToken = errors.New("pairing: malformed token")

// ErrExpiredToken is returned when a token's expiresAt has passed.
var ErrExpiredToken = errors.New("pairing: token expired")

// Mode selects which of the Section 4.2 discovery strategies a token
// describes.
type Mode int

const (
	// ModeSatelliteServer: Satellite listens, Host dials in (token
	// carries the Satellite's address).
	ModeSatelliteServer Mode = iota
	// ModeHostServer: roles flip after a legwork announcement; the
	// token alone carries no dialable address.
	ModeHostServer
	// ModeBouncer: token carries a third-party rendezvous address both
	// peers dial out to.
	ModeBouncer
)

// Payload is the versioned structure carried inside a token, per
// Section 6: `{ v:1, satPub, hostHint, addr?, nonce, expiresAt }`.
type Payload struct {
	V         int    `json:"v"`
	SatPub    []byte `json:"satPub"`
	HostHint  string `json:"hostHint"`
	Addr      string `json:"addr,omitempty"`
	Nonce     []byte `json:"nonce"`
	ExpiresAt int64  `json:"expiresAt"` // unix seconds

	// bouncer is never serialized; it only distinguishes EffectiveMode
	// for a Payload built in this process via WithBouncer.
	bouncer bool
}

const tokenVersion = 1
const nonceSize = 16

// NewPayload builds a fresh Payload for satPub, valid for ttl starting
// now. addr is optional (empty selects ModeHostServer's legwork flip).
func NewPayload(satPub []byte, hostHint, addr string, ttl time.Duration, now time.Time) (*Payload, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &Payload{
		V:         tokenVersion,
		SatPub:    satPub,
		HostHint:  hostHint,
		Addr:      addr,
		Nonce:     nonce,
		ExpiresAt: now.Add(ttl).Unix(),
	}, nil
}

// EffectiveMode classifies a Payload into one of the Section 4.2
// discovery strategies. A bouncer token is distinguished from a direct
// Satellite address by the caller knowing which rendezvous service owns
// Addr; this implementation treats any non-empty Addr as a direct
// Satellite-as-server address unless the Payload was marked as a
// bouncer token via WithBouncer.
func (p *Payload) EffectiveMode() Mode {
	switch {
	case p.bouncer:
		return ModeBouncer
	case p.Addr != "":
		return ModeSatelliteServer
	default:
		return ModeHostServer
	}
}

// WithBouncer marks a payload's Addr as a rendezvous address rather
// than the Satellite's own listening address.
func (p *Payload) WithBouncer() *Payload {
	p.bouncer = true
	return p
}

// Encode renders a Payload as the single-line `rp1:<base64url(json)>`
// token string.
func Encode(p *Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return constants.TokenPrefix + base64.URLEncoding.EncodeToString(raw), nil
}

// Decode parses a token string back into a Payload, rejecting unknown
// versions and anything past its ExpiresAt.
func Decode(token string, now time.Time) (*Payload, error) {
	if !strings.HasPrefix(token, constants.TokenPrefix) {
		return nil, ErrBadToken
	}
	raw, err := base64.URLEncoding.DecodeString(strings.TrimPrefix(token, constants.TokenPrefix))
	if err != nil {
		return nil, ErrBadToken
	}
	p := &Payload{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, ErrBadToken
	}
	if p.V != tokenVersion {
		return nil, ErrBadToken
	}
	if len(p.Nonce) == 0 || len(p.SatPub) == 0 {
		return nil, ErrBadToken
	}
	if now.After(time.Unix(p.ExpiresAt, 0)) {
		return nil, ErrExpiredToken
	}
	return p, nil
}
