// pairing_flow.go - beginPairing / acceptPairingAnswer / confirmPairing
// / rejectPairing (Section 4.6, Section 4.2, Section 4.4).
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

package controller

import (
	"fmt"
	"time"

	"github.com/katzenpost/core/log"

	"github.com/theAkito/simplex-chat/internal/remote/constants"
	"github.com/theAkito/simplex-chat/internal/remote/cryptobox"
	"github.com/theAkito/simplex-chat/internal/remote/pairing"
	"github.com/theAkito/simplex-chat/internal/remote/remoteerr"
	"github.com/theAkito/simplex-chat/internal/remote/session"
)

// BeginPairing generates a fresh OOB pairing token naming this
// controller's long-lived identity, and opens a Session in the Pairing
// phase waiting for the handshake to complete (Section 4.2). Typically called on the
// Satellite, which is the peer that displays the token.
func (c *Controller) BeginPairing(logBackend *log.Backend) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ephemeral, err := cryptobox.GenerateEphemeral()
	if err != nil {
		return "", err
	}
	c.ephemeral = ephemeral

	payload, err := pairing.NewPayload(c.identity.Public, "", c.addr, constants.PairingTokenTTL, time.Now())
	if err != nil {
		return "", err
	}
	token, err := pairing.Encode(payload)
	if err != nil {
		return "", err
	}

	c.sess = session.New(c.role, 0, logBackend, c.commandTimeout, nil)
	if err := c.sess.Transition(session.EventRequestIdentity); err != nil {
		return "", err
	}
	return token, nil
}

// AcceptPairingAnswer consumes the peer's half of the handshake and
// returns the resulting satIdentityId.
//
// On the Host, answer is the OOB token text carried in the inbound
// SatRequestIdentity frame (Scenario S1: `identity:"AAAA…"`); it is
// decoded, checked against the nonce-replay cache, and used to
// register a new RemoteDevice row. On the Satellite, answer is the
// Host's SatIdentityRecord identity string, recorded purely for local
// UI bookkeeping — the Satellite does not own a registry.
func (c *Controller) AcceptPairingAnswer(answer string, logBackend *log.Backend) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.role == session.RoleSatellite {
		if c.sess == nil {
			return 0, fmt.Errorf("controller: no pairing in progress")
		}
		id := int64(0)
		c.satelliteID = &id
		c.respond(Response{Kind: RespSatIdentityRecord, SatIdentityID: id, Identity: answer})
		return id, nil
	}

	if c.reg == nil {
		return 0, ErrHostOnly
	}

	payload, err := pairing.Decode(answer, time.Now())
	if err != nil {
		if err == pairing.ErrExpiredToken {
			return 0, remoteerr.New(remoteerr.KindPairingExpired, err)
		}
		return 0, remoteerr.New(remoteerr.KindHandshakeReject, err)
	}
	if c.nonces != nil && !c.nonces.CheckAndRecord(payload.Nonce, time.Now()) {
		return 0, remoteerr.New(remoteerr.KindPairingReplay, nil)
	}

	hostIdentity, err := cryptobox.GenerateIdentity()
	if err != nil {
		return 0, err
	}
	deviceID, err := c.reg.Register("satellite", payload.SatPub, hostIdentity.Private, hostIdentity.Public)
	if err != nil {
		return 0, remoteerr.New(remoteerr.KindHandshakeReject, err)
	}

	c.satelliteID = &deviceID
	c.sess = session.New(session.RoleHost, deviceID, logBackend, c.commandTimeout, nil)
	if err := c.sess.Transition(session.EventRequestIdentity); err != nil {
		return 0, err
	}
	if err := c.sess.Transition(session.EventIdentityRecord); err != nil {
		return 0, err
	}

	c.respond(Response{Kind: RespSatRequestIdentity, Identity: answer})
	c.respond(Response{Kind: RespSatIdentityRecord, SatIdentityID: deviceID, Identity: answer})
	return deviceID, nil
}

// ConfirmPairing approves a pending pairing (Host UI decision; Scenario
// S1). It moves the RemoteDevice row to active and the Session to
// Active.
func (c *Controller) ConfirmPairing(satIdentityID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reg == nil {
		return ErrHostOnly
	}
	if err := c.reg.Confirm(satIdentityID); err != nil {
		return err
	}
	if c.sess != nil {
		if err := c.sess.Transition(session.EventIdentityConfirm); err != nil {
			return err
		}
	}
	c.respond(Response{Kind: RespSatIdentityConfirm, SatIdentityID: satIdentityID})
	return nil
}

// RejectPairing declines a pending pairing (Host UI decision). It
// deletes the pending RemoteDevice row and returns the Session to
// Idle.
func (c *Controller) RejectPairing(satIdentityID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reg == nil {
		return ErrHostOnly
	}
	if err := c.reg.Reject(satIdentityID); err != nil {
		return err
	}
	if c.sess != nil {
		if err := c.sess.Transition(session.EventIdentityReject); err != nil {
			return err
		}
	}
	c.satelliteID = nil
	c.respond(Response{Kind: RespSatIdentityReject, SatIdentityID: satIdentityID})
	return nil
}
