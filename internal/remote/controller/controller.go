// controller.go - Controller Integration (C6): the single process-wide
// coordinator gluing C1-C5 to the existing chat controller (Section
// 4.6).
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

// Package controller implements the Controller Integration (C6): the
// single process-wide coordinator holding the optional satelliteId and
// Session slots, running every state transition under the same lock
// that serializes writes to the chat store (Section 4.6, Section 5).
package controller

import (
	"errors"
	"sync"
	"time"

	"github.com/katzenpost/core/log"
	"gopkg.in/op/go-logging.v1"

	"github.com/theAkito/simplex-chat/internal/remote/constants"
	"github.com/theAkito/simplex-chat/internal/remote/cryptobox"
	"github.com/theAkito/simplex-chat/internal/remote/pairing"
	"github.com/theAkito/simplex-chat/internal/remote/registry"
	"github.com/theAkito/simplex-chat/internal/remote/session"
)

// ErrHostOnly is returned for operations the Host side performs that
// make no sense on a Satellite controller (there is no local registry
// or chat store to approve pairing against).
var ErrHostOnly = errors.New("controller: host-only operation")

// IdentityStatus mirrors the runtime-only SatelliteIdentity.status
// field (Section 3), one value per pairing wire message observed.
type IdentityStatus string

const (
	IdentityRequested IdentityStatus = "requested"
	IdentityRecorded  IdentityStatus = "recorded"
	IdentityConfirmed IdentityStatus = "confirmed"
	IdentityRejected  IdentityStatus = "rejected"
	IdentityTookOver  IdentityStatus = "tookOver"
	IdentityDisposed  IdentityStatus = "disposed"
)

// SatelliteIdentity is the runtime-only pairing record shared by both
// peers (Section 3).
type SatelliteIdentity struct {
	SatIdentityID int64
	Identity      string
	Status        IdentityStatus
}

// ResponseKind is one of the Section 6 controller-surfaced response
// names, emitted on the chat output queue.
type ResponseKind string

const (
	RespSatRequestIdentity  ResponseKind = "SatRequestIdentity"
	RespSatIdentityRecord   ResponseKind = "SatIdentityRecord"
	RespSatIdentityConfirm  ResponseKind = "SatIdentityConfirmed"
	RespSatIdentityReject   ResponseKind = "SatIdentityRejected"
	RespSatTookOver         ResponseKind = "SatTookOver"
	RespSatIdentityDisposed ResponseKind = "SatIdentityDisposed"
)

// Response is one controller-surfaced notification (Section 6).
type Response struct {
	Kind          ResponseKind
	SatIdentityID int64
	Identity      string
}

// Controller is the process-wide coordinator: exactly one optional
// satelliteId slot and one optional Session slot, both behind mu, the
// same lock a full integration shares with chat-store writes (Section
// 4.6's concurrency contract).
type Controller struct {
	mu sync.Mutex

	role session.Role

	reg      *registry.Registry // non-nil on the Host controller only
	identity *cryptobox.IdentityKeyPair
	addr     string // this peer's own dialable address, for Satellite-as-server tokens
	nonces   *pairing.NonceCache // non-nil on the Host controller only

	satelliteID *int64
	sess        *session.Session
	ephemeral   *cryptobox.EphemeralKeyPair // current pairing attempt's ephemeral, Satellite side

	commandTimeout time.Duration
	emit           func(Response)
	log            *logging.Logger
}

// NewHostController builds the Controller running on the Host (Mobile)
// side, backed by reg for device persistence and nonces for replay
// rejection (Section 4.2).
func NewHostController(reg *registry.Registry, nonces *pairing.NonceCache, identity *cryptobox.IdentityKeyPair, emit func(Response), logBackend *log.Backend) *Controller {
	return &Controller{
		role:           session.RoleHost,
		reg:            reg,
		nonces:         nonces,
		identity:       identity,
		commandTimeout: constants.DefaultCommandTimeout,
		emit:           emit,
		log:            logBackend.GetLogger("controller-host"),
	}
}

// NewSatelliteController builds the Controller running on the
// Satellite (Desktop) side. addr is this peer's own dialable address,
// used for Satellite-as-server tokens; it may be empty to select the
// Host-as-server-after-flip discovery mode.
func NewSatelliteController(identity *cryptobox.IdentityKeyPair, addr string, emit func(Response), logBackend *log.Backend) *Controller {
	return &Controller{
		role:           session.RoleSatellite,
		identity:       identity,
		addr:           addr,
		commandTimeout: constants.DefaultCommandTimeout,
		emit:           emit,
		log:            logBackend.GetLogger("controller-satellite"),
	}
}

// Session returns the controller's current Session slot, or nil if
// unpaired.
func (c *Controller) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// SatelliteID returns the controller's current satelliteId slot and
// whether it is populated.
func (c *Controller) SatelliteID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.satelliteID == nil {
		return 0, false
	}
	return *c.satelliteID, true
}

func (c *Controller) respond(r Response) {
	if c.emit != nil {
		c.emit(r)
	}
}
