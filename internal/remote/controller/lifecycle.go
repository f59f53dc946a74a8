// lifecycle.go - takeover / resume / dispose / deregister (Section 4.6,
// Section 4.4, Scenario S3, Scenario S5).
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
	"errors"

	"github.com/theAkito/simplex-chat/internal/remote/session"
)

// ErrNoActiveSession is returned by Takeover and Resume when the
// controller's Session slot is empty.
var ErrNoActiveSession = errors.New("controller: no active session")

// Takeover is the Host UI reclaiming the foreground: the channel stays
// up, but the Satellite must stop issuing commands and the Host stops
// relaying events, i.e. the Session moves to Suspended (Scenario S3).
func (c *Controller) Takeover() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNoActiveSession
	}
	satID, _ := c.currentSatIDLocked()
	if err := c.sess.Transition(session.EventTakeover); err != nil {
		return err
	}
	c.respond(Response{Kind: RespSatTookOver, SatIdentityID: satID})
	return nil
}

// Resume returns a Suspended session to Active and flushes whatever
// queued commands or buffered events accumulated in the interim
// (Scenario S3's "queued Satellite command ... now executes").
func (c *Controller) Resume() error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return ErrNoActiveSession
	}
	if err := sess.Transition(session.EventReconnect); err != nil {
		return err
	}
	if err := sess.FlushBufferedEvents(); err != nil {
		return err
	}
	return sess.FlushQueuedCommands()
}

// Dispose tears down the channel and moves the Session to Disposed
// without touching the RemoteDevice row's status (Section 4.4:
// "device row is kept only if status remains active"). Calling Dispose
// twice is a no-op success, per Section 8 Property 6.
func (c *Controller) Dispose(satIdentityID int64) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	if err := sess.Dispose(); err != nil {
		return err
	}
	c.respond(Response{Kind: RespSatIdentityDisposed, SatIdentityID: satIdentityID})
	return nil
}

// Deregister disposes the session and additionally revokes the
// RemoteDevice row (Scenario S5), so LookupActiveBinding no longer
// matches it. Neither Deregister nor the transport handshake rejects a
// later handshake from that Satellite with DeviceRevoked; nothing in
// this module produces that error kind.
func (c *Controller) Deregister(satIdentityID int64) error {
	c.mu.Lock()
	if c.reg == nil {
		c.mu.Unlock()
		return ErrHostOnly
	}
	c.mu.Unlock()

	if err := c.Dispose(satIdentityID); err != nil {
		return err
	}
	return c.reg.Revoke(satIdentityID)
}

// currentSatIDLocked returns the controller's satelliteId slot; mu
// must already be held.
func (c *Controller) currentSatIDLocked() (int64, bool) {
	if c.satelliteID == nil {
		return 0, false
	}
	return *c.satelliteID, true
}
