// constants.go - Remote Profile Session constants.
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

// Package constants contains the shared tuning constants for the Remote
// Profile Session subsystem.
package constants

import "time"

const (
	// DefaultMaxFrameSize is the maximum length of a single framed record,
	// in bytes. Configurable; must not be set below MinFrameSize.
	DefaultMaxFrameSize = 1 << 20 // 1 MiB

	// MinFrameSize is the smallest MaxFrameSize a deployment may configure,
	// so that file-descriptor-carrying payloads still fit.
	MinFrameSize = 256 << 10 // 256 KiB

	// FrameLengthPrefixSize is the width, in bytes, of the big-endian
	// length prefix on the wire.
	FrameLengthPrefixSize = 4

	// KeepaliveInterval is how often an idle peer emits a ping frame.
	KeepaliveInterval = 20 * time.Second

	// KeepaliveMissedLimit is the number of consecutive missed keepalive
	// intervals before a channel is considered broken.
	KeepaliveMissedLimit = 3

	// ReconnectInitialBackoff is the first retry delay after a broken
	// channel.
	ReconnectInitialBackoff = 1 * time.Second

	// ReconnectMaxBackoff caps the exponential reconnect backoff.
	ReconnectMaxBackoff = 30 * time.Second

	// ReconnectCeiling is how long a Session may remain Suspended before
	// it is disposed.
	ReconnectCeiling = 10 * time.Minute

	// PairingTokenTTL is the wall-clock deadline for completing a
	// handshake after a token is generated.
	PairingTokenTTL = 10 * time.Minute

	// PairingReplayWindow is the sliding window during which a consumed
	// pairing nonce is rejected as a replay.
	PairingReplayWindow = 24 * time.Hour

	// DefaultCommandTimeout is the default per-command reply timeout on
	// the Satellite side.
	DefaultCommandTimeout = 30 * time.Second

	// SatelliteCommandQueueDepth is the default bound on the Satellite's
	// outgoing command queue while Suspended.
	SatelliteCommandQueueDepth = 64

	// HostEventBufferDepth is the default bound on the Host's
	// drop-oldest event replay buffer while a Session is Suspended.
	HostEventBufferDepth = 256

	// TokenPrefix is the versioned scheme prefix for OOB pairing tokens.
	TokenPrefix = "rp1:"

	// DatabaseConnectTimeout bounds how long registry operations wait to
	// acquire the local SQLite writer.
	DatabaseConnectTimeout = 3 * time.Second
)
