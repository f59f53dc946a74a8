// errors.go - Remote Profile Session error taxonomy.
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

// Package remoteerr defines the Section 7 error kinds shared by every
// Remote Profile Session component, and the single umbrella error type
// surfaced to the chat engine's clients.
package remoteerr

import (
	"errors"
	"fmt"
)

// Kind is one of the Section 7 error kinds. It is not a type hierarchy;
// every Kind wraps into the same SatelliteError envelope at the boundary.
type Kind string

const (
	KindPairingExpired   Kind = "PairingExpired"
	KindPairingReplay    Kind = "PairingReplay"
	KindHandshakeReject  Kind = "HandshakeReject"
	KindAuthFail         Kind = "AuthFail"
	KindReplayDetected   Kind = "ReplayDetected"
	KindFrameTooLarge    Kind = "FrameTooLarge"
	KindDecodeError      Kind = "DecodeError"
	KindDeniedCommand    Kind = "DeniedCommand"
	KindTimeout          Kind = "Timeout"
	KindSessionSuspended Kind = "SessionSuspended"
	KindSessionDisposed  Kind = "SessionDisposed"
	KindDeviceUnknown    Kind = "DeviceUnknown"
	KindDeviceRevoked    Kind = "DeviceRevoked"
	KindChannelBroken    Kind = "ChannelBroken"
)

// SatelliteError is the single umbrella error surfaced to the chat
// engine's clients for this subsystem (Section 6: ChatErrorSatellite),
// distinct from the store/agent/database error families.
type SatelliteError struct {
	Kind  Kind
	Cause error
}

func (e *SatelliteError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("chat error satellite: %s", e.Kind)
	}
	return fmt.Sprintf("chat error satellite: %s: %v", e.Kind, e.Cause)
}

func (e *SatelliteError) Unwrap() error { return e.Cause }

// New wraps cause (which may be nil) into a SatelliteError of the given
// Kind.
func New(kind Kind, cause error) *SatelliteError {
	return &SatelliteError{Kind: kind, Cause: cause}
}

// Is reports whether err is a SatelliteError of the given Kind.
func Is(err error, kind Kind) bool {
	var se *SatelliteError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// FatalForChannel reports whether Section 7 requires a channel carrying
// this error to transition its Session to Suspended (AuthFail,
// ReplayDetected, FrameTooLarge, DecodeError). It returns false for the
// kinds that dispose the session outright (DeviceUnknown, DeviceRevoked);
// FatalForSession covers those.
func (k Kind) FatalForChannel() bool {
	switch k {
	case KindAuthFail, KindReplayDetected, KindFrameTooLarge, KindDecodeError:
		return true
	default:
		return false
	}
}

// FatalForSession reports whether this Kind must dispose the Session
// outright rather than merely suspending the channel.
func (k Kind) FatalForSession() bool {
	switch k {
	case KindDeviceUnknown, KindDeviceRevoked:
		return true
	default:
		return false
	}
}
