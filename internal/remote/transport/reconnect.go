// reconnect.go - exponential backoff reconnect loop (Section 4.3).
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
	"context"
	"time"

	"github.com/theAkito/simplex-chat/internal/remote/constants"
)

// Backoff computes the Section 4.3 reconnect delay sequence: 1s, 2s,
// 4s, ... capped at 30s.
type Backoff struct {
	attempt int
}

// Next returns the delay for the next reconnect attempt and advances
// the sequence.
func (b *Backoff) Next() time.Duration {
	delay := constants.ReconnectInitialBackoff << uint(b.attempt)
	if delay > constants.ReconnectMaxBackoff || delay <= 0 {
		delay = constants.ReconnectMaxBackoff
	} else {
		b.attempt++
	}
	return delay
}

// Reset returns the sequence to its initial state, called after a
// successful reconnect.
func (b *Backoff) Reset() { b.attempt = 0 }

// Reconnect repeatedly calls dial until it succeeds, ctx is cancelled,
// or ceiling elapses since the first attempt. It returns the dialed
// net.Conn-shaped value produced by dial, or the ctx/ceiling error.
func Reconnect[T any](ctx context.Context, ceiling time.Duration, dial func(context.Context) (T, error)) (T, error) {
	var zero T
	deadline := time.Now().Add(ceiling)
	var b Backoff

	for {
		conn, err := dial(ctx)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return zero, context.DeadlineExceeded
		}

		delay := b.Next()
		if remaining := time.Until(deadline); remaining < delay {
			delay = remaining
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
