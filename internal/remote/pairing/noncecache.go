// noncecache.go - sliding-window replay protection for pairing nonces.
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

package pairing

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/katzenpost/core/worker"

	"github.com/theAkito/simplex-chat/internal/remote/constants"
)

// NonceCache records consumed pairing-token nonces for the Section 4.2
// replay window (Section 8, Property 1: "a second handshake using t
// within 24h fails with PairingReplay"). A background worker sweeps
// expired entries so the map does not grow without bound across a
// long-lived Host process.
type NonceCache struct {
	worker.Worker

	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
}

// NewNonceCache creates a NonceCache with the given replay window and
// starts its sweep worker.
func NewNonceCache(window time.Duration) *NonceCache {
	if window <= 0 {
		window = constants.PairingReplayWindow
	}
	c := &NonceCache{
		seen:   make(map[string]time.Time),
		window: window,
	}
	c.Go(c.sweep)
	return c
}

// CheckAndRecord returns true (and records the nonce) iff this nonce has
// not been seen within the replay window. A false return means the
// caller must reject the handshake with PairingReplay.
func (c *NonceCache) CheckAndRecord(nonce []byte, now time.Time) bool {
	key := hex.EncodeToString(nonce)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seenAt, ok := c.seen[key]; ok && now.Sub(seenAt) < c.window {
		return false
	}
	c.seen[key] = now
	return true
}

func (c *NonceCache) sweep() {
	interval := c.window / 4
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.HaltCh():
			return
		case now := <-ticker.C:
			c.evictBefore(now)
		}
	}
}

func (c *NonceCache) evictBefore(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, seenAt := range c.seen {
		if now.Sub(seenAt) >= c.window {
			delete(c.seen, key)
		}
	}
}
