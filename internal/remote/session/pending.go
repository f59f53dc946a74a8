// pending.go - Satellite-side correlation id bookkeeping for in-flight
// commands (Section 4.5, Section 5 "Cancellation & timeouts").
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

package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/katzenpost/core/log"

	"github.com/theAkito/simplex-chat/internal/remote/scheduler"
)

// CommandResult is delivered exactly once per pending command, either
// carrying the matched reply or a timeout error, satisfying Section 8
// Property 4 ("never both, never neither").
type CommandResult struct {
	Resp json.RawMessage
	Err  error
}

// ErrCommandTimeout is the Err value a CommandResult carries when no
// reply arrived within the command family's timeout.
type ErrCommandTimeout struct {
	CorrID uint64
}

func (e *ErrCommandTimeout) Error() string {
	return fmt.Sprintf("session: command %d timed out", e.CorrID)
}

type pendingEntry struct {
	ch chan CommandResult
}

// PendingTable tracks in-flight Satellite commands keyed by
// correlation id, delivering exactly one CommandResult per entry
// either from a matched reply or from the timeout scheduler.
type PendingTable struct {
	mu    sync.Mutex
	table map[uint64]*pendingEntry
	sched *scheduler.PriorityScheduler
}

// NewPendingTable creates a PendingTable; logBackend/name only label
// the timeout scheduler's logger.
func NewPendingTable(logBackend *log.Backend, name string) *PendingTable {
	p := &PendingTable{table: make(map[uint64]*pendingEntry)}
	p.sched = scheduler.New(p.onTimeout, logBackend, name)
	return p
}

// Register opens a pending slot for corrID and arms its timeout,
// returning the channel that receives the eventual CommandResult.
func (p *PendingTable) Register(corrID uint64, timeout time.Duration) <-chan CommandResult {
	entry := &pendingEntry{ch: make(chan CommandResult, 1)}

	p.mu.Lock()
	p.table[corrID] = entry
	p.mu.Unlock()

	p.sched.Add(timeout, corrID)
	return entry.ch
}

// Resolve delivers resp to the pending entry for corrID, if one is
// still outstanding. A reply that arrives after the timeout already
// fired is an orphan: Resolve reports false, and the caller logs and
// drops it.
func (p *PendingTable) Resolve(corrID uint64, resp json.RawMessage) bool {
	p.mu.Lock()
	entry, ok := p.table[corrID]
	if ok {
		delete(p.table, corrID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	entry.ch <- CommandResult{Resp: resp}
	close(entry.ch)
	return true
}

// Fail delivers err to the pending entry for corrID, if one is still
// outstanding, used when a queued-but-not-yet-sent command is evicted
// or its session disposed out from under it.
func (p *PendingTable) Fail(corrID uint64, err error) bool {
	p.mu.Lock()
	entry, ok := p.table[corrID]
	if ok {
		delete(p.table, corrID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	entry.ch <- CommandResult{Err: err}
	close(entry.ch)
	return true
}

// CancelAll resolves every outstanding entry with err, used when the
// owning session is disposed while commands are still in flight.
func (p *PendingTable) CancelAll(err error) {
	p.mu.Lock()
	rest := p.table
	p.table = make(map[uint64]*pendingEntry)
	p.mu.Unlock()

	for _, entry := range rest {
		entry.ch <- CommandResult{Err: err}
		close(entry.ch)
	}
}

// Shutdown stops the timeout scheduler without resolving outstanding
// entries; callers should CancelAll first if that is desired.
func (p *PendingTable) Shutdown() {
	p.sched.Shutdown()
}

func (p *PendingTable) onTimeout(payload interface{}) {
	corrID, ok := payload.(uint64)
	if !ok {
		return
	}
	p.mu.Lock()
	entry, ok := p.table[corrID]
	if ok {
		delete(p.table, corrID)
	}
	p.mu.Unlock()
	if !ok {
		// Already resolved by a reply; the timeout fired too late to
		// matter.
		return
	}
	entry.ch <- CommandResult{Err: &ErrCommandTimeout{CorrID: corrID}}
	close(entry.ch)
}
