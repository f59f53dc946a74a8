// queue.go - bounded queues backing a Suspended session (Section 4.4,
// Section 4.5).
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
	"sync"

	lane "gopkg.in/oleiade/lane.v1"
)

// CommandQueue is the Satellite-side bounded FIFO of UI commands
// accumulated while the session is Suspended (Section 4.5: "bounded
// FIFO, default 64 entries; on reconnect they flush in insertion
// order"). Pushing past capacity drops the oldest queued command and
// returns it, so the caller can fail it (SendCommand fails it with
// SessionSuspended).
type CommandQueue struct {
	mu       sync.Mutex
	q        *lane.Queue
	size     int
	capacity int
}

// NewCommandQueue creates a CommandQueue bounded to capacity entries.
func NewCommandQueue(capacity int) *CommandQueue {
	return &CommandQueue{q: lane.NewQueue(), capacity: capacity}
}

// Push enqueues item, evicting and returning the oldest entry if the
// queue was already at capacity.
func (c *CommandQueue) Push(item interface{}) (evicted interface{}, wasEvicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.size >= c.capacity {
		evicted = c.q.Dequeue()
		wasEvicted = true
		c.size--
	}
	c.q.Enqueue(item)
	c.size++
	return evicted, wasEvicted
}

// Pop removes and returns the oldest entry, or nil if empty.
func (c *CommandQueue) Pop() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.size == 0 {
		return nil
	}
	c.size--
	return c.q.Dequeue()
}

// DrainAll pops every queued entry in insertion order, the flush
// behavior a reconnect triggers.
func (c *CommandQueue) DrainAll() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, 0, c.size)
	for c.size > 0 {
		out = append(out, c.q.Dequeue())
		c.size--
	}
	return out
}

// Len reports the number of queued entries.
func (c *CommandQueue) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// EventBuffer is the Host-side bounded drop-oldest buffer of chat
// engine events accumulated while the Satellite's channel is
// Suspended, so a quick reconnect replays them without gaps beyond
// the capacity (Section 4.4).
type EventBuffer struct {
	mu       sync.Mutex
	items    []interface{}
	capacity int
	dropped  uint64
}

// NewEventBuffer creates an EventBuffer bounded to capacity entries.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{capacity: capacity}
}

// Append records one event, dropping the oldest buffered event if
// already at capacity.
func (b *EventBuffer) Append(item interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.capacity {
		b.items = b.items[1:]
		b.dropped++
	}
	b.items = append(b.items, item)
}

// DrainAll returns every buffered event in original emission order and
// clears the buffer.
func (b *EventBuffer) DrainAll() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// Dropped reports how many events have been evicted over the
// buffer's lifetime for capacity overflow.
func (b *EventBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
