// scheduler.go - priority queue backed scheduler used to fire pending
// command timeouts (session.PendingTable).
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

// Package scheduler provides a priority-queue-backed deferred task
// runner: Add(duration, task) fires taskHandler(task) once duration has
// elapsed, without spawning one goroutine per pending timer.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/katzenpost/core/log"
	"github.com/katzenpost/core/monotime"
	"github.com/katzenpost/core/queue"
	"gopkg.in/op/go-logging.v1"
)

// PriorityScheduler runs taskHandler once per scheduled task, in
// deadline order, using a single timer rather than one per task.
type PriorityScheduler struct {
	sync.RWMutex

	queue       *queue.PriorityQueue
	taskHandler func(interface{})
	timer       *time.Timer
	log         *logging.Logger
}

// New creates a PriorityScheduler that invokes taskHandler for each
// task once its deadline elapses.
func New(taskHandler func(interface{}), logBackend *log.Backend, name string) *PriorityScheduler {
	return &PriorityScheduler{
		queue:       queue.New(),
		taskHandler: taskHandler,
		log:         logBackend.GetLogger(fmt.Sprintf("scheduler-%s", name)),
	}
}

func (s *PriorityScheduler) pop() *queue.Entry {
	s.Lock()
	defer s.Unlock()
	return s.queue.Pop()
}

func (s *PriorityScheduler) run() {
	entry := s.pop()
	if entry == nil {
		return
	}
	s.taskHandler(entry.Value)
	s.scheduleNext()
}

func (s *PriorityScheduler) peek() *queue.Entry {
	s.RLock()
	defer s.RUnlock()
	return s.queue.Peek()
}

// scheduleNext arms the timer for the next-to-fire entry, if any.
func (s *PriorityScheduler) scheduleNext() {
	entry := s.peek()
	if entry == nil {
		return
	}
	now := monotime.Now()
	if time.Duration(entry.Priority) <= now {
		go s.run()
		return
	}
	s.Lock()
	defer s.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(time.Duration(entry.Priority)-now, s.run)
}

func (s *PriorityScheduler) enqueue(priority uint64, task interface{}) {
	s.Lock()
	defer s.Unlock()
	s.queue.Enqueue(priority, task)
}

// Add schedules task to run after duration elapses.
func (s *PriorityScheduler) Add(duration time.Duration, task interface{}) {
	now := monotime.Now()
	priority := now + duration
	s.enqueue(uint64(priority), task)
	s.scheduleNext()
}

// Shutdown stops the pending timer, if any, without running its task.
func (s *PriorityScheduler) Shutdown() {
	s.Lock()
	defer s.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}
