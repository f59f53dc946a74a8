// scheduler_test.go
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/katzenpost/core/log"
	"github.com/stretchr/testify/require"
)

func TestPrioritySchedulerFiresInDeadlineOrder(t *testing.T) {
	logBackend, err := log.New("", "DEBUG", false)
	require.NoError(t, err)

	var mu sync.Mutex
	var fired []string
	var wg sync.WaitGroup
	wg.Add(3)

	handler := func(payload interface{}) {
		defer wg.Done()
		mu.Lock()
		fired = append(fired, payload.(string))
		mu.Unlock()
	}

	s := New(handler, logBackend, "test")
	s.Add(60*time.Millisecond, "third")
	s.Add(10*time.Millisecond, "first")
	s.Add(30*time.Millisecond, "second")

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second", "third"}, fired)
}

func TestPrioritySchedulerShutdownDoesNotPanic(t *testing.T) {
	logBackend, err := log.New("", "DEBUG", false)
	require.NoError(t, err)

	s := New(func(interface{}) {}, logBackend, "test")
	s.Add(time.Hour, "never fires")
	s.Shutdown()
}
