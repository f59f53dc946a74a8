// reconnect_test.go
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffSequenceDoublesAndCaps(t *testing.T) {
	var b Backoff
	require.Equal(t, 1*time.Second, b.Next())
	require.Equal(t, 2*time.Second, b.Next())
	require.Equal(t, 4*time.Second, b.Next())

	b.Reset()
	require.Equal(t, 1*time.Second, b.Next())
}

// TestReconnectSucceedsWithinCeiling covers Scenario S4: a transport
// flaps twice before succeeding, at the 1s/2s backoff delays, and the
// ceiling is never reached.
func TestReconnectSucceedsWithinCeiling(t *testing.T) {
	attempts := 0
	start := time.Now()

	conn, err := Reconnect(context.Background(), 1*time.Minute, func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	})

	require.NoError(t, err)
	require.Equal(t, 42, conn)
	require.Equal(t, 3, attempts)
	require.GreaterOrEqual(t, time.Since(start), 3*time.Second)
}

func TestReconnectGivesUpAfterCeiling(t *testing.T) {
	_, err := Reconnect(context.Background(), 50*time.Millisecond, func(context.Context) (int, error) {
		return 0, errors.New("connection refused")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReconnectHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Reconnect(ctx, 1*time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("connection refused")
	})
	require.ErrorIs(t, err, context.Canceled)
}
