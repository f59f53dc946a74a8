// bindings_test.go
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theAkito/simplex-chat/internal/remote/registry"
)

// openTestChatDB simulates the chat engine's pre-existing "users" table,
// then layers the remote_profiles migration on top of it the way a real
// host process would.
func openTestChatDB(t *testing.T) *registry.Registry {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "chat.db")

	r, err := registry.Open(dbPath)
	require.NoError(t, err)

	_, err = r.DB().Exec(`CREATE TABLE users (user_id INTEGER PRIMARY KEY AUTOINCREMENT, display_name TEXT)`)
	require.NoError(t, err)
	r.Close()

	r, err = registry.OpenWithExistingUsersTable(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestBindToDeviceAndGet(t *testing.T) {
	r := openTestChatDB(t)
	b := New(r.DB())

	res, err := r.DB().Exec(`INSERT INTO users (display_name) VALUES ('alice')`)
	require.NoError(t, err)
	userID, err := res.LastInsertId()
	require.NoError(t, err)

	deviceID, err := r.Register("Desktop", []byte("sat-pub"), []byte("local-priv"), []byte("local-pub"))
	require.NoError(t, err)

	ub, err := b.Get(userID)
	require.NoError(t, err)
	require.False(t, ub.IsRemote())

	require.NoError(t, b.BindToDevice(userID, deviceID, 42))

	ub, err = b.Get(userID)
	require.NoError(t, err)
	require.True(t, ub.IsRemote())
	require.Equal(t, deviceID, ub.RemoteDeviceID.Int64)
	require.Equal(t, int64(42), ub.RemoteUserID.Int64)

	ids, err := b.ByDevice(deviceID)
	require.NoError(t, err)
	require.Equal(t, []int64{userID}, ids)
}

func TestBindToDeviceUnknownUserFails(t *testing.T) {
	r := openTestChatDB(t)
	b := New(r.DB())

	deviceID, err := r.Register("Desktop", []byte("sat-pub"), []byte("local-priv"), []byte("local-pub"))
	require.NoError(t, err)

	err = b.BindToDevice(9999, deviceID, 1)
	require.ErrorIs(t, err, ErrNoSuchUser)
}

// TestDeleteDeviceCascadesUserRow covers Scenario S6: deleting a
// remote_devices row whose id a users row references removes that users
// row too, via the ON DELETE CASCADE foreign key the migration declares.
func TestDeleteDeviceCascadesUserRow(t *testing.T) {
	r := openTestChatDB(t)
	b := New(r.DB())

	res, err := r.DB().Exec(`INSERT INTO users (display_name) VALUES ('bob')`)
	require.NoError(t, err)
	userID, err := res.LastInsertId()
	require.NoError(t, err)

	deviceID, err := r.Register("Desktop", []byte("sat-pub-2"), []byte("local-priv"), []byte("local-pub"))
	require.NoError(t, err)
	require.NoError(t, b.BindToDevice(userID, deviceID, 7))

	require.NoError(t, r.Delete(deviceID))

	_, err = b.Get(userID)
	require.ErrorIs(t, err, ErrNoSuchUser)
}
