// registry_test.go
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "remote_profiles.db")
	r, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRegisterConfirmLookup(t *testing.T) {
	r := openTestRegistry(t)

	devicePub := []byte("satellite-pubkey-1")
	id, err := r.Register("Desktop", devicePub, []byte("local-priv"), []byte("local-pub"))
	require.NoError(t, err)
	require.NotZero(t, id)

	dev, err := r.Lookup(devicePub)
	require.NoError(t, err)
	require.Equal(t, StatusPending, dev.DeviceStatus)

	require.NoError(t, r.Confirm(id))
	dev, err = r.Lookup(devicePub)
	require.NoError(t, err)
	require.Equal(t, StatusActive, dev.DeviceStatus)
}

func TestRegisterDuplicateActiveDeviceRejected(t *testing.T) {
	r := openTestRegistry(t)

	devicePub := []byte("dup-pubkey")
	id, err := r.Register("Desktop", devicePub, []byte("priv"), []byte("pub"))
	require.NoError(t, err)
	require.NoError(t, r.Confirm(id))

	_, err = r.Register("Desktop-2", devicePub, []byte("priv2"), []byte("pub2"))
	require.ErrorIs(t, err, ErrDuplicateDevice)
}

func TestRejectDeletesPendingRow(t *testing.T) {
	r := openTestRegistry(t)

	devicePub := []byte("reject-pubkey")
	id, err := r.Register("Desktop", devicePub, []byte("priv"), []byte("pub"))
	require.NoError(t, err)
	require.NoError(t, r.Reject(id))

	_, err = r.Lookup(devicePub)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeThenRehandshakeFails(t *testing.T) {
	r := openTestRegistry(t)

	devicePub := []byte("revoke-pubkey")
	localPub := []byte("local-pub")
	id, err := r.Register("Desktop", devicePub, []byte("priv"), localPub)
	require.NoError(t, err)
	require.NoError(t, r.Confirm(id))

	_, err = r.LookupActiveBinding(devicePub, localPub)
	require.NoError(t, err)

	require.NoError(t, r.Revoke(id))

	_, err = r.LookupActiveBinding(devicePub, localPub)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmUnknownDeviceIsNotFound(t *testing.T) {
	r := openTestRegistry(t)
	require.ErrorIs(t, r.Confirm(9999), ErrNotFound)
}

func TestMigrateDownDropsUsersColumnsAndTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chat.db")

	r, err := Open(dbPath)
	require.NoError(t, err)
	_, err = r.DB().Exec(`CREATE TABLE users (user_id INTEGER PRIMARY KEY AUTOINCREMENT, display_name TEXT)`)
	require.NoError(t, err)
	r.Close()

	r, err = OpenWithExistingUsersTable(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	res, err := r.DB().Exec(`INSERT INTO users (display_name) VALUES ('alice')`)
	require.NoError(t, err)
	userID, err := res.LastInsertId()
	require.NoError(t, err)

	require.NoError(t, r.MigrateDown())

	cols, err := r.userColumns()
	require.NoError(t, err)
	require.False(t, hasColumn(cols, "remote_device_id"))
	require.False(t, hasColumn(cols, "remote_user_id"))

	var name string
	require.NoError(t, r.DB().QueryRow(`SELECT display_name FROM users WHERE user_id = ?`, userID).Scan(&name))
	require.Equal(t, "alice", name)

	_, err = r.DB().Exec(`SELECT 1 FROM remote_devices`)
	require.Error(t, err)
}

func TestMigrateDownUsersTableIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chat.db")

	r, err := Open(dbPath)
	require.NoError(t, err)
	_, err = r.DB().Exec(`CREATE TABLE users (user_id INTEGER PRIMARY KEY AUTOINCREMENT, display_name TEXT)`)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	require.NoError(t, r.MigrateDownUsersTable())
	require.NoError(t, r.MigrateDownUsersTable())
}

func TestIdempotentRevokeOnAlreadyRevokedDeviceSucceeds(t *testing.T) {
	r := openTestRegistry(t)

	devicePub := []byte("idempotent-pubkey")
	id, err := r.Register("Desktop", devicePub, []byte("priv"), []byte("pub"))
	require.NoError(t, err)
	require.NoError(t, r.Confirm(id))
	require.NoError(t, r.Revoke(id))
	// Revoking an already-revoked row is a no-op success, matching the
	// Section 8 "idempotent dispose" property for the registry side of
	// deregistration.
	require.NoError(t, r.Revoke(id))
}
