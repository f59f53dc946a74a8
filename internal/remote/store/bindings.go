// bindings.go - UserBinding operations over the "users" table extension.
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

// Package store operates on the remote_device_id/remote_user_id columns
// that the "remote_profiles" migration adds to the chat engine's
// existing "users" table (Section 3's UserBinding, Section 6). The
// "users" table itself, and everything else about it, is the chat
// engine's concern; this package only ever touches the two added
// columns.
package store

import (
	"database/sql"
	"errors"
)

// ErrNoSuchUser is returned when a user row does not exist.
var ErrNoSuchUser = errors.New("store: no such user row")

// Bindings reads and writes the UserBinding half of the Section 3 data
// model. It shares the same *sql.DB (and therefore the same underlying
// single-writer discipline) as the Device Registry and the chat store.
type Bindings struct {
	db *sql.DB
}

// New wraps an existing database handle. It does not own migration: the
// Registry that shares this handle runs OpenWithExistingUsersTable.
func New(db *sql.DB) *Bindings {
	return &Bindings{db: db}
}

// UserBinding mirrors the Section 3 UserBinding fields for one user row.
type UserBinding struct {
	UserID         int64
	RemoteDeviceID sql.NullInt64
	RemoteUserID   sql.NullInt64
}

// Get returns the binding state of a single local user row.
func (b *Bindings) Get(userID int64) (*UserBinding, error) {
	row := b.db.QueryRow(
		`SELECT user_id, remote_device_id, remote_user_id FROM users WHERE user_id = ?`,
		userID,
	)
	ub := &UserBinding{}
	if err := row.Scan(&ub.UserID, &ub.RemoteDeviceID, &ub.RemoteUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSuchUser
		}
		return nil, err
	}
	return ub, nil
}

// BindToDevice attaches a local (or newly-announced) user row to a
// RemoteDevice binding, recording the Satellite's own integer handle
// for that user.
func (b *Bindings) BindToDevice(userID, remoteDeviceID, remoteUserID int64) error {
	res, err := b.db.Exec(
		`UPDATE users SET remote_device_id = ?, remote_user_id = ? WHERE user_id = ?`,
		remoteDeviceID, remoteUserID, userID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoSuchUser
	}
	return nil
}

// ByDevice lists every local user ID bound to a given RemoteDevice, used
// to find what Section 3's "orphaned" lifecycle applies to once a device
// row is removed without a cascading delete (e.g. revocation, which
// keeps the device row but tears down the channel).
func (b *Bindings) ByDevice(remoteDeviceID int64) ([]int64, error) {
	rows, err := b.db.Query(`SELECT user_id FROM users WHERE remote_device_id = ?`, remoteDeviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsRemote reports whether a user row was born from a Satellite
// announcement rather than purely locally (Section 3's Lifecycle note).
func (ub *UserBinding) IsRemote() bool {
	return ub.RemoteDeviceID.Valid
}
