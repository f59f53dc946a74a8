// registry.go - C1 Device Registry.
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

// Package registry persists remote-device identity keys and binds them
// to local user rows (Section 4.1). All writes go through a single
// serialized writer so that the Registry and the Host's own chat UI,
// which share the same SQLite database, never interleave conflicting
// transactions (Section 5, "Shared resources").
package registry

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Status is one of the RemoteDevice lifecycle states (Section 3).
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

var (
	// ErrDuplicateDevice is returned by Register when devicePublicKey
	// already has an active binding (Section 4.1).
	ErrDuplicateDevice = errors.New("registry: device already has an active binding")

	// ErrNotFound is returned by Lookup/Confirm/Reject/Revoke when no
	// matching row exists.
	ErrNotFound = errors.New("registry: remote device not found")
)

// RemoteDevice mirrors the Section 3 RemoteDevice row.
type RemoteDevice struct {
	ID              int64
	DeviceName      string
	DeviceStatus    Status
	DevicePublicKey []byte
	LocalPrivateKey []byte
	LocalPublicKey  []byte
	CreatedAt       string
	UpdatedAt       string
}

// Registry is the C1 Device Registry, backed by the "remote_profiles"
// SQLite migration.
type Registry struct {
	mu sync.Mutex // the single serialized writer (Section 4.1, Section 5)
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// runs the up migration idempotently.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // SQLite + our own mutex: never two writers.

	r := &Registry{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// OpenWithExistingUsersTable is identical to Open, but also applies the
// users-table migration (Section 6). Call sites that own a chat database
// with a pre-existing "users" table use this instead of Open; a fresh
// test database without a "users" table uses Open.
func OpenWithExistingUsersTable(path string) (*Registry, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.Exec(migrationUpUsers); err != nil {
		r.db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) migrate() error {
	_, err := r.db.Exec(migrationUp)
	return err
}

// MigrateDown reverses the "remote_profiles" migration against a
// database opened with OpenWithExistingUsersTable: it drops the two
// added "users" columns first (MigrateDownUsersTable), then the
// remote_devices table and its index, so nothing the dropped columns
// referenced is removed while still referenced (Section 6).
func (r *Registry) MigrateDown() error {
	if err := r.MigrateDownUsersTable(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(migrationDownTable)
	return err
}

// MigrateDownUsersTable reverses migrationUpUsers alone, rebuilding
// "users" without the remote_device_id/remote_user_id columns. Older
// mattn/go-sqlite3 builds have no native "ALTER TABLE ... DROP COLUMN",
// so this drops the index, renames the table aside, recreates it from
// the surviving columns, copies the data across, and drops the
// renamed original. It is idempotent: a users table that was never
// migrated up is left untouched.
func (r *Registry) MigrateDownUsersTable() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cols, err := r.userColumns()
	if err != nil {
		return err
	}
	if !hasColumn(cols, "remote_device_id") && !hasColumn(cols, "remote_user_id") {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migrationDownUsersIndex); err != nil {
		return err
	}

	var defs, names []string
	for _, c := range cols {
		if c.name == "remote_device_id" || c.name == "remote_user_id" {
			continue
		}
		def := c.name + " " + c.ctype
		if c.pk {
			def += " PRIMARY KEY"
		} else if c.notNull {
			def += " NOT NULL"
		}
		if c.dflt.Valid {
			def += " DEFAULT " + c.dflt.String
		}
		defs = append(defs, def)
		names = append(names, c.name)
	}

	if _, err := tx.Exec(`ALTER TABLE users RENAME TO users_remote_profiles_old`); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf(`CREATE TABLE users (%s)`, strings.Join(defs, ", "))); err != nil {
		return err
	}
	colList := strings.Join(names, ", ")
	if _, err := tx.Exec(fmt.Sprintf(
		`INSERT INTO users (%s) SELECT %s FROM users_remote_profiles_old`, colList, colList,
	)); err != nil {
		return err
	}
	if _, err := tx.Exec(`DROP TABLE users_remote_profiles_old`); err != nil {
		return err
	}
	return tx.Commit()
}

// userColumn mirrors one PRAGMA table_info(users) row.
type userColumn struct {
	name    string
	ctype   string
	notNull bool
	dflt    sql.NullString
	pk      bool
}

func (r *Registry) userColumns() ([]userColumn, error) {
	rows, err := r.db.Query(`PRAGMA table_info(users)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []userColumn
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, userColumn{name: name, ctype: ctype, notNull: notNull != 0, dflt: dflt, pk: pk != 0})
	}
	return cols, rows.Err()
}

func hasColumn(cols []userColumn, name string) bool {
	for _, c := range cols {
		if c.name == name {
			return true
		}
	}
	return false
}

// Close releases the underlying database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// DB exposes the shared database handle so that store.Bindings can
// operate on the same connection and single-writer discipline.
func (r *Registry) DB() *sql.DB {
	return r.db
}

// Register creates a row in "pending" status for a Satellite's offered
// long-lived public key, and the Host's fresh local key pair for this
// binding. It fails with ErrDuplicateDevice if devicePublicKey already
// has an active row (Section 4.1).
func (r *Registry) Register(name string, devicePublicKey, localPrivateKey, localPublicKey []byte) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.lookupLocked(devicePublicKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	if err == nil && existing.DeviceStatus == StatusActive {
		return 0, ErrDuplicateDevice
	}

	res, err := r.db.Exec(
		`INSERT INTO remote_devices
			(device_name, device_status, device_public_key, local_private_key, local_public_key)
		 VALUES (?, ?, ?, ?, ?)`,
		name, string(StatusPending), devicePublicKey, localPrivateKey, localPublicKey,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Confirm moves a pending row to active.
func (r *Registry) Confirm(deviceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.db.Exec(
		`UPDATE remote_devices SET device_status = ?, updated_at = datetime('now')
		 WHERE remote_device_id = ? AND device_status = ?`,
		string(StatusActive), deviceID, string(StatusPending),
	)
	return rowsAffectedOrNotFound(res, err)
}

// Reject deletes a pending row outright.
func (r *Registry) Reject(deviceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.db.Exec(
		`DELETE FROM remote_devices WHERE remote_device_id = ? AND device_status = ?`,
		deviceID, string(StatusPending),
	)
	return rowsAffectedOrNotFound(res, err)
}

// Revoke sets a device's status to revoked. The caller (Session State
// Machine / Controller) is responsible for tearing down any open
// transport on the next tick, per Section 4.1.
func (r *Registry) Revoke(deviceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.db.Exec(
		`UPDATE remote_devices SET device_status = ?, updated_at = datetime('now')
		 WHERE remote_device_id = ?`,
		string(StatusRevoked), deviceID,
	)
	return rowsAffectedOrNotFound(res, err)
}

// Lookup finds a RemoteDevice by its Satellite-offered long-lived public
// key, regardless of status.
func (r *Registry) Lookup(devicePublicKey []byte) (*RemoteDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(devicePublicKey)
}

// LookupActiveBinding re-authenticates a reconnecting Satellite: it only
// succeeds if devicePublicKey and localPublicKey together match an
// "active" row (Section 3's uniqueness invariant).
func (r *Registry) LookupActiveBinding(devicePublicKey, localPublicKey []byte) (*RemoteDevice, error) {
	dev, err := r.Lookup(devicePublicKey)
	if err != nil {
		return nil, err
	}
	if dev.DeviceStatus != StatusActive {
		return nil, ErrNotFound
	}
	if subtle.ConstantTimeCompare(dev.LocalPublicKey, localPublicKey) != 1 {
		return nil, ErrNotFound
	}
	return dev, nil
}

func (r *Registry) lookupLocked(devicePublicKey []byte) (*RemoteDevice, error) {
	row := r.db.QueryRow(
		`SELECT remote_device_id, device_name, device_status, device_public_key,
		        local_private_key, local_public_key, created_at, updated_at
		 FROM remote_devices WHERE device_public_key = ?`,
		devicePublicKey,
	)
	dev := &RemoteDevice{}
	var status string
	err := row.Scan(&dev.ID, &dev.DeviceName, &status, &dev.DevicePublicKey,
		&dev.LocalPrivateKey, &dev.LocalPublicKey, &dev.CreatedAt, &dev.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	dev.DeviceStatus = Status(status)
	return dev, nil
}

// ByID returns a RemoteDevice by its primary key.
func (r *Registry) ByID(deviceID int64) (*RemoteDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.db.QueryRow(
		`SELECT remote_device_id, device_name, device_status, device_public_key,
		        local_private_key, local_public_key, created_at, updated_at
		 FROM remote_devices WHERE remote_device_id = ?`,
		deviceID,
	)
	dev := &RemoteDevice{}
	var status string
	err := row.Scan(&dev.ID, &dev.DeviceName, &status, &dev.DevicePublicKey,
		&dev.LocalPrivateKey, &dev.LocalPublicKey, &dev.CreatedAt, &dev.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	dev.DeviceStatus = Status(status)
	return dev, nil
}

// List returns every RemoteDevice row, for operator tooling
// (cmd/remotectl).
func (r *Registry) List() ([]*RemoteDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.db.Query(
		`SELECT remote_device_id, device_name, device_status, device_public_key,
		        local_private_key, local_public_key, created_at, updated_at
		 FROM remote_devices ORDER BY remote_device_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RemoteDevice
	for rows.Next() {
		dev := &RemoteDevice{}
		var status string
		if err := rows.Scan(&dev.ID, &dev.DeviceName, &status, &dev.DevicePublicKey,
			&dev.LocalPrivateKey, &dev.LocalPublicKey, &dev.CreatedAt, &dev.UpdatedAt); err != nil {
			return nil, err
		}
		dev.DeviceStatus = Status(status)
		out = append(out, dev)
	}
	return out, rows.Err()
}

// Delete removes a RemoteDevice row outright, cascading to any bound
// users (Section 3's UserBinding invariant; Scenario S6).
func (r *Registry) Delete(deviceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.db.Exec(`DELETE FROM remote_devices WHERE remote_device_id = ?`, deviceID)
	return rowsAffectedOrNotFound(res, err)
}

func rowsAffectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
