// migrations.go - "remote_profiles" schema migration (Section 6).
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

package registry

// migrationUp creates the "remote_profiles" remote_devices table of
// Section 6, guarded by IF NOT EXISTS, plus a unique index on the
// (device_public_key, local_public_key) binding. The users-table
// columns are added separately by migrationUpUsers.
const migrationUp = `
CREATE TABLE IF NOT EXISTS remote_devices (
  remote_device_id INTEGER PRIMARY KEY AUTOINCREMENT,
  device_name        TEXT NOT NULL,
  device_status      TEXT NOT NULL,
  device_public_key  BLOB NOT NULL,
  local_private_key  BLOB NOT NULL,
  local_public_key   BLOB NOT NULL,
  created_at         TEXT NOT NULL DEFAULT(datetime('now')),
  updated_at         TEXT NOT NULL DEFAULT(datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_remote_devices_binding
  ON remote_devices(device_public_key, local_public_key);
`

// migrationUpUsers is applied to an existing "users" table the first
// time the migration runs. The chat store owns the "users" table itself
// (Section 1's "out of scope" boundary); this subsystem only ever adds
// these two columns and their index to it.
const migrationUpUsers = `
ALTER TABLE users ADD COLUMN remote_device_id INTEGER
    REFERENCES remote_devices ON DELETE CASCADE;
ALTER TABLE users ADD COLUMN remote_user_id INTEGER;
CREATE INDEX IF NOT EXISTS idx_users_remote_device_id ON users(remote_device_id);
`

// migrationDownUsersIndex and migrationDownTable are the down
// migration's statements. They run in dependency order around the
// column removal that MigrateDownUsersTable does by table rebuild (since
// SQLite has no native DROP COLUMN before 3.35): index, columns, then
// the remote_devices table itself.
const migrationDownUsersIndex = `DROP INDEX IF EXISTS idx_users_remote_device_id;`

const migrationDownTable = `DROP TABLE IF EXISTS remote_devices;`

// userColumns and hasColumn are implemented in registry.go, backing
// MigrateDownUsersTable's table-rebuild, since mattn/go-sqlite3 builds
// vary in their support for "ALTER TABLE ... DROP COLUMN".
