// Copyright 2024 agentvfs Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const SchemaVersion = "1"

// DefaultChunkSize is the chunk size installed into fs_config on first
// open. The effective value is read back from the database and must not
// change for the lifetime of the file.
const DefaultChunkSize = 4096

// Default busy_timeout in milliseconds (30 seconds)
const DefaultBusyTimeout = 30000

// EnvBusyTimeout overrides the SQLite busy_timeout for all connections.
const EnvBusyTimeout = "AGENTVFS_BUSY_TIMEOUT"

// GetBusyTimeout returns the busy_timeout value, env-overridable.
func GetBusyTimeout() int {
	if val := os.Getenv(EnvBusyTimeout); val != "" {
		if timeout, err := strconv.Atoi(val); err == nil && timeout > 0 {
			return timeout
		}
	}
	return DefaultBusyTimeout
}

// BuildDSN builds the SQLite DSN for a database path.
func BuildDSN(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d", path, GetBusyTimeout())
}

// File mode constants (POSIX)
const (
	ModeDir     = 0040000 // Directory
	ModeFile    = 0100000 // Regular file
	ModeSymlink = 0120000 // Symbolic link
	ModeMask    = 0170000 // Type mask
)

// Default permissions
const (
	DefaultDirMode  = ModeDir | 0755  // rwxr-xr-x
	DefaultFileMode = ModeFile | 0644 // rw-r--r--
)

// Root inode number
const RootIno = 1

// Schema SQL. Table and column names are a persistence contract shared
// with other language clients; do not rename.
const databaseSchema = `
CREATE TABLE IF NOT EXISTS fs_config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fs_inode (
    ino INTEGER PRIMARY KEY AUTOINCREMENT,
    mode INTEGER NOT NULL,
    nlink INTEGER NOT NULL DEFAULT 0,
    uid INTEGER NOT NULL DEFAULT 0,
    gid INTEGER NOT NULL DEFAULT 0,
    size INTEGER NOT NULL DEFAULT 0,
    atime INTEGER NOT NULL,
    mtime INTEGER NOT NULL,
    ctime INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fs_dentry (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    parent_ino INTEGER NOT NULL,
    ino INTEGER NOT NULL,
    UNIQUE (parent_ino, name)
);

CREATE INDEX IF NOT EXISTS idx_fs_dentry_parent ON fs_dentry(parent_ino, name);

CREATE TABLE IF NOT EXISTS fs_data (
    ino INTEGER NOT NULL,
    chunk_index INTEGER NOT NULL,
    data BLOB NOT NULL,
    PRIMARY KEY (ino, chunk_index)
);

CREATE TABLE IF NOT EXISTS fs_symlink (
    ino INTEGER PRIMARY KEY,
    target TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kv_store (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    created_at INTEGER DEFAULT (unixepoch()),
    updated_at INTEGER DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_kv_store_created_at ON kv_store(created_at);

CREATE TABLE IF NOT EXISTS tool_calls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    parameters TEXT,
    result TEXT,
    error TEXT,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'success', 'error')),
    started_at INTEGER NOT NULL,
    completed_at INTEGER,
    duration_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_tool_calls_name ON tool_calls(name);
CREATE INDEX IF NOT EXISTS idx_tool_calls_started_at ON tool_calls(started_at);
`

// Bootstrap statements, executed individually on every open. All use
// INSERT OR IGNORE so reopening an existing database is a no-op.
const (
	initSchemaVersion = `
		INSERT OR IGNORE INTO fs_config (key, value) VALUES ('schema_version', ?)`

	initChunkSize = `
		INSERT OR IGNORE INTO fs_config (key, value) VALUES ('chunk_size', ?)`

	// Root directory inode: ino=1, mode=0040755.
	initRootInode = `
		INSERT OR IGNORE INTO fs_inode (ino, mode, nlink, uid, gid, size, atime, mtime, ctime)
		VALUES (1, ?, 1, 0, 0, 0, unixepoch(), unixepoch(), unixepoch())`
)

// schemaStatements parses databaseSchema into its individual DDL
// statements. The script carries no string literal containing ";", so a
// plain split is sufficient; comment-only lines are dropped.
func schemaStatements() []string {
	var statements []string
	for _, chunk := range strings.Split(databaseSchema, ";") {
		var kept []string
		for _, line := range strings.Split(chunk, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			kept = append(kept, line)
		}
		if stmt := strings.TrimSpace(strings.Join(kept, "\n")); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// applySchema creates the tables and indexes. The libsql driver rejects
// multi-statement Exec calls, so each statement runs on its own.
func applySchema(db *sql.DB) error {
	for _, stmt := range schemaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
