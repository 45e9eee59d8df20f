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
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"
	"github.com/uptrace/bun"
)

// Options configures how a Store is opened.
type Options struct {
	// Path is the database file location. The parent directory is
	// created if missing.
	Path string

	// ChunkSize is installed into fs_config when the database is first
	// created. Ignored for existing databases; the persisted value wins.
	ChunkSize int

	// ExclusiveLock takes a flock on <path>.lock for the lifetime of the
	// store. The schema assumes a single logical writer per connection;
	// the lock enforces that across processes.
	ExclusiveLock bool
}

// Store owns the embedded database: connection, schema bootstrap, and
// the cached chunk_size. All higher layers (filesystem, KV, tool log)
// share one Store.
type Store struct {
	path      string
	db        *sql.DB
	bunDB     *BunDB
	chunkSize int
	fileLock  *flock.Flock
}

// configureConnection issues the session PRAGMAs. Two libsql quirks
// shape this: DSN _pragma parameters are ignored, so everything is sent
// as a statement after connect; and PRAGMA statements return result
// rows, so each goes through Query and has its rows drained.
//
// busy_timeout leads the list: converting the journal to WAL needs
// exclusive file access, and with the timeout in place that conversion
// waits out a concurrent holder instead of failing on the lock.
func configureConnection(db *sql.DB) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", GetBusyTimeout()),
		"PRAGMA journal_mode=WAL",   // concurrent readers during writes
		"PRAGMA synchronous=NORMAL", // no per-commit fsync; WAL keeps crashes safe
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		rows, err := db.Query(pragma)
		if err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
		rows.Close()
	}
	return nil
}

// retryOnBusy retries fn while SQLite reports a locked database. The
// only writer contention at open time is a sibling process running the
// same bootstrap or checkpointing its WAL, both of which clear quickly.
func retryOnBusy(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return err != nil && strings.Contains(err.Error(), "database is locked")
		}),
		retry.Context(ctx),
	)
}

// Open creates or opens an agentvfs database. The schema is bootstrapped
// idempotently: tables and indexes are created if missing, the
// chunk_size config entry is installed on first open, and the root
// inode (ino=1) is ensured.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	var fileLock *flock.Flock
	if opts.ExclusiveLock {
		fileLock = flock.New(opts.Path + ".lock")
		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to lock database: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("database is locked by another process: %s", opts.Path)
		}
	}

	db, err := sql.Open("libsql", BuildDSN(opts.Path))
	if err != nil {
		if fileLock != nil {
			fileLock.Unlock()
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := configureConnection(db); err != nil {
		db.Close()
		if fileLock != nil {
			fileLock.Unlock()
		}
		return nil, err
	}

	// Bootstrap schema, config defaults and the root inode.
	err = retryOnBusy(ctx, func() error {
		if err := applySchema(db); err != nil {
			return err
		}
		if _, err := db.Exec(initSchemaVersion, SchemaVersion); err != nil {
			return err
		}
		if _, err := db.Exec(initChunkSize, strconv.Itoa(opts.ChunkSize)); err != nil {
			return err
		}
		_, err := db.Exec(initRootInode, int64(DefaultDirMode))
		return err
	})
	if err != nil {
		db.Close()
		if fileLock != nil {
			fileLock.Unlock()
		}
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	s := &Store{
		path:     opts.Path,
		db:       db,
		bunDB:    NewBunDB(db),
		fileLock: fileLock,
	}

	// chunk_size is read once and cached; it never changes after bootstrap.
	chunkStr, err := s.bunDB.GetConfigValue(ctx, "chunk_size")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to read chunk_size: %w", err)
	}
	s.chunkSize, err = strconv.Atoi(chunkStr)
	if err != nil || s.chunkSize <= 0 {
		s.Close()
		return nil, fmt.Errorf("invalid chunk_size config: %q", chunkStr)
	}

	log.WithFields(log.Fields{"path": opts.Path, "chunk_size": s.chunkSize}).Debug("store opened")
	return s, nil
}

// Close checkpoints the WAL and closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	// TRUNCATE mode: checkpoint and then truncate the WAL file.
	// PRAGMA wal_checkpoint returns rows, so Query not Exec.
	rows, err := s.db.Query("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		log.WithError(err).Warn("WAL checkpoint failed")
	} else {
		rows.Close()
	}

	err = s.db.Close()
	s.db = nil

	if s.fileLock != nil {
		s.fileLock.Unlock()
		os.Remove(s.fileLock.Path())
		s.fileLock = nil
	}
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Bun returns the Bun database wrapper.
func (s *Store) Bun() *BunDB {
	return s.bunDB
}

// ChunkSize returns the chunk size read from fs_config at open.
func (s *Store) ChunkSize() int {
	return s.chunkSize
}

// RunInTx wraps fn in a single database transaction. All *With query
// methods called inside fn share the transaction; any error rolls back.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return s.bunDB.RunInTx(ctx, nil, fn)
}
