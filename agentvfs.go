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

// Package agentvfs provides a per-agent virtual filesystem with
// key-value and tool-call stores, persisted in a single embedded
// database file. Open composes the sub-stores over one connection.
package agentvfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"agentvfs/internal/fs"
	"agentvfs/internal/kv"
	"agentvfs/internal/policy"
	"agentvfs/internal/protect"
	"agentvfs/internal/storage"
	"agentvfs/internal/tools"
)

// Options configures how an AgentVFS database is opened.
type Options struct {
	// ID is the agent identifier. If provided without Path, the database
	// is stored at ~/.agentvfs/{id}.db. Must match ^[a-zA-Z0-9_-]+$.
	ID string

	// Path is an explicit database file path. Takes precedence over ID.
	Path string

	// ChunkSize is the content chunk size in bytes, installed when the
	// database is first created (default 4096). Ignored for existing
	// databases.
	ChunkSize int

	// ExclusiveLock takes a file lock for the lifetime of the instance.
	ExclusiveLock bool

	// Hook is an optional access-control hook consulted by the
	// protected filesystem.
	Hook policy.Hook
}

// AgentVFS is the main entry point providing access to the filesystem,
// key-value store and tool-call log sharing one database.
type AgentVFS struct {
	store *storage.Store

	// FS is the raw, unchecked filesystem surface.
	FS *fs.Filesystem

	// Protected interposes the access policy on every FS operation.
	Protected *protect.FS

	// Policy evaluates access requests against the stored metadata.
	Policy *policy.AccessPolicy

	// Metadata persists the sandbox policy record.
	Metadata *policy.MetadataStore

	// KV provides key-value store operations.
	KV *kv.Store

	// Tools provides tool call tracking.
	Tools *tools.Log
}

// validIDPattern matches valid agent IDs (alphanumeric, hyphens, underscores)
var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Open creates or opens an AgentVFS database.
func Open(ctx context.Context, opts Options) (*AgentVFS, error) {
	dbPath, err := resolveDBPath(opts)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, storage.Options{
		Path:          dbPath,
		ChunkSize:     opts.ChunkSize,
		ExclusiveLock: opts.ExclusiveLock,
	})
	if err != nil {
		return nil, err
	}

	filesystem := fs.New(store)
	kvStore := kv.New(store)
	metadata := policy.NewMetadataStore(kvStore)
	accessPolicy := policy.New(metadata, opts.Hook)

	return &AgentVFS{
		store:     store,
		FS:        filesystem,
		Protected: protect.New(filesystem, accessPolicy),
		Policy:    accessPolicy,
		Metadata:  metadata,
		KV:        kvStore,
		Tools:     tools.New(store),
	}, nil
}

// Close closes the underlying database.
func (a *AgentVFS) Close() error {
	return a.store.Close()
}

// Path returns the database file path.
func (a *AgentVFS) Path() string {
	return a.store.Path()
}

// Store returns the underlying store shared by the sub-stores.
func (a *AgentVFS) Store() *storage.Store {
	return a.store
}

// resolveDBPath determines the database location from the options.
func resolveDBPath(opts Options) (string, error) {
	if opts.Path != "" {
		return opts.Path, nil
	}
	if opts.ID == "" {
		return "", fmt.Errorf("either Path or ID must be provided")
	}
	if !validIDPattern.MatchString(opts.ID) {
		return "", fmt.Errorf("invalid agent ID %q: must match [a-zA-Z0-9_-]+", opts.ID)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".agentvfs", opts.ID+".db"), nil
}
