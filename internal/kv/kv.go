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

// Package kv provides the JSON key-value store persisted in kv_store.
package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentvfs/internal/storage"
)

// ErrKeyNotFound is returned by Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// Store provides key-value storage with JSON-encoded values.
type Store struct {
	store *storage.Store
}

// New creates a KV store over an open database.
func New(store *storage.Store) *Store {
	return &Store{store: store}
}

// Entry describes a stored key with its timestamps.
type Entry struct {
	Key       string
	CreatedAt int64
	UpdatedAt int64
}

// Set stores a value (JSON-serialized) for the given key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.store.Bun().NewInsert().
		Model(&storage.KVModel{Key: key, Value: string(jsonValue), CreatedAt: now, UpdatedAt: now}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Get retrieves a value and unmarshals it into dest.
func (s *Store) Get(ctx context.Context, key string, dest any) error {
	raw, err := s.GetRaw(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

// GetRaw retrieves the raw JSON value for a key.
func (s *Store) GetRaw(ctx context.Context, key string) (json.RawMessage, error) {
	var model storage.KVModel
	err := s.store.Bun().NewSelect().
		Model(&model).
		Where("key = ?", key).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return json.RawMessage(model.Value), nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.store.Bun().NewDelete().
		Model((*storage.KVModel)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Has checks whether a key exists.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	count, err := s.store.Bun().NewSelect().
		Model((*storage.KVModel)(nil)).
		Where("key = ?", key).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return count > 0, nil
}

// Keys returns all keys sorted ascending, optionally filtered by prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	q := s.store.Bun().NewSelect().
		Model((*storage.KVModel)(nil)).
		Column("key").
		Order("key ASC")
	if prefix != "" {
		q = q.Where("key LIKE ? ESCAPE '\\'", escapePattern(prefix)+"%")
	}
	var keys []string
	if err := q.Scan(ctx, &keys); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// List returns key entries with metadata, optionally filtered by prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]Entry, error) {
	q := s.store.Bun().NewSelect().
		Model((*storage.KVModel)(nil)).
		Column("key", "created_at", "updated_at").
		Order("key ASC")
	if prefix != "" {
		q = q.Where("key LIKE ? ESCAPE '\\'", escapePattern(prefix)+"%")
	}
	var models []storage.KVModel
	if err := q.Scan(ctx, &models); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	entries := make([]Entry, 0, len(models))
	for _, m := range models {
		entries = append(entries, Entry{Key: m.Key, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt})
	}
	return entries, nil
}

// Clear removes all keys, optionally filtered by prefix.
func (s *Store) Clear(ctx context.Context, prefix string) error {
	q := s.store.Bun().NewDelete().
		Model((*storage.KVModel)(nil))
	if prefix != "" {
		q = q.Where("key LIKE ? ESCAPE '\\'", escapePattern(prefix)+"%")
	} else {
		q = q.Where("1 = 1")
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear keys: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a missing-key error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// escapePattern escapes special characters for LIKE pattern matching
func escapePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// Get retrieves a value with type safety using generics.
func Get[T any](ctx context.Context, s *Store, key string) (T, error) {
	var result T
	err := s.Get(ctx, key, &result)
	return result, err
}

// GetOr retrieves a value, returning the default when the key is absent.
func GetOr[T any](ctx context.Context, s *Store, key string, defaultValue T) (T, error) {
	result, err := Get[T](ctx, s, key)
	if err != nil {
		if IsNotFound(err) {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	return result, nil
}
