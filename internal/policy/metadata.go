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

package policy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agentvfs/internal/cache"
	"agentvfs/internal/kv"
)

// KV key layout. The composite record is authoritative for reads; the
// individual field keys exist so other clients can read one field
// without decoding the whole record. Writers must keep both in sync.
const (
	KeyPrefix    = "ooss:"
	metadataKey  = KeyPrefix + "metadata"
	metadataTTL  = 5 * time.Second
	customPrefix = KeyPrefix + "custom:"
)

// Metadata is the sandbox policy record consulted on every access check.
type Metadata struct {
	WorkspaceID  string         `json:"workspaceId,omitempty"`
	WorkloadID   string         `json:"workloadId,omitempty"`
	SandboxID    string         `json:"sandboxId,omitempty"`
	TrustClass   string         `json:"trustClass,omitempty"`
	AllowedPaths []string       `json:"allowedPaths,omitempty"`
	DeniedPaths  []string       `json:"deniedPaths,omitempty"`
	CreatedAt    int64          `json:"createdAt,omitempty"`
	UpdatedAt    int64          `json:"updatedAt,omitempty"`
	Custom       map[string]any `json:"custom,omitempty"`
}

// MetadataStore persists policy metadata in the KV store, maintaining
// the composite record and its shadow fields together, and serves reads
// through a TTL cache.
type MetadataStore struct {
	kv    *kv.Store
	cache *cache.TTL[*Metadata]
}

// NewMetadataStore creates a metadata store over the KV store.
func NewMetadataStore(kvStore *kv.Store) *MetadataStore {
	return &MetadataStore{
		kv:    kvStore,
		cache: cache.NewTTL[*Metadata](metadataTTL),
	}
}

// Get reads the composite metadata record. Returns (nil, nil) when no
// metadata has been stored.
func (m *MetadataStore) Get(ctx context.Context) (*Metadata, error) {
	var md Metadata
	if err := m.kv.Get(ctx, metadataKey, &md); err != nil {
		if kv.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &md, nil
}

// GetCached reads metadata through the TTL cache. Explicit Set, Update
// and Delete invalidate the cache, so their effects are visible
// immediately; out-of-band writers are picked up after the TTL.
func (m *MetadataStore) GetCached(ctx context.Context) (*Metadata, error) {
	if md, ok := m.cache.Get(); ok {
		return md, nil
	}
	md, err := m.Get(ctx)
	if err != nil {
		return nil, err
	}
	m.cache.Set(md)
	return md, nil
}

// Set stores the metadata record, stamping timestamps and assigning a
// sandbox id when missing, then writes the shadow fields.
func (m *MetadataStore) Set(ctx context.Context, md *Metadata) error {
	now := time.Now().Unix()
	if md.SandboxID == "" {
		md.SandboxID = uuid.NewString()
	}
	if md.CreatedAt == 0 {
		md.CreatedAt = now
	}
	md.UpdatedAt = now

	if err := m.kv.Set(ctx, metadataKey, md); err != nil {
		return err
	}
	if err := m.writeShadowFields(ctx, md); err != nil {
		return err
	}
	m.cache.Invalidate()
	return nil
}

// Update merges non-zero fields of patch into the stored metadata.
// Absent metadata is treated as an empty record.
func (m *MetadataStore) Update(ctx context.Context, patch *Metadata) error {
	current, err := m.Get(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		current = &Metadata{}
	}

	if patch.WorkspaceID != "" {
		current.WorkspaceID = patch.WorkspaceID
	}
	if patch.WorkloadID != "" {
		current.WorkloadID = patch.WorkloadID
	}
	if patch.SandboxID != "" {
		current.SandboxID = patch.SandboxID
	}
	if patch.TrustClass != "" {
		current.TrustClass = patch.TrustClass
	}
	if patch.AllowedPaths != nil {
		current.AllowedPaths = patch.AllowedPaths
	}
	if patch.DeniedPaths != nil {
		current.DeniedPaths = patch.DeniedPaths
	}
	if patch.Custom != nil {
		if current.Custom == nil {
			current.Custom = make(map[string]any, len(patch.Custom))
		}
		for k, v := range patch.Custom {
			current.Custom[k] = v
		}
	}

	return m.Set(ctx, current)
}

// Delete removes the composite record and every shadow field.
func (m *MetadataStore) Delete(ctx context.Context) error {
	if err := m.kv.Clear(ctx, KeyPrefix); err != nil {
		return err
	}
	m.cache.Invalidate()
	return nil
}

// InvalidateCache drops the cached record; the next read goes to the
// store.
func (m *MetadataStore) InvalidateCache() {
	m.cache.Invalidate()
}

// writeShadowFields mirrors the composite record into per-field keys.
func (m *MetadataStore) writeShadowFields(ctx context.Context, md *Metadata) error {
	fields := map[string]any{
		KeyPrefix + "workspaceId":  md.WorkspaceID,
		KeyPrefix + "workloadId":   md.WorkloadID,
		KeyPrefix + "sandboxId":    md.SandboxID,
		KeyPrefix + "trustClass":   md.TrustClass,
		KeyPrefix + "allowedPaths": md.AllowedPaths,
		KeyPrefix + "deniedPaths":  md.DeniedPaths,
		KeyPrefix + "createdAt":    md.CreatedAt,
		KeyPrefix + "updatedAt":    md.UpdatedAt,
	}
	for key, value := range fields {
		if err := m.kv.Set(ctx, key, value); err != nil {
			return err
		}
	}
	for name, value := range md.Custom {
		if err := m.kv.Set(ctx, customPrefix+name, value); err != nil {
			return err
		}
	}
	return nil
}
