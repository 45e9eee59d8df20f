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
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentvfs/internal/kv"
	"agentvfs/internal/storage"
)

func newTestMetadataStore(t *testing.T) *MetadataStore {
	t.Helper()

	store, err := storage.Open(context.Background(), storage.Options{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewMetadataStore(kv.New(store))
}

func TestCheckAccess_NoHookNoMetadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p := New(newTestMetadataStore(t), nil)
	decision, err := p.CheckAccess(ctx, OpRead, "/any/path", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, SourceLocal, decision.Source)
}

func TestCheckAccess_DenyTakesPrecedence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	meta := newTestMetadataStore(t)
	require.NoError(t, meta.Set(ctx, &Metadata{
		AllowedPaths: []string{"/w/**"},
		DeniedPaths:  []string{"/w/.env"},
	}))

	p := New(meta, nil)

	// The path matches both lists; deny wins.
	decision, err := p.CheckAccess(ctx, OpRead, "/w/.env", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, SourceLocal, decision.Source)
	assert.Contains(t, decision.Reason, ".env")

	// A sibling under the allow list passes.
	decision, err = p.CheckAccess(ctx, OpRead, "/w/app.ts", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckAccess_AllowListConstrains(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	meta := newTestMetadataStore(t)
	require.NoError(t, meta.Set(ctx, &Metadata{
		AllowedPaths: []string{"/workspace/**"},
	}))

	p := New(meta, nil)

	decision, err := p.CheckAccess(ctx, OpWrite, "/etc/passwd", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, SourceLocal, decision.Source)

	decision, err = p.CheckAccess(ctx, OpWrite, "/workspace/main.go", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckAccess_EmptyAllowListMeansUnconstrained(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	meta := newTestMetadataStore(t)
	require.NoError(t, meta.Set(ctx, &Metadata{
		DeniedPaths: []string{"/secret/**"},
	}))

	p := New(meta, nil)

	decision, err := p.CheckAccess(ctx, OpRead, "/anything/else", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = p.CheckAccess(ctx, OpRead, "/secret/key", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestCheckAccess_HookDecides(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	meta := newTestMetadataStore(t)
	require.NoError(t, meta.Set(ctx, &Metadata{
		WorkspaceID: "ws-1",
		WorkloadID:  "wl-1",
		TrustClass:  "untrusted",
	}))

	var captured *HookRequest
	hook := HookFunc(func(ctx context.Context, req *HookRequest) (bool, error) {
		captured = req
		return req.Path != "/blocked", nil
	})

	p := New(meta, hook)

	decision, err := p.CheckAccess(ctx, OpWrite, "/blocked", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, SourceCallback, decision.Source)
	assert.Equal(t, "Denied by access hook", decision.Reason)

	// The hook request carries the metadata context.
	require.NotNil(t, captured)
	assert.Equal(t, "ws-1", captured.WorkspaceID)
	assert.Equal(t, "wl-1", captured.WorkloadID)
	assert.Equal(t, "untrusted", captured.TrustClass)

	decision, err = p.CheckAccess(ctx, OpWrite, "/allowed", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, SourceCallback, decision.Source)
}

func TestCheckAccess_HookSkippedOnLocalDeny(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	meta := newTestMetadataStore(t)
	require.NoError(t, meta.Set(ctx, &Metadata{
		DeniedPaths: []string{"/blocked/**"},
	}))

	hookCalled := false
	p := New(meta, HookFunc(func(ctx context.Context, req *HookRequest) (bool, error) {
		hookCalled = true
		return true, nil
	}))

	decision, err := p.CheckAccess(ctx, OpRead, "/blocked/file", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, SourceLocal, decision.Source)
	assert.False(t, hookCalled, "hook must not run after a local deny")
}

func TestCheckAccess_HookError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	hookErr := errors.New("hook transport failure")
	p := New(newTestMetadataStore(t), HookFunc(func(ctx context.Context, req *HookRequest) (bool, error) {
		return false, hookErr
	}))

	_, err := p.CheckAccess(ctx, OpRead, "/x", nil)
	assert.ErrorIs(t, err, hookErr)
}

func TestCheckAccessOrThrow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	meta := newTestMetadataStore(t)
	require.NoError(t, meta.Set(ctx, &Metadata{
		DeniedPaths: []string{"/w/.env"},
	}))

	p := New(meta, nil)

	err := p.CheckAccessOrThrow(ctx, OpRead, "/w/.env", nil)
	var denied *PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "EACCES", denied.Code)
	assert.Equal(t, OpRead, denied.Operation)
	assert.Equal(t, "/w/.env", denied.Path)
	assert.Contains(t, denied.Reason, ".env")

	assert.NoError(t, p.CheckAccessOrThrow(ctx, OpRead, "/w/ok.txt", nil))
}

func TestCheckAccess_CacheInvalidatedBySet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	meta := newTestMetadataStore(t)
	p := New(meta, nil)

	// Prime the cache with "no metadata".
	decision, err := p.CheckAccess(ctx, OpRead, "/w/.env", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// An explicit Set must be visible immediately, not after the TTL.
	require.NoError(t, meta.Set(ctx, &Metadata{DeniedPaths: []string{"/w/.env"}}))

	decision, err = p.CheckAccess(ctx, OpRead, "/w/.env", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// And a Delete restores the permissive default immediately.
	require.NoError(t, meta.Delete(ctx))
	decision, err = p.CheckAccess(ctx, OpRead, "/w/.env", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}
