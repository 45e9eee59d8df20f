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

// Package protect wraps the filesystem with access-policy enforcement:
// every entry point consults the policy before delegating, and open
// handles re-check write permission per call.
package protect

import (
	"context"

	"agentvfs/internal/fs"
	"agentvfs/internal/policy"
	"agentvfs/internal/storage"
)

// FS is the policy-enforcing filesystem wrapper. It exposes the same
// surface as fs.Filesystem; denied operations fail with
// *policy.PermissionDeniedError before any delegation.
type FS struct {
	inner  *fs.Filesystem
	policy *policy.AccessPolicy
}

// New wraps a filesystem with an access policy.
func New(inner *fs.Filesystem, accessPolicy *policy.AccessPolicy) *FS {
	return &FS{inner: inner, policy: accessPolicy}
}

// Unprotected returns the wrapped filesystem, bypassing all checks.
// Access hooks that need filesystem state must use this handle; calling
// back into the protected surface from a hook recurses without bound.
func (p *FS) Unprotected() *fs.Filesystem {
	return p.inner
}

// Policy returns the access policy consulted by this wrapper.
func (p *FS) Policy() *policy.AccessPolicy {
	return p.policy
}

func (p *FS) check(ctx context.Context, op policy.Operation, path string) error {
	return p.policy.CheckAccessOrThrow(ctx, op, path, nil)
}

// Stat maps to the "stat" operation.
func (p *FS) Stat(ctx context.Context, path string) (*storage.Inode, error) {
	if err := p.check(ctx, policy.OpStat, path); err != nil {
		return nil, err
	}
	return p.inner.Stat(ctx, path)
}

// Lstat maps to the "stat" operation.
func (p *FS) Lstat(ctx context.Context, path string) (*storage.Inode, error) {
	if err := p.check(ctx, policy.OpStat, path); err != nil {
		return nil, err
	}
	return p.inner.Lstat(ctx, path)
}

// Access maps to the "stat" operation.
func (p *FS) Access(ctx context.Context, path string) error {
	if err := p.check(ctx, policy.OpStat, path); err != nil {
		return err
	}
	return p.inner.Access(ctx, path)
}

// ReadFile maps to the "read" operation.
func (p *FS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := p.check(ctx, policy.OpRead, path); err != nil {
		return nil, err
	}
	return p.inner.ReadFile(ctx, path)
}

// WriteFile maps to the "write" operation.
func (p *FS) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := p.check(ctx, policy.OpWrite, path); err != nil {
		return err
	}
	return p.inner.WriteFile(ctx, path, data)
}

// Readdir maps to the "readdir" operation.
func (p *FS) Readdir(ctx context.Context, path string) ([]string, error) {
	if err := p.check(ctx, policy.OpReaddir, path); err != nil {
		return nil, err
	}
	return p.inner.Readdir(ctx, path)
}

// ReaddirPlus maps to the "readdir" operation.
func (p *FS) ReaddirPlus(ctx context.Context, path string) ([]storage.DirEntry, error) {
	if err := p.check(ctx, policy.OpReaddir, path); err != nil {
		return nil, err
	}
	return p.inner.ReaddirPlus(ctx, path)
}

// Mkdir maps to the "mkdir" operation.
func (p *FS) Mkdir(ctx context.Context, path string) error {
	if err := p.check(ctx, policy.OpMkdir, path); err != nil {
		return err
	}
	return p.inner.Mkdir(ctx, path)
}

// Rmdir maps to the "delete" operation.
func (p *FS) Rmdir(ctx context.Context, path string) error {
	if err := p.check(ctx, policy.OpDelete, path); err != nil {
		return err
	}
	return p.inner.Rmdir(ctx, path)
}

// Unlink maps to the "delete" operation.
func (p *FS) Unlink(ctx context.Context, path string) error {
	if err := p.check(ctx, policy.OpDelete, path); err != nil {
		return err
	}
	return p.inner.Unlink(ctx, path)
}

// Remove maps to the "delete" operation.
func (p *FS) Remove(ctx context.Context, path string, opts *fs.RemoveOptions) error {
	if err := p.check(ctx, policy.OpDelete, path); err != nil {
		return err
	}
	return p.inner.Remove(ctx, path, opts)
}

// Rename checks "rename" on both paths and additionally "write" on the
// destination.
func (p *FS) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := p.check(ctx, policy.OpRename, oldPath); err != nil {
		return err
	}
	if err := p.check(ctx, policy.OpRename, newPath); err != nil {
		return err
	}
	if err := p.check(ctx, policy.OpWrite, newPath); err != nil {
		return err
	}
	return p.inner.Rename(ctx, oldPath, newPath)
}

// CopyFile checks "read" on the source and "write" on the destination.
func (p *FS) CopyFile(ctx context.Context, srcPath, destPath string) error {
	if err := p.check(ctx, policy.OpRead, srcPath); err != nil {
		return err
	}
	if err := p.check(ctx, policy.OpWrite, destPath); err != nil {
		return err
	}
	return p.inner.CopyFile(ctx, srcPath, destPath)
}

// Symlink maps to the "symlink" operation on the link path.
func (p *FS) Symlink(ctx context.Context, target, linkPath string) error {
	if err := p.check(ctx, policy.OpSymlink, linkPath); err != nil {
		return err
	}
	return p.inner.Symlink(ctx, target, linkPath)
}

// Readlink maps to the "read" operation.
func (p *FS) Readlink(ctx context.Context, path string) (string, error) {
	if err := p.check(ctx, policy.OpRead, path); err != nil {
		return "", err
	}
	return p.inner.Readlink(ctx, path)
}

// Statfs is globally allowed: there is no per-path concept to check.
func (p *FS) Statfs(ctx context.Context) (*fs.FilesystemStats, error) {
	return p.inner.Statfs(ctx)
}

// Open verifies read permission once, then returns a guarded handle.
func (p *FS) Open(ctx context.Context, path string) (*Handle, error) {
	if err := p.check(ctx, policy.OpRead, path); err != nil {
		return nil, err
	}
	h, err := p.inner.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Handle{inner: h, fs: p}, nil
}

// Handle guards an open file. Reads ride on the open-time check; writes
// and truncates re-check "write" on the original path at call time, so
// a policy update lands on handles that are already open.
type Handle struct {
	inner *fs.Handle
	fs    *FS
}

// Path returns the path the handle was opened for.
func (h *Handle) Path() string {
	return h.inner.Path()
}

// Pread inherits the open-time read check.
func (h *Handle) Pread(ctx context.Context, offset int64, size int) ([]byte, error) {
	return h.inner.Pread(ctx, offset, size)
}

// Pwrite re-checks write permission before delegating.
func (h *Handle) Pwrite(ctx context.Context, data []byte, offset int64) (int, error) {
	if err := h.fs.check(ctx, policy.OpWrite, h.inner.Path()); err != nil {
		return 0, err
	}
	return h.inner.Pwrite(ctx, data, offset)
}

// Truncate re-checks write permission before delegating.
func (h *Handle) Truncate(ctx context.Context, size int64) error {
	if err := h.fs.check(ctx, policy.OpWrite, h.inner.Path()); err != nil {
		return err
	}
	return h.inner.Truncate(ctx, size)
}

// Fstat inherits the open-time check.
func (h *Handle) Fstat(ctx context.Context) (*storage.Inode, error) {
	return h.inner.Fstat(ctx)
}

// Fsync delegates; there is nothing to check.
func (h *Handle) Fsync(ctx context.Context) error {
	return h.inner.Fsync(ctx)
}

// Close releases the handle.
func (h *Handle) Close() error {
	return h.inner.Close()
}
