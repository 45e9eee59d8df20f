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

package fs

import (
	"context"
	"errors"

	"agentvfs/internal/common"
	"agentvfs/internal/storage"
)

// The resolver walks dentries from the root to a target inode. It is
// strictly lexical: no "."/".." interpretation and no symlink
// dereference. It is also the only place that produces ENOENT for
// missing intermediate components.

// resolve returns the inode number for a normalized path.
func (fs *Filesystem) resolve(ctx context.Context, syscall, path string) (int64, error) {
	parts := common.SplitPath(path)
	currentIno := int64(storage.RootIno)
	for _, part := range parts {
		dentry, err := fs.store.Bun().GetDentry(ctx, currentIno, part)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return 0, common.ErrNoent(syscall, path)
			}
			return 0, err
		}
		currentIno = dentry.Ino
	}
	return currentIno, nil
}

// resolveParent resolves the parent directory of a path and returns the
// parent inode number together with the would-be child name. The path
// must not be the root.
func (fs *Filesystem) resolveParent(ctx context.Context, syscall, path string) (int64, string, error) {
	parentIno, err := fs.resolve(ctx, syscall, common.ParentPath(path))
	if err != nil {
		return 0, "", err
	}
	return parentIno, common.BaseName(path), nil
}

// resolveInode resolves a path and loads its inode row.
func (fs *Filesystem) resolveInode(ctx context.Context, syscall, path string) (*storage.Inode, error) {
	ino, err := fs.resolve(ctx, syscall, path)
	if err != nil {
		return nil, err
	}
	return fs.inode(ctx, syscall, path, ino)
}

// inode loads an inode row, mapping a missing row to ENOENT.
func (fs *Filesystem) inode(ctx context.Context, syscall, path string, ino int64) (*storage.Inode, error) {
	model, err := fs.store.Bun().GetInode(ctx, ino)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, common.ErrNoent(syscall, path)
		}
		return nil, err
	}
	return model.ToInode(), nil
}

// lookup finds a child dentry, mapping a missing row to ENOENT for path.
func (fs *Filesystem) lookup(ctx context.Context, syscall, path string, parentIno int64, name string) (int64, error) {
	dentry, err := fs.store.Bun().GetDentry(ctx, parentIno, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, common.ErrNoent(syscall, path)
		}
		return 0, err
	}
	return dentry.Ino, nil
}
