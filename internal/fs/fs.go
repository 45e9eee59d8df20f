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

// Package fs implements the POSIX-like surface of the agent filesystem:
// inodes, directory entries, chunked file content and symlinks, all
// persisted in the embedded database owned by internal/storage.
package fs

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"agentvfs/internal/common"
	"agentvfs/internal/storage"
)

// Virtual capacity reported by Statfs. The store imposes no quota; the
// numbers exist so statfs callers (e.g. a mount bridge) see sane totals.
const (
	statfsTotalBytes  = int64(1) << 40
	statfsTotalInodes = int64(1) << 20
)

// Filesystem provides POSIX-like file operations backed by the store.
type Filesystem struct {
	store *storage.Store
}

// New creates a Filesystem on top of an open store.
func New(store *storage.Store) *Filesystem {
	return &Filesystem{store: store}
}

// Store returns the underlying store.
func (fs *Filesystem) Store() *storage.Store {
	return fs.store
}

// ChunkSize returns the configured content chunk size.
func (fs *Filesystem) ChunkSize() int {
	return fs.store.ChunkSize()
}

// Stat returns inode metadata for the given path. Fails ENOENT if the
// path does not resolve.
func (fs *Filesystem) Stat(ctx context.Context, path string) (*storage.Inode, error) {
	path = common.NormalizePath(path)
	return fs.resolveInode(ctx, "stat", path)
}

// Lstat returns inode metadata without following a trailing symlink.
// Resolution is lexical, so Lstat and Stat currently agree.
func (fs *Filesystem) Lstat(ctx context.Context, path string) (*storage.Inode, error) {
	path = common.NormalizePath(path)
	return fs.resolveInode(ctx, "lstat", path)
}

// Access checks that the path exists (F_OK semantics only).
func (fs *Filesystem) Access(ctx context.Context, path string) error {
	path = common.NormalizePath(path)
	_, err := fs.resolve(ctx, "access", path)
	return err
}

// ReadFile reads the entire contents of a regular file and updates its
// access time.
func (fs *Filesystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	path = common.NormalizePath(path)

	ino, err := fs.resolve(ctx, "read", path)
	if err != nil {
		return nil, err
	}
	inode, err := fs.inode(ctx, "read", path, ino)
	if err != nil {
		return nil, err
	}
	if err := ensureReadable(inode, "read", path); err != nil {
		return nil, err
	}

	chunks, err := fs.store.Bun().ReadChunks(ctx, ino)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, inode.Size)
	for _, chunk := range chunks {
		data = append(data, chunk.Data...)
	}

	if err := fs.store.Bun().TouchAtime(ctx, ino, time.Now().Unix()); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteFile replaces the contents of a file, creating it (and any
// missing parent directories) when absent.
func (fs *Filesystem) WriteFile(ctx context.Context, path string, data []byte) error {
	path = common.NormalizePath(path)
	if path == "/" {
		return common.ErrIsDir("write", path)
	}

	parentPath := common.ParentPath(path)
	if err := fs.mkdirAll(ctx, "write", parentPath); err != nil {
		return err
	}
	parentIno, err := fs.resolve(ctx, "write", parentPath)
	if err != nil {
		return err
	}
	name := common.BaseName(path)
	now := time.Now().Unix()

	existingIno, err := fs.lookup(ctx, "write", path, parentIno, name)
	if err == nil {
		inode, err := fs.inode(ctx, "write", path, existingIno)
		if err != nil {
			return err
		}
		if err := ensureReadable(inode, "write", path); err != nil {
			return err
		}
		if err := fs.store.Bun().DeleteChunks(ctx, existingIno); err != nil {
			return err
		}
		if err := fs.writeChunks(ctx, existingIno, data); err != nil {
			return err
		}
		return fs.store.Bun().UpdateInodeSize(ctx, existingIno, int64(len(data)), now)
	}
	if !common.IsNotExist(err) {
		return err
	}

	ino, err := fs.store.Bun().InsertInode(ctx, int64(storage.DefaultFileMode), 0, 0, int64(len(data)))
	if err != nil {
		return err
	}
	if err := fs.store.Bun().InsertDentry(ctx, parentIno, name, ino); err != nil {
		return err
	}
	if err := fs.store.Bun().IncrementNlink(ctx, ino); err != nil {
		return err
	}
	return fs.writeChunks(ctx, ino, data)
}

// Readdir returns the names of entries in a directory, sorted ascending.
func (fs *Filesystem) Readdir(ctx context.Context, path string) ([]string, error) {
	path = common.NormalizePath(path)

	ino, err := fs.resolve(ctx, "readdir", path)
	if err != nil {
		return nil, err
	}
	inode, err := fs.inode(ctx, "readdir", path, ino)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(inode, "readdir", path); err != nil {
		return nil, err
	}

	return fs.store.Bun().ListNames(ctx, ino)
}

// ReaddirPlus returns directory entries together with their inode
// attributes, sorted by name ascending.
func (fs *Filesystem) ReaddirPlus(ctx context.Context, path string) ([]storage.DirEntry, error) {
	path = common.NormalizePath(path)

	ino, err := fs.resolve(ctx, "readdir", path)
	if err != nil {
		return nil, err
	}
	inode, err := fs.inode(ctx, "readdir", path, ino)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(inode, "readdir", path); err != nil {
		return nil, err
	}

	return fs.store.Bun().ListDirEntries(ctx, ino)
}

// Mkdir creates a single directory. Parents must already exist.
func (fs *Filesystem) Mkdir(ctx context.Context, path string) error {
	path = common.NormalizePath(path)
	if path == "/" {
		return common.ErrExist("mkdir", path)
	}

	parentIno, name, err := fs.resolveParent(ctx, "mkdir", path)
	if err != nil {
		return err
	}
	parent, err := fs.inode(ctx, "mkdir", common.ParentPath(path), parentIno)
	if err != nil {
		return err
	}
	if err := ensureDir(parent, "mkdir", common.ParentPath(path)); err != nil {
		return err
	}

	if _, err := fs.lookup(ctx, "mkdir", path, parentIno, name); err == nil {
		return common.ErrExist("mkdir", path)
	} else if !common.IsNotExist(err) {
		return err
	}

	ino, err := fs.store.Bun().InsertInode(ctx, int64(storage.DefaultDirMode), 0, 0, 0)
	if err != nil {
		return err
	}
	if err := fs.store.Bun().InsertDentry(ctx, parentIno, name, ino); err != nil {
		return err
	}
	return fs.store.Bun().IncrementNlink(ctx, ino)
}

// mkdirAll creates a directory and all missing parents with the default
// directory mode. Existing non-directory components fail ENOTDIR.
func (fs *Filesystem) mkdirAll(ctx context.Context, syscall, path string) error {
	path = common.NormalizePath(path)
	if path == "/" {
		return nil
	}

	currentIno := int64(storage.RootIno)
	currentPath := ""
	for _, part := range common.SplitPath(path) {
		currentPath += "/" + part
		childIno, err := fs.lookup(ctx, syscall, currentPath, currentIno, part)
		if err == nil {
			child, err := fs.inode(ctx, syscall, currentPath, childIno)
			if err != nil {
				return err
			}
			if err := ensureDir(child, syscall, currentPath); err != nil {
				return err
			}
			currentIno = childIno
			continue
		}
		if !common.IsNotExist(err) {
			return err
		}

		ino, err := fs.store.Bun().InsertInode(ctx, int64(storage.DefaultDirMode), 0, 0, 0)
		if err != nil {
			return err
		}
		if err := fs.store.Bun().InsertDentry(ctx, currentIno, part, ino); err != nil {
			return err
		}
		if err := fs.store.Bun().IncrementNlink(ctx, ino); err != nil {
			return err
		}
		currentIno = ino
	}
	return nil
}

// Rmdir removes an empty directory.
func (fs *Filesystem) Rmdir(ctx context.Context, path string) error {
	path = common.NormalizePath(path)
	if err := ensureNotRoot("rmdir", path); err != nil {
		return err
	}

	parentIno, name, err := fs.resolveParent(ctx, "rmdir", path)
	if err != nil {
		return err
	}
	ino, err := fs.lookup(ctx, "rmdir", path, parentIno, name)
	if err != nil {
		return err
	}
	inode, err := fs.inode(ctx, "rmdir", path, ino)
	if err != nil {
		return err
	}
	if err := ensureDir(inode, "rmdir", path); err != nil {
		return err
	}

	count, err := fs.store.Bun().CountChildren(ctx, ino)
	if err != nil {
		return err
	}
	if count > 0 {
		return common.ErrNotEmpty("rmdir", path)
	}

	if err := fs.store.Bun().DeleteDentry(ctx, parentIno, name); err != nil {
		return err
	}
	if err := fs.store.Bun().DecrementNlink(ctx, ino); err != nil {
		return err
	}
	return fs.removeInodeIfOrphan(ctx, ino)
}

// Unlink removes a file (or symlink) entry. Directories fail EISDIR.
func (fs *Filesystem) Unlink(ctx context.Context, path string) error {
	path = common.NormalizePath(path)
	if err := ensureNotRoot("unlink", path); err != nil {
		return err
	}

	parentIno, name, err := fs.resolveParent(ctx, "unlink", path)
	if err != nil {
		return err
	}
	ino, err := fs.lookup(ctx, "unlink", path, parentIno, name)
	if err != nil {
		return err
	}
	inode, err := fs.inode(ctx, "unlink", path, ino)
	if err != nil {
		return err
	}
	if inode.IsDir() {
		return common.ErrIsDir("unlink", path)
	}

	if err := fs.store.Bun().DeleteDentry(ctx, parentIno, name); err != nil {
		return err
	}
	if err := fs.store.Bun().DecrementNlink(ctx, ino); err != nil {
		return err
	}
	return fs.removeInodeIfOrphan(ctx, ino)
}

// removeInodeIfOrphan deletes the inode row, its content chunks and its
// symlink row once no dentry references it.
func (fs *Filesystem) removeInodeIfOrphan(ctx context.Context, ino int64) error {
	model, err := fs.store.Bun().GetInode(ctx, ino)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if model.Nlink > 0 {
		return nil
	}
	if err := fs.store.Bun().DeleteChunks(ctx, ino); err != nil {
		return err
	}
	if err := fs.store.Bun().DeleteSymlink(ctx, ino); err != nil {
		return err
	}
	return fs.store.Bun().DeleteInode(ctx, ino)
}

// removeFrame is a work item for the iterative Remove walk.
type removeFrame struct {
	path     string
	expanded bool
}

// Remove is the unified rm: files directly, directories only with
// Recursive, missing paths silenced by Force. Symlinks encountered
// anywhere in the walk are refused.
func (fs *Filesystem) Remove(ctx context.Context, path string, opts *RemoveOptions) error {
	path = common.NormalizePath(path)
	o := normalizeRemoveOptions(opts)

	if err := ensureNotRoot("rm", path); err != nil {
		return err
	}

	inode, err := fs.resolveInode(ctx, "rm", path)
	if err != nil {
		if common.IsNotExist(err) && o.Force {
			return nil
		}
		return err
	}
	if err := ensureNotSymlink(inode, "rm", path); err != nil {
		return err
	}
	if !inode.IsDir() {
		return fs.Unlink(ctx, path)
	}
	if !o.Recursive {
		return common.ErrIsDir("rm", path)
	}

	// Depth-first with an explicit stack: children removed before their
	// parent, no recursion regardless of tree depth.
	stack := []removeFrame{{path: path}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if frame.expanded {
			if err := fs.Rmdir(ctx, frame.path); err != nil {
				return err
			}
			continue
		}

		node, err := fs.resolveInode(ctx, "rm", frame.path)
		if err != nil {
			return err
		}
		if err := ensureNotSymlink(node, "rm", frame.path); err != nil {
			return err
		}
		if !node.IsDir() {
			if err := fs.Unlink(ctx, frame.path); err != nil {
				return err
			}
			continue
		}

		stack = append(stack, removeFrame{path: frame.path, expanded: true})
		names, err := fs.Readdir(ctx, frame.path)
		if err != nil {
			return err
		}
		for _, name := range names {
			stack = append(stack, removeFrame{path: common.JoinPath(frame.path, name)})
		}
	}
	return nil
}

// Rename moves an entry to a new path. The whole operation — removal of
// a replaced destination, the dentry move and the timestamp updates —
// runs in one transaction and rolls back on any error.
func (fs *Filesystem) Rename(ctx context.Context, oldPath, newPath string) error {
	oldPath = common.NormalizePath(oldPath)
	newPath = common.NormalizePath(newPath)

	if oldPath == newPath {
		return nil
	}
	if err := ensureNotRoot("rename", oldPath); err != nil {
		return err
	}
	if err := ensureNotRoot("rename", newPath); err != nil {
		return err
	}

	oldParentIno, oldName, err := fs.resolveParent(ctx, "rename", oldPath)
	if err != nil {
		return err
	}
	srcIno, err := fs.lookup(ctx, "rename", oldPath, oldParentIno, oldName)
	if err != nil {
		return err
	}
	src, err := fs.inode(ctx, "rename", oldPath, srcIno)
	if err != nil {
		return err
	}
	if err := ensureNotSymlink(src, "rename", oldPath); err != nil {
		return err
	}

	// A directory must not be moved into its own subtree.
	if src.IsDir() && common.IsDescendant(oldPath, newPath) {
		return common.ErrInval("rename", newPath, "cannot move a directory into itself")
	}

	newParentIno, newName, err := fs.resolveParent(ctx, "rename", newPath)
	if err != nil {
		return err
	}
	newParent, err := fs.inode(ctx, "rename", common.ParentPath(newPath), newParentIno)
	if err != nil {
		return err
	}
	if err := ensureDir(newParent, "rename", common.ParentPath(newPath)); err != nil {
		return err
	}

	// Inspect a pre-existing destination before entering the transaction.
	var dest *storage.Inode
	destIno, err := fs.lookup(ctx, "rename", newPath, newParentIno, newName)
	if err == nil {
		dest, err = fs.inode(ctx, "rename", newPath, destIno)
		if err != nil {
			return err
		}
		if err := ensureNotSymlink(dest, "rename", newPath); err != nil {
			return err
		}
		if src.IsDir() && !dest.IsDir() {
			return common.ErrNotDir("rename", newPath)
		}
		if !src.IsDir() && dest.IsDir() {
			return common.ErrIsDir("rename", newPath)
		}
		if dest.IsDir() {
			count, err := fs.store.Bun().CountChildren(ctx, destIno)
			if err != nil {
				return err
			}
			if count > 0 {
				return common.ErrNotEmpty("rename", newPath)
			}
		}
	} else if !common.IsNotExist(err) {
		return err
	}

	now := time.Now().Unix()
	return fs.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if dest != nil {
			if err := fs.store.Bun().DeleteDentryWith(tx, ctx, newParentIno, newName); err != nil {
				return err
			}
			if err := fs.store.Bun().DecrementNlinkWith(tx, ctx, destIno); err != nil {
				return err
			}
			if err := fs.removeInodeIfOrphanTx(ctx, tx, destIno); err != nil {
				return err
			}
		}

		if err := fs.store.Bun().MoveDentry(tx, ctx, oldParentIno, oldName, newParentIno, newName); err != nil {
			return err
		}

		if err := fs.store.Bun().TouchCtime(tx, ctx, srcIno, now); err != nil {
			return err
		}
		if err := fs.store.Bun().TouchMtimeCtime(tx, ctx, oldParentIno, now); err != nil {
			return err
		}
		if newParentIno != oldParentIno {
			if err := fs.store.Bun().TouchMtimeCtime(tx, ctx, newParentIno, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// removeInodeIfOrphanTx is removeInodeIfOrphan inside a transaction.
func (fs *Filesystem) removeInodeIfOrphanTx(ctx context.Context, tx bun.Tx, ino int64) error {
	model, err := fs.store.Bun().GetInodeWith(tx, ctx, ino)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if model.Nlink > 0 {
		return nil
	}
	if err := fs.store.Bun().DeleteChunksWith(tx, ctx, ino); err != nil {
		return err
	}
	if err := fs.store.Bun().DeleteSymlinkWith(tx, ctx, ino); err != nil {
		return err
	}
	return fs.store.Bun().DeleteInodeWith(tx, ctx, ino)
}

// CopyFile copies a regular file. The destination parent must already
// exist; an existing destination file is replaced in place. The copy
// runs in one transaction.
func (fs *Filesystem) CopyFile(ctx context.Context, srcPath, destPath string) error {
	srcPath = common.NormalizePath(srcPath)
	destPath = common.NormalizePath(destPath)

	if srcPath == destPath {
		return common.ErrInval("copyfile", srcPath, "source and destination are the same")
	}

	srcIno, err := fs.resolve(ctx, "copyfile", srcPath)
	if err != nil {
		return err
	}
	src, err := fs.inode(ctx, "copyfile", srcPath, srcIno)
	if err != nil {
		return err
	}
	if err := ensureReadable(src, "copyfile", srcPath); err != nil {
		return err
	}

	if destPath == "/" {
		return common.ErrIsDir("copyfile", destPath)
	}
	destParentIno, destName, err := fs.resolveParent(ctx, "copyfile", destPath)
	if err != nil {
		return err
	}
	destParent, err := fs.inode(ctx, "copyfile", common.ParentPath(destPath), destParentIno)
	if err != nil {
		return err
	}
	if err := ensureDir(destParent, "copyfile", common.ParentPath(destPath)); err != nil {
		return err
	}

	var destExisting *storage.Inode
	destIno, err := fs.lookup(ctx, "copyfile", destPath, destParentIno, destName)
	if err == nil {
		destExisting, err = fs.inode(ctx, "copyfile", destPath, destIno)
		if err != nil {
			return err
		}
		if destExisting.IsDir() {
			return common.ErrIsDir("copyfile", destPath)
		}
		if destExisting.IsSymlink() {
			return common.ErrSymlinkUnsupported("copyfile", destPath)
		}
	} else if !common.IsNotExist(err) {
		return err
	}

	now := time.Now().Unix()
	return fs.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		chunks, err := fs.store.Bun().ReadChunksWith(tx, ctx, srcIno)
		if err != nil {
			return err
		}

		target := destIno
		if destExisting != nil {
			if err := fs.store.Bun().DeleteChunksWith(tx, ctx, target); err != nil {
				return err
			}
			if err := fs.store.Bun().UpdateInodeMeta(tx, ctx, target,
				int64(src.Mode), int64(src.Uid), int64(src.Gid), src.Size, now); err != nil {
				return err
			}
		} else {
			target, err = fs.store.Bun().InsertInodeWith(tx, ctx,
				int64(src.Mode), int64(src.Uid), int64(src.Gid), src.Size)
			if err != nil {
				return err
			}
			if err := fs.store.Bun().InsertDentryWith(tx, ctx, destParentIno, destName, target); err != nil {
				return err
			}
			if err := fs.store.Bun().IncrementNlinkWith(tx, ctx, target); err != nil {
				return err
			}
		}

		for _, chunk := range chunks {
			if err := fs.store.Bun().UpsertChunkWith(tx, ctx, target, chunk.ChunkIndex, chunk.Data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Symlink creates a symbolic link storing the raw target string. Missing
// parent directories are created, matching WriteFile.
func (fs *Filesystem) Symlink(ctx context.Context, target, linkPath string) error {
	linkPath = common.NormalizePath(linkPath)
	if linkPath == "/" {
		return common.ErrExist("symlink", linkPath)
	}

	parentPath := common.ParentPath(linkPath)
	if err := fs.mkdirAll(ctx, "symlink", parentPath); err != nil {
		return err
	}
	parentIno, err := fs.resolve(ctx, "symlink", parentPath)
	if err != nil {
		return err
	}
	name := common.BaseName(linkPath)

	if _, err := fs.lookup(ctx, "symlink", linkPath, parentIno, name); err == nil {
		return common.ErrExist("symlink", linkPath)
	} else if !common.IsNotExist(err) {
		return err
	}

	ino, err := fs.store.Bun().InsertInode(ctx, int64(storage.ModeSymlink|0777), 0, 0, int64(len(target)))
	if err != nil {
		return err
	}
	if err := fs.store.Bun().InsertSymlink(ctx, ino, target); err != nil {
		return err
	}
	if err := fs.store.Bun().InsertDentry(ctx, parentIno, name, ino); err != nil {
		return err
	}
	return fs.store.Bun().IncrementNlink(ctx, ino)
}

// Readlink returns the stored symlink target, unmodified.
func (fs *Filesystem) Readlink(ctx context.Context, path string) (string, error) {
	path = common.NormalizePath(path)

	ino, err := fs.resolve(ctx, "readlink", path)
	if err != nil {
		return "", err
	}
	inode, err := fs.inode(ctx, "readlink", path, ino)
	if err != nil {
		return "", err
	}
	if !inode.IsSymlink() {
		return "", common.ErrInval("readlink", path, "not a symbolic link")
	}

	target, err := fs.store.Bun().GetSymlinkTarget(ctx, ino)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", common.ErrNoent("readlink", path)
		}
		return "", err
	}
	return target, nil
}

// FilesystemStats are the aggregate counters returned by Statfs.
type FilesystemStats struct {
	TotalBytes  int64
	FreeBytes   int64
	UsedBytes   int64
	TotalInodes int64
	FreeInodes  int64
	UsedInodes  int64
}

// Statfs returns aggregate filesystem statistics derived from the
// database, against a fixed virtual capacity.
func (fs *Filesystem) Statfs(ctx context.Context) (*FilesystemStats, error) {
	inodes, err := fs.store.Bun().CountInodes(ctx)
	if err != nil {
		return nil, err
	}
	used, err := fs.store.Bun().SumBytes(ctx)
	if err != nil {
		return nil, err
	}

	stats := &FilesystemStats{
		TotalBytes:  statfsTotalBytes,
		UsedBytes:   used,
		TotalInodes: statfsTotalInodes,
		UsedInodes:  inodes,
	}
	stats.FreeBytes = stats.TotalBytes - used
	if stats.FreeBytes < 0 {
		stats.FreeBytes = 0
	}
	stats.FreeInodes = stats.TotalInodes - inodes
	if stats.FreeInodes < 0 {
		stats.FreeInodes = 0
	}
	return stats, nil
}

// writeChunks splits data into chunk_size slices and stores them starting
// at index 0.
func (fs *Filesystem) writeChunks(ctx context.Context, ino int64, data []byte) error {
	chunkSize := fs.store.ChunkSize()
	chunkIndex := int64(0)
	for len(data) > 0 {
		n := chunkSize
		if len(data) < n {
			n = len(data)
		}
		if err := fs.store.Bun().UpsertChunk(ctx, ino, chunkIndex, data[:n]); err != nil {
			return err
		}
		data = data[n:]
		chunkIndex++
	}
	return nil
}
