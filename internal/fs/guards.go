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
	"agentvfs/internal/common"
	"agentvfs/internal/storage"
)

// Centralized invariant checks shared by the filesystem operations.

// ensureDir fails with ENOTDIR when the inode is not a directory.
func ensureDir(inode *storage.Inode, syscall, path string) error {
	if !inode.IsDir() {
		return common.ErrNotDir(syscall, path)
	}
	return nil
}

// ensureReadable fails unless the inode is a regular file: EISDIR for
// directories, ENOSYS for symlinks (content access through links is not
// implemented).
func ensureReadable(inode *storage.Inode, syscall, path string) error {
	if inode.IsDir() {
		return common.ErrIsDir(syscall, path)
	}
	if inode.IsSymlink() {
		return common.ErrSymlinkUnsupported(syscall, path)
	}
	return nil
}

// ensureNotRoot fails with EPERM when path is the filesystem root.
func ensureNotRoot(syscall, path string) error {
	if path == "/" {
		return common.ErrPerm(syscall, path)
	}
	return nil
}

// ensureNotSymlink fails with ENOSYS when the inode is a symlink.
func ensureNotSymlink(inode *storage.Inode, syscall, path string) error {
	if inode.IsSymlink() {
		return common.ErrSymlinkUnsupported(syscall, path)
	}
	return nil
}

// RemoveOptions controls Remove behavior, mirroring rm -f / rm -r.
type RemoveOptions struct {
	// Force silences ENOENT for missing paths.
	Force bool
	// Recursive permits directory removal, walking children first.
	Recursive bool
}

// normalizeRemoveOptions fills in defaults for a nil options pointer.
func normalizeRemoveOptions(opts *RemoveOptions) RemoveOptions {
	if opts == nil {
		return RemoveOptions{}
	}
	return *opts
}
