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

// Package billyfs adapts the protected filesystem to the go-billy
// interface so external tooling can use it as a billy.Filesystem.
// Operations run under context.Background: billy's surface carries no
// context.
package billyfs

import (
	"context"
	"io"
	iofs "io/fs"
	"os"
	"path"
	"time"

	billy "github.com/go-git/go-billy/v5"

	"agentvfs/internal/common"
	"agentvfs/internal/fs"
	"agentvfs/internal/protect"
	"agentvfs/internal/storage"
)

// Adapter exposes a protect.FS as a billy.Filesystem.
type Adapter struct {
	fs *protect.FS
}

var _ billy.Filesystem = (*Adapter)(nil)

// New creates a billy adapter over a protected filesystem.
func New(pfs *protect.FS) *Adapter {
	return &Adapter{fs: pfs}
}

func (a *Adapter) Create(filename string) (billy.File, error) {
	if err := a.fs.WriteFile(context.Background(), filename, nil); err != nil {
		return nil, err
	}
	return a.Open(filename)
}

func (a *Adapter) Open(filename string) (billy.File, error) {
	handle, err := a.fs.Open(context.Background(), filename)
	if err != nil {
		return nil, err
	}
	return &file{handle: handle, name: filename}, nil
}

func (a *Adapter) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	_, err := a.fs.Stat(context.Background(), filename)
	if err != nil {
		if !common.IsNotExist(err) || flag&os.O_CREATE == 0 {
			return nil, err
		}
		if err := a.fs.WriteFile(context.Background(), filename, nil); err != nil {
			return nil, err
		}
	} else if flag&os.O_TRUNC != 0 {
		if err := a.fs.WriteFile(context.Background(), filename, nil); err != nil {
			return nil, err
		}
	}
	return a.Open(filename)
}

func (a *Adapter) Stat(filename string) (os.FileInfo, error) {
	inode, err := a.fs.Stat(context.Background(), filename)
	if err != nil {
		return nil, err
	}
	return &fileInfo{name: path.Base(common.NormalizePath(filename)), inode: inode}, nil
}

// Lstat matches Stat: path resolution is lexical and never follows a
// trailing symlink.
func (a *Adapter) Lstat(filename string) (os.FileInfo, error) {
	inode, err := a.fs.Lstat(context.Background(), filename)
	if err != nil {
		return nil, err
	}
	return &fileInfo{name: path.Base(common.NormalizePath(filename)), inode: inode}, nil
}

func (a *Adapter) Rename(oldpath, newpath string) error {
	return a.fs.Rename(context.Background(), oldpath, newpath)
}

func (a *Adapter) Remove(filename string) error {
	return a.fs.Remove(context.Background(), filename, &fs.RemoveOptions{Recursive: true})
}

func (a *Adapter) Join(elem ...string) string {
	return path.Join(elem...)
}

func (a *Adapter) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

func (a *Adapter) ReadDir(dirname string) ([]os.FileInfo, error) {
	entries, err := a.fs.ReaddirPlus(context.Background(), dirname)
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, &fileInfo{name: entry.Name, inode: entry.Inode})
	}
	return infos, nil
}

func (a *Adapter) MkdirAll(filename string, perm os.FileMode) error {
	current := ""
	for _, part := range common.SplitPath(filename) {
		current += "/" + part
		if err := a.fs.Mkdir(context.Background(), current); err != nil && !common.IsExist(err) {
			return err
		}
	}
	return nil
}

func (a *Adapter) Symlink(target, link string) error {
	return a.fs.Symlink(context.Background(), target, link)
}

func (a *Adapter) Readlink(link string) (string, error) {
	return a.fs.Readlink(context.Background(), link)
}

func (a *Adapter) Chroot(path string) (billy.Filesystem, error) {
	return nil, billy.ErrNotSupported
}

func (a *Adapter) Root() string {
	return "/"
}

// file implements billy.File over a guarded handle with sequential
// offset tracking.
type file struct {
	handle *protect.Handle
	name   string
	offset int64
}

var _ billy.File = (*file)(nil)

func (f *file) Name() string {
	return f.name
}

func (f *file) Read(p []byte) (int, error) {
	data, err := f.handle.Pread(context.Background(), f.offset, len(p))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, data)
	f.offset += int64(n)
	return n, nil
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	data, err := f.handle.Pread(context.Background(), off, len(p))
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *file) Write(p []byte) (int, error) {
	n, err := f.handle.Pwrite(context.Background(), p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.offset = offset
	case io.SeekCurrent:
		f.offset += offset
	case io.SeekEnd:
		inode, err := f.handle.Fstat(context.Background())
		if err != nil {
			return 0, err
		}
		f.offset = inode.Size + offset
	}
	return f.offset, nil
}

func (f *file) Truncate(size int64) error {
	return f.handle.Truncate(context.Background(), size)
}

func (f *file) Close() error {
	return f.handle.Close()
}

func (f *file) Lock() error   { return nil }
func (f *file) Unlock() error { return nil }

// fileInfo implements os.FileInfo over an inode row.
type fileInfo struct {
	name  string
	inode *storage.Inode
}

var _ os.FileInfo = (*fileInfo)(nil)

func (fi *fileInfo) Name() string { return fi.name }
func (fi *fileInfo) Size() int64  { return fi.inode.Size }

func (fi *fileInfo) Mode() iofs.FileMode {
	mode := iofs.FileMode(fi.inode.Permissions())
	switch {
	case fi.inode.IsDir():
		mode |= iofs.ModeDir
	case fi.inode.IsSymlink():
		mode |= iofs.ModeSymlink
	}
	return mode
}

func (fi *fileInfo) ModTime() time.Time { return fi.inode.Mtime }
func (fi *fileInfo) IsDir() bool        { return fi.inode.IsDir() }
func (fi *fileInfo) Sys() any           { return fi.inode }
