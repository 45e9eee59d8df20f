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
	"time"

	"agentvfs/internal/common"
	"agentvfs/internal/storage"
)

// Handle is an open file bound to a path, not to an inode number: every
// operation re-resolves the path, so a concurrent rename or policy
// change takes effect for the handle's remaining lifetime.
type Handle struct {
	fs   *Filesystem
	path string
}

// Open opens a regular file and returns a handle for positioned I/O.
func (fs *Filesystem) Open(ctx context.Context, path string) (*Handle, error) {
	path = common.NormalizePath(path)

	inode, err := fs.resolveInode(ctx, "open", path)
	if err != nil {
		return nil, err
	}
	if err := ensureReadable(inode, "open", path); err != nil {
		return nil, err
	}

	return &Handle{fs: fs, path: path}, nil
}

// Path returns the path the handle was opened for.
func (h *Handle) Path() string {
	return h.path
}

// Fstat returns the file's current metadata.
func (h *Handle) Fstat(ctx context.Context) (*storage.Inode, error) {
	return h.fs.Stat(ctx, h.path)
}

// resolveFile re-resolves the handle's path to its current inode.
func (h *Handle) resolveFile(ctx context.Context, syscall string) (int64, *storage.Inode, error) {
	ino, err := h.fs.resolve(ctx, syscall, h.path)
	if err != nil {
		return 0, nil, err
	}
	inode, err := h.fs.inode(ctx, syscall, h.path, ino)
	if err != nil {
		return 0, nil, err
	}
	if err := ensureReadable(inode, syscall, h.path); err != nil {
		return 0, nil, err
	}
	return ino, inode, nil
}

// Pread reads up to size bytes at the given offset. Reads past the end
// of file are truncated; reads entirely past it return empty. Chunks
// missing from a sparse range read as zeros.
func (h *Handle) Pread(ctx context.Context, offset int64, size int) ([]byte, error) {
	if size <= 0 || offset < 0 {
		return nil, nil
	}

	ino, inode, err := h.resolveFile(ctx, "pread")
	if err != nil {
		return nil, err
	}
	if offset >= inode.Size {
		return nil, nil
	}

	length := int64(size)
	if offset+length > inode.Size {
		length = inode.Size - offset
	}

	chunkSize := int64(h.fs.store.ChunkSize())
	startChunk := offset / chunkSize
	endChunk := (offset + length - 1) / chunkSize

	rows, err := h.fs.store.Bun().ReadChunkRange(ctx, ino, startChunk, endChunk)
	if err != nil {
		return nil, err
	}
	chunks := make(map[int64][]byte, len(rows))
	for _, row := range rows {
		chunks[row.ChunkIndex] = row.Data
	}

	buf := make([]byte, length)
	read := int64(0)
	pos := offset
	for pos < offset+length {
		chunkIndex := pos / chunkSize
		offsetInChunk := pos % chunkSize

		chunk := chunks[chunkIndex]

		n := chunkSize - offsetInChunk
		if remaining := offset + length - pos; n > remaining {
			n = remaining
		}
		if offsetInChunk < int64(len(chunk)) {
			copied := n
			if offsetInChunk+copied > int64(len(chunk)) {
				copied = int64(len(chunk)) - offsetInChunk
			}
			copy(buf[read:], chunk[offsetInChunk:offsetInChunk+copied])
		}
		// Bytes beyond the stored chunk stay zero (sparse read).
		read += n
		pos += n
	}

	if err := h.fs.store.Bun().TouchAtime(ctx, ino, time.Now().Unix()); err != nil {
		return nil, err
	}
	return buf, nil
}

// Pwrite writes data at the given offset, read-modify-writing partially
// touched boundary chunks and extending the file size when the write
// reaches past the current end.
func (h *Handle) Pwrite(ctx context.Context, data []byte, offset int64) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if offset < 0 {
		return 0, common.ErrInval("pwrite", h.path, "negative offset")
	}

	ino, inode, err := h.resolveFile(ctx, "pwrite")
	if err != nil {
		return 0, err
	}

	chunkSize := int64(h.fs.store.ChunkSize())
	endOffset := offset + int64(len(data))
	startChunk := offset / chunkSize
	endChunk := (endOffset - 1) / chunkSize

	rows, err := h.fs.store.Bun().ReadChunkRange(ctx, ino, startChunk, endChunk)
	if err != nil {
		return 0, err
	}
	existing := make(map[int64][]byte, len(rows))
	for _, row := range rows {
		existing[row.ChunkIndex] = row.Data
	}

	written := 0
	pos := offset
	for pos < endOffset {
		chunkIndex := pos / chunkSize
		offsetInChunk := pos % chunkSize

		n := chunkSize - offsetInChunk
		if remaining := endOffset - pos; n > remaining {
			n = remaining
		}

		chunk := existing[chunkIndex]
		required := offsetInChunk + n
		if int64(len(chunk)) < required {
			grown := make([]byte, required)
			copy(grown, chunk)
			chunk = grown
		}
		copy(chunk[offsetInChunk:], data[written:written+int(n)])

		if err := h.fs.store.Bun().UpsertChunk(ctx, ino, chunkIndex, chunk); err != nil {
			return written, err
		}
		written += int(n)
		pos += n
	}

	newSize := inode.Size
	if endOffset > newSize {
		newSize = endOffset
	}
	if err := h.fs.store.Bun().UpdateInodeSize(ctx, ino, newSize, time.Now().Unix()); err != nil {
		return written, err
	}
	return written, nil
}

// Truncate sets the file size, dropping chunks beyond the new end and
// trimming the final chunk. Growing leaves a sparse tail that reads as
// zeros.
func (h *Handle) Truncate(ctx context.Context, size int64) error {
	if size < 0 {
		return common.ErrInval("truncate", h.path, "negative size")
	}

	ino, inode, err := h.resolveFile(ctx, "truncate")
	if err != nil {
		return err
	}

	chunkSize := int64(h.fs.store.ChunkSize())
	if size < inode.Size {
		if size == 0 {
			if err := h.fs.store.Bun().DeleteChunks(ctx, ino); err != nil {
				return err
			}
		} else {
			lastChunk := (size - 1) / chunkSize
			if err := h.fs.store.Bun().DeleteChunksFrom(ctx, ino, lastChunk+1); err != nil {
				return err
			}
			if trim := size - lastChunk*chunkSize; trim < chunkSize {
				chunk, err := h.fs.store.Bun().GetChunk(ctx, ino, lastChunk)
				if err == nil && int64(len(chunk)) > trim {
					if err := h.fs.store.Bun().UpsertChunk(ctx, ino, lastChunk, chunk[:trim]); err != nil {
						return err
					}
				}
			}
		}
	}

	return h.fs.store.Bun().UpdateInodeSize(ctx, ino, size, time.Now().Unix())
}

// Fsync is a no-op: the store commits every statement and WAL mode
// handles durability.
func (h *Handle) Fsync(ctx context.Context) error {
	return nil
}

// Close releases the handle. No resources are held.
func (h *Handle) Close() error {
	return nil
}
