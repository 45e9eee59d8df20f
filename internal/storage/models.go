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

package storage

import (
	"time"

	"github.com/uptrace/bun"
)

// Bun ORM models for the agentvfs database tables.
// Times are stored as whole-second Unix timestamps.

// ConfigModel represents the fs_config table
type ConfigModel struct {
	bun.BaseModel `bun:"table:fs_config"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// InodeModel represents the fs_inode table
type InodeModel struct {
	bun.BaseModel `bun:"table:fs_inode"`

	Ino   int64 `bun:"ino,pk,autoincrement"`
	Mode  int64 `bun:"mode,notnull"`
	Nlink int64 `bun:"nlink,notnull"`
	UID   int64 `bun:"uid,notnull"`
	GID   int64 `bun:"gid,notnull"`
	Size  int64 `bun:"size,notnull"`
	Atime int64 `bun:"atime,notnull"`
	Mtime int64 `bun:"mtime,notnull"`
	Ctime int64 `bun:"ctime,notnull"`
}

// ToInode converts an InodeModel to the Inode value used above storage
func (m *InodeModel) ToInode() *Inode {
	return &Inode{
		Ino:   m.Ino,
		Mode:  uint32(m.Mode),
		Uid:   uint32(m.UID),
		Gid:   uint32(m.GID),
		Size:  m.Size,
		Nlink: int32(m.Nlink),
		Atime: time.Unix(m.Atime, 0),
		Mtime: time.Unix(m.Mtime, 0),
		Ctime: time.Unix(m.Ctime, 0),
	}
}

// DentryModel represents the fs_dentry table
type DentryModel struct {
	bun.BaseModel `bun:"table:fs_dentry"`

	ID        int64  `bun:"id,pk,autoincrement"`
	Name      string `bun:"name,notnull"`
	ParentIno int64  `bun:"parent_ino,notnull"`
	Ino       int64  `bun:"ino,notnull"`
}

// ToDentry converts a DentryModel to the Dentry value used above storage
func (m *DentryModel) ToDentry() *Dentry {
	return &Dentry{
		ParentIno: m.ParentIno,
		Name:      m.Name,
		Ino:       m.Ino,
	}
}

// ChunkModel represents the fs_data table (chunked file content)
type ChunkModel struct {
	bun.BaseModel `bun:"table:fs_data"`

	Ino        int64  `bun:"ino,pk"`
	ChunkIndex int64  `bun:"chunk_index,pk"`
	Data       []byte `bun:"data,notnull"`
}

// SymlinkModel represents the fs_symlink table
type SymlinkModel struct {
	bun.BaseModel `bun:"table:fs_symlink"`

	Ino    int64  `bun:"ino,pk"`
	Target string `bun:"target,notnull"`
}

// KVModel represents the kv_store table. Values are JSON-encoded.
type KVModel struct {
	bun.BaseModel `bun:"table:kv_store"`

	Key       string `bun:"key,pk"`
	Value     string `bun:"value,notnull"`
	CreatedAt int64  `bun:"created_at"`
	UpdatedAt int64  `bun:"updated_at"`
}

// Tool call statuses
const (
	ToolCallPending = "pending"
	ToolCallSuccess = "success"
	ToolCallError   = "error"
)

// ToolCallModel represents the tool_calls table
type ToolCallModel struct {
	bun.BaseModel `bun:"table:tool_calls"`

	ID          int64   `bun:"id,pk,autoincrement"`
	Name        string  `bun:"name,notnull"`
	Parameters  *string `bun:"parameters"`
	Result      *string `bun:"result"`
	Error       *string `bun:"error"`
	Status      string  `bun:"status,notnull"`
	StartedAt   int64   `bun:"started_at,notnull"`
	CompletedAt *int64  `bun:"completed_at"`
	DurationMs  *int64  `bun:"duration_ms"`
}
