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
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// ErrNotFound is returned by lookups that match no row. Callers above the
// storage layer translate it into a POSIX ENOENT with syscall and path.
var ErrNotFound = errors.New("not found")

// BunDB wraps a Bun database instance for type-safe queries.
type BunDB struct {
	*bun.DB
}

// NewBunDB wraps an existing *sql.DB with Bun's type-safe query builder.
func NewBunDB(sqlDB *sql.DB) *BunDB {
	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	return &BunDB{DB: bunDB}
}

// --- Config Operations ---

// GetConfigValue retrieves a config value by key. Missing keys yield "".
func (db *BunDB) GetConfigValue(ctx context.Context, key string) (string, error) {
	var config ConfigModel
	err := db.NewSelect().
		Model(&config).
		Where("key = ?", key).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return config.Value, nil
}

// SetConfigValue sets a config value (upserts).
func (db *BunDB) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := db.NewInsert().
		Model(&ConfigModel{Key: key, Value: value}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return err
}

// --- Inode Operations ---

// GetInode retrieves an inode row by number.
func (db *BunDB) GetInode(ctx context.Context, ino int64) (*InodeModel, error) {
	return db.getInodeWith(db.DB, ctx, ino)
}

// GetInodeWith is like GetInode but uses the provided bun.IDB (for transaction support).
func (db *BunDB) GetInodeWith(idb bun.IDB, ctx context.Context, ino int64) (*InodeModel, error) {
	return db.getInodeWith(idb, ctx, ino)
}

func (db *BunDB) getInodeWith(idb bun.IDB, ctx context.Context, ino int64) (*InodeModel, error) {
	var inode InodeModel
	err := idb.NewSelect().
		Model(&inode).
		Where("ino = ?", ino).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inode, nil
}

// InsertInode creates a new inode row and returns its inode number.
// nlink starts at 0; the caller increments it when the dentry lands.
func (db *BunDB) InsertInode(ctx context.Context, mode int64, uid, gid int64, size int64) (int64, error) {
	return db.insertInodeWith(db.DB, ctx, mode, uid, gid, size)
}

// InsertInodeWith is like InsertInode but within a transaction.
func (db *BunDB) InsertInodeWith(idb bun.IDB, ctx context.Context, mode int64, uid, gid int64, size int64) (int64, error) {
	return db.insertInodeWith(idb, ctx, mode, uid, gid, size)
}

func (db *BunDB) insertInodeWith(idb bun.IDB, ctx context.Context, mode int64, uid, gid int64, size int64) (int64, error) {
	now := time.Now().Unix()
	model := &InodeModel{
		Mode:  mode,
		Nlink: 0,
		UID:   uid,
		GID:   gid,
		Size:  size,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
	// RETURNING clause because libsql doesn't support LastInsertId
	_, err := idb.NewInsert().
		Model(model).
		Returning("ino").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return model.Ino, nil
}

// UpdateInodeSize sets size and mtime on an inode.
func (db *BunDB) UpdateInodeSize(ctx context.Context, ino, size int64, mtime int64) error {
	return db.updateInodeSizeWith(db.DB, ctx, ino, size, mtime)
}

// UpdateInodeSizeWith is like UpdateInodeSize but within a transaction.
func (db *BunDB) UpdateInodeSizeWith(idb bun.IDB, ctx context.Context, ino, size int64, mtime int64) error {
	return db.updateInodeSizeWith(idb, ctx, ino, size, mtime)
}

func (db *BunDB) updateInodeSizeWith(idb bun.IDB, ctx context.Context, ino, size int64, mtime int64) error {
	_, err := idb.NewUpdate().
		Model((*InodeModel)(nil)).
		Set("size = ?", size).
		Set("mtime = ?", mtime).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// UpdateInodeMeta copies ownership, mode and size onto an inode and
// stamps mtime/ctime. Used by copyFile when replacing an existing file.
func (db *BunDB) UpdateInodeMeta(idb bun.IDB, ctx context.Context, ino int64, mode, uid, gid, size, now int64) error {
	_, err := idb.NewUpdate().
		Model((*InodeModel)(nil)).
		Set("mode = ?", mode).
		Set("uid = ?", uid).
		Set("gid = ?", gid).
		Set("size = ?", size).
		Set("mtime = ?", now).
		Set("ctime = ?", now).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// TouchAtime updates an inode's access time.
func (db *BunDB) TouchAtime(ctx context.Context, ino int64, atime int64) error {
	_, err := db.NewUpdate().
		Model((*InodeModel)(nil)).
		Set("atime = ?", atime).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// TouchCtime updates an inode's change time within a transaction.
func (db *BunDB) TouchCtime(idb bun.IDB, ctx context.Context, ino int64, ctime int64) error {
	_, err := idb.NewUpdate().
		Model((*InodeModel)(nil)).
		Set("ctime = ?", ctime).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// TouchMtimeCtime updates an inode's mtime and ctime within a transaction.
func (db *BunDB) TouchMtimeCtime(idb bun.IDB, ctx context.Context, ino int64, now int64) error {
	_, err := idb.NewUpdate().
		Model((*InodeModel)(nil)).
		Set("mtime = ?", now).
		Set("ctime = ?", now).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// IncrementNlink bumps an inode's link count.
func (db *BunDB) IncrementNlink(ctx context.Context, ino int64) error {
	return db.incrementNlinkWith(db.DB, ctx, ino)
}

// IncrementNlinkWith is like IncrementNlink but within a transaction.
func (db *BunDB) IncrementNlinkWith(idb bun.IDB, ctx context.Context, ino int64) error {
	return db.incrementNlinkWith(idb, ctx, ino)
}

func (db *BunDB) incrementNlinkWith(idb bun.IDB, ctx context.Context, ino int64) error {
	_, err := idb.NewUpdate().
		Model((*InodeModel)(nil)).
		Set("nlink = nlink + 1").
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// DecrementNlink drops an inode's link count.
func (db *BunDB) DecrementNlink(ctx context.Context, ino int64) error {
	return db.decrementNlinkWith(db.DB, ctx, ino)
}

// DecrementNlinkWith is like DecrementNlink but within a transaction.
func (db *BunDB) DecrementNlinkWith(idb bun.IDB, ctx context.Context, ino int64) error {
	return db.decrementNlinkWith(idb, ctx, ino)
}

func (db *BunDB) decrementNlinkWith(idb bun.IDB, ctx context.Context, ino int64) error {
	_, err := idb.NewUpdate().
		Model((*InodeModel)(nil)).
		Set("nlink = nlink - 1").
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// DeleteInode removes an inode row.
func (db *BunDB) DeleteInode(ctx context.Context, ino int64) error {
	return db.deleteInodeWith(db.DB, ctx, ino)
}

// DeleteInodeWith is like DeleteInode but within a transaction.
func (db *BunDB) DeleteInodeWith(idb bun.IDB, ctx context.Context, ino int64) error {
	return db.deleteInodeWith(idb, ctx, ino)
}

func (db *BunDB) deleteInodeWith(idb bun.IDB, ctx context.Context, ino int64) error {
	_, err := idb.NewDelete().
		Model((*InodeModel)(nil)).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// --- Dentry Operations ---

// GetDentry finds a directory entry by (parent, name).
func (db *BunDB) GetDentry(ctx context.Context, parentIno int64, name string) (*DentryModel, error) {
	return db.getDentryWith(db.DB, ctx, parentIno, name)
}

// GetDentryWith is like GetDentry but within a transaction.
func (db *BunDB) GetDentryWith(idb bun.IDB, ctx context.Context, parentIno int64, name string) (*DentryModel, error) {
	return db.getDentryWith(idb, ctx, parentIno, name)
}

func (db *BunDB) getDentryWith(idb bun.IDB, ctx context.Context, parentIno int64, name string) (*DentryModel, error) {
	var dentry DentryModel
	err := idb.NewSelect().
		Model(&dentry).
		Where("parent_ino = ?", parentIno).
		Where("name = ?", name).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dentry, nil
}

// InsertDentry creates a directory entry.
func (db *BunDB) InsertDentry(ctx context.Context, parentIno int64, name string, ino int64) error {
	return db.insertDentryWith(db.DB, ctx, parentIno, name, ino)
}

// InsertDentryWith is like InsertDentry but within a transaction.
func (db *BunDB) InsertDentryWith(idb bun.IDB, ctx context.Context, parentIno int64, name string, ino int64) error {
	return db.insertDentryWith(idb, ctx, parentIno, name, ino)
}

func (db *BunDB) insertDentryWith(idb bun.IDB, ctx context.Context, parentIno int64, name string, ino int64) error {
	_, err := idb.NewInsert().
		Model(&DentryModel{Name: name, ParentIno: parentIno, Ino: ino}).
		Exec(ctx)
	return err
}

// DeleteDentry removes a directory entry.
func (db *BunDB) DeleteDentry(ctx context.Context, parentIno int64, name string) error {
	return db.deleteDentryWith(db.DB, ctx, parentIno, name)
}

// DeleteDentryWith is like DeleteDentry but within a transaction.
func (db *BunDB) DeleteDentryWith(idb bun.IDB, ctx context.Context, parentIno int64, name string) error {
	return db.deleteDentryWith(idb, ctx, parentIno, name)
}

func (db *BunDB) deleteDentryWith(idb bun.IDB, ctx context.Context, parentIno int64, name string) error {
	_, err := idb.NewDelete().
		Model((*DentryModel)(nil)).
		Where("parent_ino = ?", parentIno).
		Where("name = ?", name).
		Exec(ctx)
	return err
}

// MoveDentry repoints a directory entry to a new parent and name.
// This is the core of rename: the inode number never changes.
func (db *BunDB) MoveDentry(idb bun.IDB, ctx context.Context, oldParent int64, oldName string, newParent int64, newName string) error {
	_, err := idb.NewUpdate().
		Model((*DentryModel)(nil)).
		Set("parent_ino = ?", newParent).
		Set("name = ?", newName).
		Where("parent_ino = ?", oldParent).
		Where("name = ?", oldName).
		Exec(ctx)
	return err
}

// ListNames returns the child names of a directory, sorted ascending.
func (db *BunDB) ListNames(ctx context.Context, parentIno int64) ([]string, error) {
	var names []string
	err := db.NewSelect().
		Model((*DentryModel)(nil)).
		Column("name").
		Where("parent_ino = ?", parentIno).
		Order("name ASC").
		Scan(ctx, &names)
	return names, err
}

// ListDirEntries returns child names joined with their inode rows,
// sorted by name ascending.
func (db *BunDB) ListDirEntries(ctx context.Context, parentIno int64) ([]DirEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT d.name, i.ino, i.mode, i.nlink, i.uid, i.gid, i.size, i.atime, i.mtime, i.ctime
		FROM fs_dentry d
		JOIN fs_inode i ON d.ino = i.ino
		WHERE d.parent_ino = ?
		ORDER BY d.name ASC
	`, parentIno)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []DirEntry
	for rows.Next() {
		var name string
		var m InodeModel
		if err := rows.Scan(&name, &m.Ino, &m.Mode, &m.Nlink, &m.UID, &m.GID, &m.Size, &m.Atime, &m.Mtime, &m.Ctime); err != nil {
			return nil, err
		}
		entries = append(entries, DirEntry{Name: name, Inode: m.ToInode()})
	}
	return entries, rows.Err()
}

// CountChildren counts the entries under a directory.
func (db *BunDB) CountChildren(ctx context.Context, parentIno int64) (int, error) {
	return db.countChildrenWith(db.DB, ctx, parentIno)
}

// CountChildrenWith is like CountChildren but within a transaction.
func (db *BunDB) CountChildrenWith(idb bun.IDB, ctx context.Context, parentIno int64) (int, error) {
	return db.countChildrenWith(idb, ctx, parentIno)
}

func (db *BunDB) countChildrenWith(idb bun.IDB, ctx context.Context, parentIno int64) (int, error) {
	return idb.NewSelect().
		Model((*DentryModel)(nil)).
		Where("parent_ino = ?", parentIno).
		Count(ctx)
}

// --- Content Operations ---

// ReadChunks returns all content chunks for an inode in ascending
// chunk_index order.
func (db *BunDB) ReadChunks(ctx context.Context, ino int64) ([]ChunkModel, error) {
	return db.readChunksWith(db.DB, ctx, ino)
}

// ReadChunksWith is like ReadChunks but within a transaction.
func (db *BunDB) ReadChunksWith(idb bun.IDB, ctx context.Context, ino int64) ([]ChunkModel, error) {
	return db.readChunksWith(idb, ctx, ino)
}

func (db *BunDB) readChunksWith(idb bun.IDB, ctx context.Context, ino int64) ([]ChunkModel, error) {
	var chunks []ChunkModel
	err := idb.NewSelect().
		Model(&chunks).
		Where("ino = ?", ino).
		Order("chunk_index ASC").
		Scan(ctx)
	return chunks, err
}

// ReadChunkRange returns the chunks overlapping [startIdx, endIdx].
func (db *BunDB) ReadChunkRange(ctx context.Context, ino int64, startIdx, endIdx int64) ([]ChunkModel, error) {
	var chunks []ChunkModel
	err := db.NewSelect().
		Model(&chunks).
		Where("ino = ?", ino).
		Where("chunk_index >= ?", startIdx).
		Where("chunk_index <= ?", endIdx).
		Order("chunk_index ASC").
		Scan(ctx)
	return chunks, err
}

// GetChunk returns a single chunk, or ErrNotFound.
func (db *BunDB) GetChunk(ctx context.Context, ino, chunkIndex int64) ([]byte, error) {
	var chunk ChunkModel
	err := db.NewSelect().
		Model(&chunk).
		Where("ino = ?", ino).
		Where("chunk_index = ?", chunkIndex).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chunk.Data, nil
}

// UpsertChunk inserts or replaces a content chunk.
func (db *BunDB) UpsertChunk(ctx context.Context, ino, chunkIndex int64, data []byte) error {
	return db.upsertChunkWith(db.DB, ctx, ino, chunkIndex, data)
}

// UpsertChunkWith is like UpsertChunk but within a transaction.
func (db *BunDB) UpsertChunkWith(idb bun.IDB, ctx context.Context, ino, chunkIndex int64, data []byte) error {
	return db.upsertChunkWith(idb, ctx, ino, chunkIndex, data)
}

func (db *BunDB) upsertChunkWith(idb bun.IDB, ctx context.Context, ino, chunkIndex int64, data []byte) error {
	_, err := idb.NewInsert().
		Model(&ChunkModel{Ino: ino, ChunkIndex: chunkIndex, Data: data}).
		On("CONFLICT (ino, chunk_index) DO UPDATE").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	return err
}

// DeleteChunks removes all content chunks for an inode.
func (db *BunDB) DeleteChunks(ctx context.Context, ino int64) error {
	return db.deleteChunksWith(db.DB, ctx, ino)
}

// DeleteChunksWith is like DeleteChunks but within a transaction.
func (db *BunDB) DeleteChunksWith(idb bun.IDB, ctx context.Context, ino int64) error {
	return db.deleteChunksWith(idb, ctx, ino)
}

func (db *BunDB) deleteChunksWith(idb bun.IDB, ctx context.Context, ino int64) error {
	_, err := idb.NewDelete().
		Model((*ChunkModel)(nil)).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// DeleteChunksFrom removes chunks at or beyond the given index.
func (db *BunDB) DeleteChunksFrom(ctx context.Context, ino, fromIndex int64) error {
	_, err := db.NewDelete().
		Model((*ChunkModel)(nil)).
		Where("ino = ?", ino).
		Where("chunk_index >= ?", fromIndex).
		Exec(ctx)
	return err
}

// --- Symlink Operations ---

// InsertSymlink stores the target for a symlink inode.
func (db *BunDB) InsertSymlink(ctx context.Context, ino int64, target string) error {
	_, err := db.NewInsert().
		Model(&SymlinkModel{Ino: ino, Target: target}).
		Exec(ctx)
	return err
}

// GetSymlinkTarget reads the stored target for a symlink inode.
func (db *BunDB) GetSymlinkTarget(ctx context.Context, ino int64) (string, error) {
	var link SymlinkModel
	err := db.NewSelect().
		Model(&link).
		Where("ino = ?", ino).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return link.Target, nil
}

// DeleteSymlink removes the symlink row for an inode.
func (db *BunDB) DeleteSymlink(ctx context.Context, ino int64) error {
	return db.deleteSymlinkWith(db.DB, ctx, ino)
}

// DeleteSymlinkWith is like DeleteSymlink but within a transaction.
func (db *BunDB) DeleteSymlinkWith(idb bun.IDB, ctx context.Context, ino int64) error {
	return db.deleteSymlinkWith(idb, ctx, ino)
}

func (db *BunDB) deleteSymlinkWith(idb bun.IDB, ctx context.Context, ino int64) error {
	_, err := idb.NewDelete().
		Model((*SymlinkModel)(nil)).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// --- Aggregate Operations ---

// CountInodes returns the total number of inode rows.
func (db *BunDB) CountInodes(ctx context.Context) (int64, error) {
	var count int64
	err := db.NewRaw(`SELECT COUNT(*) FROM fs_inode`).Scan(ctx, &count)
	return count, err
}

// SumBytes returns the total bytes accounted by inode sizes.
func (db *BunDB) SumBytes(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := db.NewRaw(`SELECT SUM(size) FROM fs_inode`).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	if total.Valid {
		return total.Int64, nil
	}
	return 0, nil
}
