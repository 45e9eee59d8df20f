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
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentvfs/internal/common"
	"agentvfs/internal/storage"
)

func newTestFS(t *testing.T) *Filesystem {
	t.Helper()

	store, err := storage.Open(context.Background(), storage.Options{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(store)
}

func countChunks(t *testing.T, fsys *Filesystem, ino int64) int {
	t.Helper()
	count, err := fsys.store.Bun().NewSelect().
		Model((*storage.ChunkModel)(nil)).
		Where("ino = ?", ino).
		Count(context.Background())
	require.NoError(t, err)
	return count
}

func countAllChunks(t *testing.T, fsys *Filesystem) int {
	t.Helper()
	count, err := fsys.store.Bun().NewSelect().
		Model((*storage.ChunkModel)(nil)).
		Count(context.Background())
	require.NoError(t, err)
	return count
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)
	chunkSize := fsys.ChunkSize()

	// Lengths straddling every chunk boundary of interest.
	lengths := []int{0, 1, chunkSize - 1, chunkSize, chunkSize + 1, 10 * chunkSize}

	rng := rand.New(rand.NewSource(42))
	for _, length := range lengths {
		t.Run(fmt.Sprintf("len=%d", length), func(t *testing.T) {
			data := make([]byte, length)
			_, err := rng.Read(data)
			require.NoError(t, err)

			path := fmt.Sprintf("/roundtrip/%d.bin", length)
			require.NoError(t, fsys.WriteFile(ctx, path, data))

			got, err := fsys.ReadFile(ctx, path)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, got), "round-trip mismatch for len=%d", length)

			inode, err := fsys.Stat(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, int64(length), inode.Size)
		})
	}
}

func TestScenarioBasicWorkspace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.Mkdir(ctx, "/w"))
	require.NoError(t, fsys.WriteFile(ctx, "/w/a.txt", []byte("hi")))

	inode, err := fsys.Stat(ctx, "/w/a.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(storage.ModeFile), inode.Mode&storage.ModeMask)
	assert.True(t, inode.IsFile())
	assert.Equal(t, int64(2), inode.Size)

	data, err := fsys.ReadFile(ctx, "/w/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestWriteFileCreatesParents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.WriteFile(ctx, "/a/b/c.txt", []byte("x")))

	names, err := fsys.Readdir(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)

	names, err = fsys.Readdir(ctx, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt"}, names)

	inode, err := fsys.Stat(ctx, "/a/b")
	require.NoError(t, err)
	assert.True(t, inode.IsDir())
	assert.Equal(t, uint32(storage.DefaultDirMode), inode.Mode)
}

func TestWriteFileReplacesContent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)
	chunkSize := fsys.ChunkSize()

	long := bytes.Repeat([]byte("a"), 3*chunkSize)
	require.NoError(t, fsys.WriteFile(ctx, "/f.txt", long))

	require.NoError(t, fsys.WriteFile(ctx, "/f.txt", []byte("short")))

	data, err := fsys.ReadFile(ctx, "/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))

	// No stale chunks beyond the new contiguous prefix.
	inode, err := fsys.Stat(ctx, "/f.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, countChunks(t, fsys, inode.Ino))
}

func TestWriteFileErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.Mkdir(ctx, "/dir"))
	err := fsys.WriteFile(ctx, "/dir", []byte("x"))
	assert.Equal(t, common.EISDIR, common.ErrCode(err))

	assert.Equal(t, common.EISDIR, common.ErrCode(fsys.WriteFile(ctx, "/", []byte("x"))))

	// A file in the middle of the parent chain is ENOTDIR.
	require.NoError(t, fsys.WriteFile(ctx, "/file", []byte("x")))
	err = fsys.WriteFile(ctx, "/file/child.txt", []byte("x"))
	assert.Equal(t, common.ENOTDIR, common.ErrCode(err))
}

func TestReaddirSortedAndExact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.Mkdir(ctx, "/d"))
	for _, name := range []string{"zebra", "apple", "mango"} {
		require.NoError(t, fsys.WriteFile(ctx, "/d/"+name, []byte("1")))
	}
	require.NoError(t, fsys.Unlink(ctx, "/d/mango"))

	names, err := fsys.Readdir(ctx, "/d")
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "zebra"}, names, "sorted, without removed entries")

	entries, err := fsys.ReaddirPlus(ctx, "/d")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "apple", entries[0].Name)
	assert.Equal(t, int64(1), entries[0].Inode.Size)

	// Readdir on a file is ENOTDIR, missing is ENOENT.
	_, err = fsys.Readdir(ctx, "/d/apple")
	assert.Equal(t, common.ENOTDIR, common.ErrCode(err))
	_, err = fsys.Readdir(ctx, "/missing")
	assert.Equal(t, common.ENOENT, common.ErrCode(err))
}

func TestMkdirErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	assert.Equal(t, common.EEXIST, common.ErrCode(fsys.Mkdir(ctx, "/")))

	require.NoError(t, fsys.Mkdir(ctx, "/d"))
	assert.Equal(t, common.EEXIST, common.ErrCode(fsys.Mkdir(ctx, "/d")))

	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Mkdir(ctx, "/missing/child")))

	require.NoError(t, fsys.WriteFile(ctx, "/f", nil))
	assert.Equal(t, common.ENOTDIR, common.ErrCode(fsys.Mkdir(ctx, "/f/child")))
}

func TestRmdir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	assert.Equal(t, common.EPERM, common.ErrCode(fsys.Rmdir(ctx, "/")))
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Rmdir(ctx, "/missing")))

	require.NoError(t, fsys.WriteFile(ctx, "/f", nil))
	assert.Equal(t, common.ENOTDIR, common.ErrCode(fsys.Rmdir(ctx, "/f")))

	require.NoError(t, fsys.Mkdir(ctx, "/d"))
	require.NoError(t, fsys.WriteFile(ctx, "/d/x", nil))
	assert.Equal(t, common.ENOTEMPTY, common.ErrCode(fsys.Rmdir(ctx, "/d")))

	require.NoError(t, fsys.Unlink(ctx, "/d/x"))
	require.NoError(t, fsys.Rmdir(ctx, "/d"))
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Access(ctx, "/d")))
}

func TestUnlinkPurgesInode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.WriteFile(ctx, "/f", bytes.Repeat([]byte("z"), 2*fsys.ChunkSize())))
	inode, err := fsys.Stat(ctx, "/f")
	require.NoError(t, err)
	ino := inode.Ino
	assert.Equal(t, 2, countChunks(t, fsys, ino))

	require.NoError(t, fsys.Unlink(ctx, "/f"))

	// Inode row and chunk rows are gone.
	_, err = fsys.store.Bun().GetInode(ctx, ino)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, countChunks(t, fsys, ino))
}

func TestUnlinkErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	assert.Equal(t, common.EPERM, common.ErrCode(fsys.Unlink(ctx, "/")))
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Unlink(ctx, "/missing")))

	require.NoError(t, fsys.Mkdir(ctx, "/d"))
	assert.Equal(t, common.EISDIR, common.ErrCode(fsys.Unlink(ctx, "/d")))
}

func TestRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	assert.Equal(t, common.EPERM, common.ErrCode(fsys.Remove(ctx, "/", &RemoveOptions{Recursive: true, Force: true})))

	// Missing: ENOENT unless forced.
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Remove(ctx, "/missing", nil)))
	assert.NoError(t, fsys.Remove(ctx, "/missing", &RemoveOptions{Force: true}))

	// Directory without recursive: EISDIR.
	require.NoError(t, fsys.Mkdir(ctx, "/d"))
	assert.Equal(t, common.EISDIR, common.ErrCode(fsys.Remove(ctx, "/d", nil)))

	// Plain file removal.
	require.NoError(t, fsys.WriteFile(ctx, "/f", []byte("1")))
	require.NoError(t, fsys.Remove(ctx, "/f", nil))
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Access(ctx, "/f")))

	// Symlink refusal.
	require.NoError(t, fsys.Symlink(ctx, "/target", "/link"))
	assert.Equal(t, common.ENOSYS, common.ErrCode(fsys.Remove(ctx, "/link", nil)))
}

func TestRemoveRecursivePurgesSubtree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.Mkdir(ctx, "/d"))
	require.NoError(t, fsys.WriteFile(ctx, "/d/x", []byte("1")))
	require.NoError(t, fsys.WriteFile(ctx, "/d/y", []byte("2")))
	require.NoError(t, fsys.WriteFile(ctx, "/d/sub/deep/z", []byte("3")))

	require.NoError(t, fsys.Remove(ctx, "/d", &RemoveOptions{Recursive: true}))

	_, err := fsys.Stat(ctx, "/d")
	assert.Equal(t, common.ENOENT, common.ErrCode(err))
	_, err = fsys.Stat(ctx, "/d/x")
	assert.Equal(t, common.ENOENT, common.ErrCode(err))

	// No orphaned content chunks survive anywhere.
	assert.Equal(t, 0, countAllChunks(t, fsys))
}

func TestRemoveRecursiveDeepTree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	// Deep enough that a call-stack recursion would be suspect.
	path := ""
	for i := 0; i < 200; i++ {
		path += fmt.Sprintf("/d%d", i)
	}
	require.NoError(t, fsys.WriteFile(ctx, path+"/leaf.txt", []byte("x")))

	require.NoError(t, fsys.Remove(ctx, "/d0", &RemoveOptions{Recursive: true}))
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Access(ctx, "/d0")))
}

func TestRenameBasic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.WriteFile(ctx, "/a/f.txt", []byte("data")))
	require.NoError(t, fsys.Mkdir(ctx, "/b"))

	require.NoError(t, fsys.Rename(ctx, "/a/f.txt", "/b/g.txt"))

	data, err := fsys.ReadFile(ctx, "/b/g.txt")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Access(ctx, "/a/f.txt")))
}

func TestRenameNoopOnEqualPaths(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.WriteFile(ctx, "/f", []byte("1")))
	assert.NoError(t, fsys.Rename(ctx, "/f", "/f"))
	assert.NoError(t, fsys.Rename(ctx, "/f", "f/"))
}

func TestRenameErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.WriteFile(ctx, "/f", []byte("1")))
	require.NoError(t, fsys.Mkdir(ctx, "/d"))
	require.NoError(t, fsys.Mkdir(ctx, "/full"))
	require.NoError(t, fsys.WriteFile(ctx, "/full/x", nil))

	assert.Equal(t, common.EPERM, common.ErrCode(fsys.Rename(ctx, "/", "/x")))
	assert.Equal(t, common.EPERM, common.ErrCode(fsys.Rename(ctx, "/f", "/")))
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Rename(ctx, "/missing", "/x")))
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Rename(ctx, "/f", "/missing/x")))

	// Destination type conflicts.
	assert.Equal(t, common.EISDIR, common.ErrCode(fsys.Rename(ctx, "/f", "/d")))
	assert.Equal(t, common.ENOTDIR, common.ErrCode(fsys.Rename(ctx, "/d", "/f")))

	// Replacing a non-empty directory.
	require.NoError(t, fsys.Mkdir(ctx, "/d2"))
	assert.Equal(t, common.ENOTEMPTY, common.ErrCode(fsys.Rename(ctx, "/d2", "/full")))
}

func TestRenameCyclePrevention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.Mkdir(ctx, "/a"))
	require.NoError(t, fsys.Mkdir(ctx, "/a/b"))

	err := fsys.Rename(ctx, "/a", "/a/b/c")
	assert.Equal(t, common.EINVAL, common.ErrCode(err))

	// Tree unchanged.
	names, err := fsys.Readdir(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
	names, err = fsys.Readdir(ctx, "/a/b")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRenameFailureLeavesStateIntact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.Mkdir(ctx, "/src"))
	require.NoError(t, fsys.WriteFile(ctx, "/src/f", []byte("keep")))
	require.NoError(t, fsys.Mkdir(ctx, "/dst"))
	require.NoError(t, fsys.WriteFile(ctx, "/dst/x", nil))

	// Destination directory not empty: the rename fails...
	err := fsys.Rename(ctx, "/src", "/dst")
	assert.Equal(t, common.ENOTEMPTY, common.ErrCode(err))

	// ...and both sides are observationally unchanged.
	data, err := fsys.ReadFile(ctx, "/src/f")
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
	assert.NoError(t, fsys.Access(ctx, "/dst/x"))
}

func TestRenameReplacesFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.WriteFile(ctx, "/old", []byte("new content")))
	require.NoError(t, fsys.WriteFile(ctx, "/existing", []byte("stale")))

	staleInode, err := fsys.Stat(ctx, "/existing")
	require.NoError(t, err)

	require.NoError(t, fsys.Rename(ctx, "/old", "/existing"))

	data, err := fsys.ReadFile(ctx, "/existing")
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))

	// The replaced inode was purged.
	_, err = fsys.store.Bun().GetInode(ctx, staleInode.Ino)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRenameReplacesEmptyDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.Mkdir(ctx, "/src"))
	require.NoError(t, fsys.WriteFile(ctx, "/src/f", []byte("1")))
	require.NoError(t, fsys.Mkdir(ctx, "/empty"))

	require.NoError(t, fsys.Rename(ctx, "/src", "/empty"))

	data, err := fsys.ReadFile(ctx, "/empty/f")
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
}

func TestCopyFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)
	content := bytes.Repeat([]byte("c"), 2*fsys.ChunkSize()+17)

	require.NoError(t, fsys.WriteFile(ctx, "/src.bin", content))
	require.NoError(t, fsys.Mkdir(ctx, "/out"))

	require.NoError(t, fsys.CopyFile(ctx, "/src.bin", "/out/copy.bin"))

	got, err := fsys.ReadFile(ctx, "/out/copy.bin")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))

	src, err := fsys.Stat(ctx, "/src.bin")
	require.NoError(t, err)
	dst, err := fsys.Stat(ctx, "/out/copy.bin")
	require.NoError(t, err)
	assert.Equal(t, src.Mode, dst.Mode)
	assert.Equal(t, src.Size, dst.Size)
	assert.NotEqual(t, src.Ino, dst.Ino)
}

func TestCopyFileReplacesExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.WriteFile(ctx, "/src", []byte("fresh")))
	require.NoError(t, fsys.WriteFile(ctx, "/dst", bytes.Repeat([]byte("x"), 3*fsys.ChunkSize())))

	require.NoError(t, fsys.CopyFile(ctx, "/src", "/dst"))

	got, err := fsys.ReadFile(ctx, "/dst")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))
}

func TestCopyFileErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.WriteFile(ctx, "/src", []byte("1")))
	require.NoError(t, fsys.Mkdir(ctx, "/d"))

	assert.Equal(t, common.EINVAL, common.ErrCode(fsys.CopyFile(ctx, "/src", "/src")))
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.CopyFile(ctx, "/missing", "/x")))
	assert.Equal(t, common.EISDIR, common.ErrCode(fsys.CopyFile(ctx, "/d", "/x")))

	// Destination parent is not auto-created, unlike WriteFile.
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.CopyFile(ctx, "/src", "/nope/x")))

	// Directory destination.
	assert.Equal(t, common.EISDIR, common.ErrCode(fsys.CopyFile(ctx, "/src", "/d")))

	// Symlink endpoints are refused.
	require.NoError(t, fsys.Symlink(ctx, "/src", "/link"))
	assert.Equal(t, common.ENOSYS, common.ErrCode(fsys.CopyFile(ctx, "/link", "/x")))
	assert.Equal(t, common.ENOSYS, common.ErrCode(fsys.CopyFile(ctx, "/src", "/link")))
}

func TestSymlinkReadlink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	// Targets are stored raw, relative or absolute, no normalization.
	require.NoError(t, fsys.Symlink(ctx, "../relative/target", "/links/rel"))
	require.NoError(t, fsys.Symlink(ctx, "/absolute/target", "/links/abs"))

	target, err := fsys.Readlink(ctx, "/links/rel")
	require.NoError(t, err)
	assert.Equal(t, "../relative/target", target)

	target, err = fsys.Readlink(ctx, "/links/abs")
	require.NoError(t, err)
	assert.Equal(t, "/absolute/target", target)

	inode, err := fsys.Lstat(ctx, "/links/abs")
	require.NoError(t, err)
	assert.True(t, inode.IsSymlink())

	assert.Equal(t, common.EEXIST, common.ErrCode(fsys.Symlink(ctx, "/x", "/links/rel")))

	require.NoError(t, fsys.WriteFile(ctx, "/plain", nil))
	assert.Equal(t, common.EINVAL, common.ErrCode(func() error {
		_, err := fsys.Readlink(ctx, "/plain")
		return err
	}()))
}

func TestStatLstatAgree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.Symlink(ctx, "/target", "/link"))

	st, err := fsys.Stat(ctx, "/link")
	require.NoError(t, err)
	lst, err := fsys.Lstat(ctx, "/link")
	require.NoError(t, err)

	// Resolution is lexical; both return the link inode itself.
	assert.Equal(t, st.Ino, lst.Ino)
	assert.True(t, st.IsSymlink())
}

func TestNlinkReporting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	root, err := fsys.Stat(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, int32(1), root.Nlink)

	require.NoError(t, fsys.WriteFile(ctx, "/f", nil))
	inode, err := fsys.Stat(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, int32(1), inode.Nlink)
}

func TestAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	assert.NoError(t, fsys.Access(ctx, "/"))
	assert.Equal(t, common.ENOENT, common.ErrCode(fsys.Access(ctx, "/missing")))

	require.NoError(t, fsys.WriteFile(ctx, "/f", nil))
	assert.NoError(t, fsys.Access(ctx, "/f"))
}

func TestStatfs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	require.NoError(t, fsys.WriteFile(ctx, "/f", []byte("12345")))

	stats, err := fsys.Statfs(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.UsedInodes, int64(2)) // root + file
	assert.GreaterOrEqual(t, stats.UsedBytes, int64(5))
	assert.Equal(t, stats.TotalBytes-stats.UsedBytes, stats.FreeBytes)
	assert.Positive(t, stats.FreeInodes)
}

func TestReadFileErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := newTestFS(t)

	_, err := fsys.ReadFile(ctx, "/missing")
	assert.Equal(t, common.ENOENT, common.ErrCode(err))

	require.NoError(t, fsys.Mkdir(ctx, "/d"))
	_, err = fsys.ReadFile(ctx, "/d")
	assert.Equal(t, common.EISDIR, common.ErrCode(err))

	require.NoError(t, fsys.Symlink(ctx, "/t", "/l"))
	_, err = fsys.ReadFile(ctx, "/l")
	assert.Equal(t, common.ENOSYS, common.ErrCode(err))
}
