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

// Package overlay imports a host directory tree into the agent
// filesystem as a copy-on-write base layer, detects drift between the
// two sides, and exports the drift as a reviewable patch.
package overlay

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"agentvfs/internal/common"
	"agentvfs/internal/fs"
)

// Config controls an overlay import.
type Config struct {
	// BasePath is the host directory to import.
	BasePath string
	// ExcludePatterns are globs matched against paths relative to
	// BasePath; matching entries are skipped and recorded.
	ExcludePatterns []string
	// MountPath is the prefix inside the FS the tree is placed under.
	// Empty means "/".
	MountPath string
	// RespectGitignore additionally applies .gitignore rules from the
	// base directory.
	RespectGitignore bool
}

// InitResult summarizes an import.
type InitResult struct {
	FilesImported      int
	DirectoriesCreated int
	BytesImported      int64
	ExcludedPaths      []string
}

func (c *Config) mountPath() string {
	if c.MountPath == "" {
		return "/"
	}
	return common.NormalizePath(c.MountPath)
}

// hostFrame is a work item for the iterative host-tree walk.
type hostFrame struct {
	hostPath string
	relPath  string // forward-slash path relative to the base, "" for the root
}

// Initialize imports the host tree at cfg.BasePath into fsys under
// cfg.MountPath. The walk is depth-first with an explicit stack; ".git"
// is always skipped. Host-side readdir/lstat errors skip the entry
// rather than failing the import, so partially readable working trees
// still import.
func Initialize(ctx context.Context, fsys *fs.Filesystem, cfg Config) (*InitResult, error) {
	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("failed to stat base path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base path is not a directory: %s", base)
	}

	mount := cfg.mountPath()
	excl := newExcluder(base, cfg.ExcludePatterns, cfg.RespectGitignore)
	result := &InitResult{}

	if mount != "/" {
		if err := ensureDirAll(ctx, fsys, mount, result); err != nil {
			return nil, err
		}
	}

	stack := []hostFrame{{hostPath: base, relPath: ""}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(frame.hostPath)
		if err != nil {
			log.WithError(err).WithField("path", frame.hostPath).Warn("skipping unreadable directory")
			continue
		}

		for _, entry := range entries {
			name := entry.Name()
			if name == ".git" {
				continue
			}
			relPath := name
			if frame.relPath != "" {
				relPath = frame.relPath + "/" + name
			}
			if excl.excluded(relPath) {
				result.ExcludedPaths = append(result.ExcludedPaths, relPath)
				continue
			}

			hostPath := filepath.Join(frame.hostPath, name)
			fsPath := common.JoinPath(mount, relPath)

			info, err := os.Lstat(hostPath)
			if err != nil {
				log.WithError(err).WithField("path", hostPath).Warn("skipping unreadable entry")
				continue
			}

			switch {
			case info.IsDir():
				if err := ensureDir(ctx, fsys, fsPath, result); err != nil {
					return nil, err
				}
				stack = append(stack, hostFrame{hostPath: hostPath, relPath: relPath})

			case info.Mode()&os.ModeSymlink != 0:
				target, err := os.Readlink(hostPath)
				if err != nil {
					log.WithError(err).WithField("path", hostPath).Warn("skipping unreadable symlink")
					continue
				}
				if err := fsys.Symlink(ctx, target, fsPath); err != nil {
					return nil, err
				}
				result.FilesImported++

			case info.Mode().IsRegular():
				data, err := os.ReadFile(hostPath)
				if err != nil {
					log.WithError(err).WithField("path", hostPath).Warn("skipping unreadable file")
					continue
				}
				if err := fsys.WriteFile(ctx, fsPath, data); err != nil {
					return nil, err
				}
				result.FilesImported++
				result.BytesImported += int64(len(data))
			}
		}
	}

	log.WithFields(log.Fields{
		"base":  base,
		"mount": mount,
		"files": result.FilesImported,
		"dirs":  result.DirectoriesCreated,
		"bytes": result.BytesImported,
	}).Debug("overlay import complete")
	return result, nil
}

// ensureDir creates one directory if missing, counting creations.
func ensureDir(ctx context.Context, fsys *fs.Filesystem, path string, result *InitResult) error {
	err := fsys.Mkdir(ctx, path)
	if err == nil {
		result.DirectoriesCreated++
		return nil
	}
	if common.IsExist(err) {
		return nil
	}
	return err
}

// ensureDirAll creates a directory chain under the mount path.
func ensureDirAll(ctx context.Context, fsys *fs.Filesystem, path string, result *InitResult) error {
	current := ""
	for _, part := range common.SplitPath(path) {
		current += "/" + part
		if err := ensureDir(ctx, fsys, current, result); err != nil {
			return err
		}
	}
	return nil
}

// ChangeType classifies an overlay change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// Change describes one divergence between the base tree and the FS.
// Path is relative to the mount, with a leading slash. OldContent holds
// the base-side bytes, NewContent the FS-side bytes; either is nil when
// the side does not have the file.
type Change struct {
	Type       ChangeType
	Path       string
	OldContent []byte
	NewContent []byte
}

// baseEntry is what the diff remembers about a host-side entry.
type baseEntry struct {
	size  int64
	isDir bool
}

// ChangeSet compares the FS subtree under mountPath against the host
// tree at basePath and returns the drift: files added or modified in
// the FS, and base files deleted from it. Symlinks are not diffed.
func ChangeSet(ctx context.Context, fsys *fs.Filesystem, basePath, mountPath string) ([]Change, error) {
	base, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	mount := common.NormalizePath(mountPath)

	baseEntries := collectBaseEntries(base)

	var changes []Change
	seen := make(map[string]bool)

	// Walk the FS side iteratively.
	type fsFrame struct {
		fsPath  string
		relPath string
	}
	stack := []fsFrame{{fsPath: mount, relPath: ""}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := fsys.ReaddirPlus(ctx, frame.fsPath)
		if err != nil {
			if common.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		for _, entry := range entries {
			relPath := entry.Name
			if frame.relPath != "" {
				relPath = frame.relPath + "/" + entry.Name
			}
			fsPath := common.JoinPath(frame.fsPath, entry.Name)

			if entry.Inode.IsDir() {
				stack = append(stack, fsFrame{fsPath: fsPath, relPath: relPath})
				continue
			}
			if entry.Inode.IsSymlink() {
				continue
			}
			seen[relPath] = true

			baseInfo, inBase := baseEntries[relPath]
			if !inBase || baseInfo.isDir {
				content, err := fsys.ReadFile(ctx, fsPath)
				if err != nil {
					return nil, err
				}
				changes = append(changes, Change{Type: ChangeAdded, Path: "/" + relPath, NewContent: content})
				continue
			}

			if baseInfo.size != entry.Inode.Size {
				oldContent, newContent, err := readBothSides(ctx, fsys, base, relPath, fsPath)
				if err != nil {
					return nil, err
				}
				changes = append(changes, Change{Type: ChangeModified, Path: "/" + relPath, OldContent: oldContent, NewContent: newContent})
				continue
			}

			// Same size: only a byte comparison can tell.
			oldContent, newContent, err := readBothSides(ctx, fsys, base, relPath, fsPath)
			if err != nil {
				return nil, err
			}
			if !bytes.Equal(oldContent, newContent) {
				changes = append(changes, Change{Type: ChangeModified, Path: "/" + relPath, OldContent: oldContent, NewContent: newContent})
			}
		}
	}

	// Base files that vanished from the FS.
	deleted := make([]string, 0)
	for relPath, info := range baseEntries {
		if info.isDir || seen[relPath] {
			continue
		}
		deleted = append(deleted, relPath)
	}
	sort.Strings(deleted)
	for _, relPath := range deleted {
		content, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(relPath)))
		if err != nil {
			content = nil
		}
		changes = append(changes, Change{Type: ChangeDeleted, Path: "/" + relPath, OldContent: content})
	}

	return changes, nil
}

// collectBaseEntries walks the host tree iteratively and records sizes.
// Unreadable entries are skipped.
func collectBaseEntries(base string) map[string]baseEntry {
	result := make(map[string]baseEntry)
	stack := []hostFrame{{hostPath: base, relPath: ""}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(frame.hostPath)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if name == ".git" {
				continue
			}
			relPath := name
			if frame.relPath != "" {
				relPath = frame.relPath + "/" + name
			}
			hostPath := filepath.Join(frame.hostPath, name)
			info, err := os.Lstat(hostPath)
			if err != nil {
				continue
			}
			if info.IsDir() {
				result[relPath] = baseEntry{isDir: true}
				stack = append(stack, hostFrame{hostPath: hostPath, relPath: relPath})
				continue
			}
			if info.Mode()&os.ModeSymlink != 0 {
				continue
			}
			result[relPath] = baseEntry{size: info.Size()}
		}
	}
	return result
}

func readBothSides(ctx context.Context, fsys *fs.Filesystem, base, relPath, fsPath string) (oldContent, newContent []byte, err error) {
	oldContent, err = os.ReadFile(filepath.Join(base, filepath.FromSlash(relPath)))
	if err != nil {
		oldContent = nil
		err = nil
	}
	newContent, err = fsys.ReadFile(ctx, fsPath)
	if err != nil {
		return nil, nil, err
	}
	return oldContent, newContent, nil
}

// ExportPatch renders changes as a unified-diff-style stream for human
// review. It is intentionally coarse: the whole old file appears as "-"
// lines followed by the whole new file as "+" lines, not a minimal
// line diff.
func ExportPatch(changes []Change) string {
	var b strings.Builder
	for _, change := range changes {
		oldLines := splitLines(change.OldContent)
		newLines := splitLines(change.NewContent)

		fmt.Fprintf(&b, "diff --git a%s b%s\n", change.Path, change.Path)
		switch change.Type {
		case ChangeAdded:
			b.WriteString("--- /dev/null\n")
			fmt.Fprintf(&b, "+++ b%s\n", change.Path)
		case ChangeDeleted:
			fmt.Fprintf(&b, "--- a%s\n", change.Path)
			b.WriteString("+++ /dev/null\n")
		default:
			fmt.Fprintf(&b, "--- a%s\n", change.Path)
			fmt.Fprintf(&b, "+++ b%s\n", change.Path)
		}
		fmt.Fprintf(&b, "@@ -1,%d +1,%d @@\n", len(oldLines), len(newLines))
		for _, line := range oldLines {
			b.WriteString("-")
			b.WriteString(line)
			b.WriteString("\n")
		}
		for _, line := range newLines {
			b.WriteString("+")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	lines := strings.Split(string(content), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Reset clears the mount and re-runs the import.
func Reset(ctx context.Context, fsys *fs.Filesystem, cfg Config) (*InitResult, error) {
	mount := cfg.mountPath()

	if mount == "/" {
		names, err := fsys.Readdir(ctx, "/")
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if err := fsys.Remove(ctx, "/"+name, &fs.RemoveOptions{Force: true, Recursive: true}); err != nil {
				return nil, err
			}
		}
	} else {
		if err := fsys.Remove(ctx, mount, &fs.RemoveOptions{Force: true, Recursive: true}); err != nil {
			return nil, err
		}
	}

	return Initialize(ctx, fsys, cfg)
}
