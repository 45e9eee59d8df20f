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

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentvfs/internal/overlay"
)

var (
	overlayMount     string
	overlayExcludes  []string
	overlayGitignore bool
)

var importCmd = &cobra.Command{
	Use:   "import <host-dir>",
	Short: "Import a host directory tree into the filesystem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		result, err := overlay.Initialize(cmd.Context(), vfs.FS, overlay.Config{
			BasePath:         args[0],
			MountPath:        overlayMount,
			ExcludePatterns:  overlayExcludes,
			RespectGitignore: overlayGitignore,
		})
		if err != nil {
			return err
		}

		fmt.Printf("imported %d files (%d bytes), created %d directories\n",
			result.FilesImported, result.BytesImported, result.DirectoriesCreated)
		if len(result.ExcludedPaths) > 0 {
			fmt.Printf("excluded %d paths\n", len(result.ExcludedPaths))
		}
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <host-dir>",
	Short: "Show drift between the filesystem and a host directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		changes, err := overlay.ChangeSet(cmd.Context(), vfs.FS, args[0], overlayMount)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			fmt.Println("no changes")
			return nil
		}
		fmt.Print(overlay.ExportPatch(changes))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <host-dir>",
	Short: "Clear the mount and re-import the host directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		result, err := overlay.Reset(cmd.Context(), vfs.FS, overlay.Config{
			BasePath:         args[0],
			MountPath:        overlayMount,
			ExcludePatterns:  overlayExcludes,
			RespectGitignore: overlayGitignore,
		})
		if err != nil {
			return err
		}

		fmt.Printf("reset: imported %d files (%d bytes)\n", result.FilesImported, result.BytesImported)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{importCmd, diffCmd, resetCmd} {
		cmd.Flags().StringVar(&overlayMount, "mount", "/", "mount path inside the filesystem")
		cmd.Flags().StringSliceVar(&overlayExcludes, "exclude", nil, "glob patterns to exclude")
		cmd.Flags().BoolVar(&overlayGitignore, "gitignore", false, "respect .gitignore from the host directory")
	}
	rootCmd.AddCommand(importCmd, diffCmd, resetCmd)
}
