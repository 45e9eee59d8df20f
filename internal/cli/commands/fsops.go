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
	"io"
	"os"

	"github.com/spf13/cobra"

	"agentvfs/internal/fs"
)

var lsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List directory contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		entries, err := vfs.Protected.ReaddirPlus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, entry := range entries {
			kind := "-"
			switch {
			case entry.Inode.IsDir():
				kind = "d"
			case entry.Inode.IsSymlink():
				kind = "l"
			}
			fmt.Printf("%s %10d  %s\n", kind, entry.Inode.Size, entry.Name)
		}
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print file contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		data, err := vfs.Protected.ReadFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <path>",
	Short: "Write stdin to a file, creating parent directories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}

		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		return vfs.Protected.WriteFile(cmd.Context(), args[0], data)
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		return vfs.Protected.Mkdir(cmd.Context(), args[0])
	},
}

var (
	rmRecursive bool
	rmForce     bool
)

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		return vfs.Protected.Remove(cmd.Context(), args[0], &fs.RemoveOptions{
			Recursive: rmRecursive,
			Force:     rmForce,
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <old> <new>",
	Short: "Rename or move an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		return vfs.Protected.Rename(cmd.Context(), args[0], args[1])
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dest>",
	Short: "Copy a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		return vfs.Protected.CopyFile(cmd.Context(), args[0], args[1])
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show inode metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		inode, err := vfs.Protected.Stat(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ino:   %d\n", inode.Ino)
		fmt.Printf("mode:  %o\n", inode.Mode)
		fmt.Printf("nlink: %d\n", inode.Nlink)
		fmt.Printf("size:  %d\n", inode.Size)
		fmt.Printf("atime: %s\n", inode.Atime.Format("2006-01-02 15:04:05"))
		fmt.Printf("mtime: %s\n", inode.Mtime.Format("2006-01-02 15:04:05"))
		fmt.Printf("ctime: %s\n", inode.Ctime.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "remove directories recursively")
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "ignore missing paths")

	rootCmd.AddCommand(lsCmd, catCmd, writeCmd, mkdirCmd, rmCmd, mvCmd, cpCmd, statCmd)
}
