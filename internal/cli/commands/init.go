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

	"agentvfs"
)

var initChunkSize int

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and bootstrap its schema",
	Long: `Create the agent database file. Opening any other command also
bootstraps the schema on first use; init exists to create the file
up-front, optionally with a non-default chunk size.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := agentvfs.Open(cmd.Context(), agentvfs.Options{
			Path:      flagDB,
			ID:        flagID,
			ChunkSize: initChunkSize,
		})
		if err != nil {
			return err
		}
		defer vfs.Close()

		fmt.Printf("initialized %s (chunk size %d)\n", vfs.Path(), vfs.Store().ChunkSize())
		return nil
	},
}

func init() {
	initCmd.Flags().IntVar(&initChunkSize, "chunk-size", 0, "content chunk size in bytes (default 4096, only on first create)")
	rootCmd.AddCommand(initCmd)
}
