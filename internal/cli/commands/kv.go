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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Key-value store operations",
}

var kvGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the JSON value for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		raw, err := vfs.KV.GetRaw(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

var kvSetCmd = &cobra.Command{
	Use:   "set <key> <json-value>",
	Short: "Store a JSON value under a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			// Not valid JSON: store as a plain string.
			value = args[1]
		}

		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		return vfs.KV.Set(cmd.Context(), args[0], value)
	},
}

var kvDelCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		return vfs.KV.Delete(cmd.Context(), args[0])
	},
}

var kvPrefix string

var kvListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys with timestamps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		entries, err := vfs.KV.List(cmd.Context(), kvPrefix)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			fmt.Printf("%s\t(created %d, updated %d)\n", entry.Key, entry.CreatedAt, entry.UpdatedAt)
		}
		return nil
	},
}

func init() {
	kvListCmd.Flags().StringVar(&kvPrefix, "prefix", "", "only keys with this prefix")
	kvCmd.AddCommand(kvGetCmd, kvSetCmd, kvDelCmd, kvListCmd)
	rootCmd.AddCommand(kvCmd)
}
