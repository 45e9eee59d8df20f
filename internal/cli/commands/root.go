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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"agentvfs"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

var (
	flagDB string
	flagID string
)

var rootCmd = &cobra.Command{
	Use:   "agentvfs",
	Short: "Per-agent virtual filesystem backed by a single database file",
	Long: `agentvfs stores a POSIX-like filesystem, a key-value store and a
tool-call log in one embedded database file per agent.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database file path")
	rootCmd.PersistentFlags().StringVar(&flagID, "id", "", "agent id (database at ~/.agentvfs/<id>.db)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openVFS opens the database selected by the persistent flags.
func openVFS(ctx context.Context) (*agentvfs.AgentVFS, error) {
	if flagDB == "" && flagID == "" {
		return nil, fmt.Errorf("one of --db or --id is required")
	}
	return agentvfs.Open(ctx, agentvfs.Options{Path: flagDB, ID: flagID})
}
