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
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Tool call log operations",
}

var toolsSince int64

var toolsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recent tool calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		calls, err := vfs.Tools.GetRecent(cmd.Context(), toolsSince, 50)
		if err != nil {
			return err
		}
		for _, call := range calls {
			fmt.Printf("#%d %s [%s] started=%d duration=%dms\n",
				call.ID, call.Name, call.Status, call.StartedAt, call.DurationMs)
		}
		return nil
	},
}

var toolsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-tool aggregate statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vfs, err := openVFS(cmd.Context())
		if err != nil {
			return err
		}
		defer vfs.Close()

		stats, err := vfs.Tools.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range stats {
			fmt.Printf("%s: %d calls (%d ok, %d failed), avg %.1fms\n",
				s.Name, s.TotalCalls, s.Successful, s.Failed, s.AvgDurationMs)
		}
		return nil
	},
}

func init() {
	toolsRecentCmd.Flags().Int64Var(&toolsSince, "since", 0, "unix timestamp lower bound")
	toolsCmd.AddCommand(toolsRecentCmd, toolsStatsCmd)
	rootCmd.AddCommand(toolsCmd)
}
