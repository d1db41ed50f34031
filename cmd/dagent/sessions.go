// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cpgames/dagent/internal/contextassembler"
	"github.com/cpgames/dagent/internal/fsext"
)

var (
	refreshFeatureID   string
	refreshTaskID      string
	refreshCommitCount int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect sessions under .dagent/sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every session id on disk",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Preview the composed request for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsCompactCmd = &cobra.Command{
	Use:   "compact [session-id]",
	Short: "Force-compact a session's chat into a new memory version",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsCompact,
}

var sessionsRefreshContextCmd = &cobra.Command{
	Use:   "refresh-context [session-id]",
	Short: "Rebuild and persist a session's context artifact from the project tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsRefreshContext,
}

func init() {
	sessionsRefreshContextCmd.Flags().StringVar(&refreshFeatureID, "feature", "", "feature id to summarize into the context")
	sessionsRefreshContextCmd.Flags().StringVar(&refreshTaskID, "task", "", "task id within --feature to focus on")
	sessionsRefreshContextCmd.Flags().IntVar(&refreshCommitCount, "commits", 0, "recent commit count (0 uses the default)")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsCompactCmd, sessionsRefreshContextCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store := buildStore()
	ids, err := store.List()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "project: %s\n", fsext.PrettyPath(projectRoot))
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	mgr := buildManager()
	preview, err := mgr.PreviewRequest(args[0], "")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, preview.SystemPrompt)
	fmt.Fprintf(out, "\n--- token breakdown ---\nagent=%d context=%d checkpoint=%d messages=%d total=%d/%d needsCompaction=%t\n",
		preview.Breakdown.AgentTokens, preview.Breakdown.ContextTokens, preview.Breakdown.CheckpointTokens,
		preview.Breakdown.MessagesTokens, preview.Breakdown.Total, preview.Breakdown.Limit, preview.Breakdown.NeedsCompaction)
	return nil
}

func runSessionsCompact(cmd *cobra.Command, args []string) error {
	mgr := buildManager()
	result, err := mgr.ForceCompact(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "compacted: messages=%d reclaimed=%d tokens, memory version=%d\n",
		result.MessagesCompacted, result.TokensReclaimed, result.NewMemory.Version)
	return nil
}

func runSessionsRefreshContext(cmd *cobra.Command, args []string) error {
	mgr := buildManager()
	ctx, err := mgr.RefreshContext(args[0], contextassembler.Request{
		ProjectRoot: projectRoot,
		FeatureID:   refreshFeatureID,
		TaskID:      refreshTaskID,
		CommitCount: refreshCommitCount,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "context refreshed: feature=%q task=%q commits=%d\n",
		ctx.FeatureName, ctx.TaskTitle, len(ctx.RecentCommits))
	return nil
}
