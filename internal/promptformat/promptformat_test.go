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

package promptformat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cpgames/dagent/internal/message"
	"github.com/cpgames/dagent/internal/session"
)

func TestFormatContextAsPrompt_OmitsAbsentSections(t *testing.T) {
	ctx := &session.Context{FeatureName: "Test Feature"}
	out := FormatContextAsPrompt(ctx)
	assert.Contains(t, out, "## Project Context")
	assert.Contains(t, out, "Test Feature")
	assert.NotContains(t, out, "## Current Task")
	assert.NotContains(t, out, "## CLAUDE.md")
}

func TestFormatContextAsPrompt_IncludesPopulatedSections(t *testing.T) {
	ctx := &session.Context{
		FeatureName: "Test Feature",
		TaskID:      "t1",
		TaskTitle:   "Do the thing",
		ClaudeMD:    "Follow the rules.",
		RecentCommits: []session.Commit{
			{Hash: "abc123", Message: "fix bug", Author: "dev", RelativeDate: "2 days ago"},
		},
	}
	out := FormatContextAsPrompt(ctx)
	assert.Contains(t, out, "## Current Task")
	assert.Contains(t, out, "Do the thing")
	assert.Contains(t, out, "## CLAUDE.md")
	assert.Contains(t, out, "## Recent Commits")
	assert.Contains(t, out, "abc123")
}

func TestFormatCheckpointAsPrompt_NilAndEmpty(t *testing.T) {
	assert.Equal(t, "", FormatCheckpointAsPrompt(nil))
	assert.Equal(t, "", FormatCheckpointAsPrompt(&session.Memory{}))
}

func TestFormatCheckpointAsPrompt_OmitsEmptyBuckets(t *testing.T) {
	mem := &session.Memory{Summary: session.MemorySummary{Critical: []string{"decided to use postgres"}}}
	out := FormatCheckpointAsPrompt(mem)
	assert.Contains(t, out, "## Session Checkpoint")
	assert.Contains(t, out, "### Critical")
	assert.NotContains(t, out, "### Important")
	assert.NotContains(t, out, "### Minor")
}

func TestFormatMessagesAsPrompt_Empty(t *testing.T) {
	assert.Equal(t, "", FormatMessagesAsPrompt(nil))
}

func TestFormatMessagesAsPrompt_S5(t *testing.T) {
	msgs := []message.Message{{Role: message.RoleUser, Content: "Create a task"}}
	out := FormatMessagesAsPrompt(msgs)
	assert.Contains(t, out, "## Recent Conversation")
	assert.Contains(t, out, "**User**")
	assert.Contains(t, out, "Create a task")
}
