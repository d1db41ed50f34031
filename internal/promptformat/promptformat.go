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

// Package promptformat renders context, memory, and message-sequence data
// into the markdown-like prompt fragments SessionManager composes into a
// request's system prompt (C2). Every function here is pure: same input,
// same output, no I/O.
package promptformat

import (
	"fmt"
	"strings"

	"github.com/cpgames/dagent/internal/message"
	"github.com/cpgames/dagent/internal/session"
)

// FormatContextAsPrompt renders a SessionContext into "## Project Context"
// and its optional subsections, omitting any section whose source is
// absent.
func FormatContextAsPrompt(c *session.Context) string {
	if c == nil {
		return ""
	}
	var b strings.Builder

	b.WriteString("## Project Context\n\n")
	b.WriteString(fmt.Sprintf("Feature: %s", c.FeatureName))
	if c.FeatureGoal != "" {
		b.WriteString(fmt.Sprintf(" — %s", c.FeatureGoal))
	}
	b.WriteString("\n")

	if c.TaskID != "" {
		b.WriteString("\n## Current Task\n\n")
		b.WriteString(fmt.Sprintf("ID: %s\n", c.TaskID))
		if c.TaskTitle != "" {
			b.WriteString(fmt.Sprintf("Title: %s\n", c.TaskTitle))
		}
		if c.TaskState != "" {
			b.WriteString(fmt.Sprintf("State: %s\n", c.TaskState))
		}
		if len(c.DependencyIDs) > 0 {
			b.WriteString(fmt.Sprintf("Blocked by: %s\n", strings.Join(c.DependencyIDs, ", ")))
		}
		if len(c.DependentIDs) > 0 {
			b.WriteString(fmt.Sprintf("Blocking: %s\n", strings.Join(c.DependentIDs, ", ")))
		}
	}

	if c.ProjectStructure != "" {
		b.WriteString("\n## Project Structure\n\n")
		b.WriteString(c.ProjectStructure)
		b.WriteString("\n")
	}

	if c.ClaudeMD != "" {
		b.WriteString("\n## CLAUDE.md\n\n")
		b.WriteString(c.ClaudeMD)
		b.WriteString("\n")
	}

	if c.ProjectMD != "" {
		b.WriteString("\n## PROJECT.md\n\n")
		b.WriteString(c.ProjectMD)
		b.WriteString("\n")
	}

	if len(c.RecentCommits) > 0 {
		b.WriteString("\n## Recent Commits\n\n")
		for _, commit := range c.RecentCommits {
			b.WriteString(fmt.Sprintf("- %s %s (%s, %s)\n", commit.Hash, commit.Message, commit.Author, commit.RelativeDate))
		}
	}

	if len(c.Attachments) > 0 {
		b.WriteString("\n## Attachments\n\n")
		for _, a := range c.Attachments {
			b.WriteString(fmt.Sprintf("- %s\n", a))
		}
	}

	return b.String()
}

// FormatCheckpointAsPrompt renders a Memory into "## Session Checkpoint"
// with one subsection per bucket (critical/important/minor — the canonical
// vocabulary this subsystem uses throughout, see DESIGN.md), omitting empty
// buckets. Returns "" for a nil memory: there is nothing to check in yet.
func FormatCheckpointAsPrompt(m *session.Memory) string {
	if m == nil {
		return ""
	}
	sections := []struct {
		title string
		items []string
	}{
		{"Critical", m.Summary.Critical},
		{"Important", m.Summary.Important},
		{"Minor", m.Summary.Minor},
	}

	var any bool
	for _, s := range sections {
		if len(s.items) > 0 {
			any = true
			break
		}
	}
	if !any {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Session Checkpoint\n")
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("\n### %s\n\n", s.title))
		for _, item := range s.items {
			b.WriteString(fmt.Sprintf("- %s\n", item))
		}
	}
	return b.String()
}

// FormatMessagesAsPrompt renders an ordered message sequence into
// "## Recent Conversation" followed by one role-labeled block per message.
// An empty input returns "".
func FormatMessagesAsPrompt(msgs []message.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Recent Conversation\n")
	for _, m := range msgs {
		b.WriteString(fmt.Sprintf("\n**%s**\n\n%s\n", roleLabel(m.Role), m.Content))
	}
	return b.String()
}

func roleLabel(r message.Role) string {
	switch r {
	case message.RoleUser:
		return "User"
	case message.RoleAssistant:
		return "Assistant"
	case message.RoleSystem:
		return "System"
	default:
		return string(r)
	}
}
