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

package compaction

import (
	"strings"

	"github.com/cpgames/dagent/internal/message"
	"github.com/cpgames/dagent/internal/promptformat"
	"github.com/cpgames/dagent/internal/session"
)

// compactionSystemPrompt instructs the agent on the exact grammar
// parseSummary expects back: one "## Critical|Important|Minor" heading per
// non-empty bucket, each followed by "- " bullet lines.
const compactionSystemPrompt = `You compact a coding agent's conversation history into a checkpoint.

Read the current checkpoint (if any) and the messages to fold. Produce an
updated checkpoint with exactly three sections, in this order:

## Critical
## Important
## Minor

Critical items are decisions, facts, and constraints that must never be
lost. Important items matter but can be dropped under pressure. Minor items
are disposable color. Each item is one "- " bullet line. Preserve items
already present in the current checkpoint unless the new messages supersede
them. Omit a section only if it has no items. Output nothing but the three
sections.`

// buildCompactionPrompt composes the user-turn prompt: the current
// checkpoint, then the messages being folded.
func buildCompactionPrompt(mem *session.Memory, toFold []message.Message) string {
	var b strings.Builder
	if checkpoint := promptformat.FormatCheckpointAsPrompt(mem); checkpoint != "" {
		b.WriteString(checkpoint)
		b.WriteString("\n")
	} else {
		b.WriteString("## Session Checkpoint\n\n(none yet)\n\n")
	}
	b.WriteString(promptformat.FormatMessagesAsPrompt(toFold))
	return b.String()
}
