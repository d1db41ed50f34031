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

// Package tokenestimator implements the deterministic token-estimation
// heuristic (C1): 4 chars/token plus fixed per-section overheads. It
// deliberately does not call out to a tokenizer — spec §9 requires exact
// determinism and monotonicity in message length, which a heuristic gives
// for free and a real BPE tokenizer does not trivially guarantee across
// model versions.
package tokenestimator

import (
	"fmt"
	"math"
	"strings"

	"github.com/cpgames/dagent/internal/config"
	"github.com/cpgames/dagent/internal/message"
	"github.com/cpgames/dagent/internal/session"
)

// fixed per-section overheads, spec §4.1.
const (
	messageOverhead          = 10
	checkpointOverhead       = 50
	contextOverhead          = 100
	agentDescriptionOverhead = 20
)

// EstimateTokens is the base heuristic: ceil(len(s)/4), 0 for empty input.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / float64(config.CharsPerToken)))
}

// EstimateMessagesTokens sums per-message cost: EstimateTokens(content) +
// messageOverhead, substituting the model-reported (input+output) count for
// the content estimate when a message carries one.
func EstimateMessagesTokens(msgs []message.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageTokens(m)
	}
	return total
}

func messageTokens(m message.Message) int {
	content := EstimateTokens(m.Content)
	if m.Metadata != nil && m.Metadata.Tokens != nil {
		content = m.Metadata.Tokens.Input + m.Metadata.Tokens.Output
	}
	return content + messageOverhead
}

// EstimateCheckpointTokens sums EstimateTokens(join(bucket, "\n")) over the
// memory's three buckets, plus checkpointOverhead. Fails loudly on a nil
// memory per spec §4.1.
func EstimateCheckpointTokens(m *session.Memory) (int, error) {
	if m == nil {
		return 0, fmt.Errorf("tokenestimator: EstimateCheckpointTokens: %w", errNilMemory)
	}
	total := checkpointOverhead
	for _, bucket := range [][]string{m.Summary.Critical, m.Summary.Important, m.Summary.Minor} {
		if len(bucket) == 0 {
			continue
		}
		total += EstimateTokens(strings.Join(bucket, "\n"))
	}
	return total, nil
}

var errNilMemory = fmt.Errorf("memory is nil")

// EstimateContextTokens sums the token estimate of every populated text
// field plus contextOverhead. Array fields are newline-joined before
// estimation; empty fields contribute nothing.
func EstimateContextTokens(c *session.Context) int {
	if c == nil {
		return contextOverhead
	}
	total := contextOverhead
	for _, f := range []string{
		c.ProjectRoot, c.FeatureID, c.FeatureName, c.FeatureGoal,
		c.TaskID, c.TaskTitle, c.TaskState, c.DAGSummary,
		c.ProjectStructure, c.ClaudeMD, c.ProjectMD,
	} {
		if f != "" {
			total += EstimateTokens(f)
		}
	}
	if len(c.DependencyIDs) > 0 {
		total += EstimateTokens(strings.Join(c.DependencyIDs, "\n"))
	}
	if len(c.DependentIDs) > 0 {
		total += EstimateTokens(strings.Join(c.DependentIDs, "\n"))
	}
	if len(c.RecentCommits) > 0 {
		lines := make([]string, len(c.RecentCommits))
		for i, cm := range c.RecentCommits {
			lines[i] = fmt.Sprintf("%s %s %s %s", cm.Hash, cm.Message, cm.Author, cm.RelativeDate)
		}
		total += EstimateTokens(strings.Join(lines, "\n"))
	}
	if len(c.Attachments) > 0 {
		total += EstimateTokens(strings.Join(c.Attachments, "\n"))
	}
	return total
}

// EstimateAgentDescriptionTokens is tokens(roleInstructions) +
// tokens(toolInstructions) + agentDescriptionOverhead.
func EstimateAgentDescriptionTokens(d *session.AgentDescription) int {
	if d == nil {
		return agentDescriptionOverhead
	}
	return EstimateTokens(d.RoleInstructions) + EstimateTokens(d.ToolInstructions) + agentDescriptionOverhead
}

// RequestInput is everything EstimateRequest needs to compose a token
// estimate for a candidate request. Checkpoint is optional: absent when no
// memory has been created yet for the session.
type RequestInput struct {
	AgentDescription *session.AgentDescription
	Context          *session.Context
	Checkpoint       *session.Memory
	Messages         []message.Message
	UserPrompt       string
}

// EstimateRequest composes the full per-section accounting for a candidate
// request: total = system + userPrompt, where
// system = agent + context + checkpoint? + messages.
func EstimateRequest(r RequestInput) (session.TokenEstimate, error) {
	agentTokens := EstimateAgentDescriptionTokens(r.AgentDescription)
	contextTokens := EstimateContextTokens(r.Context)
	messagesTokens := EstimateMessagesTokens(r.Messages)
	userPromptTokens := EstimateTokens(r.UserPrompt)

	checkpointTokens := 0
	if r.Checkpoint != nil {
		t, err := EstimateCheckpointTokens(r.Checkpoint)
		if err != nil {
			return session.TokenEstimate{}, fmt.Errorf("tokenestimator: EstimateRequest: %w", err)
		}
		checkpointTokens = t
	}

	system := agentTokens + contextTokens + checkpointTokens + messagesTokens
	total := system + userPromptTokens

	return session.TokenEstimate{
		AgentTokens:      agentTokens,
		ContextTokens:    contextTokens,
		CheckpointTokens: checkpointTokens,
		MessagesTokens:   messagesTokens,
		UserPromptTokens: userPromptTokens,
		Total:            total,
		Limit:            config.TokenLimit,
		NeedsCompaction:  total > config.CompactionThreshold,
	}, nil
}

// EstimateTokensReclaimed predicts the token savings of folding messages
// into the current checkpoint: the new memory is assumed to compress to
// roughly 30% of the combined size of the current memory and the folded
// messages, so reclaimed = combined - 0.3*combined.
func EstimateTokensReclaimed(msgs []message.Message, currentCheckpoint *session.Memory) (int, error) {
	combined := EstimateMessagesTokens(msgs)
	if currentCheckpoint != nil {
		t, err := EstimateCheckpointTokens(currentCheckpoint)
		if err != nil {
			return 0, fmt.Errorf("tokenestimator: EstimateTokensReclaimed: %w", err)
		}
		combined += t
	}
	newMemorySize := int(math.Round(float64(combined) * 0.3))
	return combined - newMemorySize, nil
}

// DetermineMessagesToKeep walks msgs from newest to oldest, accumulating
// per-message cost until the next message would exceed limit, and returns
// how many trailing messages fit. Always returns at least 1 when msgs is
// non-empty (a single oversized message is still kept).
func DetermineMessagesToKeep(msgs []message.Message, limit int) int {
	if len(msgs) == 0 {
		return 0
	}
	if limit <= 0 {
		limit = config.DefaultKeepLimit
	}
	kept := 0
	cost := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		c := messageTokens(msgs[i])
		if kept > 0 && cost+c > limit {
			break
		}
		cost += c
		kept++
	}
	if kept == 0 {
		kept = 1
	}
	return kept
}
