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

package tokenestimator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpgames/dagent/internal/message"
	"github.com/cpgames/dagent/internal/session"
)

func TestEstimateTokens_Invariant(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	cases := []string{"a", "ab", "abc", "abcd", "abcde", strings.Repeat("x", 4001)}
	for _, s := range cases {
		want := (len(s) + 3) / 4
		assert.Equal(t, want, EstimateTokens(s), "string of length %d", len(s))
	}
}

// S1. Token estimate of empty body.
func TestEstimateRequest_S1_EmptyBody(t *testing.T) {
	desc := &session.AgentDescription{RoleInstructions: ""}
	ctx := &session.Context{ProjectRoot: "", FeatureID: "", FeatureName: ""}

	est, err := EstimateRequest(RequestInput{
		AgentDescription: desc,
		Context:          ctx,
		UserPrompt:       "",
	})
	require.NoError(t, err)
	assert.Equal(t, 120, est.Total)
	assert.False(t, est.NeedsCompaction)
}

// S2. Single user message.
func TestEstimateMessagesTokens_S2(t *testing.T) {
	msgs := []message.Message{{Role: message.RoleUser, Content: "12345678901234567890"}}
	assert.Equal(t, 15, EstimateMessagesTokens(msgs))
}

// S3. Compaction threshold.
func TestEstimateRequest_S3_CompactionThreshold(t *testing.T) {
	desc := &session.AgentDescription{RoleInstructions: strings.Repeat("x", 400000)}
	ctx := &session.Context{}

	est, err := EstimateRequest(RequestInput{AgentDescription: desc, Context: ctx})
	require.NoError(t, err)
	assert.True(t, est.NeedsCompaction)
}

func TestEstimateCheckpointTokens_NilFailsLoudly(t *testing.T) {
	_, err := EstimateCheckpointTokens(nil)
	assert.Error(t, err)
}

// Invariant 2: total = agent + context + memory + messages + userPrompt.
func TestEstimateRequest_Invariant2(t *testing.T) {
	desc := &session.AgentDescription{RoleInstructions: "You are a PM.", ToolInstructions: "Use tools wisely."}
	ctx := &session.Context{ProjectRoot: "/p", FeatureID: "f1", FeatureName: "Test Feature"}
	mem := &session.Memory{Summary: session.MemorySummary{Critical: []string{"decided X"}}}
	msgs := []message.Message{{Role: message.RoleUser, Content: "hello there"}}

	est, err := EstimateRequest(RequestInput{
		AgentDescription: desc,
		Context:          ctx,
		Checkpoint:       mem,
		Messages:         msgs,
		UserPrompt:       "what next?",
	})
	require.NoError(t, err)
	assert.Equal(t, est.AgentTokens+est.ContextTokens+est.CheckpointTokens+est.MessagesTokens+est.UserPromptTokens, est.Total)
}

// Invariant 5: determineMessagesToKeep >= 1 and fits the limit unless no
// single message does.
func TestDetermineMessagesToKeep_Invariant5(t *testing.T) {
	var msgs []message.Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, message.Message{Role: message.RoleUser, Content: strings.Repeat("a", 400)})
	}
	keep := DetermineMessagesToKeep(msgs, 1000)
	assert.GreaterOrEqual(t, keep, 1)
	assert.LessOrEqual(t, keep, len(msgs))
	assert.LessOrEqual(t, EstimateMessagesTokens(msgs[len(msgs)-keep:]), 1000)

	// A single oversized message is still kept.
	huge := []message.Message{{Role: message.RoleUser, Content: strings.Repeat("z", 100000)}}
	assert.Equal(t, 1, DetermineMessagesToKeep(huge, 10))
}

func TestDetermineMessagesToKeep_Empty(t *testing.T) {
	assert.Equal(t, 0, DetermineMessagesToKeep(nil, 1000))
}

func TestEstimateTokensReclaimed(t *testing.T) {
	var msgs []message.Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, message.Message{Role: message.RoleUser, Content: strings.Repeat("a", 400)})
	}
	reclaimed, err := EstimateTokensReclaimed(msgs, nil)
	require.NoError(t, err)
	assert.Greater(t, reclaimed, 0)
}
