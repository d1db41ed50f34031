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

// Package session defines the Session & Memory subsystem's data model:
// the addressable Session record and its four companion artifacts.
package session

import (
	"fmt"
	"time"

	"github.com/cpgames/dagent/internal/message"
)

// Type distinguishes a feature-level session from a task-level one.
type Type string

const (
	TypeFeature Type = "feature"
	TypeTask    Type = "task"
)

// AgentType identifies which role drives a session.
type AgentType string

const (
	AgentFeature AgentType = "feature"
	AgentDev     AgentType = "dev"
	AgentQA      AgentType = "qa"
	AgentHarness AgentType = "harness"
	AgentMerge   AgentType = "merge"
	AgentProject AgentType = "project"
)

// Status is a Session's lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	// StatusError marks a session left StateInconsistent by a partial
	// write detected on boot or mid-compaction (spec §7); buildRequest
	// fails for it until manually repaired.
	StatusError Status = "error"
)

// Key identifies the (feature, task?, state?) tuple a Session is derived
// from. ID() reproduces the spec's deterministic id scheme:
// {sessionType}-{featureId}[-{taskId}][-{taskState}].
type Key struct {
	Type      Type
	AgentType AgentType
	FeatureID string
	TaskID    string
	TaskState string
}

// ID derives the stable session identity for this key.
func (k Key) ID() string {
	id := fmt.Sprintf("%s-%s", k.Type, k.FeatureID)
	if k.TaskID != "" {
		id += "-" + k.TaskID
	}
	if k.TaskState != "" {
		id += "-" + k.TaskState
	}
	return id
}

// Stats is the rolling counter bag a Session carries.
type Stats struct {
	TotalMessages     int        `json:"totalMessages"`
	TotalTokens       int        `json:"totalTokens"`
	TotalCompactions  int        `json:"totalCompactions"`
	LastRequestTokens int        `json:"lastRequestTokens"`
	LastCompactionAt  *time.Time `json:"lastCompactionAt,omitempty"`
}

// Artifacts names the four companion files a Session owns. Archiving a
// session rewrites these to an archive-prefixed form without deleting the
// underlying content.
type Artifacts struct {
	Chat             string `json:"chat"`
	Memory           string `json:"memory"`
	Context          string `json:"context"`
	AgentDescription string `json:"agentDescription"`
}

// NewArtifacts derives the canonical companion filenames for a session id.
func NewArtifacts(id string) Artifacts {
	return Artifacts{
		Chat:             "chat_" + id + ".json",
		Memory:           "memory_" + id + ".json",
		Context:          "context_" + id + ".json",
		AgentDescription: "agent-description_" + id + ".json",
	}
}

// Archived returns a copy of a with every filename archive-prefixed.
func (a Artifacts) Archived() Artifacts {
	return Artifacts{
		Chat:             "archived_" + a.Chat,
		Memory:           "archived_" + a.Memory,
		Context:          "archived_" + a.Context,
		AgentDescription: "archived_" + a.AgentDescription,
	}
}

// Session is the addressable unit of the subsystem: identity, status, and
// pointers to the four on-disk companion artifacts it owns.
type Session struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	AgentType AgentType `json:"agentType"`
	FeatureID string    `json:"featureId"`
	TaskID    string    `json:"taskId,omitempty"`
	TaskState string    `json:"taskState,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Stats     Stats     `json:"stats"`
	Artifacts Artifacts `json:"artifacts"`
}

// Key reconstructs the Key this session was derived from.
func (s Session) Key() Key {
	return Key{Type: s.Type, AgentType: s.AgentType, FeatureID: s.FeatureID, TaskID: s.TaskID, TaskState: s.TaskState}
}

// ChatSession is the chat artifact: an ordered message log plus lifetime
// counters that survive compaction.
type ChatSession struct {
	SessionID             string            `json:"sessionId"`
	Messages              []message.Message `json:"messages"`
	TotalMessages         int               `json:"totalMessages"`
	OldestMessageAt       *time.Time        `json:"oldestMessageAt,omitempty"`
	NewestMessageAt       *time.Time        `json:"newestMessageAt,omitempty"`
}

// MemorySummary is the three-bucket compressed representation of folded
// messages. Critical items are never dropped under pressure, important
// items are dropped last, minor items are dropped first. This is the
// subsystem's canonical bucket vocabulary (see DESIGN.md for the
// critical/important/minor vs. completed/in-progress/pending/blockers/
// decisions ambiguity and why this vocabulary was chosen as canonical).
type MemorySummary struct {
	Critical  []string `json:"critical"`
	Important []string `json:"important"`
	Minor     []string `json:"minor"`
}

// CompactionInfo records the provenance of a Memory version: which chat
// messages were folded into it and when.
type CompactionInfo struct {
	MessagesCompacted int       `json:"messagesCompacted"`
	OldestMessageAt   time.Time `json:"oldestMessageAt"`
	NewestMessageAt   time.Time `json:"newestMessageAt"`
	CompactedAt       time.Time `json:"compactedAt"`
}

// Memory is the memory artifact: a versioned, bucketed summary of every
// message no longer present in the chat artifact.
type Memory struct {
	SessionID      string         `json:"sessionId"`
	Version        int            `json:"version"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	Summary        MemorySummary  `json:"summary"`
	CompactionInfo CompactionInfo `json:"compactionInfo"`
}

// Commit is a single relative-dated git log entry rendered into a context.
type Commit struct {
	Hash         string `json:"hash"`
	Message      string `json:"message"`
	Author       string `json:"author"`
	RelativeDate string `json:"relativeDate"`
}

// Context is the context artifact: an ephemeral, request-scoped snapshot
// of project state, cached to disk only as the most recent copy.
type Context struct {
	ProjectRoot      string   `json:"projectRoot"`
	FeatureID        string   `json:"featureId"`
	FeatureName      string   `json:"featureName"`
	FeatureGoal      string   `json:"featureGoal,omitempty"`
	TaskID           string   `json:"taskId,omitempty"`
	TaskTitle        string   `json:"taskTitle,omitempty"`
	TaskState        string   `json:"taskState,omitempty"`
	DAGSummary       string   `json:"dagSummary,omitempty"`
	DependencyIDs    []string `json:"dependencyIds,omitempty"`
	DependentIDs     []string `json:"dependentIds,omitempty"`
	ProjectStructure string   `json:"projectStructure,omitempty"`
	ClaudeMD         string   `json:"claudeMd,omitempty"`
	ProjectMD        string   `json:"projectMd,omitempty"`
	RecentCommits    []Commit `json:"recentCommits,omitempty"`
	Attachments      []string `json:"attachments,omitempty"`
}

// AgentDescription is the role artifact: static per-agent-type instructions.
type AgentDescription struct {
	AgentType        AgentType `json:"agentType"`
	RoleInstructions string    `json:"roleInstructions"`
	ToolInstructions string    `json:"toolInstructions,omitempty"`
}

// TokenEstimate is the derived, never-persisted per-section accounting
// produced by the token estimator for one candidate request.
type TokenEstimate struct {
	AgentTokens      int  `json:"agentTokens"`
	ContextTokens    int  `json:"contextTokens"`
	CheckpointTokens int  `json:"checkpointTokens"`
	MessagesTokens   int  `json:"messagesTokens"`
	UserPromptTokens int  `json:"userPromptTokens"`
	Total            int  `json:"total"`
	Limit            int  `json:"limit"`
	NeedsCompaction  bool `json:"needsCompaction"`
}
