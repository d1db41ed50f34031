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

// Package compaction implements C5: the LLM-driven compression protocol
// that folds old chat messages into a new Memory. SessionManager invokes it
// through forceCompact; buildRequest never compacts, so a caller that sees
// needsCompaction true triggers compaction itself through that same path.
package compaction

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cpgames/dagent/internal/agentservice"
	"github.com/cpgames/dagent/internal/log"
	"github.com/cpgames/dagent/internal/session"
	"github.com/cpgames/dagent/internal/sessionstore"
	"github.com/cpgames/dagent/internal/tokenestimator"
)

// Publisher is the subset of EventBus the engine needs to emit `compacted`
// events. Kept as a narrow interface here rather than importing
// internal/eventbus directly, avoiding a dependency cycle.
type Publisher interface {
	Publish(session.UpdateEvent)
}

// Result is CompactionEngine's return value. A failed compaction (Success
// false) leaves the session's on-disk state untouched; only a fatal
// partial-write failure returns a non-nil error.
type Result struct {
	Success           bool
	NewMemory         *session.Memory
	MessagesCompacted int
	TokensReclaimed   int
	Error             error
}

// Engine runs the compaction protocol described in spec §4.5.
type Engine struct {
	store     *sessionstore.Store
	agent     agentservice.Service
	publisher Publisher
	profile   Profile
}

// New builds a compaction Engine. publisher may be nil, in which case no
// `compacted` event is emitted (useful for tests that don't wire an
// EventBus).
func New(store *sessionstore.Store, agent agentservice.Service, publisher Publisher, profile Profile) *Engine {
	if profile == (Profile{}) {
		profile = BalancedProfile
	}
	return &Engine{store: store, agent: agent, publisher: publisher, profile: profile}
}

// Compact runs the full protocol against rec/chat/mem, persisting the
// result through the engine's Store. It never mutates the caller's chat or
// mem in place; it returns what the caller should treat as the new
// authoritative state.
func (e *Engine) Compact(ctx context.Context, rec *session.Session, chat *session.ChatSession, mem *session.Memory) (Result, *session.ChatSession, error) {
	keepLimit := e.profile.KeepLimit(mem)
	keepCount := tokenestimator.DetermineMessagesToKeep(chat.Messages, keepLimit)
	n := len(chat.Messages)

	if n <= keepCount {
		return Result{Success: true, NewMemory: mem, MessagesCompacted: 0}, chat, nil
	}

	toFold := chat.Messages[:n-keepCount]
	tail := chat.Messages[n-keepCount:]

	reclaimed, err := tokenestimator.EstimateTokensReclaimed(toFold, mem)
	if err != nil {
		return Result{Success: false, Error: err}, chat, nil
	}

	prompt := buildCompactionPrompt(mem, toFold)
	events, err := e.agent.StreamQuery(ctx, agentservice.Request{
		SystemPrompt: compactionSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return Result{Success: false, Error: fmt.Errorf("compaction: %w: %w", session.ErrTransport, err)}, chat, nil
	}

	text, err := agentservice.CollectText(events)
	if err != nil {
		return Result{Success: false, Error: fmt.Errorf("compaction: %w: %w", session.ErrTransport, err)}, chat, nil
	}

	summary, err := parseSummary(text)
	if err != nil {
		return Result{Success: false, Error: fmt.Errorf("compaction: parse agent response: %w", err)}, chat, nil
	}

	version := 1
	if mem != nil {
		version = mem.Version + 1
	}
	now := time.Now().UTC()
	newMemory := &session.Memory{
		SessionID: rec.ID,
		Version:   version,
		CreatedAt: firstNonZero(mem, now),
		UpdatedAt: now,
		Summary:   summary,
		CompactionInfo: session.CompactionInfo{
			MessagesCompacted: len(toFold),
			OldestMessageAt:   toFold[0].Timestamp,
			NewestMessageAt:   toFold[len(toFold)-1].Timestamp,
			CompactedAt:       now,
		},
	}

	newChat := &session.ChatSession{
		SessionID:     chat.SessionID,
		Messages:      tail,
		TotalMessages: chat.TotalMessages,
	}
	if len(tail) > 0 {
		oldest, newest := tail[0].Timestamp, tail[len(tail)-1].Timestamp
		newChat.OldestMessageAt = &oldest
		newChat.NewestMessageAt = &newest
	}

	if err := e.atomicSwap(rec, newChat, newMemory); err != nil {
		rec.Status = session.StatusError
		log.Error("compaction: atomic swap failed, session marked inconsistent", zap.String("session_id", rec.ID), zap.Error(err))
		if saveErr := e.store.Save(rec); saveErr != nil {
			log.Error("compaction: failed to persist error status after atomic swap failure", zap.String("session_id", rec.ID), zap.Error(saveErr))
		}
		return Result{}, chat, fmt.Errorf("compaction: %w: %w", session.ErrStateInconsistent, err)
	}

	if e.publisher != nil {
		e.publisher.Publish(session.UpdateEvent{
			SessionID: rec.ID,
			FeatureID: rec.FeatureID,
			TaskID:    rec.TaskID,
			Action:    session.ActionCompacted,
			Timestamp: now,
		})
	}

	return Result{
		Success:           true,
		NewMemory:         newMemory,
		MessagesCompacted: len(toFold),
		TokensReclaimed:   reclaimed,
	}, newChat, nil
}

// atomicSwap writes the new memory first, then the truncated chat, then
// the updated session record — the ordering spec §5 relies on for crash
// recovery: a crash between steps leaves an already-folded memory and a
// still-full chat, reconciled on next boot by watermark (see
// internal/sessionmgr).
func (e *Engine) atomicSwap(rec *session.Session, chat *session.ChatSession, mem *session.Memory) error {
	if err := e.store.SaveMemory(rec.Artifacts.Memory, mem); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	if err := e.store.SaveChat(rec.Artifacts.Chat, chat); err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	rec.Stats.TotalCompactions++
	rec.UpdatedAt = mem.UpdatedAt
	rec.Stats.LastCompactionAt = &mem.UpdatedAt
	if err := e.store.Save(rec); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	return nil
}

func firstNonZero(mem *session.Memory, fallback time.Time) time.Time {
	if mem != nil && !mem.CreatedAt.IsZero() {
		return mem.CreatedAt
	}
	return fallback
}
