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

// Package sessionmgr implements C6, the SessionManager: the only entry
// point the rest of the orchestrator talks to. It composes SessionStore,
// the token estimator, the prompt formatter, the ContextAssembler, and the
// CompactionEngine behind the operations spec §4.6 names, and owns the
// per-session advisory locking spec §7 requires.
package sessionmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cpgames/dagent/internal/compaction"
	"github.com/cpgames/dagent/internal/contextassembler"
	"github.com/cpgames/dagent/internal/eventbus"
	"github.com/cpgames/dagent/internal/log"
	"github.com/cpgames/dagent/internal/message"
	"github.com/cpgames/dagent/internal/promptformat"
	"github.com/cpgames/dagent/internal/session"
	"github.com/cpgames/dagent/internal/sessionstore"
	"github.com/cpgames/dagent/internal/tokenestimator"
)

// AgentRequest is what buildRequest returns: a fully composed request
// ready to hand to the Agent Service, plus the estimate the caller uses to
// decide whether to compact first.
type AgentRequest struct {
	SystemPrompt string
	UserPrompt   string
	Messages     []message.Message
	Estimate     session.TokenEstimate
}

// Preview is previewRequest's pure-inspection result.
type Preview struct {
	SystemPrompt string
	UserPrompt   string
	Breakdown    session.TokenEstimate
}

// NewSessionParams is getOrCreateSession's input.
type NewSessionParams struct {
	Type      session.Type
	AgentType session.AgentType
	FeatureID string
	TaskID    string
	TaskState string
}

func (p NewSessionParams) key() session.Key {
	return session.Key{Type: p.Type, AgentType: p.AgentType, FeatureID: p.FeatureID, TaskID: p.TaskID, TaskState: p.TaskState}
}

// Manager is the Session & Memory subsystem's façade. The zero value is
// not usable; construct with New.
type Manager struct {
	store     *sessionstore.Store
	compactor *compaction.Engine
	bus       *eventbus.Bus
	assembler *contextassembler.Assembler

	locks sync.Map // session id -> *sync.Mutex, lazily created (grounded on the teacher pack's compactionManager.sessionMutex pattern)
}

// New builds a Manager. bus and assembler may be nil: with no bus,
// lifecycle events are not published; with no assembler, RefreshContext
// fails with ErrMissingPrerequisite and UpdateContext remains the only way
// to set a session's context artifact. Both are useful in tests.
func New(store *sessionstore.Store, compactor *compaction.Engine, bus *eventbus.Bus, assembler *contextassembler.Assembler) *Manager {
	return &Manager{store: store, compactor: compactor, bus: bus, assembler: assembler}
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	actual, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// acquire takes sessionID's advisory lock without waiting: a concurrent
// operation on the same session fails fast with ErrBusy rather than
// queuing behind it (spec §7's "Busy" outcome only means something if a
// second caller can actually observe it).
func (m *Manager) acquire(sessionID string) (func(), error) {
	lock := m.lockFor(sessionID)
	if !lock.TryLock() {
		return nil, fmt.Errorf("sessionmgr: session %s: %w", sessionID, session.ErrBusy)
	}
	return lock.Unlock, nil
}

func (m *Manager) publish(event session.UpdateEvent) {
	if m.bus != nil {
		m.bus.Publish(event)
	}
}

// GetOrCreateSession derives the deterministic id for params and returns
// the matching Session, creating it if absent.
func (m *Manager) GetOrCreateSession(params NewSessionParams) (*session.Session, error) {
	id := params.key().ID()
	unlock, err := m.acquire(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := m.store.Load(id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &session.Session{
		ID:        id,
		Type:      params.Type,
		AgentType: params.AgentType,
		FeatureID: params.FeatureID,
		TaskID:    params.TaskID,
		TaskState: params.TaskState,
		Status:    session.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Artifacts: session.NewArtifacts(id),
	}
	if err := m.store.Save(rec); err != nil {
		return nil, fmt.Errorf("sessionmgr: getOrCreateSession: %w", err)
	}
	if err := m.store.SaveChat(rec.Artifacts.Chat, &session.ChatSession{SessionID: id}); err != nil {
		return nil, fmt.Errorf("sessionmgr: getOrCreateSession: seed chat: %w", err)
	}

	m.publish(session.UpdateEvent{SessionID: id, FeatureID: rec.FeatureID, TaskID: rec.TaskID, Action: session.ActionReady, Timestamp: now})
	return rec, nil
}

// SetAgentDescription write-throughs the role artifact for sessionID.
func (m *Manager) SetAgentDescription(sessionID string, desc session.AgentDescription) error {
	unlock, err := m.acquire(sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := m.store.Load(sessionID)
	if err != nil {
		return fmt.Errorf("sessionmgr: setAgentDescription: %w", err)
	}
	if err := m.store.SaveAgentDescription(sessionID, rec.Artifacts.AgentDescription, &desc); err != nil {
		return fmt.Errorf("sessionmgr: setAgentDescription: %w", err)
	}
	return nil
}

// UpdateContext write-throughs the context artifact for sessionID.
func (m *Manager) UpdateContext(sessionID string, ctx *session.Context) error {
	unlock, err := m.acquire(sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := m.store.Load(sessionID)
	if err != nil {
		return fmt.Errorf("sessionmgr: updateContext: %w", err)
	}
	if err := m.store.SaveContext(sessionID, rec.Artifacts.Context, ctx); err != nil {
		return fmt.Errorf("sessionmgr: updateContext: %w", err)
	}
	return nil
}

// RefreshContext obtains a fresh SessionContext from the ContextAssembler
// (spec §2's data flow) and persists it as sessionID's context artifact.
// Fails with ErrMissingPrerequisite if the Manager was built without an
// assembler.
func (m *Manager) RefreshContext(sessionID string, req contextassembler.Request) (*session.Context, error) {
	if m.assembler == nil {
		return nil, fmt.Errorf("sessionmgr: refreshContext: %w: no ContextAssembler configured", session.ErrMissingPrerequisite)
	}

	unlock, err := m.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := m.store.Load(sessionID)
	if err != nil {
		return nil, fmt.Errorf("sessionmgr: refreshContext: %w", err)
	}

	ctx, err := m.assembler.Assemble(req)
	if err != nil {
		return nil, fmt.Errorf("sessionmgr: refreshContext: %w", err)
	}
	if err := m.store.SaveContext(sessionID, rec.Artifacts.Context, ctx); err != nil {
		return nil, fmt.Errorf("sessionmgr: refreshContext: %w", err)
	}
	return ctx, nil
}

// AddMessage assigns id and timestamp, appends partial to sessionID's
// chat, increments totalMessages, and emits message_added.
func (m *Manager) AddMessage(sessionID string, partial message.Message) (message.Message, error) {
	unlock, err := m.acquire(sessionID)
	if err != nil {
		return message.Message{}, err
	}
	defer unlock()

	rec, err := m.store.Load(sessionID)
	if err != nil {
		return message.Message{}, fmt.Errorf("sessionmgr: addMessage: %w", err)
	}
	chat, err := m.store.LoadChat(sessionID, rec.Artifacts.Chat)
	if err != nil {
		return message.Message{}, fmt.Errorf("sessionmgr: addMessage: %w", err)
	}

	now := time.Now().UTC()
	partial.Timestamp = now
	if partial.ID == "" {
		partial.ID = fmt.Sprintf("msg-%s", uuid.New().String()[:8])
	}
	chat.Messages = append(chat.Messages, partial)
	chat.TotalMessages++
	chat.NewestMessageAt = &now
	if chat.OldestMessageAt == nil {
		chat.OldestMessageAt = &now
	}

	if err := m.store.SaveChat(rec.Artifacts.Chat, chat); err != nil {
		return message.Message{}, fmt.Errorf("sessionmgr: addMessage: %w", err)
	}

	rec.Stats.TotalMessages = chat.TotalMessages
	rec.UpdatedAt = now
	if err := m.store.Save(rec); err != nil {
		return message.Message{}, fmt.Errorf("sessionmgr: addMessage: %w", err)
	}

	m.publish(session.UpdateEvent{SessionID: sessionID, FeatureID: rec.FeatureID, TaskID: rec.TaskID, Action: session.ActionMessageAdded, Timestamp: now})
	return partial, nil
}

// loadBundle reads everything buildRequest/previewRequest need. memory is
// nil, not an error, when the session has never been compacted.
func (m *Manager) loadBundle(sessionID string) (*session.Session, *session.ChatSession, *session.Memory, *session.Context, *session.AgentDescription, error) {
	rec, err := m.store.Load(sessionID)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	chat, err := m.store.LoadChat(sessionID, rec.Artifacts.Chat)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	desc, err := m.store.LoadAgentDescription(sessionID, rec.Artifacts.AgentDescription)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil, nil, nil, nil, fmt.Errorf("%w: agent description not set", session.ErrMissingPrerequisite)
		}
		return nil, nil, nil, nil, nil, err
	}
	ctx, err := m.store.LoadContext(sessionID, rec.Artifacts.Context)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil, nil, nil, nil, fmt.Errorf("%w: context not set", session.ErrMissingPrerequisite)
		}
		return nil, nil, nil, nil, nil, err
	}
	mem, err := m.store.LoadMemory(sessionID, rec.Artifacts.Memory)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			return nil, nil, nil, nil, nil, err
		}
		mem = nil
	}
	return rec, chat, mem, ctx, desc, nil
}

// BuildRequest composes the full request: systemPrompt = agent + context +
// checkpoint? + messages, userPrompt as given, with its token estimate
// attached. It never compacts — spec §4.6 leaves that to the caller,
// keyed off Estimate.NeedsCompaction.
func (m *Manager) BuildRequest(ctx context.Context, sessionID string, userPrompt string) (AgentRequest, error) {
	if err := ctx.Err(); err != nil {
		return AgentRequest{}, deadlineErr(err)
	}

	unlock, err := m.acquire(sessionID)
	if err != nil {
		return AgentRequest{}, err
	}
	defer unlock()

	rec, chat, mem, sctx, desc, err := m.loadBundle(sessionID)
	if err != nil {
		return AgentRequest{}, fmt.Errorf("sessionmgr: buildRequest: %w", err)
	}
	if rec.Status == session.StatusError {
		return AgentRequest{}, fmt.Errorf("sessionmgr: buildRequest: %w", session.ErrStateInconsistent)
	}

	estimate, err := tokenestimator.EstimateRequest(tokenestimator.RequestInput{
		AgentDescription: desc,
		Context:          sctx,
		Checkpoint:       mem,
		Messages:         chat.Messages,
		UserPrompt:       userPrompt,
	})
	if err != nil {
		return AgentRequest{}, fmt.Errorf("sessionmgr: buildRequest: %w", err)
	}

	systemPrompt := composeSystemPrompt(desc, sctx, mem, chat.Messages)
	return AgentRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Messages:     chat.Messages,
		Estimate:     estimate,
	}, nil
}

// PreviewRequest is BuildRequest's side-effect-free twin: same composition
// and estimate, with no StatusError check, for callers (the demo CLI)
// that just want to inspect a session without participating in its
// request lifecycle.
func (m *Manager) PreviewRequest(sessionID string, userPrompt string) (Preview, error) {
	unlock, err := m.acquire(sessionID)
	if err != nil {
		return Preview{}, err
	}
	defer unlock()

	_, chat, mem, sctx, desc, err := m.loadBundle(sessionID)
	if err != nil {
		return Preview{}, fmt.Errorf("sessionmgr: previewRequest: %w", err)
	}

	estimate, err := tokenestimator.EstimateRequest(tokenestimator.RequestInput{
		AgentDescription: desc,
		Context:          sctx,
		Checkpoint:       mem,
		Messages:         chat.Messages,
		UserPrompt:       userPrompt,
	})
	if err != nil {
		return Preview{}, fmt.Errorf("sessionmgr: previewRequest: %w", err)
	}

	return Preview{
		SystemPrompt: composeSystemPrompt(desc, sctx, mem, chat.Messages),
		UserPrompt:   userPrompt,
		Breakdown:    estimate,
	}, nil
}

func composeSystemPrompt(desc *session.AgentDescription, sctx *session.Context, mem *session.Memory, msgs []message.Message) string {
	var parts []string
	if desc != nil {
		if desc.RoleInstructions != "" {
			parts = append(parts, desc.RoleInstructions)
		}
		if desc.ToolInstructions != "" {
			parts = append(parts, desc.ToolInstructions)
		}
	}
	if p := promptformat.FormatContextAsPrompt(sctx); p != "" {
		parts = append(parts, p)
	}
	if p := promptformat.FormatCheckpointAsPrompt(mem); p != "" {
		parts = append(parts, p)
	}
	if p := promptformat.FormatMessagesAsPrompt(msgs); p != "" {
		parts = append(parts, p)
	}
	result := ""
	for i, p := range parts {
		if i > 0 {
			result += "\n\n"
		}
		result += p
	}
	return result
}

// ForceCompact runs the compaction protocol for sessionID regardless of
// its current token estimate. Fails with NotFound if the session does
// not exist.
func (m *Manager) ForceCompact(ctx context.Context, sessionID string) (compaction.Result, error) {
	if err := ctx.Err(); err != nil {
		return compaction.Result{}, deadlineErr(err)
	}

	unlock, err := m.acquire(sessionID)
	if err != nil {
		return compaction.Result{}, err
	}
	defer unlock()

	rec, err := m.store.Load(sessionID)
	if err != nil {
		return compaction.Result{}, fmt.Errorf("sessionmgr: forceCompact: %w", err)
	}
	chat, err := m.store.LoadChat(sessionID, rec.Artifacts.Chat)
	if err != nil {
		return compaction.Result{}, fmt.Errorf("sessionmgr: forceCompact: %w", err)
	}
	mem, err := m.store.LoadMemory(sessionID, rec.Artifacts.Memory)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			return compaction.Result{}, fmt.Errorf("sessionmgr: forceCompact: %w", err)
		}
		mem = nil
	}

	result, _, err := m.compactor.Compact(ctx, rec, chat, mem)
	if err != nil {
		return compaction.Result{}, fmt.Errorf("sessionmgr: forceCompact: %w", err)
	}
	return result, nil
}

// Archive transitions sessionID to its terminal state. Archiving an
// already-archived session is a no-op.
func (m *Manager) Archive(sessionID string) error {
	unlock, err := m.acquire(sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := m.store.Load(sessionID)
	if err != nil {
		return fmt.Errorf("sessionmgr: archive: %w", err)
	}
	if rec.Status == session.StatusArchived {
		return nil
	}
	if err := m.store.Archive(rec); err != nil {
		return fmt.Errorf("sessionmgr: archive: %w", err)
	}
	m.publish(session.UpdateEvent{SessionID: sessionID, FeatureID: rec.FeatureID, TaskID: rec.TaskID, Action: session.ActionArchived, Timestamp: time.Now().UTC()})
	return nil
}

// Reconcile runs the boot-time watermark reconciliation spec §5 requires:
// for every active session whose memory carries a compactionInfo newer
// than its chat's oldest message, the overlap is almost certainly the
// result of a crash between the swap's two writes (memory landed, chat
// truncation did not) — it is dropped here rather than re-folded, since
// the memory already has it.
func (m *Manager) Reconcile() error {
	ids, err := m.store.List()
	if err != nil {
		return fmt.Errorf("sessionmgr: reconcile: %w", err)
	}
	for _, id := range ids {
		if err := m.reconcileOne(id); err != nil {
			log.Error("sessionmgr: reconcile failed for session", zap.String("session_id", id), zap.Error(err))
		}
	}
	return nil
}

func (m *Manager) reconcileOne(id string) error {
	rec, err := m.store.Load(id)
	if err != nil {
		return err
	}
	if rec.Status != session.StatusActive {
		return nil
	}
	mem, err := m.store.LoadMemory(id, rec.Artifacts.Memory)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return err
	}
	chat, err := m.store.LoadChat(id, rec.Artifacts.Chat)
	if err != nil {
		return err
	}

	watermark := mem.CompactionInfo.NewestMessageAt
	if watermark.IsZero() {
		return nil
	}

	kept := chat.Messages[:0:0]
	for _, msg := range chat.Messages {
		if msg.Timestamp.After(watermark) {
			kept = append(kept, msg)
		}
	}
	if len(kept) == len(chat.Messages) {
		return nil
	}

	chat.Messages = kept
	if len(kept) > 0 {
		oldest, newest := kept[0].Timestamp, kept[len(kept)-1].Timestamp
		chat.OldestMessageAt = &oldest
		chat.NewestMessageAt = &newest
	} else {
		chat.OldestMessageAt = nil
		chat.NewestMessageAt = nil
	}
	return m.store.SaveChat(rec.Artifacts.Chat, chat)
}

func deadlineErr(err error) error {
	return fmt.Errorf("sessionmgr: %w: %w", session.ErrDeadlineExceeded, err)
}
