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
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpgames/dagent/internal/agentservice"
	"github.com/cpgames/dagent/internal/message"
	"github.com/cpgames/dagent/internal/session"
	"github.com/cpgames/dagent/internal/sessionstore"
	"github.com/cpgames/dagent/internal/tokenestimator"
)

// toggledFailFs lets a test fail writes to paths matching failSubstr once
// *fail flips true, after setup writes (which must succeed) have already
// landed.
type toggledFailFs struct {
	afero.Fs
	failSubstr string
	fail       *bool
}

func (f *toggledFailFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if *f.fail && strings.Contains(name, f.failSubstr) {
		return nil, errors.New("simulated disk failure")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

type capturingPublisher struct {
	events []session.UpdateEvent
}

func (p *capturingPublisher) Publish(e session.UpdateEvent) { p.events = append(p.events, e) }

func newChatWithMessages(sessionID string, n int, contentLen int, base time.Time) *session.ChatSession {
	chat := &session.ChatSession{SessionID: sessionID, TotalMessages: n}
	for i := 0; i < n; i++ {
		chat.Messages = append(chat.Messages, message.Message{
			ID:        "m" + string(rune('a'+i)),
			Role:      message.RoleUser,
			Content:   strings.Repeat("x", contentLen),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return chat
}

// S6. Compaction preserves tail. Each 4000-char message costs 1010 tokens,
// so the 10,000-token balanced keep budget retains 9 of the 20 and folds 11.
func TestCompact_S6_PreservesTail(t *testing.T) {
	store := sessionstore.New(afero.NewMemMapFs(), "/project")
	rec := &session.Session{ID: "feature-f1", FeatureID: "f1", Artifacts: session.NewArtifacts("feature-f1")}
	chat := newChatWithMessages(rec.ID, 20, 4000, time.Now().UTC().Add(-20*time.Minute))

	publisher := &capturingPublisher{}
	engine := New(store, agentservice.NewFakeService(), publisher, BalancedProfile)

	result, newChat, err := engine.Compact(context.Background(), rec, chat, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	keepCount := tokenestimator.DetermineMessagesToKeep(chat.Messages, BalancedProfile.KeepLimit(nil))
	assert.Len(t, newChat.Messages, keepCount)
	assert.Equal(t, 1, result.NewMemory.Version)
	assert.Equal(t, 20-keepCount, result.MessagesCompacted)
	assert.Equal(t, 20-keepCount, result.NewMemory.CompactionInfo.MessagesCompacted)
	assert.Len(t, publisher.events, 1)
	assert.Equal(t, session.ActionCompacted, publisher.events[0].Action)
}

func TestCompact_NoOpWhenUnderKeepLimit(t *testing.T) {
	store := sessionstore.New(afero.NewMemMapFs(), "/project")
	rec := &session.Session{ID: "feature-f1", FeatureID: "f1", Artifacts: session.NewArtifacts("feature-f1")}
	chat := newChatWithMessages(rec.ID, 2, 10, time.Now().UTC())

	engine := New(store, agentservice.NewFakeService(), nil, BalancedProfile)
	result, newChat, err := engine.Compact(context.Background(), rec, chat, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.MessagesCompacted)
	assert.Len(t, newChat.Messages, 2)
}

func TestCompact_TransportFailureLeavesStateUnchanged(t *testing.T) {
	store := sessionstore.New(afero.NewMemMapFs(), "/project")
	rec := &session.Session{ID: "feature-f1", FeatureID: "f1", Artifacts: session.NewArtifacts("feature-f1")}
	chat := newChatWithMessages(rec.ID, 20, 4000, time.Now().UTC())

	failing := &agentservice.FakeService{Responder: func(agentservice.Request) (string, error) {
		return "", errors.New("connection reset")
	}}
	engine := New(store, failing, nil, BalancedProfile)

	result, newChat, err := engine.Compact(context.Background(), rec, chat, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
	assert.Equal(t, chat, newChat)

	_, loadErr := store.LoadMemory(rec.ID, rec.Artifacts.Memory)
	assert.True(t, errors.Is(loadErr, session.ErrNotFound))
}

func TestCompact_ParseFailureLeavesStateUnchanged(t *testing.T) {
	store := sessionstore.New(afero.NewMemMapFs(), "/project")
	rec := &session.Session{ID: "feature-f1", FeatureID: "f1", Artifacts: session.NewArtifacts("feature-f1")}
	chat := newChatWithMessages(rec.ID, 20, 4000, time.Now().UTC())

	gibberish := &agentservice.FakeService{Responder: func(agentservice.Request) (string, error) {
		return "no headings here at all", nil
	}}
	engine := New(store, gibberish, nil, BalancedProfile)

	result, _, err := engine.Compact(context.Background(), rec, chat, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
}

// spec §7/§4.5: if the swap fails after SaveMemory succeeds but SaveChat
// does not, the session is marked StatusError and that status is
// persisted — not just set on the in-memory struct — so a later Load (a
// fresh process included) sees it and refuses further requests until
// reconciled or repaired.
func TestCompact_SwapFailureAfterMemorySavedMarksSessionError(t *testing.T) {
	fail := false
	fs := &toggledFailFs{Fs: afero.NewMemMapFs(), failSubstr: "chat_", fail: &fail}
	store := sessionstore.New(fs, "/project")

	rec := &session.Session{ID: "feature-f1", FeatureID: "f1", Status: session.StatusActive, Artifacts: session.NewArtifacts("feature-f1")}
	chat := newChatWithMessages(rec.ID, 20, 4000, time.Now().UTC().Add(-20*time.Minute))
	require.NoError(t, store.Save(rec))
	require.NoError(t, store.SaveChat(rec.Artifacts.Chat, chat))

	fail = true
	engine := New(store, agentservice.NewFakeService(), nil, BalancedProfile)

	result, _, err := engine.Compact(context.Background(), rec, chat, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrStateInconsistent))
	assert.False(t, result.Success)
	assert.Equal(t, session.StatusError, rec.Status)

	fail = false
	reloaded, loadErr := store.Load(rec.ID)
	require.NoError(t, loadErr)
	assert.Equal(t, session.StatusError, reloaded.Status)

	_, memErr := store.LoadMemory(rec.ID, rec.Artifacts.Memory)
	assert.NoError(t, memErr)
}

func TestParseSummary_Buckets(t *testing.T) {
	text := "## Critical\n- decided to use postgres\n\n## Minor\n- chit chat\n"
	summary, err := parseSummary(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"decided to use postgres"}, summary.Critical)
	assert.Empty(t, summary.Important)
	assert.Equal(t, []string{"chit chat"}, summary.Minor)
}
