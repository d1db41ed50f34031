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

package sessionstore

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpgames/dagent/internal/session"
)

func newTestStore() *Store {
	return New(afero.NewMemMapFs(), "/project")
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore()
	rec := &session.Session{
		ID:        "feature-f1",
		Type:      session.TypeFeature,
		AgentType: session.AgentFeature,
		FeatureID: "f1",
		Status:    session.StatusActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		Artifacts: session.NewArtifacts("feature-f1"),
	}

	require.NoError(t, s.Save(rec))

	loaded, err := s.Load(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, rec.FeatureID, loaded.FeatureID)
}

func TestLoad_NotFound(t *testing.T) {
	s := newTestStore()
	_, err := s.Load("does-not-exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrNotFound))
}

func TestLoad_Corrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/project")
	require.NoError(t, fs.MkdirAll("/project/.dagent/sessions", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/project/.dagent/sessions/bad.json", []byte("{not json"), 0o644))

	_, err := s.Load("bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrCorrupt))
}

func TestSaveIsAtomic_PriorFileSurvivesFailedRename(t *testing.T) {
	s := newTestStore()
	rec := &session.Session{ID: "feature-f2", FeatureID: "f2", Artifacts: session.NewArtifacts("feature-f2")}
	require.NoError(t, s.Save(rec))

	// A second save with a different value fully replaces the first.
	rec.Stats.TotalMessages = 3
	require.NoError(t, s.Save(rec))

	loaded, err := s.Load(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Stats.TotalMessages)
}

func TestChatRoundTrip(t *testing.T) {
	s := newTestStore()
	chat := &session.ChatSession{SessionID: "feature-f1", TotalMessages: 1}
	artifact := "chat_feature-f1.json"
	require.NoError(t, s.SaveChat(artifact, chat))

	loaded, err := s.LoadChat("feature-f1", artifact)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.TotalMessages)
}

func TestList_ExcludesCompanionArtifacts(t *testing.T) {
	s := newTestStore()
	rec1 := &session.Session{ID: "feature-f1", FeatureID: "f1", Artifacts: session.NewArtifacts("feature-f1")}
	rec2 := &session.Session{ID: "feature-f2", FeatureID: "f2", Artifacts: session.NewArtifacts("feature-f2")}
	require.NoError(t, s.Save(rec1))
	require.NoError(t, s.Save(rec2))
	require.NoError(t, s.SaveChat(rec1.Artifacts.Chat, &session.ChatSession{SessionID: rec1.ID}))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"feature-f1", "feature-f2"}, ids)
}

func TestArchive_RenamesArtifactsAndStatus(t *testing.T) {
	s := newTestStore()
	rec := &session.Session{ID: "feature-f1", FeatureID: "f1", Status: session.StatusActive, Artifacts: session.NewArtifacts("feature-f1")}
	require.NoError(t, s.Save(rec))
	require.NoError(t, s.SaveChat(rec.Artifacts.Chat, &session.ChatSession{SessionID: rec.ID}))

	require.NoError(t, s.Archive(rec))
	assert.Equal(t, session.StatusArchived, rec.Status)

	_, err := s.LoadChat(rec.ID, rec.Artifacts.Chat)
	require.NoError(t, err)

	loaded, err := s.Load(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusArchived, loaded.Status)
}

func TestArchive_Idempotent(t *testing.T) {
	s := newTestStore()
	rec := &session.Session{ID: "feature-f1", FeatureID: "f1", Status: session.StatusActive, Artifacts: session.NewArtifacts("feature-f1")}
	require.NoError(t, s.Save(rec))

	require.NoError(t, s.Archive(rec))
	require.NoError(t, s.Archive(rec))
	assert.Equal(t, session.StatusArchived, rec.Status)
}
