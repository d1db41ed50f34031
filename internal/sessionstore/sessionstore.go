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

// Package sessionstore implements C3: crash-safe persistence of a
// Session record and its four companion artifacts under
// <projectRoot>/.dagent/sessions/. Every write goes through writeAtomic:
// write to a temp file, fsync, rename over the target, so a partial write
// never clobbers a previously-valid file.
package sessionstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/cpgames/dagent/internal/log"
	"github.com/cpgames/dagent/internal/session"
)

const sessionsDirName = ".dagent/sessions"

// Store is the on-disk Session & artifact store. Safe for concurrent use
// by multiple goroutines; callers that need cross-operation atomicity
// (e.g. the compaction swap) are responsible for their own ordering —
// see internal/compaction.
type Store struct {
	fs  afero.Fs
	dir string
}

// New creates a Store rooted at <projectRoot>/.dagent/sessions, using fs
// as the underlying filesystem. Pass afero.NewOsFs() in production and
// afero.NewMemMapFs() in tests.
func New(fs afero.Fs, projectRoot string) *Store {
	return &Store{fs: fs, dir: filepath.Join(projectRoot, sessionsDirName)}
}

func (s *Store) ensureDir() error {
	return s.fs.MkdirAll(s.dir, 0o755)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// writeAtomic writes data to name via a temp file, fsync, then rename,
// so a crash mid-write leaves the previous valid file (if any) intact.
func (s *Store) writeAtomic(name string, data []byte) error {
	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("sessionstore: create directory: %w", err)
	}
	target := s.path(name)
	tmp := target + ".tmp"

	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("sessionstore: open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("sessionstore: write temp file: %w", err)
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("sessionstore: fsync temp file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sessionstore: close temp file: %w", err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		return fmt.Errorf("sessionstore: rename into place: %w", err)
	}
	return nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (s *Store) readJSON(name string, sessionID string, v any) error {
	path := s.path(name)
	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return fmt.Errorf("sessionstore: stat %s: %w", name, err)
	}
	if !exists {
		return &session.NotFoundError{SessionID: sessionID, Artifact: name}
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return fmt.Errorf("sessionstore: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &session.CorruptError{SessionID: sessionID, Artifact: name, Cause: err}
	}
	return nil
}

func sessionFileName(id string) string { return id + ".json" }

// Load reads the Session record for id.
func (s *Store) Load(id string) (*session.Session, error) {
	var rec session.Session
	if err := s.readJSON(sessionFileName(id), id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save persists the Session record.
func (s *Store) Save(rec *session.Session) error {
	data, err := marshal(rec)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal session %s: %w", rec.ID, err)
	}
	return s.writeAtomic(sessionFileName(rec.ID), data)
}

// LoadChat reads the chat artifact for id.
func (s *Store) LoadChat(id string, artifactName string) (*session.ChatSession, error) {
	var chat session.ChatSession
	if err := s.readJSON(artifactName, id, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// SaveChat persists the chat artifact.
func (s *Store) SaveChat(artifactName string, chat *session.ChatSession) error {
	data, err := marshal(chat)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal chat %s: %w", chat.SessionID, err)
	}
	return s.writeAtomic(artifactName, data)
}

// LoadMemory reads the memory artifact for id. Returns a NotFoundError if
// the session has never been compacted — callers treat that as "no memory
// yet", not a fatal condition.
func (s *Store) LoadMemory(id string, artifactName string) (*session.Memory, error) {
	var mem session.Memory
	if err := s.readJSON(artifactName, id, &mem); err != nil {
		return nil, err
	}
	return &mem, nil
}

// SaveMemory persists the memory artifact.
func (s *Store) SaveMemory(artifactName string, mem *session.Memory) error {
	data, err := marshal(mem)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal memory %s: %w", mem.SessionID, err)
	}
	return s.writeAtomic(artifactName, data)
}

// LoadContext reads the context artifact for id.
func (s *Store) LoadContext(id string, artifactName string) (*session.Context, error) {
	var ctx session.Context
	if err := s.readJSON(artifactName, id, &ctx); err != nil {
		return nil, err
	}
	return &ctx, nil
}

// SaveContext persists the context artifact.
func (s *Store) SaveContext(id string, artifactName string, ctx *session.Context) error {
	data, err := marshal(ctx)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal context %s: %w", id, err)
	}
	return s.writeAtomic(artifactName, data)
}

// LoadAgentDescription reads the role artifact for id.
func (s *Store) LoadAgentDescription(id string, artifactName string) (*session.AgentDescription, error) {
	var desc session.AgentDescription
	if err := s.readJSON(artifactName, id, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// SaveAgentDescription persists the role artifact.
func (s *Store) SaveAgentDescription(id string, artifactName string, desc *session.AgentDescription) error {
	data, err := marshal(desc)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal agent description %s: %w", id, err)
	}
	return s.writeAtomic(artifactName, data)
}

// List returns every session id with a record on disk, sorted for
// deterministic output.
func (s *Store) List() ([]string, error) {
	exists, err := afero.DirExists(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: stat sessions directory: %w", err)
	}
	if !exists {
		return nil, nil
	}
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: list sessions directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "archived_") {
			continue
		}
		// Companion artifacts carry an underscore prefix (chat_, memory_,
		// context_, agent-description_); bare <id>.json is the record.
		if strings.Contains(name, "_") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Archive rewrites a session's record and artifact filenames to their
// archive-prefixed form, renaming the underlying files in place. It does
// not erase any content. Archiving a record whose status is already
// archived is a no-op. A crash between renames may leave some artifacts
// under their original names and some under archived names, with the
// record still active; Reconcile in internal/sessionmgr does not repair
// such a session, and running Archive again renames the remaining
// artifacts and completes it.
func (s *Store) Archive(rec *session.Session) error {
	if rec.Status == session.StatusArchived {
		return nil
	}
	oldArtifacts := rec.Artifacts
	newArtifacts := oldArtifacts.Archived()

	renames := [][2]string{
		{oldArtifacts.Chat, newArtifacts.Chat},
		{oldArtifacts.Memory, newArtifacts.Memory},
		{oldArtifacts.Context, newArtifacts.Context},
		{oldArtifacts.AgentDescription, newArtifacts.AgentDescription},
	}
	for _, pair := range renames {
		from, to := s.path(pair[0]), s.path(pair[1])
		exists, err := afero.Exists(s.fs, from)
		if err != nil {
			return fmt.Errorf("sessionstore: stat %s during archive: %w", pair[0], err)
		}
		if !exists {
			continue
		}
		if err := s.fs.Rename(from, to); err != nil {
			log.Error("sessionstore: archive rename failed", zap.Error(err), zap.String("session_id", rec.ID))
			return fmt.Errorf("sessionstore: rename %s to %s: %w", pair[0], pair[1], err)
		}
	}

	rec.Artifacts = newArtifacts
	rec.Status = session.StatusArchived
	return s.Save(rec)
}
