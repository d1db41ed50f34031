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

package contextassembler

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/cpgames/dagent/internal/config"
	"github.com/cpgames/dagent/internal/log"
	"github.com/cpgames/dagent/internal/session"
)

// Request describes one Assemble call's inputs.
type Request struct {
	ProjectRoot string
	FeatureID   string
	TaskID      string
	CommitCount int
}

// Assembler builds a SessionContext on request from its collaborators
// (C4). Construct with New; Close releases its fsnotify watcher.
type Assembler struct {
	project ProjectInspector
	git     GitInspector
	feature FeatureStore

	mu       sync.Mutex
	cache    map[string]*session.Context
	watcher  *fsnotify.Watcher
	watching map[string]bool
}

// New builds an Assembler over the given collaborators. feature may be
// nil, in which case featureId/taskId sections degrade to empty per spec
// §4.4's "all steps that may fail degrade to empty fields" rule.
func New(project ProjectInspector, git GitInspector, feature FeatureStore) *Assembler {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("contextassembler: fsnotify unavailable, caching disabled", zap.Error(err))
	}
	return &Assembler{
		project:  project,
		git:      git,
		feature:  feature,
		cache:    make(map[string]*session.Context),
		watcher:  watcher,
		watching: make(map[string]bool),
	}
}

// Close releases the fsnotify watcher, if one was created.
func (a *Assembler) Close() error {
	if a.watcher == nil {
		return nil
	}
	return a.watcher.Close()
}

// Assemble builds a SessionContext for r, reusing the last snapshot built
// for the same project root, feature, and task as long as no fsnotify
// event has fired for that root since. Steps that fail due to missing
// files, a non-repo directory, or an absent feature degrade to empty
// fields rather than returning an error; only a directory-scan failure on
// the project root itself is fatal, since that indicates the project root
// itself is unusable.
func (a *Assembler) Assemble(r Request) (*session.Context, error) {
	key := cacheKey(r)
	if cached := a.cached(key, r.ProjectRoot); cached != nil {
		return cached, nil
	}

	ctx := &session.Context{
		ProjectRoot: r.ProjectRoot,
		FeatureID:   r.FeatureID,
		TaskID:      r.TaskID,
	}

	entries, err := a.project.ReadTree(r.ProjectRoot, 2)
	if err != nil {
		return nil, fmt.Errorf("contextassembler: scan project root %s: %w", r.ProjectRoot, err)
	}
	ctx.ProjectStructure = summarizeStructure(entries)

	if text, ok, _ := a.project.ReadText(filepath.Join(r.ProjectRoot, "CLAUDE.md")); ok {
		ctx.ClaudeMD = text
	}
	if text, ok, _ := a.project.ReadText(filepath.Join(r.ProjectRoot, "PROJECT.md")); ok {
		ctx.ProjectMD = text
	}

	if a.git != nil && a.git.IsRepo(r.ProjectRoot) {
		count := r.CommitCount
		if count <= 0 {
			count = config.DefaultCommitCount
		}
		commits, err := a.git.Log(r.ProjectRoot, count)
		if err != nil {
			log.Warn("contextassembler: git log degraded to empty", zap.Error(err))
		} else {
			ctx.RecentCommits = commits
		}
	}

	if r.FeatureID != "" && a.feature != nil {
		a.populateFeature(ctx, r)
	}

	a.watch(r.ProjectRoot)
	a.mu.Lock()
	a.cache[key] = ctx
	a.mu.Unlock()
	return ctx, nil
}

// cacheKey identifies a cached snapshot: same root/feature/task combination
// reuses the same entry, different ones don't collide.
func cacheKey(r Request) string {
	return r.ProjectRoot + "|" + r.FeatureID + "|" + r.TaskID
}

// cached returns the snapshot for key if one exists and no fsnotify event
// has invalidated root since it was built.
func (a *Assembler) cached(key, root string) *session.Context {
	if a.Invalidated(root) {
		a.invalidateRoot(root)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache[key]
}

// invalidateRoot drops every cached entry built from root, regardless of
// which feature/task it was keyed under.
func (a *Assembler) invalidateRoot(root string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prefix := root + "|"
	for k := range a.cache {
		if strings.HasPrefix(k, prefix) {
			delete(a.cache, k)
		}
	}
}

func (a *Assembler) populateFeature(ctx *session.Context, r Request) {
	feature, ok, err := a.feature.LoadFeature(r.FeatureID)
	if err != nil || !ok {
		return
	}
	ctx.FeatureName = feature.Name
	ctx.FeatureGoal = feature.Goal

	dag, ok, err := a.feature.LoadDAG(r.FeatureID)
	if err != nil || !ok {
		return
	}
	ctx.DAGSummary = summarizeDAG(dag)

	if r.TaskID != "" {
		for _, t := range dag.Nodes {
			if t.ID == r.TaskID {
				ctx.TaskTitle = t.Title
				ctx.TaskState = t.Status
				break
			}
		}
		ctx.DependencyIDs, ctx.DependentIDs = dagNeighbors(dag, r.TaskID)
	}
}

// summarizeDAG renders a status-count summary ("status: count, …") and
// leaves the flat task list to the caller via FormatContextAsPrompt-level
// consumers that want task detail; the context artifact itself only
// carries the rolled-up summary per spec §4.4 step 4.
func summarizeDAG(dag *DAG) string {
	if dag == nil || len(dag.Nodes) == 0 {
		return ""
	}
	counts := make(map[string]int)
	order := []string{}
	for _, t := range dag.Nodes {
		if _, seen := counts[t.Status]; !seen {
			order = append(order, t.Status)
		}
		counts[t.Status]++
	}
	out := ""
	for i, status := range order {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s: %d", status, counts[status])
	}
	return out
}

// dagNeighbors walks connections to find taskId's dependencies (tasks it
// depends on) and dependents (tasks that depend on it).
func dagNeighbors(dag *DAG, taskID string) (deps, dependents []string) {
	for _, c := range dag.Connections {
		if c.From == taskID {
			deps = append(deps, c.To)
		}
		if c.To == taskID {
			dependents = append(dependents, c.From)
		}
	}
	return deps, dependents
}

// watch registers root with fsnotify so a future CLAUDE.md/PROJECT.md edit
// invalidates any cached context snapshot rather than forcing every
// Assemble call to re-read unconditionally.
func (a *Assembler) watch(root string) {
	if a.watcher == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watching[root] {
		return
	}
	if err := a.watcher.Add(root); err != nil {
		log.Warn("contextassembler: failed to watch project root", zap.Error(err))
		return
	}
	a.watching[root] = true
}

// Invalidated reports whether root has an fsnotify event pending, without
// blocking. It drains every pending event; an event for a different
// watched root drops that root's cached entries directly. Assemble calls
// this itself to decide whether its cache is still trustworthy; exported
// so a caller can also force a rebuild check without going through
// Assemble.
func (a *Assembler) Invalidated(root string) bool {
	if a.watcher == nil {
		return true
	}
	root = filepath.Clean(root)
	invalidated := false
	for {
		select {
		case ev, ok := <-a.watcher.Events:
			if !ok {
				return true
			}
			log.Debug("contextassembler: fs event", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			if evRoot := filepath.Dir(ev.Name); ev.Name == root || evRoot == root {
				invalidated = true
			} else {
				a.invalidateRoot(evRoot)
			}
		default:
			return invalidated
		}
	}
}
