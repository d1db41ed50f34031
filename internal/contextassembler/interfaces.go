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

// Package contextassembler implements C4: on-demand reconstruction of a
// SessionContext from project structure, docs, git history, and the
// feature/task DAG. The DAG and feature store are external collaborators
// (spec §1 Out of scope); this package only defines the read-only
// interfaces it consumes from them.
package contextassembler

import "github.com/cpgames/dagent/internal/session"

// Entry is one file or directory found by a ProjectInspector scan.
type Entry struct {
	Name  string
	IsDir bool
}

// ProjectInspector reads the project tree the assembler summarizes. It is
// one of the collaborators named in spec §6.
type ProjectInspector interface {
	// ReadTree lists entries under root, descending up to depth levels.
	ReadTree(root string, depth int) ([]Entry, error)
	// ReadText returns the content of path and whether it exists. A
	// missing file is not an error — it degrades to an absent section.
	ReadText(path string) (text string, exists bool, err error)
}

// GitInspector is the read-only git collaborator named in spec §6.
type GitInspector interface {
	IsRepo(root string) bool
	// Head returns the resolved HEAD commit hash, or "" for an empty repo.
	Head(root string) (string, error)
	// Log returns up to maxCount most recent commits, newest first.
	Log(root string, maxCount int) ([]session.Commit, error)
}

// Task is one node in a feature's DAG.
type Task struct {
	ID     string
	Title  string
	Spec   string
	Status string
}

// Connection is a directed edge in a feature's DAG: From depends on To.
type Connection struct {
	From string
	To   string
}

// Feature is the read-only feature record the assembler summarizes.
type Feature struct {
	ID   string
	Name string
	Goal string
}

// DAG is a feature's task graph.
type DAG struct {
	Nodes       []Task
	Connections []Connection
}

// FeatureStore is the read-only feature/DAG collaborator named in spec §6.
type FeatureStore interface {
	LoadFeature(featureID string) (*Feature, bool, error)
	LoadDAG(featureID string) (*DAG, bool, error)
}
