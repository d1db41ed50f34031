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

// Package agenttemplates loads an AgentDescription's role/tool
// instructions from a YAML file under .dagent/agents/<agentType>.yaml,
// the on-disk counterpart to setAgentDescription. Grounded in the
// teacher's examples/reference/agent-templates YAML definitions (loaded
// and validated the same way by pkg/orchestration's template loader);
// the extends/variable-substitution chain those templates support is not
// carried over — this subsystem's agent descriptions are static per type,
// so a flat file is all spec §4.3 needs.
package agenttemplates

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/cpgames/dagent/internal/session"
)

// template is the on-disk shape; AgentType is redundant with the filename
// but kept explicit so a misfiled template is caught on load rather than
// silently mislabeled.
type template struct {
	AgentType        session.AgentType `yaml:"agentType"`
	RoleInstructions string            `yaml:"roleInstructions"`
	ToolInstructions string            `yaml:"toolInstructions"`
}

// Dir is the conventional location of agent templates under a project's
// .dagent directory.
const Dir = ".dagent/agents"

// Load reads and parses the template for agentType under
// <projectRoot>/.dagent/agents/<agentType>.yaml.
func Load(fs afero.Fs, projectRoot string, agentType session.AgentType) (session.AgentDescription, error) {
	path := filepath.Join(projectRoot, Dir, string(agentType)+".yaml")
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return session.AgentDescription{}, fmt.Errorf("agenttemplates: read %s: %w", path, err)
	}

	var t template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return session.AgentDescription{}, fmt.Errorf("agenttemplates: parse %s: %w", path, err)
	}
	if t.AgentType == "" {
		t.AgentType = agentType
	}
	if t.AgentType != agentType {
		return session.AgentDescription{}, fmt.Errorf("agenttemplates: %s declares agentType %q, want %q", path, t.AgentType, agentType)
	}

	return session.AgentDescription{
		AgentType:        t.AgentType,
		RoleInstructions: t.RoleInstructions,
		ToolInstructions: t.ToolInstructions,
	}, nil
}

// Save writes desc as the template for its agent type, creating the
// agents directory if needed. Mainly useful for tests and for seeding a
// starter set of templates.
func Save(fs afero.Fs, projectRoot string, desc session.AgentDescription) error {
	dir := filepath.Join(projectRoot, Dir)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("agenttemplates: create %s: %w", dir, err)
	}

	data, err := yaml.Marshal(template{
		AgentType:        desc.AgentType,
		RoleInstructions: desc.RoleInstructions,
		ToolInstructions: desc.ToolInstructions,
	})
	if err != nil {
		return fmt.Errorf("agenttemplates: marshal: %w", err)
	}

	path := filepath.Join(dir, string(desc.AgentType)+".yaml")
	return afero.WriteFile(fs, path, data, 0o644)
}
