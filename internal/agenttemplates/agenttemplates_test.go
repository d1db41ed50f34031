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

package agenttemplates

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpgames/dagent/internal/session"
)

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	fs := afero.NewMemMapFs()
	desc := session.AgentDescription{
		AgentType:        session.AgentDev,
		RoleInstructions: "You write the code for one task.",
		ToolInstructions: "Use the editor and shell tools.",
	}

	require.NoError(t, Save(fs, "/project", desc))
	loaded, err := Load(fs, "/project", session.AgentDev)
	require.NoError(t, err)
	assert.Equal(t, desc, loaded)
}

func TestLoad_MissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Load(fs, "/project", session.AgentQA)
	assert.Error(t, err)
}

func TestLoad_DefaultsAgentTypeFromFilenameWhenOmitted(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/project/.dagent/agents/harness.yaml", []byte("roleInstructions: Run the test harness.\n"), 0o644))

	desc, err := Load(fs, "/project", session.AgentHarness)
	require.NoError(t, err)
	assert.Equal(t, session.AgentHarness, desc.AgentType)
	assert.Equal(t, "Run the test harness.", desc.RoleInstructions)
}
