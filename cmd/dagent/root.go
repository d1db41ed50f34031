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

// Command dagent is a small inspection CLI over a project's
// .dagent/sessions store: list sessions, show a session's composed
// request, and force a compaction. It is a debugging aid, not the
// orchestrator itself — the orchestrator drives SessionManager directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cpgames/dagent/internal/agentservice"
	"github.com/cpgames/dagent/internal/compaction"
	"github.com/cpgames/dagent/internal/config"
	"github.com/cpgames/dagent/internal/contextassembler"
	"github.com/cpgames/dagent/internal/eventbus"
	"github.com/cpgames/dagent/internal/sessionmgr"
	"github.com/cpgames/dagent/internal/sessionstore"
)

var (
	projectRoot string
	settings    config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "dagent",
	Short: "Inspect and drive a project's dagent session store",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(projectRoot)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		settings = loaded
		config.Init(loaded)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", ".", "project root containing .dagent/")
	rootCmd.AddCommand(sessionsCmd)
}

func buildStore() *sessionstore.Store {
	return sessionstore.New(afero.NewOsFs(), projectRoot)
}

func buildManager() *sessionmgr.Manager {
	store := buildStore()
	bus := eventbus.New()
	profile := profileFor(settings.WorkloadProfile)
	engine := compaction.New(store, agentservice.NewFakeService(), bus, profile)
	assembler := contextassembler.New(
		contextassembler.NewFsProjectInspector(afero.NewOsFs()),
		contextassembler.NewShellGitInspector(),
		nil,
	)
	return sessionmgr.New(store, engine, bus, assembler)
}

func profileFor(p config.WorkloadProfile) compaction.Profile {
	switch p {
	case config.ProfileDataIntensive:
		return compaction.DataIntensiveProfile
	case config.ProfileConversational:
		return compaction.ConversationalProfile
	default:
		return compaction.BalancedProfile
	}
}
