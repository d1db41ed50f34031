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

// Package config holds the subsystem's fixed budget constants and the
// demo CLI's outer, viper-backed project settings. The core reads no
// environment variables: TokenLimit, CompactionThreshold, CharsPerToken and
// DefaultKeepLimit are compiled-in per spec §6.
package config

import (
	"sync"

	"github.com/spf13/viper"
)

// Core budget constants. These are never overridden at runtime by the
// subsystem itself; cmd/dagent may expose them as read-only diagnostics.
const (
	// TokenLimit is the hard ceiling a composed request must stay under.
	TokenLimit = 100000
	// CompactionThreshold is the total above which needsCompaction is true.
	CompactionThreshold = 90000
	// CharsPerToken is the deterministic heuristic divisor.
	CharsPerToken = 4
	// DefaultKeepLimit is determineMessagesToKeep's default budget.
	DefaultKeepLimit = 10000
	// DefaultCommitCount is how many git log entries ContextAssembler reads
	// when the caller does not specify a count.
	DefaultCommitCount = 10
)

// WorkloadProfile tunes how aggressively CompactionEngine trims beyond the
// core token-budget contract above. It never changes TokenLimit or
// CompactionThreshold; it only selects the compaction profile, which sets
// how many tokens of tail messages are kept uncompacted.
type WorkloadProfile string

const (
	ProfileBalanced       WorkloadProfile = "balanced"
	ProfileDataIntensive  WorkloadProfile = "data-intensive"
	ProfileConversational WorkloadProfile = "conversational"
)

// Settings is the demo CLI's project-level configuration, loaded from an
// optional .dagent/config.yaml via viper. The core packages never depend
// on this type; only cmd/dagent does.
type Settings struct {
	ProjectRoot        string          `mapstructure:"projectRoot"`
	LogLevel           string          `mapstructure:"logLevel"`
	WorkloadProfile    WorkloadProfile `mapstructure:"workloadProfile"`
	DefaultCommitCount int             `mapstructure:"defaultCommitCount"`
}

// DefaultSettings returns the Settings used when no config file is present.
func DefaultSettings(projectRoot string) Settings {
	return Settings{
		ProjectRoot:        projectRoot,
		LogLevel:           "info",
		WorkloadProfile:    ProfileBalanced,
		DefaultCommitCount: DefaultCommitCount,
	}
}

var (
	globalOnce     sync.Once
	globalSettings Settings
)

// Load reads .dagent/config.yaml under projectRoot, if present, merging it
// over DefaultSettings(projectRoot). A missing config file is not an error.
func Load(projectRoot string) (Settings, error) {
	settings := DefaultSettings(projectRoot)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(projectRoot + "/.dagent")
	v.SetDefault("projectRoot", settings.ProjectRoot)
	v.SetDefault("logLevel", settings.LogLevel)
	v.SetDefault("workloadProfile", string(settings.WorkloadProfile))
	v.SetDefault("defaultCommitCount", settings.DefaultCommitCount)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return settings, err
		}
	}
	if err := v.Unmarshal(&settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// Global returns the process-wide Settings, initialized once from
// DefaultSettings(".") if Init was never called. Mirrors the teacher's
// singleton-with-explicit-init convention (spec §9 "Singleton managers").
func Global() Settings {
	globalOnce.Do(func() {
		globalSettings = DefaultSettings(".")
	})
	return globalSettings
}

// Init sets the process-wide Settings explicitly, bypassing the lazy
// default. Intended to be called once at startup by cmd/dagent.
func Init(s Settings) {
	globalOnce.Do(func() {})
	globalSettings = s
}
