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

import "github.com/cpgames/dagent/internal/session"

// Profile tunes how aggressively the engine trims beyond the core
// token-budget contract (spec §4.1/§4.5): it only changes how many tokens
// of tail messages are kept uncompacted, never TokenLimit or
// CompactionThreshold. Grounded in the teacher's
// pkg/agent/compression_profiles.go CompressionProfile/ProfileDefaults.
// The built-in profiles use fixed keep budgets; a profile may instead set
// DynamicKeepFraction to scale the budget against dynamicTokenLimit, which
// currently always resolves to TokenLimit.
type Profile struct {
	Name string
	// BaseKeepLimit is the default determineMessagesToKeep budget when
	// DynamicKeepFraction is not set.
	BaseKeepLimit int
	// DynamicKeepFraction, when set, recomputes the keep budget as this
	// fraction of dynamicTokenLimit instead of using BaseKeepLimit
	// directly.
	DynamicKeepFraction float64
}

var (
	// BalancedProfile keeps a fixed 10,000-token tail, matching the core
	// spec's literal default.
	BalancedProfile = Profile{Name: "balanced", BaseKeepLimit: 10000}
	// DataIntensiveProfile keeps a larger tail since tool-result-heavy
	// sessions (large query outputs, file dumps) lose more from aggressive
	// trimming.
	DataIntensiveProfile = Profile{Name: "data-intensive", BaseKeepLimit: 16000}
	// ConversationalProfile keeps a smaller tail since short back-and-forth
	// exchanges compact cleanly with little loss.
	ConversationalProfile = Profile{Name: "conversational", BaseKeepLimit: 6000}
)

// KeepLimit returns the determineMessagesToKeep budget this profile
// implies for the current memory, if any.
func (p Profile) KeepLimit(mem *session.Memory) int {
	if p.DynamicKeepFraction > 0 {
		return int(float64(dynamicTokenLimit(mem)) * p.DynamicKeepFraction)
	}
	if p.BaseKeepLimit > 0 {
		return p.BaseKeepLimit
	}
	return BalancedProfile.BaseKeepLimit
}
