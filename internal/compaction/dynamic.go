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
	"github.com/cpgames/dagent/internal/config"
	"github.com/cpgames/dagent/internal/session"
)

// dynamicTokenLimit resolves the token ceiling a Profile.DynamicKeepFraction
// should scale against. Grounded in the teacher's
// pkg/agent/dynamic_memory_allocation.go, which recomputed allocation
// against the active model's context window instead of a hard-coded
// constant; here there is no per-model registry (spec has exactly one
// limit), so this degrades to the fixed TokenLimit, leaving room to plug
// in a real per-model lookup without touching callers.
func dynamicTokenLimit(mem *session.Memory) int {
	_ = mem
	return config.TokenLimit
}
