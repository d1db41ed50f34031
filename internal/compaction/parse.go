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
	"fmt"
	"strings"

	"github.com/cpgames/dagent/internal/session"
)

// parseSummary parses the agent's response into a MemorySummary. The
// grammar is the one compactionSystemPrompt asks for: "## <Bucket>"
// headings (any heading level) each followed by "- " bullet lines. A
// response with no recognized heading at all is a parse failure — per
// spec §4.5, that yields a failed CompactionResult without mutating state.
func parseSummary(text string) (session.MemorySummary, error) {
	var summary session.MemorySummary
	var current *[]string
	recognized := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if heading, ok := bucketHeading(trimmed); ok {
			recognized = true
			switch heading {
			case "critical":
				current = &summary.Critical
			case "important":
				current = &summary.Important
			case "minor":
				current = &summary.Minor
			}
			continue
		}
		if current == nil {
			continue
		}
		if item, ok := strings.CutPrefix(trimmed, "- "); ok {
			current = appendItem(current, item)
		}
	}

	if !recognized {
		return session.MemorySummary{}, fmt.Errorf("compaction: no recognized bucket heading in agent response")
	}
	return summary, nil
}

func appendItem(bucket *[]string, item string) *[]string {
	*bucket = append(*bucket, strings.TrimSpace(item))
	return bucket
}

func bucketHeading(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, "#")
	if trimmed == line {
		return "", false
	}
	name := strings.ToLower(strings.TrimSpace(trimmed))
	switch name {
	case "critical", "important", "minor":
		return name, true
	default:
		return "", false
	}
}
