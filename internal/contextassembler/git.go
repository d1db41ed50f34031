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
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cpgames/dagent/internal/session"
)

// ShellGitInspector is the default GitInspector: it shells out to the git
// binary. There is no git-plumbing library in the example corpus, so this
// is the one collaborator in this package built directly on an external
// process rather than a library — justified in DESIGN.md.
type ShellGitInspector struct{}

// NewShellGitInspector builds the default GitInspector.
func NewShellGitInspector() *ShellGitInspector { return &ShellGitInspector{} }

func (g *ShellGitInspector) run(root string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepo reports whether root is inside a git working tree.
func (g *ShellGitInspector) IsRepo(root string) bool {
	out, err := g.run(root, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Head returns the resolved HEAD hash, or "" for a repo with no commits
// yet (an unresolvable HEAD is not an error per spec §4.4 step 3).
func (g *ShellGitInspector) Head(root string) (string, error) {
	out, err := g.run(root, "rev-parse", "HEAD")
	if err != nil {
		return "", nil
	}
	return out, nil
}

// logFormat separates fields with a unit separator to survive commit
// subjects that contain the pipe character.
const logFormat = "%h\x1f%s\x1f%an\x1f%aI"

// Log returns up to maxCount most recent commits, newest first, with the
// date rendered as a relative string (see relativeDate).
func (g *ShellGitInspector) Log(root string, maxCount int) ([]session.Commit, error) {
	if maxCount <= 0 {
		maxCount = 10
	}
	head, err := g.Head(root)
	if err != nil {
		return nil, err
	}
	if head == "" {
		return nil, nil
	}

	out, err := g.run(root, "log", fmt.Sprintf("-n%d", maxCount), "--pretty=format:"+logFormat)
	if err != nil {
		return nil, fmt.Errorf("contextassembler: git log: %w: %w", session.ErrTransport, err)
	}
	if out == "" {
		return nil, nil
	}

	var commits []session.Commit
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\x1f")
		if len(fields) != 4 {
			continue
		}
		ts, parseErr := time.Parse(time.RFC3339, fields[3])
		rel := fields[3]
		if parseErr == nil {
			rel = relativeDate(ts, time.Now())
		}
		commits = append(commits, session.Commit{
			Hash:         fields[0],
			Message:      fields[1],
			Author:       fields[2],
			RelativeDate: rel,
		})
	}
	return commits, nil
}

// relativeDate renders the gap between t and now on the spec's fixed
// ladder: just now / N minutes|hours|days|weeks|months ago.
func relativeDate(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		n := int(d / time.Minute)
		return pluralize(n, "minute") + " ago"
	case d < 24*time.Hour:
		n := int(d / time.Hour)
		return pluralize(n, "hour") + " ago"
	case d < 7*24*time.Hour:
		n := int(d / (24 * time.Hour))
		return pluralize(n, "day") + " ago"
	case d < 30*24*time.Hour:
		n := int(d / (7 * 24 * time.Hour))
		return pluralize(n, "week") + " ago"
	default:
		n := int(d / (30 * 24 * time.Hour))
		return pluralize(n, "month") + " ago"
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
