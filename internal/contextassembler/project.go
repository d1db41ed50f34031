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
	"path/filepath"

	"github.com/spf13/afero"
)

// FsProjectInspector is the default ProjectInspector, backed by an
// afero.Fs so tests can substitute an in-memory filesystem.
type FsProjectInspector struct {
	Fs afero.Fs
}

// NewFsProjectInspector builds a ProjectInspector over fs.
func NewFsProjectInspector(fs afero.Fs) *FsProjectInspector {
	return &FsProjectInspector{Fs: fs}
}

// ReadTree scans root one level deep, descending once more into src if
// present, per spec §4.4 step 1.
func (p *FsProjectInspector) ReadTree(root string, depth int) ([]Entry, error) {
	if depth <= 0 {
		depth = 1
	}
	entries, err := p.listDir(root)
	if err != nil {
		return nil, err
	}
	if depth > 1 {
		for _, e := range entries {
			if e.IsDir && e.Name == "src" {
				nested, err := p.listDir(filepath.Join(root, "src"))
				if err == nil {
					for _, n := range nested {
						n.Name = "src/" + n.Name
						entries = append(entries, n)
					}
				}
			}
		}
	}
	return entries, nil
}

func (p *FsProjectInspector) listDir(dir string) ([]Entry, error) {
	infos, err := afero.ReadDir(p.Fs, dir)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{Name: info.Name(), IsDir: info.IsDir()})
	}
	return entries, nil
}

// ReadText returns the content of path, degrading to exists=false rather
// than an error when the file is simply absent.
func (p *FsProjectInspector) ReadText(path string) (string, bool, error) {
	exists, err := afero.Exists(p.Fs, path)
	if err != nil {
		return "", false, err
	}
	if !exists {
		return "", false, nil
	}
	data, err := afero.ReadFile(p.Fs, path)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// summarizeStructure renders a ReadTree result into the one-paragraph
// project-structure digest the context artifact carries, noting source
// directories, test/doc presence, and recognized config files.
func summarizeStructure(entries []Entry) string {
	var dirs, configFiles []string
	hasTests, hasDocs := false, false

	configWhitelist := map[string]bool{
		"go.mod": true, "package.json": true, "Cargo.toml": true,
		"pyproject.toml": true, "Makefile": true, "Dockerfile": true,
	}

	for _, e := range entries {
		if e.IsDir {
			dirs = append(dirs, e.Name)
			if e.Name == "test" || e.Name == "tests" || e.Name == "__tests__" {
				hasTests = true
			}
			if e.Name == "docs" || e.Name == "doc" {
				hasDocs = true
			}
			continue
		}
		if configWhitelist[e.Name] {
			configFiles = append(configFiles, e.Name)
		}
	}

	if len(dirs) == 0 && len(configFiles) == 0 {
		return ""
	}

	out := ""
	if len(dirs) > 0 {
		out += "Directories: " + joinComma(dirs) + ". "
	}
	if len(configFiles) > 0 {
		out += "Config: " + joinComma(configFiles) + ". "
	}
	if hasTests {
		out += "Has tests. "
	}
	if hasDocs {
		out += "Has docs. "
	}
	return out
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
