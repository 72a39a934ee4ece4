// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package manifest

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// manifestGlobs are the recursive patterns a ManifestStore matches against
// the storage directory, evaluated relative to that directory's root.
var manifestGlobs = []string{"**/*.yaml", "**/*.yml"}

// Store scans a workflow-storage directory for manifest files.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the directory this store scans.
func (s *Store) Root() string {
	return s.root
}

// ListFiles returns the sorted, de-duplicated set of manifest file paths
// under the store's root, matched via a recursive doublestar glob rather
// than a hand-rolled extension check so `**/*.yaml` subdirectory layouts
// work without special-casing.
func (s *Store) ListFiles() ([]string, error) {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return nil, nil
	}

	fsys := os.DirFS(s.root)
	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range manifestGlobs {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, filepath.Join(s.root, m))
		}
	}

	sort.Strings(out)
	return out, nil
}

// LoadAll parses every manifest file under the store's root. Parse
// failures are collected rather than aborting the scan: a malformed
// manifest must not prevent the rest of the directory from reconciling.
func (s *Store) LoadAll() ([]*Manifest, []error) {
	files, err := s.ListFiles()
	if err != nil {
		return nil, []error{err}
	}

	var manifests []*Manifest
	var errs []error
	for _, f := range files {
		m, err := Load(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		manifests = append(manifests, m)
	}
	return manifests, errs
}
