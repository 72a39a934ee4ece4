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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestListFiles_FindsYAMLRecursively(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: a\n")
	writeFile(t, dir, "nested/b.yml", "name: b\n")
	writeFile(t, dir, "notes.txt", "ignore me\n")

	store := NewStore(dir)
	files, err := store.ListFiles()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestListFiles_MissingDirectoryReturnsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"))
	files, err := store.ListFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLoadAll_MalformedManifestDoesNotAbortScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", "name: good\nflow_name: flow\npath: /tmp\nentrypoint: flow.py:flow\n")
	writeFile(t, dir, "bad.yaml", "Ceci n'est pas un déploiement")

	store := NewStore(dir)
	manifests, errs := store.LoadAll()

	require.Len(t, errs, 1)
	require.Len(t, manifests, 1)
	assert.Equal(t, "good", manifests[0].Name)
}
