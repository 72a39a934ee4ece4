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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/conductor/internal/worker/backend/memory"
)

func manifestYAML(tags string, timestamp *time.Time) string {
	doc := "name: test-deployment\nflow_name: demo-flow\npath: /flows\nentrypoint: flow.py:demo\ntags: " + tags + "\n"
	if timestamp != nil {
		doc += "timestamp: " + timestamp.Format(time.RFC3339) + "\n"
	}
	return doc
}

func TestReconcile_AppliesNewManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test-deployment.yaml", manifestYAML("[]", nil))

	client := memory.New()
	r := NewReconciler(NewStore(dir), client)

	result := r.Reconcile(context.Background())
	assert.Equal(t, 1, result.Applied)
	assert.Empty(t, result.Errors)

	deps, err := client.ReadDeployments(context.Background())
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Empty(t, deps[0].Tags)
}

func TestReconcile_NewerTimestampOverwrites(t *testing.T) {
	dir := t.TempDir()
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	writeFile(t, dir, "test-deployment.yaml", manifestYAML("[]", &older))
	client := memory.New()
	r := NewReconciler(NewStore(dir), client)
	require.Zero(t, r.Reconcile(context.Background()).Errors)

	writeFile(t, dir, "test-deployment.yaml", manifestYAML(`["new-tag"]`, &newer))
	result := r.Reconcile(context.Background())
	assert.Equal(t, 1, result.Applied)

	deps, err := client.ReadDeployments(context.Background())
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, []string{"new-tag"}, deps[0].Tags)
}

func TestReconcile_StaleManifestDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	newer := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	writeFile(t, dir, "test-deployment.yaml", manifestYAML(`["new-tag"]`, &newer))

	client := memory.New()
	r := NewReconciler(NewStore(dir), client)
	require.Zero(t, r.Reconcile(context.Background()).Errors)

	older := newer.Add(-time.Hour)
	writeFile(t, dir, "test-deployment.yaml", manifestYAML(`["older"]`, &older))
	result := r.Reconcile(context.Background())
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Applied)

	deps, err := client.ReadDeployments(context.Background())
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, []string{"new-tag"}, deps[0].Tags)
}

func TestReconcile_MalformedManifestReportedAndScanContinues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "Ceci n'est pas un déploiement")

	client := memory.New()
	r := NewReconciler(NewStore(dir), client)

	result := r.Reconcile(context.Background())
	assert.Len(t, result.Errors, 1)

	deps, err := client.ReadDeployments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestReconcile_EqualTimestampSkips(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeFile(t, dir, "test-deployment.yaml", manifestYAML("[]", &ts))

	client := memory.New()
	r := NewReconciler(NewStore(dir), client)
	require.Zero(t, r.Reconcile(context.Background()).Errors)

	writeFile(t, dir, "test-deployment.yaml", manifestYAML(`["changed"]`, &ts))
	result := r.Reconcile(context.Background())
	assert.Equal(t, 1, result.Skipped)

	deps, err := client.ReadDeployments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deps[0].Tags)
}
