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
	"errors"

	"github.com/tombee/conductor/internal/worker/backend"
)

// Reconciler applies manifests found by a Store into the backend,
// last-writer-wins by timestamp.
type Reconciler struct {
	store   *Store
	backend backend.Client
}

// NewReconciler returns a Reconciler that scans store and applies into client.
func NewReconciler(store *Store, client backend.Client) *Reconciler {
	return &Reconciler{store: store, backend: client}
}

// Result summarizes one reconciliation pass.
type Result struct {
	Applied int
	Skipped int
	Errors  []error
}

// Reconcile runs one ScanStorageForDeployments pass: for each manifest
// found, ensure the backend has a matching deployment, applying only when
// the manifest is newer than any existing deployment of the same name.
// Ordering of the scan does not matter; the timestamp comparison makes the
// outcome independent of file-visit order.
func (r *Reconciler) Reconcile(ctx context.Context) *Result {
	result := &Result{}

	manifests, parseErrs := r.store.LoadAll()
	result.Errors = append(result.Errors, parseErrs...)

	for _, m := range manifests {
		applied, err := r.reconcileOne(ctx, m)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if applied {
			result.Applied++
		} else {
			result.Skipped++
		}
	}

	return result
}

func (r *Reconciler) reconcileOne(ctx context.Context, m *Manifest) (bool, error) {
	existing, err := r.backend.ReadDeploymentByName(ctx, m.FlowName, m.Name)
	var notFound *backend.NotFoundError
	switch {
	case errors.As(err, &notFound):
		existing = nil
	case err != nil:
		return false, err
	}

	if existing != nil && !shouldApply(m, existing) {
		return false, nil
	}

	_, err = r.backend.ApplyDeployment(ctx, toDeployment(m, existing))
	if err != nil {
		return false, err
	}
	return true, nil
}

// shouldApply reports whether a manifest should overwrite an existing
// deployment: only when the manifest's timestamp is strictly newer. Equal
// timestamps, or a manifest with no timestamp against an existing
// deployment that has one, leave the existing deployment untouched.
func shouldApply(m *Manifest, existing *backend.Deployment) bool {
	if m.Timestamp == nil {
		return false
	}
	if existing.Timestamp == nil {
		return true
	}
	return m.Timestamp.After(*existing.Timestamp)
}

func toDeployment(m *Manifest, existing *backend.Deployment) backend.Deployment {
	dep := backend.Deployment{
		Name:       m.Name,
		FlowName:   m.FlowName,
		Path:       m.Path,
		Entrypoint: m.Entrypoint,
		Tags:       m.Tags,
		Overrides:  m.Overrides,
		Timestamp:  m.Timestamp,
	}
	if existing != nil {
		dep.ID = existing.ID
	}
	return dep
}
