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

// Package registry holds the process-wide type-tag -> WorkerImpl mapping.
// Each concrete worker implementation registers itself at program start;
// the registry is read-only thereafter and has no teardown.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/tombee/conductor/internal/worker/backend"
	"github.com/tombee/conductor/internal/worker/jobconfig"
)

// RunResult is the outcome of a WorkerImpl's Run hook.
type RunResult struct {
	// Message is an optional human-readable outcome, surfaced on the flow
	// run's state transition.
	Message string
}

// WorkerImpl is the per-worker-type extension point: the pluggable hooks
// the submission pipeline and the manifest scanner call into. Concrete
// worker types implement this and register themselves via Register.
type WorkerImpl interface {
	// Type is the worker_type tag this implementation handles.
	Type() string

	// JobConfigSchema declares the fields this worker type's job
	// configuration adds beyond the baseline command/env.
	JobConfigSchema() jobconfig.Schema

	// Run performs the actual execution/dispatch for a submitted flow run.
	// Errors are caught by the submission pipeline and surfaced as a
	// Crashed state transition; Run does not update flow-run state itself.
	Run(ctx context.Context, flowRun backend.FlowRun, configuration map[string]any) (RunResult, error)

	// VerifySubmittedDeployment is called after a storage scan that applied
	// at least one deployment, once for every deployment the backend lists;
	// it is not limited to the deployments applied in that scan, and a scan
	// that applied nothing calls it for none. Verification is advisory: a
	// failure is logged as a warning and the deployment is left applied.
	VerifySubmittedDeployment(ctx context.Context, deployment backend.Deployment) error
}

var (
	mu    sync.RWMutex
	impls = make(map[string]WorkerImpl)
)

// Register adds impl under its declared Type. Registering a second
// implementation under the same type is an error: worker types are
// expected to register exactly once, at program start.
func Register(impl WorkerImpl) error {
	if impl == nil {
		return fmt.Errorf("registry: cannot register nil WorkerImpl")
	}
	name := impl.Type()
	if name == "" {
		return fmt.Errorf("registry: WorkerImpl type cannot be empty")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := impls[name]; exists {
		return fmt.Errorf("registry: worker type already registered: %s", name)
	}
	impls[name] = impl
	return nil
}

// Get returns the WorkerImpl registered for typeTag.
func Get(typeTag string) (WorkerImpl, bool) {
	mu.RLock()
	defer mu.RUnlock()

	impl, ok := impls[typeTag]
	return impl, ok
}

// Types returns the set of registered worker type tags.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(impls))
	for name := range impls {
		names = append(names, name)
	}
	return names
}

// reset clears the registry. Test-only: package-level state otherwise
// leaks registrations across test files that register the same type tag.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	impls = make(map[string]WorkerImpl)
}
