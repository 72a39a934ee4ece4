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

package runtime

import (
	"context"

	"github.com/tombee/conductor/internal/worker/metrics"
)

// ScanStorageForDeployments reconciles every manifest under the
// workflow-storage directory into the backend, last-writer-wins by
// timestamp, then, when at least one manifest was applied, runs
// VerifySubmittedDeployment for every deployment on record (not only the
// ones applied in this pass). Verification is advisory: a failure is logged
// and the deployment is left applied.
func (r *Runtime) ScanStorageForDeployments(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "worker.scan_storage_for_deployments")
	defer span.End()

	r.mu.RLock()
	reconciler := r.reconciler
	r.mu.RUnlock()
	if reconciler == nil {
		return nil
	}

	result := reconciler.Reconcile(ctx)
	for _, err := range result.Errors {
		r.logger.Warn("manifest scan error", "error", err)
		metrics.RecordManifestError(r.workerName)
	}
	for i := 0; i < result.Applied; i++ {
		metrics.RecordDeploymentApplied(r.workerName)
	}

	if result.Applied > 0 {
		r.verifyAppliedDeployments(ctx)
	}
	return nil
}

// verifyAppliedDeployments calls VerifySubmittedDeployment for every
// deployment currently on record.
func (r *Runtime) verifyAppliedDeployments(ctx context.Context) {
	impl, ok := r.resolveImpl()
	if !ok {
		return
	}

	deployments, err := r.client.ReadDeployments(ctx)
	if err != nil {
		r.logger.Warn("could not read deployments for verification", "error", err)
		return
	}

	for _, dep := range deployments {
		if err := impl.VerifySubmittedDeployment(ctx, dep); err != nil {
			r.logger.Warn("deployment verification failed", "deployment_id", dep.ID, "error", err)
		}
	}
}
