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
	"errors"
	"time"

	"github.com/tombee/conductor/internal/worker/backend"
	"github.com/tombee/conductor/internal/worker/jobconfig"
	"github.com/tombee/conductor/internal/worker/metrics"
	"github.com/tombee/conductor/internal/worker/registry"
	"github.com/tombee/conductor/internal/worker/workererrs"
)

// GetAndSubmitFlowRuns queries the backend for scheduled runs within the
// prefetch window and submits as many as the concurrency limiter allows.
// It returns the set of runs for which acquisition succeeded and the state
// transition to Pending was accepted in this call.
func (r *Runtime) GetAndSubmitFlowRuns(ctx context.Context) ([]backend.FlowRun, error) {
	ctx, span := tracer.Start(ctx, "worker.get_and_submit_flow_runs")
	defer span.End()

	r.mu.RLock()
	pool := r.pool
	r.mu.RUnlock()
	if pool == nil || pool.IsPaused {
		return nil, nil
	}

	impl, ok := r.resolveImpl()
	if !ok {
		return nil, nil
	}

	scheduledBefore := time.Now().Add(r.cfg.PrefetchWindow())
	candidates, err := r.client.GetScheduledFlowRuns(ctx, pool.ID, scheduledBefore)
	if err != nil {
		return nil, &workererrs.TransientBackendError{Operation: "GetScheduledFlowRuns", Cause: err}
	}

	var submitted []backend.FlowRun
	for _, fr := range candidates {
		if !r.limiter.AcquireOnBehalfOf(fr.ID) {
			break
		}
		metrics.SetLimiterOccupied(r.workerName, r.limiter.Occupied())

		accepted, err := r.submitOne(ctx, pool, impl, fr)
		if err != nil {
			r.logger.Warn("flow run submission error", "flow_run_id", fr.ID, "error", err)
		}
		if !accepted {
			r.limiter.ReleaseOnBehalfOf(fr.ID)
			metrics.SetLimiterOccupied(r.workerName, r.limiter.Occupied())
			continue
		}
		submitted = append(submitted, fr)
		metrics.RecordFlowRunSubmitted(r.workerName)
	}

	return submitted, nil
}

// submitOne carries one candidate through deployment validation,
// configuration resolution, and the Pending transition. It reports
// whether the run was successfully handed off to Run; on false, the
// caller releases the limiter slot the caller already acquired.
func (r *Runtime) submitOne(ctx context.Context, pool *backend.WorkPool, impl registry.WorkerImpl, fr backend.FlowRun) (bool, error) {
	deployment, err := r.client.ReadDeployment(ctx, fr.DeploymentID)
	if err != nil {
		return false, err
	}
	if deployment.StorageDocumentID != nil {
		r.logger.Warn("Workers currently only support local storage; use an agent", "flow_run_id", fr.ID, "deployment_id", deployment.ID)
		return false, nil
	}

	resolved, err := jobconfig.FromTemplateAndOverrides(pool.BaseJobTemplate, deployment.Overrides)
	if err != nil {
		r.failRun(ctx, fr.ID, err)
		return false, err
	}

	if err := r.client.SetFlowRunState(ctx, fr.ID, backend.FlowRunStatePending, ""); err != nil {
		var conflict *backend.ConflictErr
		if errors.As(err, &conflict) {
			return false, nil
		}
		return false, err
	}

	r.runAsync(fr, resolved, impl)
	return true, nil
}

// runAsync schedules impl.Run on a goroutine tracked by the runtime's
// submission WaitGroup, releasing the limiter slot unconditionally on
// completion and reporting a Crashed transition if Run fails. Run inherits
// the runtime's submission scope: Teardown cancels it, so an in-flight Run
// observes cancellation instead of running to completion on its own.
func (r *Runtime) runAsync(fr backend.FlowRun, configuration map[string]any, impl registry.WorkerImpl) {
	r.submissions.Add(1)
	go func() {
		defer r.submissions.Done()
		defer func() {
			r.limiter.ReleaseOnBehalfOf(fr.ID)
			metrics.SetLimiterOccupied(r.workerName, r.limiter.Occupied())
		}()

		ctx, span := tracer.Start(r.submissionsCtx, "worker.run")
		defer span.End()

		if _, err := impl.Run(ctx, fr, configuration); err != nil {
			metrics.RecordFlowRunCrashed(r.workerName)
			r.failRun(context.Background(), fr.ID, err)
		}
	}()
}

// failRun transitions a flow run to Crashed with the error message. The
// transition is best-effort: a failure here is logged, not propagated,
// since the worker has no further recourse for this run.
func (r *Runtime) failRun(ctx context.Context, flowRunID string, cause error) {
	if err := r.client.SetFlowRunState(ctx, flowRunID, backend.FlowRunStateCrashed, cause.Error()); err != nil {
		r.logger.Warn("could not report crashed flow run state", "flow_run_id", flowRunID, "error", err)
	}
}
