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
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tombee/conductor/internal/worker/backend"
	"github.com/tombee/conductor/internal/worker/config"
	"github.com/tombee/conductor/internal/worker/jobconfig"
	"github.com/tombee/conductor/internal/worker/limiter"
	"github.com/tombee/conductor/internal/worker/manifest"
	"github.com/tombee/conductor/internal/worker/metrics"
	"github.com/tombee/conductor/internal/worker/registry"
	"github.com/tombee/conductor/internal/worker/workererrs"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/tombee/conductor/internal/worker/runtime")

// Runtime is the lifecycle object for one worker process. It exclusively
// owns its ConcurrencyLimiter, cached WorkPool snapshot, BackendClient
// handle, and the set of in-flight submissions.
type Runtime struct {
	cfg    config.Config
	client backend.Client
	impl   registry.WorkerImpl
	logger *slog.Logger

	mu         sync.RWMutex
	pool       *backend.WorkPool
	workerName string
	workerType string
	startedAt  time.Time

	limiter    *limiter.Limiter
	reconciler *manifest.Reconciler

	// submissionsCtx is the parent context for every impl.Run goroutine
	// runAsync starts; cancelSubmissions cancels it on Teardown so in-flight
	// submissions observe cancellation instead of running to completion on
	// their own schedule.
	submissionsCtx    context.Context
	cancelSubmissions context.CancelFunc
	submissions       sync.WaitGroup
}

// New constructs a Runtime. impl may be nil when cfg.WorkerType is empty;
// in that case the worker type (and its WorkerImpl) is derived from the
// pool's type after the first successful SyncWithBackend, looked up in the
// process-wide registry.
func New(cfg config.Config, client backend.Client, impl registry.WorkerImpl, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "worker-" + uuid.New().String()[:8]
	}

	var lim *limiter.Limiter
	if cfg.Limit > 0 {
		lim = limiter.New(&cfg.Limit)
	} else {
		lim = limiter.New(nil)
	}

	submissionsCtx, cancelSubmissions := context.WithCancel(context.Background())

	r := &Runtime{
		cfg:               cfg,
		client:            client,
		impl:              impl,
		logger:            logger.With("worker_name", name, "work_pool", cfg.WorkPoolName),
		workerName:        name,
		workerType:        cfg.WorkerType,
		limiter:           lim,
		submissionsCtx:    submissionsCtx,
		cancelSubmissions: cancelSubmissions,
	}
	if impl != nil {
		r.workerType = impl.Type()
	}
	return r
}

// Setup ensures the workflow-storage directory exists and wires the
// manifest reconciler. Idempotent; safe to call more than once.
func (r *Runtime) Setup() error {
	path := r.cfg.WorkflowStoragePath
	if path == "" {
		path = "."
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &workererrs.SetupError{Reason: fmt.Sprintf("cannot create workflow storage directory %q", path), Cause: err}
	}

	r.mu.Lock()
	r.startedAt = time.Now()
	r.reconciler = manifest.NewReconciler(manifest.NewStore(path), r.client)
	r.mu.Unlock()

	r.logger.Info("worker runtime setup complete", "storage_path", path)
	return nil
}

// Teardown cancels any in-flight submissions, waits for their goroutines to
// return, then closes the backend client. Safe to call once.
func (r *Runtime) Teardown(ctx context.Context) error {
	r.cancelSubmissions()
	r.submissions.Wait()
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("closing backend client: %w", err)
	}
	return nil
}

// GetStatus returns a point-in-time snapshot of the runtime's state.
func (r *Runtime) GetStatus() StatusReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pool *backend.WorkPool
	if r.pool != nil {
		cp := *r.pool
		pool = &cp
	}
	return StatusReport{
		WorkerName: r.workerName,
		WorkPool:   pool,
		Settings:   r.cfg,
		StartedAt:  r.startedAt,
	}
}

// resolveImpl returns the WorkerImpl for the current worker type, looking
// it up in the process-wide registry if the runtime was constructed
// without one.
func (r *Runtime) resolveImpl() (registry.WorkerImpl, bool) {
	r.mu.RLock()
	impl := r.impl
	workerType := r.workerType
	r.mu.RUnlock()
	if impl != nil {
		return impl, true
	}
	if workerType == "" {
		return nil, false
	}

	found, ok := registry.Get(workerType)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	r.impl = found
	r.mu.Unlock()
	return found, true
}

// SyncWithBackend ensures the cached WorkPool reflects the backend's
// current view and sends a fresh heartbeat for this worker.
func (r *Runtime) SyncWithBackend(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "worker.sync_with_backend")
	defer span.End()

	r.mu.RLock()
	cached := r.pool
	r.mu.RUnlock()

	if cached == nil {
		pool, err := r.client.ReadWorkPool(ctx, r.cfg.WorkPoolName)
		var notFound *backend.NotFoundError
		switch {
		case errors.As(err, &notFound):
			pool, err = r.createPoolIfAllowed(ctx)
			if err != nil {
				return err
			}
			if pool == nil {
				return nil
			}
		case err != nil:
			return &workererrs.TransientBackendError{Operation: "ReadWorkPool", Cause: err}
		}

		r.mu.Lock()
		r.pool = pool
		if r.workerType == "" {
			r.workerType = pool.Type
		}
		r.mu.Unlock()
	} else {
		pool, err := r.client.ReadWorkPool(ctx, r.cfg.WorkPoolName)
		if err != nil {
			return &workererrs.TransientBackendError{Operation: "ReadWorkPool", Cause: err}
		}
		r.mu.Lock()
		r.pool = pool
		r.mu.Unlock()
	}

	r.mu.RLock()
	poolID := r.pool.ID
	r.mu.RUnlock()

	if err := r.client.SendWorkerHeartbeat(ctx, poolID, r.workerName); err != nil {
		metrics.RecordHeartbeat(r.workerName, "error")
		return &workererrs.TransientBackendError{Operation: "SendWorkerHeartbeat", Cause: err}
	}
	metrics.RecordHeartbeat(r.workerName, "ok")
	return nil
}

// createPoolIfAllowed creates the pool when create_pool_if_not_found is set
// and the worker type is known. Returns (nil, nil) when the worker should
// simply skip this sync (pool absent, creation not possible).
func (r *Runtime) createPoolIfAllowed(ctx context.Context) (*backend.WorkPool, error) {
	r.mu.RLock()
	workerType := r.workerType
	r.mu.RUnlock()

	if !r.cfg.CreatePoolIfNotFound || workerType == "" {
		return nil, nil
	}

	impl, ok := r.resolveImpl()
	if !ok {
		return nil, nil
	}

	template := jobconfig.DefaultBaseJobTemplate(impl.JobConfigSchema())
	pool, err := r.client.CreateWorkPool(ctx, r.cfg.WorkPoolName, workerType, template)
	if err != nil {
		var conflict *backend.ConflictErr
		if errors.As(err, &conflict) {
			return r.client.ReadWorkPool(ctx, r.cfg.WorkPoolName)
		}
		return nil, &workererrs.TransientBackendError{Operation: "CreateWorkPool", Cause: err}
	}
	return pool, nil
}
