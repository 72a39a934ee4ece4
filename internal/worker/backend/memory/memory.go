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

// Package memory provides an in-memory backend.Client, used by the worker
// runtime's and the manifest reconciler's tests in place of a real
// orchestration server.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tombee/conductor/internal/worker/backend"
)

var _ backend.Client = (*Backend)(nil)

// Backend is an in-memory backend.Client.
type Backend struct {
	mu          sync.RWMutex
	pools       map[string]*backend.WorkPool
	workers     map[string]map[string]backend.WorkerRegistration // pool name -> worker name -> registration
	deployments map[string]*backend.Deployment                   // by ID
	flowRuns    map[string]*backend.FlowRun
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		pools:       make(map[string]*backend.WorkPool),
		workers:     make(map[string]map[string]backend.WorkerRegistration),
		deployments: make(map[string]*backend.Deployment),
		flowRuns:    make(map[string]*backend.FlowRun),
	}
}

// ReadWorkPool implements backend.Client.
func (b *Backend) ReadWorkPool(ctx context.Context, name string) (*backend.WorkPool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pool, ok := b.pools[name]
	if !ok {
		return nil, &backend.NotFoundError{Resource: "work pool", ID: name}
	}
	cp := *pool
	return &cp, nil
}

// CreateWorkPool implements backend.Client.
func (b *Backend) CreateWorkPool(ctx context.Context, name, workerType string, template backend.BaseJobTemplate) (*backend.WorkPool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.pools[name]; exists {
		return nil, &backend.ConflictErr{Resource: "work pool", ID: name}
	}

	pool := &backend.WorkPool{
		ID:              uuid.New().String(),
		Name:            name,
		Type:            workerType,
		BaseJobTemplate: template,
	}
	b.pools[name] = pool
	cp := *pool
	return &cp, nil
}

// SendWorkerHeartbeat implements backend.Client.
func (b *Backend) SendWorkerHeartbeat(ctx context.Context, poolID, workerName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var poolName string
	for _, p := range b.pools {
		if p.ID == poolID {
			poolName = p.Name
			break
		}
	}
	if poolName == "" {
		return &backend.NotFoundError{Resource: "work pool", ID: poolID}
	}

	if b.workers[poolName] == nil {
		b.workers[poolName] = make(map[string]backend.WorkerRegistration)
	}
	b.workers[poolName][workerName] = backend.WorkerRegistration{
		Name:              workerName,
		LastHeartbeatTime: time.Now(),
	}
	return nil
}

// ReadWorkersForWorkPool implements backend.Client.
func (b *Backend) ReadWorkersForWorkPool(ctx context.Context, poolName string) ([]backend.WorkerRegistration, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []backend.WorkerRegistration
	for _, w := range b.workers[poolName] {
		out = append(out, w)
	}
	return out, nil
}

// GetScheduledFlowRuns implements backend.Client.
func (b *Backend) GetScheduledFlowRuns(ctx context.Context, poolID string, scheduledBefore time.Time) ([]backend.FlowRun, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []backend.FlowRun
	for _, fr := range b.flowRuns {
		if fr.State != backend.FlowRunStateScheduled {
			continue
		}
		if fr.DeploymentID == "" {
			continue
		}
		if fr.ScheduledTime.After(scheduledBefore) {
			continue
		}
		out = append(out, *fr)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out, nil
}

// ReadDeployment implements backend.Client.
func (b *Backend) ReadDeployment(ctx context.Context, id string) (*backend.Deployment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dep, ok := b.deployments[id]
	if !ok {
		return nil, &backend.NotFoundError{Resource: "deployment", ID: id}
	}
	cp := *dep
	return &cp, nil
}

// ReadDeploymentByName implements backend.Client.
func (b *Backend) ReadDeploymentByName(ctx context.Context, flowName, deploymentName string) (*backend.Deployment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, dep := range b.deployments {
		if dep.FlowName == flowName && dep.Name == deploymentName {
			cp := *dep
			return &cp, nil
		}
	}
	return nil, &backend.NotFoundError{Resource: "deployment", ID: flowName + "/" + deploymentName}
}

// ApplyDeployment implements backend.Client.
func (b *Backend) ApplyDeployment(ctx context.Context, manifest backend.Deployment) (*backend.Deployment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, existing := range b.deployments {
		if existing.FlowName == manifest.FlowName && existing.Name == manifest.Name {
			manifest.ID = id
			b.deployments[id] = &manifest
			cp := manifest
			return &cp, nil
		}
	}

	manifest.ID = uuid.New().String()
	b.deployments[manifest.ID] = &manifest
	cp := manifest
	return &cp, nil
}

// ReadDeployments implements backend.Client.
func (b *Backend) ReadDeployments(ctx context.Context) ([]backend.Deployment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]backend.Deployment, 0, len(b.deployments))
	for _, dep := range b.deployments {
		out = append(out, *dep)
	}
	return out, nil
}

// SetFlowRunState implements backend.Client.
func (b *Backend) SetFlowRunState(ctx context.Context, id string, state backend.FlowRunState, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	fr, ok := b.flowRuns[id]
	if !ok {
		return &backend.NotFoundError{Resource: "flow run", ID: id}
	}

	if !validTransition(fr.State, state) {
		return &backend.ConflictErr{Resource: "flow run", ID: id}
	}

	fr.State = state
	return nil
}

// Close implements io.Closer.
func (b *Backend) Close() error { return nil }

// validTransition rejects transitions away from a terminal or
// already-claimed state, modeling the race that produces ConflictErr when
// two workers contend for the same run.
func validTransition(from, to backend.FlowRunState) bool {
	switch from {
	case backend.FlowRunStateCompleted, backend.FlowRunStateFailed, backend.FlowRunStateCrashed, backend.FlowRunStateCancelled:
		return false
	case backend.FlowRunStatePending, backend.FlowRunStateRunning:
		if to == backend.FlowRunStatePending {
			return false
		}
	}
	return true
}

// SeedFlowRun inserts a flow run directly, bypassing state-machine checks.
// Used by tests to set up fixtures.
func (b *Backend) SeedFlowRun(fr backend.FlowRun) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fr.ID == "" {
		fr.ID = uuid.New().String()
	}
	cp := fr
	b.flowRuns[fr.ID] = &cp
}

// SeedDeployment inserts a deployment directly. Used by tests.
func (b *Backend) SeedDeployment(dep backend.Deployment) backend.Deployment {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dep.ID == "" {
		dep.ID = uuid.New().String()
	}
	cp := dep
	b.deployments[dep.ID] = &cp
	return cp
}

// FlowRunState returns a flow run's current state. Used by tests.
func (b *Backend) FlowRunState(id string) (backend.FlowRunState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fr, ok := b.flowRuns[id]
	if !ok {
		return "", false
	}
	return fr.State, true
}

// PauseWorkPool marks a pool paused. Used by tests.
func (b *Backend) PauseWorkPool(name string, paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pools[name]; ok {
		p.IsPaused = paused
	}
}
