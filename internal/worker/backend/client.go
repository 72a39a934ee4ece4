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

// Package backend declares the logical operations a worker needs from the
// orchestration backend, and the data model those operations exchange.
//
// Wire format and transport are an implementation's business (see
// httpclient.go for the default HTTP+JSON implementation); this package
// pins only the interface a WorkerRuntime programs against, the same way
// internal/controller/backend.Backend pins the controller's storage
// contract independent of memory vs. postgres.
package backend

import (
	"context"
	"io"
	"time"
)

// Client is everything a WorkerRuntime needs from the orchestration
// backend. Implementations must be safe for concurrent use: all three
// periodic activities share one Client.
type Client interface {
	// ReadWorkPool returns the named pool, or a *NotFoundError.
	ReadWorkPool(ctx context.Context, name string) (*WorkPool, error)

	// CreateWorkPool creates a pool with the given base template, or
	// returns *ConflictErr if it already exists.
	CreateWorkPool(ctx context.Context, name, workerType string, template BaseJobTemplate) (*WorkPool, error)

	// SendWorkerHeartbeat records a heartbeat for worker workerName in pool
	// poolID.
	SendWorkerHeartbeat(ctx context.Context, poolID, workerName string) error

	// ReadWorkersForWorkPool lists known worker registrations for a pool.
	ReadWorkersForWorkPool(ctx context.Context, poolName string) ([]WorkerRegistration, error)

	// GetScheduledFlowRuns returns Scheduled runs with a non-null
	// deployment, in pools this worker serves, sorted by ScheduledTime
	// ascending, with ScheduledTime <= scheduledBefore.
	GetScheduledFlowRuns(ctx context.Context, poolID string, scheduledBefore time.Time) ([]FlowRun, error)

	// ReadDeployment returns a deployment by ID, or a *NotFoundError.
	ReadDeployment(ctx context.Context, id string) (*Deployment, error)

	// ReadDeploymentByName returns a deployment by its (flow, deployment)
	// name pair, or a *NotFoundError.
	ReadDeploymentByName(ctx context.Context, flowName, deploymentName string) (*Deployment, error)

	// ApplyDeployment creates or updates a deployment from a manifest's
	// fields and returns the stored record.
	ApplyDeployment(ctx context.Context, manifest Deployment) (*Deployment, error)

	// ReadDeployments lists all deployments known to the backend.
	ReadDeployments(ctx context.Context) ([]Deployment, error)

	// SetFlowRunState transitions a flow run to the given state. Returns
	// *ConflictErr if the run's current state makes the transition invalid
	// (e.g. another worker already moved it to Pending/Running).
	SetFlowRunState(ctx context.Context, id string, state FlowRunState, message string) error

	io.Closer
}
