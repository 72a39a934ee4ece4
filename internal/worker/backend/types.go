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

package backend

import "time"

// FlowRunState is the backend-owned lifecycle state of a flow run.
type FlowRunState string

const (
	FlowRunStateScheduled FlowRunState = "Scheduled"
	FlowRunStatePending   FlowRunState = "Pending"
	FlowRunStateRunning   FlowRunState = "Running"
	FlowRunStateCompleted FlowRunState = "Completed"
	FlowRunStateFailed    FlowRunState = "Failed"
	FlowRunStateCrashed   FlowRunState = "Crashed"
	FlowRunStateCancelled FlowRunState = "Cancelled"
)

// Variable describes one placeholder in a BaseJobTemplate's variables
// schema: its type, presentation metadata, and optional default.
type Variable struct {
	Type        string `json:"type" yaml:"type"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// Variables is the JSON-Schema-shaped description of a BaseJobTemplate's
// placeholders: an object whose properties map variable name to Variable,
// plus the list of variables with no default (required).
type Variables struct {
	Properties map[string]Variable `json:"properties" yaml:"properties"`
	Required   []string            `json:"required,omitempty" yaml:"required,omitempty"`
}

// BaseJobTemplate pairs a templated job configuration mapping with the
// schema describing each placeholder it references.
type BaseJobTemplate struct {
	JobConfiguration map[string]any `json:"job_configuration" yaml:"job_configuration"`
	Variables        Variables      `json:"variables" yaml:"variables"`
}

// WorkPool is a named, typed container of work queues.
type WorkPool struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	BaseJobTemplate BaseJobTemplate `json:"base_job_template"`
	IsPaused        bool            `json:"is_paused"`
}

// WorkerRegistration is the identity of a worker within a pool.
type WorkerRegistration struct {
	Name              string    `json:"name"`
	LastHeartbeatTime time.Time `json:"last_heartbeat_time"`
}

// FlowRun is a backend-owned scheduled or in-flight execution record.
type FlowRun struct {
	ID            string       `json:"id"`
	DeploymentID  string       `json:"deployment_id"`
	Name          string       `json:"name"`
	State         FlowRunState `json:"state"`
	ScheduledTime time.Time    `json:"scheduled_time"`
}

// Deployment binds a flow to a path, entrypoint, and storage.
//
// StorageDocumentID is non-null for remote storage deployments, which this
// worker detects and skips in the flow-run submission pipeline.
type Deployment struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	FlowName          string         `json:"flow_name"`
	Path              string         `json:"path"`
	Entrypoint        string         `json:"entrypoint"`
	StorageDocumentID *string        `json:"storage_document_id,omitempty"`
	Tags              []string       `json:"tags,omitempty"`
	Overrides         map[string]any `json:"job_variables,omitempty"`
	Timestamp         *time.Time     `json:"timestamp,omitempty"`
}

// NotFoundError is returned by read operations when the named resource does
// not exist in the backend.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.Resource + " " + e.ID
}

// ConflictErr is returned by create/transition operations that lost a race
// (pool already exists, flow run already claimed).
type ConflictErr struct {
	Resource string
	ID       string
}

func (e *ConflictErr) Error() string {
	return "conflict: " + e.Resource + " " + e.ID
}
