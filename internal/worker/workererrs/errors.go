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

// Package workererrs defines the worker runtime's error taxonomy.
//
// Each kind is its own struct so callers can branch with errors.As instead
// of string matching: one struct per failure kind, an Error() method, and
// Unwrap() where a cause exists.
package workererrs

import "fmt"

// SetupError is fatal at worker startup: the storage directory could not be
// created, the worker type is unknown, or the work pool is missing and
// creation is disabled.
type SetupError struct {
	Reason string
	Cause  error
}

func (e *SetupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("worker setup failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("worker setup failed: %s", e.Reason)
}

func (e *SetupError) Unwrap() error { return e.Cause }

// TransientBackendError wraps a recoverable backend call failure (network
// error, 5xx, timeout). The supervisor logs it and retries on the next tick.
type TransientBackendError struct {
	Operation string
	Cause     error
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("transient backend error during %s: %v", e.Operation, e.Cause)
}

func (e *TransientBackendError) Unwrap() error { return e.Cause }

// ConflictError means a flow-run state transition lost a race to another
// worker. Not a failure from the user's perspective; the run is skipped.
type ConflictError struct {
	FlowRunID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict updating flow run %s: already claimed", e.FlowRunID)
}

// ManifestParseError covers a single malformed manifest file. The scan
// continues past it.
type ManifestParseError struct {
	Path  string
	Cause error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("failed to parse manifest %s: %v", e.Path, e.Cause)
}

func (e *ManifestParseError) Unwrap() error { return e.Cause }

// JobConfigurationError means the template/overrides resolution produced an
// invalid configuration for this worker type. The offending run is failed.
type JobConfigurationError struct {
	Reason string
	Cause  error
}

func (e *JobConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid job configuration: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid job configuration: %s", e.Reason)
}

func (e *JobConfigurationError) Unwrap() error { return e.Cause }

// RunError wraps any error returned by a worker type's Run hook. Handled the
// same way as JobConfigurationError: the run transitions to Crashed and its
// limiter slot is released.
type RunError struct {
	FlowRunID string
	Cause     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed: %v", e.FlowRunID, e.Cause)
}

func (e *RunError) Unwrap() error { return e.Cause }

// DeploymentRejected is returned by a worker type's VerifySubmittedDeployment
// hook. Advisory only: the deployment stays applied, the failure is logged.
type DeploymentRejected struct {
	DeploymentID string
	Reason       string
}

func (e *DeploymentRejected) Error() string {
	return fmt.Sprintf("deployment %s rejected: %s", e.DeploymentID, e.Reason)
}

// Wrap annotates err with a message, preserving it for errors.Is/As. Returns
// nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
