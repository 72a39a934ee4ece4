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

// Package metrics exposes Prometheus instrumentation for the worker
// runtime and its supervisor loops.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	heartbeats = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_worker_heartbeats_total",
			Help: "Total heartbeats sent by worker name and outcome",
		},
		[]string{"worker", "outcome"},
	)

	flowRunsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_worker_flow_runs_submitted_total",
			Help: "Total flow runs submitted by worker name",
		},
		[]string{"worker"},
	)

	flowRunsCrashed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_worker_flow_runs_crashed_total",
			Help: "Total flow runs whose Run hook failed, by worker name",
		},
		[]string{"worker"},
	)

	deploymentsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_worker_deployments_applied_total",
			Help: "Total deployments applied during storage scans, by worker name",
		},
		[]string{"worker"},
	)

	manifestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_worker_manifest_errors_total",
			Help: "Total manifest parse errors encountered during storage scans, by worker name",
		},
		[]string{"worker"},
	)

	limiterOccupied = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conductor_worker_limiter_occupied_slots",
			Help: "Concurrency limiter slots currently held, by worker name",
		},
		[]string{"worker"},
	)

	loopFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_worker_loop_failures_total",
			Help: "Total consecutive-failure events for a supervised activity, by worker name and activity",
		},
		[]string{"worker", "activity"},
	)
)

// RecordHeartbeat increments the heartbeat counter for worker, tagged with
// outcome ("ok" or "error").
func RecordHeartbeat(worker, outcome string) {
	heartbeats.WithLabelValues(worker, outcome).Inc()
}

// RecordFlowRunSubmitted increments the submission counter for worker.
func RecordFlowRunSubmitted(worker string) {
	flowRunsSubmitted.WithLabelValues(worker).Inc()
}

// RecordFlowRunCrashed increments the crash counter for worker.
func RecordFlowRunCrashed(worker string) {
	flowRunsCrashed.WithLabelValues(worker).Inc()
}

// RecordDeploymentApplied increments the deployments-applied counter for worker.
func RecordDeploymentApplied(worker string) {
	deploymentsApplied.WithLabelValues(worker).Inc()
}

// RecordManifestError increments the manifest-error counter for worker.
func RecordManifestError(worker string) {
	manifestErrors.WithLabelValues(worker).Inc()
}

// SetLimiterOccupied sets the current limiter occupancy gauge for worker.
func SetLimiterOccupied(worker string, occupied int) {
	limiterOccupied.WithLabelValues(worker).Set(float64(occupied))
}

// RecordLoopFailure increments the consecutive-failure counter for worker/activity.
func RecordLoopFailure(worker, activity string) {
	loopFailures.WithLabelValues(worker, activity).Inc()
}
