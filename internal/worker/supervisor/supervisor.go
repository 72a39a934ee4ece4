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

// Package supervisor runs a worker's periodic activities under one
// cancellation scope, isolating the failure of one activity from the
// others and from the worker process as a whole.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tombee/conductor/internal/worker/metrics"
)

// consecutiveFailureThreshold is the default number of consecutive
// failures within an activity before a warning is emitted. The activity
// keeps running past the threshold; this only affects log verbosity.
const consecutiveFailureThreshold = 3

// Activity is one periodically-invoked workload, e.g.
// Runtime.SyncWithBackend.
type Activity struct {
	// Name identifies the activity in logs and metrics.
	Name string

	// Interval is the period between invocations, measured from the start
	// of the previous iteration; a slow iteration does not stack up
	// catch-up runs.
	Interval time.Duration

	// Run performs one iteration. A returned error is logged and does not
	// stop the activity.
	Run func(ctx context.Context) error
}

// Supervisor runs a fixed set of Activities under one cancellation scope.
type Supervisor struct {
	activities []Activity
	logger     *slog.Logger
	workerName string

	// RunOnce short-circuits every activity to exactly one iteration, then
	// that activity's goroutine exits.
	RunOnce bool
}

// New returns a Supervisor for the given activities.
func New(workerName string, logger *slog.Logger, activities ...Activity) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		activities: activities,
		logger:     logger,
		workerName: workerName,
	}
}

// Run starts all activities and blocks until ctx is cancelled (or, in
// RunOnce mode, until every activity has completed its single iteration).
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, a := range s.activities {
		wg.Add(1)
		go func(a Activity) {
			defer wg.Done()
			s.runActivity(ctx, a)
		}(a)
	}
	wg.Wait()
}

// runActivity drives one activity's ticker loop.
func (s *Supervisor) runActivity(ctx context.Context, a Activity) {
	logger := s.logger.With("activity", a.Name)
	consecutiveFailures := 0

	invoke := func() {
		if err := a.Run(ctx); err != nil {
			consecutiveFailures++
			logger.Error("activity iteration failed", "error", err, "consecutive_failures", consecutiveFailures)
			metrics.RecordLoopFailure(s.workerName, a.Name)
			if consecutiveFailures >= consecutiveFailureThreshold {
				logger.Warn("activity has failed repeatedly", "consecutive_failures", consecutiveFailures)
			}
			return
		}
		consecutiveFailures = 0
	}

	invoke()
	if s.RunOnce {
		return
	}

	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			invoke()
		}
	}
}
