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

// Package runtime is the worker's lifecycle object: setup/teardown, the
// backend sync and storage scan activities, and the flow-run submission
// pipeline.
package runtime

import (
	"time"

	"github.com/tombee/conductor/internal/worker/backend"
	"github.com/tombee/conductor/internal/worker/config"
)

// StatusReport is a point-in-time snapshot of a Runtime's state. It is a
// pure read over current state and never touches the network.
type StatusReport struct {
	WorkerName string
	WorkPool   *backend.WorkPool
	Settings   config.Config
	StartedAt  time.Time
}
