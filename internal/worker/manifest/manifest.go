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

// Package manifest scans a workflow-storage directory for deployment
// manifests and reconciles them into the backend. Reconciliation is
// last-writer-wins by timestamp: a manifest only overwrites an existing
// backend deployment when its timestamp is strictly newer.
package manifest

import "time"

// Manifest is the on-disk YAML representation of a deployment.
type Manifest struct {
	Name       string         `yaml:"name"`
	FlowName   string         `yaml:"flow_name"`
	Path       string         `yaml:"path"`
	Entrypoint string         `yaml:"entrypoint"`
	Tags       []string       `yaml:"tags,omitempty"`
	Timestamp  *time.Time     `yaml:"timestamp,omitempty"`
	Overrides  map[string]any `yaml:"job_variables,omitempty"`

	// SourcePath is the filesystem path the manifest was read from. Not
	// part of the YAML document; set by the loader.
	SourcePath string `yaml:"-"`
}
