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

package manifest

import (
	"os"

	"github.com/tombee/conductor/internal/worker/workererrs"
	"gopkg.in/yaml.v3"
)

// Load parses a single manifest file. A parse failure is always a
// *workererrs.ManifestParseError, so callers can log and continue a scan
// without inspecting the underlying cause.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &workererrs.ManifestParseError{Path: path, Cause: err}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &workererrs.ManifestParseError{Path: path, Cause: err}
	}
	m.SourcePath = path
	return &m, nil
}
