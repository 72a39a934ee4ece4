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

package jobconfig

// BaseConfiguration is the minimal concrete job configuration every worker
// type's job configuration variant extends: a command and environment
// variables. Worker types that need nothing beyond this may use it
// directly; others embed it.
type BaseConfiguration struct {
	Command *string           `json:"command"`
	Env     map[string]string `json:"env,omitempty"`
}

// BaseSchema is the empty field schema for worker types that add nothing
// beyond the baseline command/env variables.
var BaseSchema = Schema{}
