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

// Package jobconfig resolves a worker type's declared template fields and a
// deployment's overrides into a concrete per-run job configuration.
//
// The source Prefect worker assembles its variables JSON schema via runtime
// introspection of a pydantic model. This package replaces that with
// explicit static metadata (a Schema, one FieldSpec per declared field) so
// GetDefaultBaseJobTemplate is a pure fold with no reflection, per the
// source's own re-architecture note.
package jobconfig

import (
	"sort"

	"github.com/tombee/conductor/internal/worker/backend"
)

// FieldSpec declares one field a worker type contributes to its job
// configuration template, beyond the baseline command/env.
type FieldSpec struct {
	// Type is the JSON-Schema type name (string, integer, boolean, object, array).
	Type string

	// Title is the human-facing label shown for this variable.
	Title string

	// Description documents what the field controls.
	Description string

	// Default is the value used when neither an override nor any other
	// source supplies one. A field with no default is listed in the
	// template's "required" variables.
	Default any

	// HasDefault distinguishes "no default" from "default is nil/zero".
	HasDefault bool

	// Template is the placeholder expression substituted into
	// job_configuration for this field. Empty means the field's default
	// expression, "{{ field_name }}".
	Template string
}

// Schema is a worker type's static field declarations.
type Schema map[string]FieldSpec

// JSONTemplate produces the job_configuration mapping a worker type
// advertises: each declared field's template expression, or the default
// "{{ field_name }}" placeholder when none is declared.
func JSONTemplate(schema Schema) map[string]any {
	tmpl := make(map[string]any, len(schema))
	for name, spec := range schema {
		tmpl[name] = templateExpr(name, spec)
	}
	return tmpl
}

func templateExpr(name string, spec FieldSpec) string {
	if spec.Template != "" {
		return spec.Template
	}
	return "{{ " + name + " }}"
}

// baselineVariables returns the variables every BaseJobTemplate carries
// regardless of worker type: command and env.
func baselineVariables() map[string]backend.Variable {
	return map[string]backend.Variable{
		"command": {
			Type:        "string",
			Title:       "Command",
			Description: "The command to use when starting a flow run. In most cases, this should be left blank and the command will be automatically generated.",
		},
		"env": {
			Type:        "object",
			Title:       "Environment Variables",
			Description: "Environment variables to set when starting a flow run.",
		},
	}
}

// DefaultBaseJobTemplate is a pure function of a worker type's Schema: the
// merge of the baseline command/env variables with the declared fields,
// and the job_configuration template referencing each of them. Equal
// schemas yield equal templates.
func DefaultBaseJobTemplate(schema Schema) backend.BaseJobTemplate {
	properties := baselineVariables()
	jobConfiguration := map[string]any{
		"command": "{{ command }}",
		"env":     "{{ env }}",
	}

	var required []string
	// command and env have no default: both are required variables, though
	// their resolved value may still be null.
	required = append(required, "command", "env")

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := schema[name]
		properties[name] = backend.Variable{
			Type:        spec.Type,
			Title:       spec.Title,
			Description: spec.Description,
			Default:     spec.Default,
		}
		jobConfiguration[name] = templateExpr(name, spec)
		if !spec.HasDefault {
			required = append(required, name)
		}
	}

	return backend.BaseJobTemplate{
		JobConfiguration: jobConfiguration,
		Variables: backend.Variables{
			Properties: properties,
			Required:   required,
		},
	}
}
