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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/conductor/internal/worker/backend"
)

func baseTemplate() backend.BaseJobTemplate {
	return DefaultBaseJobTemplate(Schema{
		"stream_output": {
			Type:       "boolean",
			Default:    true,
			HasDefault: true,
		},
		"labels": {
			Type: "object",
		},
	})
}

func TestFromTemplateAndOverrides_UsesOverrideThenDefault(t *testing.T) {
	tmpl := baseTemplate()

	resolved, err := FromTemplateAndOverrides(tmpl, map[string]any{
		"command": "python flow.py",
	})
	require.NoError(t, err)

	assert.Equal(t, "python flow.py", resolved["command"])
	assert.Equal(t, true, resolved["stream_output"])
	assert.Nil(t, resolved["labels"])
}

func TestFromTemplateAndOverrides_OverrideBeatsDefault(t *testing.T) {
	tmpl := baseTemplate()

	resolved, err := FromTemplateAndOverrides(tmpl, map[string]any{
		"stream_output": false,
	})
	require.NoError(t, err)

	assert.Equal(t, false, resolved["stream_output"])
}

func TestFromTemplateAndOverrides_MissingVariableBecomesNilNeverLiteralPlaceholder(t *testing.T) {
	tmpl := baseTemplate()

	resolved, err := FromTemplateAndOverrides(tmpl, nil)
	require.NoError(t, err)

	assert.Nil(t, resolved["command"])
	assert.NotEqual(t, "{{ command }}", resolved["command"])
}

func TestFromTemplateAndOverrides_CommandFalseyNormalization(t *testing.T) {
	tmpl := baseTemplate()

	resolved, err := FromTemplateAndOverrides(tmpl, map[string]any{"command": ""})
	require.NoError(t, err)
	assert.Nil(t, resolved["command"])
}

func TestFromTemplateAndOverrides_RawNonStringValuePreserved(t *testing.T) {
	tmpl := DefaultBaseJobTemplate(Schema{
		"retries": {Type: "integer"},
	})

	resolved, err := FromTemplateAndOverrides(tmpl, map[string]any{"retries": 3})
	require.NoError(t, err)

	assert.Equal(t, 3, resolved["retries"])
}

func TestFromTemplateAndOverrides_PartialPlaceholderStringifiesInPlace(t *testing.T) {
	tmpl := backend.BaseJobTemplate{
		JobConfiguration: map[string]any{
			"command": "run --retries={{ retries }}",
		},
		Variables: backend.Variables{
			Properties: map[string]backend.Variable{
				"retries": {Type: "integer"},
			},
		},
	}

	resolved, err := FromTemplateAndOverrides(tmpl, map[string]any{"retries": 3})
	require.NoError(t, err)

	assert.Equal(t, "run --retries=3", resolved["command"])
}

func TestFromTemplateAndOverrides_Idempotent(t *testing.T) {
	tmpl := baseTemplate()
	overrides := map[string]any{"command": "python flow.py", "labels": map[string]any{"a": "b"}}

	first, err := FromTemplateAndOverrides(tmpl, overrides)
	require.NoError(t, err)
	second, err := FromTemplateAndOverrides(tmpl, overrides)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	resolved := map[string]any{"command": "x", "unexpected_field": 1}

	var cfg BaseConfiguration
	err := Decode(resolved, &cfg)
	assert.Error(t, err)
}

func TestDecode_PopulatesBaseConfiguration(t *testing.T) {
	resolved := map[string]any{"command": "echo hi", "env": map[string]any{"FOO": "bar"}}

	var cfg BaseConfiguration
	require.NoError(t, Decode(resolved, &cfg))

	require.NotNil(t, cfg.Command)
	assert.Equal(t, "echo hi", *cfg.Command)
	assert.Equal(t, "bar", cfg.Env["FOO"])
}
