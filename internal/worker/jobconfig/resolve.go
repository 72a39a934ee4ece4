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
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tombee/conductor/internal/worker/backend"
	"github.com/tombee/conductor/internal/worker/workererrs"
)

// placeholderPattern matches a {{ name }} template reference. Modeled on
// pkg/workflow/expression's templatePattern, narrowed to bare identifiers
// since job configuration placeholders reference a single variable rather
// than an arbitrary path expression.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// fullPlaceholderPattern matches a string that is, once trimmed, exactly
// one placeholder and nothing else.
var fullPlaceholderPattern = regexp.MustCompile(`^\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}$`)

// EffectiveValues is the per-variable value that resolution substitutes,
// keyed by variable name. A variable with no entry has no effective value
// (neither an override nor a default was available) and resolves to null.
type EffectiveValues map[string]any

// effectiveValues computes, for each declared variable, overrides[name] if
// present, else the variable's default, else no entry at all.
func effectiveValues(variables backend.Variables, overrides map[string]any) EffectiveValues {
	eff := make(EffectiveValues, len(variables.Properties))
	for name, v := range variables.Properties {
		if val, ok := overrides[name]; ok {
			eff[name] = val
			continue
		}
		if v.Default != nil {
			eff[name] = v.Default
		}
	}
	return eff
}

// FromTemplateAndOverrides resolves {base_job_template, overrides} into a
// concrete job configuration mapping. Idempotent: re-resolving the same
// inputs produces an equal result, since both effectiveValues and
// substitute build fresh maps without mutating their inputs.
func FromTemplateAndOverrides(template backend.BaseJobTemplate, overrides map[string]any) (map[string]any, error) {
	eff := effectiveValues(template.Variables, overrides)

	resolved := substitute(map[string]any(template.JobConfiguration), eff)
	out, ok := resolved.(map[string]any)
	if !ok {
		return nil, &workererrs.JobConfigurationError{Reason: "resolved job configuration must be an object"}
	}

	normalizeFalseyCommand(out)
	return out, nil
}

// substitute walks a template value, replacing {{ name }} placeholders with
// their effective value. A string that is, in its entirety, one
// placeholder is replaced by the raw effective value (never stringified);
// a placeholder embedded in a larger string is stringified in place. A
// whole-string placeholder with no effective value becomes nil, and an
// embedded one is replaced by the empty string; neither is ever left as the
// literal text "{{ name }}".
func substitute(value any, eff EffectiveValues) any {
	switch v := value.(type) {
	case string:
		return substituteString(v, eff)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, vv := range v {
			out[k] = substitute(vv, eff)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, vv := range v {
			out[i] = substitute(vv, eff)
		}
		return out
	default:
		return v
	}
}

func substituteString(s string, eff EffectiveValues) any {
	if m := fullPlaceholderPattern.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
		val, ok := eff[m[1]]
		if !ok {
			return nil
		}
		return val
	}

	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		val, ok := eff[name]
		if !ok {
			return ""
		}
		return fmt.Sprintf("%v", val)
	})
}

// normalizeFalseyCommand forces command to nil whenever its effective value
// is nil or the empty string.
func normalizeFalseyCommand(m map[string]any) {
	cmd, ok := m["command"]
	if !ok {
		return
	}
	if cmd == nil || cmd == "" {
		m["command"] = nil
	}
}

// Decode coerces a resolved job configuration mapping into the concrete
// JobConfiguration variant a worker type declares. Unknown fields or type
// mismatches fail with *workererrs.JobConfigurationError, since that
// signals the template produced a configuration this worker type cannot
// run.
func Decode(resolved map[string]any, out any) error {
	data, err := json.Marshal(resolved)
	if err != nil {
		return &workererrs.JobConfigurationError{Reason: "job configuration is not serializable", Cause: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &workererrs.JobConfigurationError{Reason: "job configuration does not match this worker type", Cause: err}
	}
	return nil
}
