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

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/conductor/internal/worker/backend"
	"github.com/tombee/conductor/internal/worker/jobconfig"
)

type stubImpl struct {
	typeTag string
}

func (s stubImpl) Type() string                        { return s.typeTag }
func (s stubImpl) JobConfigSchema() jobconfig.Schema    { return jobconfig.BaseSchema }
func (s stubImpl) Run(ctx context.Context, fr backend.FlowRun, cfg map[string]any) (RunResult, error) {
	return RunResult{}, nil
}
func (s stubImpl) VerifySubmittedDeployment(ctx context.Context, d backend.Deployment) error {
	return nil
}

func TestRegisterAndGet(t *testing.T) {
	reset()
	defer reset()

	require.NoError(t, Register(stubImpl{typeTag: "process"}))

	impl, ok := Get("process")
	require.True(t, ok)
	assert.Equal(t, "process", impl.Type())
}

func TestRegister_DuplicateTypeFails(t *testing.T) {
	reset()
	defer reset()

	require.NoError(t, Register(stubImpl{typeTag: "process"}))
	err := Register(stubImpl{typeTag: "process"})
	assert.Error(t, err)
}

func TestGet_UnknownTypeNotFound(t *testing.T) {
	reset()
	defer reset()

	_, ok := Get("does-not-exist")
	assert.False(t, ok)
}

func TestTypes_ListsAllRegistered(t *testing.T) {
	reset()
	defer reset()

	require.NoError(t, Register(stubImpl{typeTag: "process"}))
	require.NoError(t, Register(stubImpl{typeTag: "docker"}))

	assert.ElementsMatch(t, []string{"process", "docker"}, Types())
}
