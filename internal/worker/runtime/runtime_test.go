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

package runtime

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/conductor/internal/worker/backend"
	"github.com/tombee/conductor/internal/worker/backend/memory"
	"github.com/tombee/conductor/internal/worker/config"
	"github.com/tombee/conductor/internal/worker/jobconfig"
	"github.com/tombee/conductor/internal/worker/registry"
)

type stubImpl struct {
	typeTag string
	runFn   func(ctx context.Context, fr backend.FlowRun, cfg map[string]any) error

	// block, when non-nil, is waited on before Run returns: it simulates a
	// flow run that is still executing, so its limiter slot stays held
	// until the test lets it proceed.
	block <-chan struct{}
}

func (s stubImpl) Type() string { return s.typeTag }

func (s stubImpl) JobConfigSchema() jobconfig.Schema { return jobconfig.BaseSchema }

func (s stubImpl) Run(ctx context.Context, fr backend.FlowRun, cfg map[string]any) (registry.RunResult, error) {
	if s.block != nil {
		<-s.block
	}
	if s.runFn != nil {
		return registry.RunResult{}, s.runFn(ctx, fr, cfg)
	}
	return registry.RunResult{}, nil
}

func (s stubImpl) VerifySubmittedDeployment(ctx context.Context, d backend.Deployment) error {
	return nil
}

func newTestRuntime(t *testing.T, client backend.Client, impl stubImpl) *Runtime {
	t.Helper()
	cfg := config.Config{
		WorkPoolName:         "test-pool",
		WorkerType:           impl.typeTag,
		CreatePoolIfNotFound: true,
		WorkflowStoragePath:  filepath.Join(t.TempDir(), "workflows"),
		PrefetchSeconds:      10,
	}
	rt := New(cfg, client, impl, nil)
	require.NoError(t, rt.Setup())
	return rt
}

func TestSyncWithBackend_PoolAutoCreate(t *testing.T) {
	client := memory.New()
	rt := newTestRuntime(t, client, stubImpl{typeTag: "test"})

	require.NoError(t, rt.SyncWithBackend(context.Background()))

	pool, err := client.ReadWorkPool(context.Background(), "test-pool")
	require.NoError(t, err)
	assert.Equal(t, pool.ID, rt.GetStatus().WorkPool.ID)
}

func TestSyncWithBackend_HeartbeatMonotonicity(t *testing.T) {
	client := memory.New()
	rt := newTestRuntime(t, client, stubImpl{typeTag: "test"})

	require.NoError(t, rt.SyncWithBackend(context.Background()))
	workers, err := client.ReadWorkersForWorkPool(context.Background(), "test-pool")
	require.NoError(t, err)
	require.Len(t, workers, 1)
	first := workers[0].LastHeartbeatTime

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, rt.SyncWithBackend(context.Background()))
	workers, err = client.ReadWorkersForWorkPool(context.Background(), "test-pool")
	require.NoError(t, err)
	require.Len(t, workers, 1)
	second := workers[0].LastHeartbeatTime

	assert.True(t, second.After(first))
}

func seedScheduledRun(t *testing.T, client *memory.Backend, id, depID string, scheduledTime time.Time) {
	t.Helper()
	client.SeedFlowRun(backend.FlowRun{
		ID:            id,
		DeploymentID:  depID,
		Name:          id,
		State:         backend.FlowRunStateScheduled,
		ScheduledTime: scheduledTime,
	})
}

func TestGetAndSubmitFlowRuns_PrefetchFilter(t *testing.T) {
	client := memory.New()
	rt := newTestRuntime(t, client, stubImpl{typeTag: "test"})
	require.NoError(t, rt.SyncWithBackend(context.Background()))

	dep := client.SeedDeployment(backend.Deployment{Name: "d", FlowName: "flow"})
	now := time.Now()

	client.SeedFlowRun(backend.FlowRun{ID: "pending", DeploymentID: dep.ID, State: backend.FlowRunStatePending, ScheduledTime: now})
	seedScheduledRun(t, client, "past-day", dep.ID, now.Add(-24*time.Hour))
	seedScheduledRun(t, client, "near-1", dep.ID, now.Add(5*time.Second))
	seedScheduledRun(t, client, "near-2", dep.ID, now.Add(5*time.Second))
	seedScheduledRun(t, client, "far", dep.ID, now.Add(20*time.Second))
	client.SeedFlowRun(backend.FlowRun{ID: "running", DeploymentID: dep.ID, State: backend.FlowRunStateRunning, ScheduledTime: now})
	client.SeedFlowRun(backend.FlowRun{ID: "completed", DeploymentID: dep.ID, State: backend.FlowRunStateCompleted, ScheduledTime: now})
	client.SeedFlowRun(backend.FlowRun{ID: "no-deployment", DeploymentID: "", State: backend.FlowRunStateScheduled, ScheduledTime: now})

	submitted, err := rt.GetAndSubmitFlowRuns(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(submitted))
	for _, fr := range submitted {
		ids = append(ids, fr.ID)
	}
	assert.ElementsMatch(t, []string{"past-day", "near-1", "near-2"}, ids)
}

func TestGetAndSubmitFlowRuns_LimitAndRelease(t *testing.T) {
	client := memory.New()
	cfg := config.Config{
		WorkPoolName:         "test-pool",
		WorkerType:           "test",
		CreatePoolIfNotFound: true,
		WorkflowStoragePath:  filepath.Join(t.TempDir(), "workflows"),
		PrefetchSeconds:      10,
		Limit:                2,
	}
	block := make(chan struct{})
	defer close(block)
	rt := New(cfg, client, stubImpl{typeTag: "test", block: block}, nil)
	require.NoError(t, rt.Setup())
	require.NoError(t, rt.SyncWithBackend(context.Background()))

	dep := client.SeedDeployment(backend.Deployment{Name: "d", FlowName: "flow"})
	now := time.Now()
	for i := 0; i < 8; i++ {
		offset := time.Duration(i) * time.Second
		seedScheduledRun(t, client, "run-"+string(rune('a'+i)), dep.ID, now.Add(offset))
	}

	first, err := rt.GetAndSubmitFlowRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := rt.GetAndSubmitFlowRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 0)

	rt.limiter.ReleaseOnBehalfOf(first[0].ID)

	third, err := rt.GetAndSubmitFlowRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, third, 1)
}

func TestGetAndSubmitFlowRuns_RemoteStorageDeploymentSkipped(t *testing.T) {
	client := memory.New()
	rt := newTestRuntime(t, client, stubImpl{typeTag: "test"})
	require.NoError(t, rt.SyncWithBackend(context.Background()))

	remoteDocID := "doc-123"
	dep := client.SeedDeployment(backend.Deployment{Name: "remote", FlowName: "flow", StorageDocumentID: &remoteDocID})
	seedScheduledRun(t, client, "remote-run", dep.ID, time.Now())

	submitted, err := rt.GetAndSubmitFlowRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, submitted)

	state, ok := client.FlowRunState("remote-run")
	require.True(t, ok)
	assert.Equal(t, backend.FlowRunStateScheduled, state)
}

func TestGetAndSubmitFlowRuns_NoPoolIsNoop(t *testing.T) {
	client := memory.New()
	rt := newTestRuntime(t, client, stubImpl{typeTag: "test"})

	submitted, err := rt.GetAndSubmitFlowRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, submitted)
}

func TestGetAndSubmitFlowRuns_PausedPoolIsNoop(t *testing.T) {
	client := memory.New()
	rt := newTestRuntime(t, client, stubImpl{typeTag: "test"})
	require.NoError(t, rt.SyncWithBackend(context.Background()))
	client.PauseWorkPool("test-pool", true)
	require.NoError(t, rt.SyncWithBackend(context.Background()))

	dep := client.SeedDeployment(backend.Deployment{Name: "d", FlowName: "flow"})
	seedScheduledRun(t, client, "r", dep.ID, time.Now())

	submitted, err := rt.GetAndSubmitFlowRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, submitted)
}
