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

// Command worker runs a conductor worker process: it joins a named work
// pool on a central backend, polls for scheduled flow runs, and reconciles
// deployment manifests out of a local workflow-storage directory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tombee/conductor/internal/log"
	"github.com/tombee/conductor/internal/worker/backend"
	"github.com/tombee/conductor/internal/worker/config"
	"github.com/tombee/conductor/internal/worker/manifest"
	"github.com/tombee/conductor/internal/worker/registry"
	"github.com/tombee/conductor/internal/worker/runtime"
	"github.com/tombee/conductor/internal/worker/supervisor"
	"github.com/tombee/conductor/internal/worker/workererrs"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:   "worker",
		Short: "Commands for starting and interacting with workers",
	}
	root.AddCommand(newStartCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("worker %s (commit: %s, built: %s)\n", version, commit, buildDate)
			return nil
		},
	}
}

func newStartCommand() *cobra.Command {
	var (
		name            string
		workPoolName    string
		workerType      string
		prefetchSeconds int
		runOnce         bool
		limit           int
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a worker process that joins a work pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *config.FromEnv()
			if name != "" {
				cfg.Name = name
			}
			if workPoolName != "" {
				cfg.WorkPoolName = workPoolName
			}
			if workerType != "" {
				cfg.WorkerType = workerType
			}
			if cmd.Flags().Changed("prefetch-seconds") {
				cfg.PrefetchSeconds = prefetchSeconds
			}
			if cmd.Flags().Changed("limit") {
				cfg.Limit = limit
			}
			if cfg.WorkPoolName == "" {
				return fmt.Errorf("--pool is required")
			}

			return runStart(cmd.Context(), cfg, runOnce)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&name, "name", "n", "", "The name to give to the started worker")
	flags.StringVarP(&workPoolName, "pool", "p", "", "The work pool the started worker should join (required)")
	flags.StringVarP(&workerType, "type", "t", "", "The type of worker to start")
	flags.IntVar(&prefetchSeconds, "prefetch-seconds", 0, "Number of seconds into the future to query for scheduled flow runs")
	flags.BoolVar(&runOnce, "run-once", false, "Run worker loops only one time")
	flags.IntVarP(&limit, "limit", "l", 0, "Maximum number of flow runs to start simultaneously")

	return cmd
}

func runStart(ctx context.Context, cfg config.Config, runOnce bool) error {
	logger := log.WithComponent(log.New(log.FromEnv()), "worker")
	slog.SetDefault(logger)

	opts := []backend.HTTPClientOption{backend.WithAPIKey(cfg.BackendAPIKey)}
	if cfg.BackendKeyringService != "" {
		opts = append(opts, backend.WithKeyringCredential(cfg.BackendKeyringService, cfg.WorkPoolName))
	}
	client := backend.NewHTTPClient(cfg.BackendBaseURL, opts...)

	var impl registry.WorkerImpl
	if cfg.WorkerType != "" {
		found, ok := registry.Get(cfg.WorkerType)
		if !ok {
			fmt.Fprintf(os.Stderr, "Unable to start worker of type %q. Please ensure that you have installed this worker type on this machine.\n", cfg.WorkerType)
			return &workererrs.SetupError{Reason: fmt.Sprintf("unknown worker type %q", cfg.WorkerType)}
		}
		impl = found
	}

	rt := runtime.New(cfg, client, impl, logger)
	if err := rt.Setup(); err != nil {
		return err
	}

	fmt.Printf("Worker %q starting for pool %q...\n", rt.GetStatus().WorkerName, cfg.WorkPoolName)

	// Initial synchronous pass so the worker has a pool and a first
	// manifest scan before any periodic loop begins.
	if err := rt.SyncWithBackend(ctx); err != nil {
		logger.Warn("initial sync with backend failed", "error", err)
	}
	if err := rt.ScanStorageForDeployments(ctx); err != nil {
		logger.Warn("initial storage scan failed", "error", err)
	}

	sup := supervisor.New(rt.GetStatus().WorkerName, logger,
		supervisor.Activity{Name: "sync_with_backend", Interval: cfg.HeartbeatInterval(), Run: rt.SyncWithBackend},
		supervisor.Activity{Name: "scan_storage_for_deployments", Interval: cfg.StorageScanInterval(), Run: rt.ScanStorageForDeployments},
		supervisor.Activity{Name: "get_and_submit_flow_runs", Interval: cfg.QueryInterval(), Run: func(ctx context.Context) error {
			_, err := rt.GetAndSubmitFlowRuns(ctx)
			return err
		}},
	)
	sup.RunOnce = runOnce

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.WatchStorage && !runOnce {
		go manifest.Watch(runCtx, cfg.WorkflowStoragePath, logger, func() {
			if err := rt.ScanStorageForDeployments(runCtx); err != nil {
				logger.Warn("watch-triggered storage scan failed", "error", err)
			}
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Printf("\nReceived signal %v, shutting down...\n", sig)
			cancel()
		case <-runCtx.Done():
		}
	}()

	sup.Run(runCtx)

	if err := rt.Teardown(context.Background()); err != nil {
		logger.Error("teardown failed", "error", err)
	}

	fmt.Printf("Worker %q stopped!\n", rt.GetStatus().WorkerName)
	return nil
}
