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

// Package config provides worker runtime configuration.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the settings needed to construct a WorkerRuntime.
type Config struct {
	// Name is the worker registration name. Empty means generate one.
	Name string

	// WorkPoolName is the pool this worker joins. Required.
	WorkPoolName string

	// WorkerType selects the WorkerImpl. Empty means derive it from the
	// pool's type after the first sync.
	WorkerType string

	// PrefetchSeconds is the window ahead of now for eligible scheduled runs.
	PrefetchSeconds int

	// Limit caps concurrent submissions. Zero means unlimited.
	Limit int

	// CreatePoolIfNotFound creates the pool on first sync when missing.
	CreatePoolIfNotFound bool

	// WorkflowStoragePath is the directory scanned for local manifests.
	WorkflowStoragePath string

	// HeartbeatSeconds is the period of SyncWithBackend.
	HeartbeatSeconds int

	// QuerySeconds is the period of GetAndSubmitFlowRuns.
	QuerySeconds int

	// StorageScanSeconds is the period of ScanStorageForDeployments.
	StorageScanSeconds int

	// BackendBaseURL is the base URL of the orchestration backend.
	BackendBaseURL string

	// BackendAPIKey is the bearer token presented to the backend. Replaced
	// by the keyring token when BackendKeyringService is set and the keyring
	// lookup succeeds; used as is otherwise.
	BackendAPIKey string

	// BackendKeyringService, when non-empty, names the OS keyring service
	// to read the bearer token from. A token found there replaces
	// BackendAPIKey; a failed lookup leaves BackendAPIKey in effect.
	BackendKeyringService string

	// WatchStorage enables an fsnotify-driven out-of-band storage scan in
	// addition to the periodic one.
	WatchStorage bool
}

// Default returns a Config with the worker's baseline cadences. WorkPoolName
// and WorkerType are left empty; callers must set WorkPoolName.
func Default() *Config {
	return &Config{
		PrefetchSeconds:      10,
		CreatePoolIfNotFound: true,
		WorkflowStoragePath:  "workflows",
		HeartbeatSeconds:     30,
		QuerySeconds:         15,
		StorageScanSeconds:   30,
		BackendBaseURL:       "http://localhost:4200/api",
		WatchStorage:         true,
	}
}

// FromEnv builds a Config from defaults overridden by environment
// variables. Supported variables, mirroring internal/log.FromEnv's
// precedence style:
//
//   - CONDUCTOR_WORKER_NAME
//   - CONDUCTOR_WORKER_POOL (required for a usable worker; not fatal here)
//   - CONDUCTOR_WORKER_TYPE
//   - CONDUCTOR_WORKER_PREFETCH_SECONDS
//   - CONDUCTOR_WORKER_LIMIT
//   - CONDUCTOR_WORKER_CREATE_POOL (true/false)
//   - CONDUCTOR_WORKER_STORAGE_PATH
//   - CONDUCTOR_WORKER_HEARTBEAT_SECONDS
//   - CONDUCTOR_WORKER_QUERY_SECONDS
//   - CONDUCTOR_WORKER_STORAGE_SCAN_SECONDS
//   - CONDUCTOR_WORKER_BACKEND_URL
//   - CONDUCTOR_WORKER_BACKEND_API_KEY
//   - CONDUCTOR_WORKER_BACKEND_KEYRING_SERVICE
//   - CONDUCTOR_WORKER_WATCH_STORAGE (true/false)
func FromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("CONDUCTOR_WORKER_NAME"); v != "" {
		cfg.Name = v
	}
	if v := os.Getenv("CONDUCTOR_WORKER_POOL"); v != "" {
		cfg.WorkPoolName = v
	}
	if v := os.Getenv("CONDUCTOR_WORKER_TYPE"); v != "" {
		cfg.WorkerType = v
	}
	if v, ok := envInt("CONDUCTOR_WORKER_PREFETCH_SECONDS"); ok {
		cfg.PrefetchSeconds = v
	}
	if v, ok := envInt("CONDUCTOR_WORKER_LIMIT"); ok {
		cfg.Limit = v
	}
	if v, ok := envBool("CONDUCTOR_WORKER_CREATE_POOL"); ok {
		cfg.CreatePoolIfNotFound = v
	}
	if v := os.Getenv("CONDUCTOR_WORKER_STORAGE_PATH"); v != "" {
		cfg.WorkflowStoragePath = v
	}
	if v, ok := envInt("CONDUCTOR_WORKER_HEARTBEAT_SECONDS"); ok {
		cfg.HeartbeatSeconds = v
	}
	if v, ok := envInt("CONDUCTOR_WORKER_QUERY_SECONDS"); ok {
		cfg.QuerySeconds = v
	}
	if v, ok := envInt("CONDUCTOR_WORKER_STORAGE_SCAN_SECONDS"); ok {
		cfg.StorageScanSeconds = v
	}
	if v := os.Getenv("CONDUCTOR_WORKER_BACKEND_URL"); v != "" {
		cfg.BackendBaseURL = v
	}
	if v := os.Getenv("CONDUCTOR_WORKER_BACKEND_API_KEY"); v != "" {
		cfg.BackendAPIKey = v
	}
	if v := os.Getenv("CONDUCTOR_WORKER_BACKEND_KEYRING_SERVICE"); v != "" {
		cfg.BackendKeyringService = v
	}
	if v, ok := envBool("CONDUCTOR_WORKER_WATCH_STORAGE"); ok {
		cfg.WatchStorage = v
	}

	return cfg
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return b, true
}

// HeartbeatInterval returns HeartbeatSeconds as a time.Duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// QueryInterval returns QuerySeconds as a time.Duration.
func (c *Config) QueryInterval() time.Duration {
	return time.Duration(c.QuerySeconds) * time.Second
}

// StorageScanInterval returns StorageScanSeconds as a time.Duration.
func (c *Config) StorageScanInterval() time.Duration {
	return time.Duration(c.StorageScanSeconds) * time.Second
}

// PrefetchWindow returns PrefetchSeconds as a time.Duration.
func (c *Config) PrefetchWindow() time.Duration {
	return time.Duration(c.PrefetchSeconds) * time.Second
}
