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

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/zalando/go-keyring"
	"golang.org/x/time/rate"
)

// HTTPClient is the default Client implementation: HTTP+JSON over a
// configurable base URL, bearer-token auth, and a token-bucket limiter
// guarding the polling endpoint from a misconfigured query interval.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pollLimit  *rate.Limiter
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPDoer overrides the underlying *http.Client.
func WithHTTPDoer(c *http.Client) HTTPClientOption {
	return func(hc *HTTPClient) { hc.httpClient = c }
}

// WithAPIKey sets the bearer token presented on every request.
func WithAPIKey(key string) HTTPClientOption {
	return func(hc *HTTPClient) { hc.apiKey = key }
}

// WithKeyringCredential loads the bearer token from the OS keyring instead
// of taking it as a literal, so the token never has to live in an env var
// or config file on disk.
func WithKeyringCredential(service, user string) HTTPClientOption {
	return func(hc *HTTPClient) {
		token, err := keyring.Get(service, user)
		if err == nil {
			hc.apiKey = token
		}
	}
}

// WithPollRateLimit caps how often GetScheduledFlowRuns may hit the
// backend, independent of the caller's own query_seconds cadence.
func WithPollRateLimit(perSecond float64, burst int) HTTPClientOption {
	return func(hc *HTTPClient) { hc.pollLimit = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewHTTPClient creates a Client backed by the orchestration backend's HTTP
// API at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	hc := &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		pollLimit:  rate.NewLimiter(rate.Limit(2), 4),
	}
	for _, opt := range opts {
		opt(hc)
	}
	return hc
}

func (c *HTTPClient) addAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{Resource: path}
	}
	if resp.StatusCode == http.StatusConflict {
		return &ConflictErr{Resource: path}
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ReadWorkPool implements Client.
func (c *HTTPClient) ReadWorkPool(ctx context.Context, name string) (*WorkPool, error) {
	var pool WorkPool
	if err := c.do(ctx, http.MethodGet, "/work_pools/"+url.PathEscape(name), nil, &pool); err != nil {
		if nf, ok := err.(*NotFoundError); ok {
			nf.ID = name
			nf.Resource = "work pool"
		}
		return nil, err
	}
	return &pool, nil
}

// CreateWorkPool implements Client.
func (c *HTTPClient) CreateWorkPool(ctx context.Context, name, workerType string, template BaseJobTemplate) (*WorkPool, error) {
	req := map[string]any{
		"name":              name,
		"type":              workerType,
		"base_job_template": template,
	}
	var pool WorkPool
	if err := c.do(ctx, http.MethodPost, "/work_pools", req, &pool); err != nil {
		if ce, ok := err.(*ConflictErr); ok {
			ce.ID = name
			ce.Resource = "work pool"
		}
		return nil, err
	}
	return &pool, nil
}

// SendWorkerHeartbeat implements Client.
func (c *HTTPClient) SendWorkerHeartbeat(ctx context.Context, poolID, workerName string) error {
	req := map[string]any{"name": workerName}
	path := fmt.Sprintf("/work_pools/%s/workers/heartbeat", url.PathEscape(poolID))
	return c.do(ctx, http.MethodPost, path, req, nil)
}

// ReadWorkersForWorkPool implements Client.
func (c *HTTPClient) ReadWorkersForWorkPool(ctx context.Context, poolName string) ([]WorkerRegistration, error) {
	var workers []WorkerRegistration
	path := fmt.Sprintf("/work_pools/%s/workers", url.PathEscape(poolName))
	if err := c.do(ctx, http.MethodGet, path, nil, &workers); err != nil {
		return nil, err
	}
	return workers, nil
}

// GetScheduledFlowRuns implements Client. Subject to the configured
// poll-rate limiter: a misconfigured query_seconds cannot hammer the
// backend faster than the limiter allows.
func (c *HTTPClient) GetScheduledFlowRuns(ctx context.Context, poolID string, scheduledBefore time.Time) ([]FlowRun, error) {
	if err := c.pollLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	req := map[string]any{
		"work_pool_id":     poolID,
		"scheduled_before": scheduledBefore,
	}
	var runs []FlowRun
	if err := c.do(ctx, http.MethodPost, "/flow_runs/scheduled", req, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// ReadDeployment implements Client.
func (c *HTTPClient) ReadDeployment(ctx context.Context, id string) (*Deployment, error) {
	var dep Deployment
	if err := c.do(ctx, http.MethodGet, "/deployments/"+url.PathEscape(id), nil, &dep); err != nil {
		if nf, ok := err.(*NotFoundError); ok {
			nf.ID = id
			nf.Resource = "deployment"
		}
		return nil, err
	}
	return &dep, nil
}

// ReadDeploymentByName implements Client.
func (c *HTTPClient) ReadDeploymentByName(ctx context.Context, flowName, deploymentName string) (*Deployment, error) {
	var dep Deployment
	path := fmt.Sprintf("/deployments/name/%s/%s", url.PathEscape(flowName), url.PathEscape(deploymentName))
	if err := c.do(ctx, http.MethodGet, path, nil, &dep); err != nil {
		if nf, ok := err.(*NotFoundError); ok {
			nf.ID = flowName + "/" + deploymentName
			nf.Resource = "deployment"
		}
		return nil, err
	}
	return &dep, nil
}

// ApplyDeployment implements Client.
func (c *HTTPClient) ApplyDeployment(ctx context.Context, manifest Deployment) (*Deployment, error) {
	var dep Deployment
	if err := c.do(ctx, http.MethodPost, "/deployments", manifest, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

// ReadDeployments implements Client.
func (c *HTTPClient) ReadDeployments(ctx context.Context) ([]Deployment, error) {
	var deps []Deployment
	if err := c.do(ctx, http.MethodGet, "/deployments", nil, &deps); err != nil {
		return nil, err
	}
	return deps, nil
}

// SetFlowRunState implements Client.
func (c *HTTPClient) SetFlowRunState(ctx context.Context, id string, state FlowRunState, message string) error {
	req := map[string]any{"state": state, "message": message}
	path := "/flow_runs/" + url.PathEscape(id) + "/set_state"
	if err := c.do(ctx, http.MethodPost, path, req, nil); err != nil {
		if ce, ok := err.(*ConflictErr); ok {
			ce.ID = id
			ce.Resource = "flow run"
		}
		return err
	}
	return nil
}

// Close implements io.Closer. The underlying http.Client has no persistent
// connection state this worker owns exclusively, so Close is a no-op that
// satisfies the interface.
func (c *HTTPClient) Close() error {
	return nil
}
