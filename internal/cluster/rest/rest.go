// Package rest implements the cluster collaborator interfaces over
// the control plane's HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"jobclient/internal/cluster"
	"jobclient/internal/future"
)

// Provider hands out REST control channels. Each channel carries its
// own transport so that releasing a channel actually tears down its
// connections.
type Provider struct {
	base    *url.URL
	token   string
	timeout time.Duration
}

// Config holds configuration for the REST provider.
type Config struct {
	BaseURL        string        // control plane endpoint, e.g. http://jobmanager:8081
	APIToken       string        // optional Bearer token
	RequestTimeout time.Duration // per-request timeout (default 30s)
}

// NewProvider creates a provider for the given control plane endpoint.
func NewProvider(cfg Config) (*Provider, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: unsupported scheme %q", cfg.BaseURL, base.Scheme)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Provider{base: base, token: cfg.APIToken, timeout: timeout}, nil
}

// ControlChannel returns a fresh channel with its own transport.
func (p *Provider) ControlChannel() (cluster.ControlChannel, error) {
	transport := &http.Transport{
		MaxIdleConns:    4,
		IdleConnTimeout: 90 * time.Second,
	}
	return &Channel{
		base:      p.base,
		token:     p.token,
		transport: transport,
		client:    &http.Client{Transport: transport, Timeout: p.timeout},
	}, nil
}

// Ready checks that the control plane answers its overview endpoint.
func (p *Provider) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base.JoinPath("v1", "overview").String(), nil)
	if err != nil {
		return err
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("control plane unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("control plane overview returned %d", resp.StatusCode)
	}
	return nil
}

// Channel is one REST control channel. It is safe for concurrent use;
// Close tears down its transport.
type Channel struct {
	base      *url.URL
	token     string
	transport *http.Transport
	client    *http.Client
	closed    atomic.Bool
}

type statusResponse struct {
	Status cluster.JobStatus `json:"status"`
}

type savepointRequest struct {
	TargetDirectory string `json:"targetDirectory,omitempty"`
	FormatType      string `json:"formatType"`
	Drain           bool   `json:"drain,omitempty"`
}

type savepointResponse struct {
	Location string `json:"location"`
}

type accumulatorsResponse struct {
	Accumulators cluster.AccumulatorSnapshot `json:"accumulators"`
}

type coordinationRequestBody struct {
	Kind    string `json:"kind"`
	Version string `json:"version,omitempty"`
	Offset  int64  `json:"offset,omitempty"`
	Payload string `json:"payload,omitempty"` // base64
}

type coordinationResponseBody struct {
	Payload string `json:"payload"` // base64
}

type heartbeatRequest struct {
	Expiration time.Time `json:"expiration"`
}

func (c *Channel) RequestJobStatus(ctx context.Context, id cluster.JobID) (*future.Future[cluster.JobStatus], error) {
	if err := c.check(id); err != nil {
		return nil, err
	}
	return async(func() (cluster.JobStatus, error) {
		var out statusResponse
		if err := c.do(ctx, http.MethodGet, c.jobPath(id, "status"), nil, &out); err != nil {
			return "", err
		}
		return out.Status, nil
	}), nil
}

func (c *Channel) Cancel(ctx context.Context, id cluster.JobID) (*future.Future[struct{}], error) {
	if err := c.check(id); err != nil {
		return nil, err
	}
	return async(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodPatch, c.jobPath(id)+"?mode=cancel", nil, nil)
	}), nil
}

func (c *Channel) TriggerSavepoint(ctx context.Context, id cluster.JobID, directory string, format cluster.SavepointFormat) (*future.Future[string], error) {
	if err := c.check(id); err != nil {
		return nil, err
	}
	body, err := encodeSavepoint(directory, format, false)
	if err != nil {
		return nil, err
	}
	return async(func() (string, error) {
		var out savepointResponse
		if err := c.do(ctx, http.MethodPost, c.jobPath(id, "savepoints"), body, &out); err != nil {
			return "", err
		}
		return out.Location, nil
	}), nil
}

func (c *Channel) StopWithSavepoint(ctx context.Context, id cluster.JobID, drain bool, directory string, format cluster.SavepointFormat) (*future.Future[string], error) {
	if err := c.check(id); err != nil {
		return nil, err
	}
	body, err := encodeSavepoint(directory, format, drain)
	if err != nil {
		return nil, err
	}
	return async(func() (string, error) {
		var out savepointResponse
		if err := c.do(ctx, http.MethodPost, c.jobPath(id, "stop"), body, &out); err != nil {
			return "", err
		}
		return out.Location, nil
	}), nil
}

func (c *Channel) RequestAccumulators(ctx context.Context, id cluster.JobID) (*future.Future[cluster.AccumulatorSnapshot], error) {
	if err := c.check(id); err != nil {
		return nil, err
	}
	return async(func() (cluster.AccumulatorSnapshot, error) {
		var out accumulatorsResponse
		if err := c.do(ctx, http.MethodGet, c.jobPath(id, "accumulators"), nil, &out); err != nil {
			return nil, err
		}
		return out.Accumulators, nil
	}), nil
}

func (c *Channel) RequestJobResult(ctx context.Context, id cluster.JobID) (*future.Future[*cluster.JobResult], error) {
	if err := c.check(id); err != nil {
		return nil, err
	}
	return async(func() (*cluster.JobResult, error) {
		var out cluster.JobResult
		if err := c.do(ctx, http.MethodGet, c.jobPath(id, "result"), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}), nil
}

func (c *Channel) SendCoordinationRequest(ctx context.Context, id cluster.JobID, operatorID cluster.OperatorID, req cluster.CoordinationRequest) (*future.Future[cluster.CoordinationResponse], error) {
	if err := c.check(id); err != nil {
		return nil, err
	}
	if operatorID == "" {
		return nil, fmt.Errorf("operator ID is required")
	}
	body, err := encodeCoordination(req)
	if err != nil {
		return nil, err
	}
	return async(func() (cluster.CoordinationResponse, error) {
		var out coordinationResponseBody
		if err := c.do(ctx, http.MethodPost, c.jobPath(id, "coordination", operatorID.String()), body, &out); err != nil {
			return cluster.CoordinationResponse{}, err
		}
		payload, err := base64.StdEncoding.DecodeString(out.Payload)
		if err != nil {
			return cluster.CoordinationResponse{}, fmt.Errorf("decode coordination response: %w", err)
		}
		return cluster.CoordinationResponse{Payload: payload}, nil
	}), nil
}

func (c *Channel) ReportHeartbeat(ctx context.Context, id cluster.JobID, expiration time.Time) (*future.Future[struct{}], error) {
	if err := c.check(id); err != nil {
		return nil, err
	}
	body := heartbeatRequest{Expiration: expiration}
	return async(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodPost, c.jobPath(id, "heartbeat"), body, nil)
	}), nil
}

// Close tears down the channel's transport. A second Close is an
// error; callers treat Close failures as best-effort.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return fmt.Errorf("channel already closed")
	}
	c.transport.CloseIdleConnections()
	return nil
}

// check guards every call: a closed channel or empty job ID fails
// synchronously, before anything is dispatched.
func (c *Channel) check(id cluster.JobID) error {
	if c.closed.Load() {
		return fmt.Errorf("channel is closed")
	}
	if id == "" {
		return fmt.Errorf("job ID is required")
	}
	return nil
}

func (c *Channel) jobPath(id cluster.JobID, parts ...string) string {
	segments := append([]string{"v1", "jobs", id.String()}, parts...)
	return c.base.JoinPath(segments...).String()
}

// do performs one JSON round trip. out may be nil for calls whose
// response body is irrelevant.
func (c *Channel) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func encodeSavepoint(directory string, format cluster.SavepointFormat, drain bool) (savepointRequest, error) {
	switch format {
	case "":
		format = cluster.SavepointFormatCanonical
	case cluster.SavepointFormatCanonical, cluster.SavepointFormatNative:
	default:
		return savepointRequest{}, fmt.Errorf("unknown savepoint format %q", format)
	}
	return savepointRequest{
		TargetDirectory: directory,
		FormatType:      string(format),
		Drain:           drain,
	}, nil
}

func encodeCoordination(req cluster.CoordinationRequest) (coordinationRequestBody, error) {
	switch r := req.(type) {
	case *cluster.CollectRequest:
		return coordinationRequestBody{
			Kind:    "collect",
			Version: r.Version,
			Offset:  r.Offset,
		}, nil
	case *cluster.RawRequest:
		return coordinationRequestBody{
			Kind:    "raw",
			Payload: base64.StdEncoding.EncodeToString(r.Payload),
		}, nil
	default:
		return coordinationRequestBody{}, fmt.Errorf("unsupported coordination request %T", req)
	}
}

// Verify the REST types satisfy the cluster collaborator interfaces
var (
	_ cluster.Provider       = (*Provider)(nil)
	_ cluster.ControlChannel = (*Channel)(nil)
)

// async runs fn on its own goroutine, settling the returned future
// with its outcome.
func async[T any](fn func() (T, error)) *future.Future[T] {
	f := future.New[T]()
	go func() {
		value, err := fn()
		if err != nil {
			f.Fail(err)
			return
		}
		f.Complete(value)
	}()
	return f
}
