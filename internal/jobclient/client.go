// Package jobclient implements the asynchronous control client for a
// single running job on a remote cluster.
//
// Every operation runs against a control channel manufactured by a
// cluster.Provider. The channel's lifetime is normally scoped to one
// operation: acquired when the call starts, released when the call's
// future settles. Dispatching a collect coordination request flips the
// client into streaming-query mode for the rest of its life; from then
// on one retained channel is shared by collect requests and status
// polls, and is given back only once a status poll observes the job in
// a terminal state.
package jobclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"jobclient/internal/apperrors"
	"jobclient/internal/cluster"
	"jobclient/internal/future"
)

// MetricsRecorder is an optional interface for recording client metrics.
type MetricsRecorder interface {
	RecordChannelAcquired(ctx context.Context)
	RecordChannelReleased(ctx context.Context)
	RecordDispatchError(ctx context.Context, op string)
	RecordOperation(ctx context.Context, op string, success bool, durationSeconds float64)
	RecordStreamingModeEntered(ctx context.Context)
}

// Client is the control client for one remote job. It is safe for
// concurrent use; calls are independent and are not serialized against
// each other.
type Client struct {
	jobID    cluster.JobID
	provider cluster.Provider
	decoder  cluster.AccumulatorDecoder
	metrics  MetricsRecorder
	logger   *slog.Logger

	// Mode cell: streaming latches to true exactly once and never
	// reverts; retained is only meaningful while streaming and holds
	// the single shared channel (nil until lazily acquired, nil again
	// after a terminal status released it).
	mu        sync.Mutex
	streaming bool
	retained  cluster.ControlChannel
}

// Config holds construction parameters for a Client.
type Config struct {
	JobID    cluster.JobID
	Provider cluster.Provider
	Decoder  cluster.AccumulatorDecoder // optional; nil decodes accumulators as generic JSON
	Metrics  MetricsRecorder            // optional
}

// New creates a control client for the given job.
func New(cfg Config) (*Client, error) {
	if cfg.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	return &Client{
		jobID:    cfg.JobID,
		provider: cfg.Provider,
		decoder:  cfg.Decoder,
		metrics:  cfg.Metrics,
		logger:   slog.With("component", "jobclient", "jobId", cfg.JobID.String()),
	}, nil
}

// JobID returns the identifier of the job this client controls.
func (c *Client) JobID() cluster.JobID {
	return c.jobID
}

// Status resolves to the job's current lifecycle state.
//
// In streaming-query mode the poll goes over the retained channel, and
// a completion observer releases that channel once the observed state
// is terminal. A failed poll skips the inspection: the channel stays
// retained and the caller still gets the poll's own outcome.
func (c *Client) Status(ctx context.Context) *future.Future[cluster.JobStatus] {
	if !c.isStreaming() {
		return bridge(c, ctx, "jobclient.status", func(ch cluster.ControlChannel) (*future.Future[cluster.JobStatus], error) {
			return ch.RequestJobStatus(ctx, c.jobID)
		})
	}

	const op = "jobclient.status"
	channel, err := c.retainedChannel(ctx)
	if err != nil {
		return future.Failed[cluster.JobStatus](apperrors.Acquisition(op, err))
	}
	f, err := channel.RequestJobStatus(ctx, c.jobID)
	if err != nil {
		// The retained channel is kept; only the bridge path releases
		// on dispatch failure.
		c.recordDispatchError(ctx, op)
		return future.Failed[cluster.JobStatus](apperrors.Dispatch(op, err))
	}
	f.WhenComplete(func(status cluster.JobStatus, err error) {
		if err != nil {
			// Inspection skipped this round. If polls keep failing the
			// channel is never given back; the job owns that trade-off.
			c.logger.Debug("Terminal-state inspection skipped", "error", err)
			return
		}
		if status.IsTerminal() || status.IsGloballyTerminal() {
			c.releaseRetained()
		}
	})
	return f
}

// Cancel asks the cluster to cancel the job.
func (c *Client) Cancel(ctx context.Context) *future.Future[struct{}] {
	return bridge(c, ctx, "jobclient.cancel", func(ch cluster.ControlChannel) (*future.Future[struct{}], error) {
		return ch.Cancel(ctx, c.jobID)
	})
}

// TriggerSavepoint takes a savepoint while the job keeps running and
// resolves to the savepoint's path. An empty directory uses the
// cluster's default savepoint location.
func (c *Client) TriggerSavepoint(ctx context.Context, directory string, format cluster.SavepointFormat) *future.Future[string] {
	return bridge(c, ctx, "jobclient.triggerSavepoint", func(ch cluster.ControlChannel) (*future.Future[string], error) {
		return ch.TriggerSavepoint(ctx, c.jobID, directory, format)
	})
}

// StopWithSavepoint takes a savepoint, stops the job, and resolves to
// the savepoint's path. drain advances event time to the end before
// stopping.
func (c *Client) StopWithSavepoint(ctx context.Context, drain bool, directory string, format cluster.SavepointFormat) *future.Future[string] {
	return bridge(c, ctx, "jobclient.stopWithSavepoint", func(ch cluster.ControlChannel) (*future.Future[string], error) {
		return ch.StopWithSavepoint(ctx, c.jobID, drain, directory, format)
	})
}

// Accumulators resolves to the job's current accumulator values,
// decoded with the client's decoder.
func (c *Client) Accumulators(ctx context.Context) *future.Future[map[string]any] {
	return bridge(c, ctx, "jobclient.accumulators", func(ch cluster.ControlChannel) (*future.Future[map[string]any], error) {
		f, err := ch.RequestAccumulators(ctx, c.jobID)
		if err != nil {
			return nil, err
		}
		return future.Then(f, func(snapshot cluster.AccumulatorSnapshot) (map[string]any, error) {
			return snapshot.Decode(c.decoder)
		}), nil
	})
}

// ExecutionResult resolves to the job's materialized final result. A
// materialization failure resolves to a job-failed error carrying the
// job identifier and the underlying cause.
func (c *Client) ExecutionResult(ctx context.Context) *future.Future[*cluster.ExecutionResult] {
	return bridge(c, ctx, "jobclient.executionResult", func(ch cluster.ControlChannel) (*future.Future[*cluster.ExecutionResult], error) {
		f, err := ch.RequestJobResult(ctx, c.jobID)
		if err != nil {
			return nil, err
		}
		return future.Then(f, func(result *cluster.JobResult) (*cluster.ExecutionResult, error) {
			materialized, err := result.Materialize(c.decoder)
			if err != nil {
				return nil, apperrors.JobFailed(c.jobID.String(), err)
			}
			return materialized, nil
		}), nil
	})
}

// SendCoordinationRequest forwards a request to the operator
// coordinator identified by operatorID.
//
// A CollectRequest latches the client into streaming-query mode and is
// issued directly on the retained channel, with no release when the
// response arrives. Every other request kind goes through the normal
// per-call bridge, in either mode.
func (c *Client) SendCoordinationRequest(ctx context.Context, operatorID cluster.OperatorID, req cluster.CoordinationRequest) *future.Future[cluster.CoordinationResponse] {
	const op = "jobclient.sendCoordinationRequest"
	if _, ok := req.(*cluster.CollectRequest); ok {
		channel, err := c.retainedChannel(ctx)
		if err != nil {
			return future.Failed[cluster.CoordinationResponse](apperrors.Acquisition(op, err))
		}
		f, err := channel.SendCoordinationRequest(ctx, c.jobID, operatorID, req)
		if err != nil {
			c.recordDispatchError(ctx, op)
			return future.Failed[cluster.CoordinationResponse](apperrors.Dispatch(op, err))
		}
		return f
	}
	return bridge(c, ctx, op, func(ch cluster.ControlChannel) (*future.Future[cluster.CoordinationResponse], error) {
		return ch.SendCoordinationRequest(ctx, c.jobID, operatorID, req)
	})
}

// ReportHeartbeat tells the cluster the client is still attached.
// The result carries completion only; most callers fire and forget,
// and the underlying future is observed internally either way so the
// call's channel is released.
func (c *Client) ReportHeartbeat(ctx context.Context, expiration time.Time) *future.Future[struct{}] {
	return bridge(c, ctx, "jobclient.reportHeartbeat", func(ch cluster.ControlChannel) (*future.Future[struct{}], error) {
		return ch.ReportHeartbeat(ctx, c.jobID, expiration)
	})
}

// bridge executes one control operation with per-call channel
// lifecycle: acquire, dispatch, release when the returned future
// settles. A synchronous dispatch failure (error return or panic)
// releases the channel immediately and converts to a failed future.
func bridge[T any](c *Client, ctx context.Context, op string, call func(cluster.ControlChannel) (*future.Future[T], error)) *future.Future[T] {
	channel, err := c.provider.ControlChannel()
	if err != nil {
		return future.Failed[T](apperrors.Acquisition(op, err))
	}
	c.recordAcquired(ctx)

	start := time.Now()
	f, err := dispatch(call, channel)
	if err != nil {
		c.closeQuietly(channel)
		c.recordDispatchError(ctx, op)
		return future.Failed[T](apperrors.Dispatch(op, err))
	}

	f.WhenComplete(func(_ T, err error) {
		// Completion-driven, not caller-driven: runs even if the
		// caller abandoned the future. Deliberately not ctx-scoped.
		c.closeQuietly(channel)
		if c.metrics != nil {
			background := context.Background()
			c.metrics.RecordOperation(background, op, err == nil, time.Since(start).Seconds())
			if err != nil {
				c.metrics.RecordDispatchError(background, op)
			}
		}
	})
	return f
}

// dispatch invokes call, converting a panic into a synchronous error.
func dispatch[T any](call func(cluster.ControlChannel) (*future.Future[T], error), channel cluster.ControlChannel) (f *future.Future[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("panic during dispatch: %v", r)
		}
	}()
	return call(channel)
}

// retainedChannel latches streaming-query mode and returns the single
// retained channel, acquiring and caching one if none is held. The
// mode cell is mutated under one lock so concurrent first callers
// cannot each acquire a channel and leak one.
func (c *Client) retainedChannel(ctx context.Context) (cluster.ControlChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		c.streaming = true
		c.logger.Info("Entering streaming-query mode")
		if c.metrics != nil {
			c.metrics.RecordStreamingModeEntered(ctx)
		}
	}
	if c.retained != nil {
		return c.retained, nil
	}

	channel, err := c.provider.ControlChannel()
	if err != nil {
		return nil, err
	}
	c.recordAcquired(ctx)
	c.retained = channel
	return channel, nil
}

// releaseRetained gives back the retained channel and clears the
// cache. Streaming-query mode itself is permanent; a later call will
// acquire and cache a fresh channel.
func (c *Client) releaseRetained() {
	c.mu.Lock()
	channel := c.retained
	c.retained = nil
	c.mu.Unlock()

	if channel != nil {
		c.logger.Info("Job reached terminal state, releasing retained channel")
		c.closeQuietly(channel)
	}
}

func (c *Client) isStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// closeQuietly releases a channel, swallowing failures. A release
// failure must never mask the operation's own outcome.
func (c *Client) closeQuietly(channel cluster.ControlChannel) {
	if err := channel.Close(); err != nil {
		c.logger.Warn("Control channel release failed", "error", err)
	}
	if c.metrics != nil {
		c.metrics.RecordChannelReleased(context.Background())
	}
}

func (c *Client) recordAcquired(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.RecordChannelAcquired(ctx)
	}
}

func (c *Client) recordDispatchError(ctx context.Context, op string) {
	if c.metrics != nil {
		c.metrics.RecordDispatchError(ctx, op)
	}
}
