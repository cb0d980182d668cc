// Package heartbeat keeps a job client's liveness lease renewed.
//
// The Reporter periodically reports a heartbeat through the client,
// extending the lease by the configured window each time. Failed
// heartbeats are retried with exponential backoff, and a circuit
// breaker skips beats entirely while the control plane is known bad.
package heartbeat

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"jobclient/internal/future"
	"jobclient/pkg/backoff"
	"jobclient/pkg/circuitbreaker"
)

// Sender is the slice of the job client the reporter needs.
type Sender interface {
	ReportHeartbeat(ctx context.Context, expiration time.Time) *future.Future[struct{}]
}

// MetricsRecorder is an optional interface for recording heartbeat metrics.
type MetricsRecorder interface {
	RecordHeartbeatSent(ctx context.Context)
	RecordHeartbeatFailed(ctx context.Context)
	RecordHeartbeatSkipped(ctx context.Context)
}

// Reporter periodically renews the liveness lease in the background.
type Reporter struct {
	sender  Sender
	breaker *circuitbreaker.Breaker
	config  Config
	logger  *slog.Logger
	metrics MetricsRecorder

	// Internal counters (for Stats())
	sent         atomic.Int64
	failed       atomic.Int64
	skipped      atomic.Int64
	retriesTotal atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
}

// Stats is a snapshot of reporter counters.
type Stats struct {
	Sent         int64
	Failed       int64
	Skipped      int64
	RetriesTotal int64
	BreakerState string
}

// NewReporter creates a reporter and starts the background loop.
func NewReporter(sender Sender, cfg Config, metrics MetricsRecorder) *Reporter {
	cfg = cfg.withDefaults()

	r := &Reporter{
		sender:  sender,
		breaker: circuitbreaker.New(circuitbreaker.Config{}),
		config:  cfg,
		logger:  slog.With("component", "heartbeat"),
		metrics: metrics,
		done:    make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.run(ctx)

	r.logger.Info("Heartbeat reporter started", "interval", cfg.Interval, "window", cfg.Window)
	return r
}

// Stats returns current reporter statistics.
func (r *Reporter) Stats() Stats {
	return Stats{
		Sent:         r.sent.Load(),
		Failed:       r.failed.Load(),
		Skipped:      r.skipped.Load(),
		RetriesTotal: r.retriesTotal.Load(),
		BreakerState: r.breaker.State().String(),
	}
}

// Close stops the reporter and waits for the loop to exit.
func (r *Reporter) Close(ctx context.Context) error {
	if r.closed.Swap(true) {
		return nil // already closed
	}

	r.cancel()

	select {
	case <-r.done:
		r.logger.Info("Heartbeat reporter stopped",
			"sent", r.sent.Load(),
			"failed", r.failed.Load(),
			"skipped", r.skipped.Load(),
		)
		return nil
	case <-ctx.Done():
		r.logger.Warn("Heartbeat reporter shutdown timed out")
		return ctx.Err()
	}
}

// run ticks at the configured interval until Close.
func (r *Reporter) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.beat(ctx)
		}
	}
}

// beat reports one heartbeat, retrying on failure.
func (r *Reporter) beat(ctx context.Context) {
	if !r.breaker.Allow() {
		r.skipped.Add(1)
		if r.metrics != nil {
			r.metrics.RecordHeartbeatSkipped(ctx)
		}
		r.logger.Debug("Heartbeat skipped, circuit open")
		return
	}

	if err := r.sendWithRetry(ctx); err != nil {
		if ctx.Err() != nil {
			return // shutting down, not a control plane failure
		}
		r.breaker.RecordFailure()
		r.failed.Add(1)
		if r.metrics != nil {
			r.metrics.RecordHeartbeatFailed(ctx)
		}
		r.logger.Warn("Heartbeat failed", "error", err)
		return
	}

	r.breaker.RecordSuccess()
	r.sent.Add(1)
	if r.metrics != nil {
		r.metrics.RecordHeartbeatSent(ctx)
	}
}

func (r *Reporter) sendWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := range defaultMaxRetries + 1 {
		if attempt > 0 {
			r.retriesTotal.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.ExponentialJitter(attempt, nil)):
			}
		}

		lastErr = r.sendOnce(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (r *Reporter) sendOnce(ctx context.Context) error {
	beatCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	_, err := r.sender.ReportHeartbeat(beatCtx, time.Now().Add(r.config.Window)).Get(beatCtx)
	return err
}
