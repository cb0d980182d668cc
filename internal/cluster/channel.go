// Package cluster defines the control-plane data model and the
// collaborator interfaces of the job-control client.
package cluster

import (
	"context"
	"time"

	"jobclient/internal/future"
)

// ControlChannel is one open administrative channel to the cluster's
// control plane. Channels are manufactured by a Provider and must be
// closed exactly once per acquisition.
//
// Every remote call settles the returned future with the operation's
// outcome. A non-nil error return means the call failed before
// anything was dispatched (bad arguments, closed channel, encoding
// failure); in that case no future exists and nothing is in flight.
//
// # Concurrency
//
// A ControlChannel must tolerate concurrent calls: in streaming-query
// mode a single retained channel is shared by all callers of the same
// client without client-side serialization.
type ControlChannel interface {
	// RequestJobStatus resolves to the job's current lifecycle state.
	RequestJobStatus(ctx context.Context, id JobID) (*future.Future[JobStatus], error)

	// Cancel asks the cluster to cancel the job.
	Cancel(ctx context.Context, id JobID) (*future.Future[struct{}], error)

	// TriggerSavepoint takes a savepoint while the job keeps running.
	// Resolves to the path the savepoint was written to. An empty
	// directory uses the cluster's default savepoint location.
	TriggerSavepoint(ctx context.Context, id JobID, directory string, format SavepointFormat) (*future.Future[string], error)

	// StopWithSavepoint takes a savepoint and stops the job.
	// drain advances the event time to the end before stopping so
	// that event-time timers fire.
	StopWithSavepoint(ctx context.Context, id JobID, drain bool, directory string, format SavepointFormat) (*future.Future[string], error)

	// RequestAccumulators resolves to the job's current serialized
	// accumulator values.
	RequestAccumulators(ctx context.Context, id JobID) (*future.Future[AccumulatorSnapshot], error)

	// RequestJobResult resolves to the job's final result once the job
	// has finished.
	RequestJobResult(ctx context.Context, id JobID) (*future.Future[*JobResult], error)

	// SendCoordinationRequest forwards a request to the operator
	// coordinator identified by operatorID.
	SendCoordinationRequest(ctx context.Context, id JobID, operatorID OperatorID, req CoordinationRequest) (*future.Future[CoordinationResponse], error)

	// ReportHeartbeat tells the cluster the client is still attached.
	// expiration is the instant after which the cluster may consider
	// the client gone.
	ReportHeartbeat(ctx context.Context, id JobID, expiration time.Time) (*future.Future[struct{}], error)

	// Close releases the channel. Safe to call at most once per
	// acquisition; callers treat failures as best-effort.
	Close() error
}

// Provider manufactures control channels on demand. The provider is
// shared, read-only state: it outlives every channel it produces and
// may be called concurrently.
type Provider interface {
	// ControlChannel returns a usable channel or fails synchronously.
	ControlChannel() (ControlChannel, error)

	// Ready checks that the control plane is reachable.
	Ready(ctx context.Context) error
}
