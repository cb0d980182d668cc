package cluster

// JobID is the opaque identifier of one remote job. It is assigned by
// the cluster at submission and never changes.
type JobID string

func (id JobID) String() string { return string(id) }

// OperatorID names the operator coordinator a coordination request is
// addressed to.
type OperatorID string

func (id OperatorID) String() string { return string(id) }

// JobStatus is the lifecycle state of a job as reported by the
// control plane.
type JobStatus string

// Job lifecycle states.
const (
	StatusInitializing JobStatus = "INITIALIZING"
	StatusCreated      JobStatus = "CREATED"
	StatusRunning      JobStatus = "RUNNING"
	StatusFailing      JobStatus = "FAILING"
	StatusFailed       JobStatus = "FAILED"
	StatusCancelling   JobStatus = "CANCELLING"
	StatusCanceled     JobStatus = "CANCELED"
	StatusFinished     JobStatus = "FINISHED"
	StatusRestarting   JobStatus = "RESTARTING"
	StatusSuspended    JobStatus = "SUSPENDED"
	StatusReconciling  JobStatus = "RECONCILING"
)

// IsGloballyTerminal reports whether the job has reached a state that
// is final across the whole cluster: no component will ever move it
// again.
func (s JobStatus) IsGloballyTerminal() bool {
	switch s {
	case StatusFinished, StatusCanceled, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the job has reached a state that is final
// for the current cluster incarnation. A suspended job is terminal
// here but may be resumed by another incarnation, so it is not
// globally terminal.
func (s JobStatus) IsTerminal() bool {
	return s.IsGloballyTerminal() || s == StatusSuspended
}

// SavepointFormat selects the on-disk format of a triggered savepoint.
type SavepointFormat string

const (
	// SavepointFormatCanonical is the portable format, readable across
	// state backends.
	SavepointFormatCanonical SavepointFormat = "CANONICAL"
	// SavepointFormatNative is the backend-specific format, faster to
	// take and restore.
	SavepointFormatNative SavepointFormat = "NATIVE"
)
