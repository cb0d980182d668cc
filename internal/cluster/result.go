package cluster

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobResult is the raw final outcome of a job as delivered by the
// control plane: accumulators still in their serialized form, the
// failure cause (if any) as an opaque string.
type JobResult struct {
	JobID        JobID                      `json:"id"`
	Success      bool                       `json:"success"`
	NetRuntime   time.Duration              `json:"netRuntime"`
	Accumulators map[string]json.RawMessage `json:"accumulators,omitempty"`
	FailureCause string                     `json:"failureCause,omitempty"`
}

// ExecutionResult is a materialized JobResult: accumulators decoded
// into their domain values.
type ExecutionResult struct {
	JobID        JobID
	NetRuntime   time.Duration
	Accumulators map[string]any
}

// AccumulatorDecoder decodes a single serialized accumulator value.
// It is the deserialization context supplied at client construction;
// implementations know the accumulator types the job produces.
type AccumulatorDecoder interface {
	Decode(name string, data []byte) (any, error)
}

// JSONDecoder decodes every accumulator as generic JSON. It is the
// decoder of last resort for jobs whose accumulator types are unknown.
type JSONDecoder struct{}

func (JSONDecoder) Decode(name string, data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("accumulator %q: %w", name, err)
	}
	return v, nil
}

// Materialize decodes the result's accumulators with the given
// decoder. A job that did not succeed materializes to an error
// carrying its failure cause; a nil decoder falls back to JSONDecoder.
func (r *JobResult) Materialize(decoder AccumulatorDecoder) (*ExecutionResult, error) {
	if !r.Success {
		cause := r.FailureCause
		if cause == "" {
			cause = "job execution failed"
		}
		return nil, fmt.Errorf("%s", cause)
	}
	if decoder == nil {
		decoder = JSONDecoder{}
	}

	accumulators := make(map[string]any, len(r.Accumulators))
	for name, raw := range r.Accumulators {
		value, err := decoder.Decode(name, raw)
		if err != nil {
			return nil, fmt.Errorf("decode accumulator %q: %w", name, err)
		}
		accumulators[name] = value
	}

	return &ExecutionResult{
		JobID:        r.JobID,
		NetRuntime:   r.NetRuntime,
		Accumulators: accumulators,
	}, nil
}

// AccumulatorSnapshot is a point-in-time view of a running job's
// accumulators, still serialized.
type AccumulatorSnapshot map[string]json.RawMessage

// Decode materializes the snapshot with the given decoder (nil falls
// back to JSONDecoder).
func (s AccumulatorSnapshot) Decode(decoder AccumulatorDecoder) (map[string]any, error) {
	if decoder == nil {
		decoder = JSONDecoder{}
	}
	out := make(map[string]any, len(s))
	for name, raw := range s {
		value, err := decoder.Decode(name, raw)
		if err != nil {
			return nil, fmt.Errorf("decode accumulator %q: %w", name, err)
		}
		out[name] = value
	}
	return out, nil
}
