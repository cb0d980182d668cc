package cluster

// CoordinationRequest is a request exchanged with an operator
// coordinator through the job's control plane. The set of request
// kinds is closed: implementations live in this package only, sealed
// by the unexported marker method.
type CoordinationRequest interface {
	coordinationRequest()
}

// CollectRequest asks a collect-sink coordinator for the next batch of
// streamed results. Dispatching one switches the client into its
// long-lived streaming-query mode.
type CollectRequest struct {
	Version string // result-stream version token handed out by the coordinator
	Offset  int64  // offset of the first result to fetch
}

func (*CollectRequest) coordinationRequest() {}

// RawRequest carries an opaque payload to a coordinator the client has
// no structured knowledge of.
type RawRequest struct {
	Payload []byte
}

func (*RawRequest) coordinationRequest() {}

// CoordinationResponse is the coordinator's opaque answer.
type CoordinationResponse struct {
	Payload []byte
}
