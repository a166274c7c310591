// Package broker implements the request dispatch state machine (the
// Dispatcher) and the long-poll Transfer engine described by the
// specification, wiring together internal/directory, internal/queue,
// internal/transient and internal/trace the way the teacher's SocketIO
// type wires together its sessions map, transports and callbacks
// (socketio.go) into one request-handling surface.
package broker

import (
	"time"

	"github.com/dantte-lp/switchd/internal/queue"
	"github.com/dantte-lp/switchd/internal/trace"
)

// RequestBody is the closed tagged union of the ten request verbs,
// generalizing the teacher's Message interface (message.go), which closed
// over MessageText/MessageJSON/MessageHeartbeat/... the same way.
type RequestBody interface{ requestBody() }

// LoginReq logs conn_id in as Session.
type LoginReq struct{ Session string }

// CreatePersistentReq creates a durable queue.
type CreatePersistentReq struct{ Name string }

// CreateTransientReq creates a queue bound to the caller's session.
type CreateTransientReq struct{ Name string }

// DestroyReq removes a queue.
type DestroyReq struct{ Name string }

// SendReq enqueues Message onto Name.
type SendReq struct {
	Name    string
	Message queue.Message
}

// AckReq acknowledges ID, removing it from its queue.
type AckReq struct{ ID queue.ID }

// TransferReq long-polls Queues for new messages after From.
type TransferReq struct {
	From    *int64 // nil means "everything so far"
	Timeout time.Duration
	Queues  []string
}

// TraceReq catches up on trace events after From.
type TraceReq struct {
	From    int64
	Timeout time.Duration
}

// ListReq lists queue names with the given prefix.
type ListReq struct{ Prefix string }

// DiagnosticsReq snapshots broker state.
type DiagnosticsReq struct{}

// GetReq reads a static asset.
type GetReq struct{ Path string }

func (LoginReq) requestBody()            {}
func (CreatePersistentReq) requestBody() {}
func (CreateTransientReq) requestBody()  {}
func (DestroyReq) requestBody()          {}
func (SendReq) requestBody()             {}
func (AckReq) requestBody()              {}
func (TransferReq) requestBody()         {}
func (TraceReq) requestBody()            {}
func (ListReq) requestBody()             {}
func (DiagnosticsReq) requestBody()      {}
func (GetReq) requestBody()              {}

// ResponseBody is the closed tagged union of response payloads.
type ResponseBody interface{ responseBody() }

// LoginResp acknowledges a Login.
type LoginResp struct{}

// CreateResp acknowledges a queue creation.
type CreateResp struct{ Name string }

// DestroyResp acknowledges a Destroy.
type DestroyResp struct{}

// SendResp carries the assigned ID, or nil if the target queue does not
// exist.
type SendResp struct{ ID *queue.ID }

// AckResp acknowledges an Ack.
type AckResp struct{}

// TransferResp carries the messages gathered by a Transfer and the cursor
// to pass as From next time.
type TransferResp struct {
	Messages []queue.Item
	Next     string
}

// TraceResp carries the events gathered by a Trace.
type TraceResp struct{ Events []trace.Event }

// ListResp carries matching queue names.
type ListResp struct{ Names []string }

// QueueDiagnostics is one queue's entry in a Diagnostics snapshot.
type QueueDiagnostics struct {
	Name                 string
	Transient            bool
	Contents             []queue.Item
	NextTransferExpected time.Time
}

// DiagnosticsResp snapshots broker state at Time.
type DiagnosticsResp struct {
	Time   time.Time
	Queues []QueueDiagnostics
}

// GetResp carries a static asset's body.
type GetResp struct{ Body []byte }

// NotLoggedInResp is returned for a session-requiring verb issued without
// a prior Login.
type NotLoggedInResp struct{}

func (LoginResp) responseBody()       {}
func (CreateResp) responseBody()      {}
func (DestroyResp) responseBody()     {}
func (SendResp) responseBody()        {}
func (AckResp) responseBody()         {}
func (TransferResp) responseBody()    {}
func (TraceResp) responseBody()       {}
func (ListResp) responseBody()        {}
func (DiagnosticsResp) responseBody() {}
func (GetResp) responseBody()         {}
func (NotLoggedInResp) responseBody() {}
