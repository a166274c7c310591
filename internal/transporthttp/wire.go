// Package transporthttp is the HTTP transport façade (§6): it parses
// requests into the broker's tagged RequestBody union, invokes
// broker.Dispatch, and marshals the tagged ResponseBody union back as
// JSON. It generalizes the teacher's Codec interface (codec.go), which
// converted between wire frames and *Message values, into one that
// converts between HTTP request/response bodies and the broker's typed
// verbs instead of Socket.IO's packet framing.
package transporthttp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dantte-lp/switchd/internal/broker"
	"github.com/dantte-lp/switchd/internal/queue"
	"github.com/dantte-lp/switchd/internal/trace"
)

// wireMessageID is queue.ID encoded on the wire as the 2-tuple
// (queue-name, index) per §6's "a MessageId on the wire is the pair
// (queue-name, index) and is encoded as a 2-tuple".
type wireMessageID queue.ID

func (id wireMessageID) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{id.Queue, id.Index})
}

func (id *wireMessageID) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("transporthttp: decode message id tuple: %w", err)
	}
	if len(tuple) != 2 {
		return fmt.Errorf("transporthttp: message id tuple has %d elements, want 2", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &id.Queue); err != nil {
		return fmt.Errorf("transporthttp: decode message id queue: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &id.Index); err != nil {
		return fmt.Errorf("transporthttp: decode message id index: %w", err)
	}
	return nil
}

// wireMessage is queue.Message on the wire: Payload is base64-encoded by
// encoding/json's native []byte handling, Kind is a string enum, and
// Correlates is present only for a response message.
type wireMessage struct {
	Payload    []byte         `json:"payload"`
	Kind       string         `json:"kind"`
	ReplyTo    string         `json:"reply_to,omitempty"`
	Correlates *wireMessageID `json:"correlates,omitempty"`
}

func toWireMessage(m queue.Message) wireMessage {
	w := wireMessage{Payload: m.Payload}
	switch m.Kind {
	case queue.KindRequest:
		w.Kind = "request"
		w.ReplyTo = m.ReplyTo
	case queue.KindResponse:
		w.Kind = "response"
		id := wireMessageID(m.Correlates)
		w.Correlates = &id
	}
	return w
}

func (w wireMessage) toMessage() (queue.Message, error) {
	switch w.Kind {
	case "request":
		return queue.Message{Payload: w.Payload, Kind: queue.KindRequest, ReplyTo: w.ReplyTo}, nil
	case "response":
		if w.Correlates == nil {
			return queue.Message{}, fmt.Errorf("transporthttp: response message missing correlates")
		}
		return queue.Message{Payload: w.Payload, Kind: queue.KindResponse, Correlates: queue.ID(*w.Correlates)}, nil
	default:
		return queue.Message{}, fmt.Errorf("transporthttp: unknown message kind %q", w.Kind)
	}
}

// wireOrigin renders a queue.Origin as either a session name or a
// "conn:<id>" anonymous tag, for Diagnostics/Transfer item payloads.
func wireOrigin(o queue.Origin) string {
	if o.Named {
		return o.Session
	}
	return "conn:" + o.ConnID
}

// wireItem is one (MessageId, Entry) pair as returned by Transfer and
// Diagnostics.
type wireItem struct {
	ID         wireMessageID `json:"id"`
	Origin     string        `json:"origin"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	Message    wireMessage   `json:"message"`
}

func toWireItems(items []queue.Item) []wireItem {
	out := make([]wireItem, len(items))
	for i, it := range items {
		out[i] = wireItem{
			ID:         wireMessageID(it.ID),
			Origin:     wireOrigin(it.Entry.Origin),
			EnqueuedAt: it.Entry.EnqueuedAt,
			Message:    toWireMessage(it.Entry.Message),
		}
	}
	return out
}

// wireTraceEvent is one trace.Event as returned by the Trace verb.
type wireTraceEvent struct {
	Cursor         int64         `json:"cursor"`
	Time           time.Time     `json:"time"`
	Input          string        `json:"input,omitempty"`
	Output         string        `json:"output,omitempty"`
	Queue          string        `json:"queue"`
	Kind           string        `json:"kind"`
	MessageID      wireMessageID `json:"message_id"`
	Message        *wireMessage  `json:"message,omitempty"`
	ProcessingTime *float64      `json:"processing_time,omitempty"`
}

func toWireTraceEvent(ev trace.Event) wireTraceEvent {
	w := wireTraceEvent{
		Cursor:    ev.Cursor,
		Time:      ev.Time,
		Input:     ev.Input,
		Output:    ev.Output,
		Queue:     ev.Queue,
		MessageID: wireMessageID(ev.MessageID),
	}
	switch ev.Kind {
	case trace.KindMessage:
		w.Kind = "message"
		m := toWireMessage(ev.Message)
		w.Message = &m
	case trace.KindAck:
		w.Kind = "ack"
	}
	if ev.ProcessingTime != nil {
		secs := ev.ProcessingTime.Seconds()
		w.ProcessingTime = &secs
	}
	return w
}

func toWireTraceEvents(events []trace.Event) []wireTraceEvent {
	out := make([]wireTraceEvent, len(events))
	for i, ev := range events {
		out[i] = toWireTraceEvent(ev)
	}
	return out
}

// wireQueueDiagnostics and wireDiagnostics mirror broker.DiagnosticsResp
// on the wire.
type wireQueueDiagnostics struct {
	Name                 string     `json:"name"`
	Transient            bool       `json:"transient"`
	Contents             []wireItem `json:"contents"`
	NextTransferExpected *time.Time `json:"next_transfer_expected,omitempty"`
}

type wireDiagnostics struct {
	Time   time.Time              `json:"time"`
	Queues []wireQueueDiagnostics `json:"queues"`
}

// loginRequest, sendRequest, ackRequest and transferRequest are the JSON
// request bodies accepted by their respective routes; the other routes
// take their arguments from the path or query string.
type loginRequest struct {
	Session string `json:"session"`
}

type sendRequest struct {
	Message wireMessage `json:"message"`
}

type ackRequest struct {
	ID wireMessageID `json:"id"`
}

type transferRequest struct {
	From    *string  `json:"from,omitempty"`
	Timeout float64  `json:"timeout"`
	Queues  []string `json:"queues"`
}

func (t transferRequest) toBroker() (broker.TransferReq, error) {
	req := broker.TransferReq{
		Timeout: time.Duration(t.Timeout * float64(time.Second)),
		Queues:  t.Queues,
	}
	if t.From != nil && *t.From != "" {
		var v int64
		if _, err := fmt.Sscanf(*t.From, "%d", &v); err != nil {
			return broker.TransferReq{}, fmt.Errorf("transporthttp: decode transfer cursor %q: %w", *t.From, err)
		}
		req.From = &v
	}
	return req, nil
}
