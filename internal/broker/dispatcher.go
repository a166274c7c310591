package broker

import (
	"context"
	"strconv"

	"github.com/dantte-lp/switchd/internal/queue"
	"github.com/dantte-lp/switchd/internal/trace"
)

// sessionless is the set of verbs accepted with no Login beforehand.
func sessionless(body RequestBody) bool {
	switch body.(type) {
	case LoginReq, GetReq, TraceReq, DiagnosticsReq:
		return true
	default:
		return false
	}
}

// Dispatch resolves the session attached to connID and routes body to one
// of the ten verb handlers, generalizing the teacher's SocketIO.handle
// (socketio.go), which resolved a *Conn from a path segment and then
// switched on the decoded message type the same way.
func (b *Broker) Dispatch(ctx context.Context, connID string, body RequestBody) (ResponseBody, error) {
	session, loggedIn := b.conns.sessionOf(connID)

	if !loggedIn && !sessionless(body) {
		return NotLoggedInResp{}, nil
	}

	switch req := body.(type) {
	case LoginReq:
		b.conns.login(connID, req.Session)
		b.metrics.SessionLoggedIn()
		b.log.Debug("login", "conn", connID, "session", req.Session)
		return LoginResp{}, nil

	case CreatePersistentReq:
		b.Directory.Add(req.Name)
		b.metrics.QueueCreated()
		return CreateResp{Name: req.Name}, nil

	case CreateTransientReq:
		b.transient.Register(session, req.Name)
		b.Directory.Add(req.Name)
		b.metrics.QueueCreated()
		return CreateResp{Name: req.Name}, nil

	case DestroyReq:
		b.Directory.Remove(req.Name)
		b.metrics.QueueDestroyed()
		return DestroyResp{}, nil

	case SendReq:
		return b.dispatchSend(session, connID, req), nil

	case AckReq:
		b.dispatchAck(session, req)
		return AckResp{}, nil

	case TransferReq:
		return b.dispatchTransfer(ctx, session, req)

	case TraceReq:
		events := b.Trace.Get(ctx, req.From, req.Timeout)
		return TraceResp{Events: events}, nil

	case ListReq:
		return ListResp{Names: b.Directory.List(req.Prefix)}, nil

	case DiagnosticsReq:
		return b.diagnostics(), nil

	case GetReq:
		return b.dispatchGet(req)

	default:
		panic("broker: unhandled request body")
	}
}

func (b *Broker) dispatchSend(session, connID string, req SendReq) ResponseBody {
	q, ok := b.Directory.Find(req.Name)
	if !ok {
		return SendResp{ID: nil}
	}

	origin := queue.Anonymous(connID)
	if session != "" {
		origin = queue.Named(session)
	}

	id := q.Enqueue(origin, req.Message, b.clock.Now())
	b.metrics.MessageEnqueued()

	input := session
	b.Trace.Append(trace.Event{
		Time:      b.clock.Now(),
		Input:     input,
		Queue:     req.Name,
		Kind:      trace.KindMessage,
		MessageID: id,
		Message:   req.Message,
	})

	return SendResp{ID: &id}
}

func (b *Broker) dispatchAck(session string, req AckReq) {
	b.Trace.Append(trace.Event{
		Time:      b.clock.Now(),
		Input:     session,
		Queue:     req.ID.Queue,
		Kind:      trace.KindAck,
		MessageID: req.ID,
	})

	q, ok := b.Directory.Find(req.ID.Queue)
	if !ok {
		return
	}
	q.Ack(req.ID.Index)
	b.metrics.MessageAcked()
}

func (b *Broker) dispatchGet(req GetReq) (ResponseBody, error) {
	path := req.Path
	if path == "" {
		path = "index.html"
	}
	if b.assets == nil {
		return nil, &ErrAssetNotFound{Path: path}
	}
	body, err := b.assets.ReadAsset(path)
	if err != nil {
		return nil, &ErrAssetNotFound{Path: path}
	}
	return GetResp{Body: body}, nil
}

// nextCursor formats the string-encoded maximum index across items, or
// from if items is empty, per §4.7's result-packaging rule.
func nextCursor(items []queue.Item, from int64) string {
	if len(items) == 0 {
		return strconv.FormatInt(from, 10)
	}
	max := items[0].ID.Index
	for _, it := range items[1:] {
		if it.ID.Index > max {
			max = it.ID.Index
		}
	}
	return strconv.FormatUint(max, 10)
}
