package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dantte-lp/switchd/internal/broker"
	"github.com/dantte-lp/switchd/internal/queue"
)

// connIDKey is the context key ConnTracker stashes a connection's minted
// ID under, read back by Handler on every request.
type connIDKey struct{}

// ConnTracker mints a ULID per accepted TCP connection (generalizing the
// teacher's NewSessionID, which hand-built a random string from
// crypto/rand, into a time-sortable identifier) and remembers it so the
// http.Server's ConnState hook can report ConnectionClosed with the same
// ID that was attached to every request on that connection.
type ConnTracker struct {
	mu  sync.Mutex
	ids map[net.Conn]string
}

// NewConnTracker returns an empty ConnTracker.
func NewConnTracker() *ConnTracker {
	return &ConnTracker{ids: make(map[net.Conn]string)}
}

// ConnContext is installed as http.Server.ConnContext. It mints a conn_id
// for c and attaches it to every request context derived from this
// connection.
func (t *ConnTracker) ConnContext(ctx context.Context, c net.Conn) context.Context {
	id := ulid.Make().String()
	t.mu.Lock()
	t.ids[c] = id
	t.mu.Unlock()
	return context.WithValue(ctx, connIDKey{}, id)
}

// StateHook is installed as http.Server.ConnState. On StateClosed or
// StateHijacked it forgets the connection and calls
// broker.ConnectionClosed with its conn_id, per §4.6's connection-closed
// hook.
func (t *ConnTracker) StateHook(b *broker.Broker) func(net.Conn, http.ConnState) {
	return func(c net.Conn, state http.ConnState) {
		if state != http.StateClosed && state != http.StateHijacked {
			return
		}
		t.mu.Lock()
		id, ok := t.ids[c]
		delete(t.ids, c)
		t.mu.Unlock()
		if ok {
			b.ConnectionClosed(id)
		}
	}
}

// connIDFromContext returns the conn_id ConnTracker.ConnContext attached
// to ctx.
func connIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(connIDKey{}).(string)
	return id
}

// WithConnID attaches connID to ctx the same way ConnTracker.ConnContext
// does, for callers (tests, alternate transports) that drive Handler
// without a real http.Server connection lifecycle.
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connIDKey{}, connID)
}

// Handler is the broker's HTTP binding of §6: one http.Handler that maps
// (method, path) to the ten request verbs, invokes broker.Dispatch, and
// marshals the tagged response union as JSON.
type Handler struct {
	broker *broker.Broker
	log    *slog.Logger
	mux    *http.ServeMux
}

// New returns a Handler dispatching against b.
func New(b *broker.Broker, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{broker: b, log: log, mux: http.NewServeMux()}
	h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("POST /login", h.wrap(h.login))
	h.mux.HandleFunc("POST /create/persistent/{name}", h.wrap(h.createPersistent))
	h.mux.HandleFunc("POST /create/transient/{name}", h.wrap(h.createTransient))
	h.mux.HandleFunc("POST /destroy/{name}", h.wrap(h.destroy))
	h.mux.HandleFunc("POST /send/{name}", h.wrap(h.send))
	h.mux.HandleFunc("POST /ack", h.wrap(h.ack))
	h.mux.HandleFunc("POST /transfer", h.wrap(h.transfer))
	h.mux.HandleFunc("GET /trace", h.wrap(h.trace))
	h.mux.HandleFunc("GET /list", h.wrap(h.list))
	h.mux.HandleFunc("GET /diagnostics", h.wrap(h.diagnostics))
	h.mux.HandleFunc("GET /assets/{path...}", h.wrap(h.get))
	h.mux.HandleFunc("GET /", h.wrap(h.get))
	// Any other method/path pair is an unrecognized request: 404, not the
	// 405 ServeMux would give a known path reached with another method.
	h.mux.HandleFunc("/", http.NotFound)
}

// wrap resolves the request's conn_id, calls fn to build a RequestBody,
// invokes broker.Dispatch, and writes the response. Any decode failure is
// a 404 before the core is invoked, per §6: "Parsing failure on the
// façade yields a 404 before the core is invoked."
func (h *Handler) wrap(fn func(*http.Request) (broker.RequestBody, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := fn(r)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		connID := connIDFromContext(r.Context())
		resp, err := h.broker.Dispatch(r.Context(), connID, body)
		h.writeResponse(w, resp, err)
	}
}

func (h *Handler) writeResponse(w http.ResponseWriter, resp broker.ResponseBody, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch r := resp.(type) {
	case broker.LoginResp:
		h.encode(w, map[string]string{"type": "login"})
	case broker.CreateResp:
		h.encode(w, map[string]string{"type": "create", "name": r.Name})
	case broker.DestroyResp:
		h.encode(w, map[string]string{"type": "destroy"})
	case broker.SendResp:
		payload := map[string]interface{}{"type": "send"}
		if r.ID != nil {
			payload["id"] = wireMessageID(*r.ID)
		} else {
			payload["id"] = nil
		}
		h.encode(w, payload)
	case broker.AckResp:
		h.encode(w, map[string]string{"type": "ack"})
	case broker.TransferResp:
		h.encode(w, map[string]interface{}{
			"type":     "transfer",
			"messages": toWireItems(r.Messages),
			"next":     r.Next,
		})
	case broker.TraceResp:
		h.encode(w, map[string]interface{}{
			"type":   "trace",
			"events": toWireTraceEvents(r.Events),
		})
	case broker.ListResp:
		h.encode(w, map[string]interface{}{"type": "list", "names": r.Names})
	case broker.DiagnosticsResp:
		h.encode(w, map[string]interface{}{"type": "diagnostics", "diagnostics": toWireDiagnostics(r)})
	case broker.GetResp:
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(r.Body)
	case broker.NotLoggedInResp:
		w.WriteHeader(http.StatusUnauthorized)
		h.encode(w, map[string]string{"type": "not_logged_in"})
	default:
		h.log.Error("transporthttp: unhandled response type", "type", r)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var queueDeleted *broker.QueueDeletedError
	var assetNotFound *broker.ErrAssetNotFound

	switch {
	case errors.As(err, &queueDeleted):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		h.encode(w, map[string]string{"type": "queue_deleted", "queue": queueDeleted.Queue})
	case errors.As(err, &assetNotFound):
		http.NotFound(w, nil)
	default:
		h.log.Error("transporthttp: dispatch error", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (h *Handler) encode(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("transporthttp: encode response", "error", err)
	}
}

func toWireDiagnostics(resp broker.DiagnosticsResp) wireDiagnostics {
	out := wireDiagnostics{Time: resp.Time, Queues: make([]wireQueueDiagnostics, len(resp.Queues))}
	for i, q := range resp.Queues {
		qd := wireQueueDiagnostics{
			Name:      q.Name,
			Transient: q.Transient,
			Contents:  toWireItems(q.Contents),
		}
		if !q.NextTransferExpected.IsZero() {
			t := q.NextTransferExpected
			qd.NextTransferExpected = &t
		}
		out.Queues[i] = qd
	}
	return out
}

// -- per-verb request decoders --

func (h *Handler) login(r *http.Request) (broker.RequestBody, error) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return broker.LoginReq{Session: req.Session}, nil
}

func (h *Handler) createPersistent(r *http.Request) (broker.RequestBody, error) {
	return broker.CreatePersistentReq{Name: r.PathValue("name")}, nil
}

func (h *Handler) createTransient(r *http.Request) (broker.RequestBody, error) {
	return broker.CreateTransientReq{Name: r.PathValue("name")}, nil
}

func (h *Handler) destroy(r *http.Request) (broker.RequestBody, error) {
	return broker.DestroyReq{Name: r.PathValue("name")}, nil
}

func (h *Handler) send(r *http.Request) (broker.RequestBody, error) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	msg, err := req.Message.toMessage()
	if err != nil {
		return nil, err
	}
	return broker.SendReq{Name: r.PathValue("name"), Message: msg}, nil
}

func (h *Handler) ack(r *http.Request) (broker.RequestBody, error) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return broker.AckReq{ID: queue.ID(req.ID)}, nil
}

func (h *Handler) transfer(r *http.Request) (broker.RequestBody, error) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return req.toBroker()
}

func (h *Handler) trace(r *http.Request) (broker.RequestBody, error) {
	from, err := strconv.ParseInt(queryOr(r, "from", "0"), 10, 64)
	if err != nil {
		return nil, err
	}
	timeout, err := strconv.ParseFloat(queryOr(r, "timeout", "0"), 64)
	if err != nil {
		return nil, err
	}
	return broker.TraceReq{From: from, Timeout: time.Duration(timeout * float64(time.Second))}, nil
}

func (h *Handler) list(r *http.Request) (broker.RequestBody, error) {
	return broker.ListReq{Prefix: r.URL.Query().Get("prefix")}, nil
}

func (h *Handler) diagnostics(r *http.Request) (broker.RequestBody, error) {
	return broker.DiagnosticsReq{}, nil
}

// get builds the GetReq for both "GET /" (no named wildcard, so
// PathValue("path") is always empty) and "GET /assets/{path...}". Trimming
// the leading slash off r.URL.Path maps the literal root request to the
// empty path dispatchGet normalizes to index.html, instead of leaking the
// literal "/" through to assets.Dir.ReadAsset.
func (h *Handler) get(r *http.Request) (broker.RequestBody, error) {
	path := r.PathValue("path")
	if path == "" {
		path = strings.TrimPrefix(r.URL.Path, "/")
	}
	return broker.GetReq{Path: path}, nil
}

func queryOr(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}
