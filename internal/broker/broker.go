package broker

import (
	"log/slog"

	"github.com/dantte-lp/switchd/internal/clock"
	"github.com/dantte-lp/switchd/internal/directory"
	"github.com/dantte-lp/switchd/internal/trace"
	"github.com/dantte-lp/switchd/internal/transient"
)

// Metrics is the narrow set of counters the broker reports on, satisfied
// by internal/metrics.Recorder. Kept as a small interface here (rather
// than importing the concrete type) so the broker stays testable without
// pulling in prometheus.
type Metrics interface {
	QueueCreated()
	QueueDestroyed()
	MessageEnqueued()
	MessageAcked()
	SessionLoggedIn()
	SessionReclaimed()
}

type noopMetrics struct{}

func (noopMetrics) QueueCreated()     {}
func (noopMetrics) QueueDestroyed()   {}
func (noopMetrics) MessageEnqueued()  {}
func (noopMetrics) MessageAcked()     {}
func (noopMetrics) SessionLoggedIn()  {}
func (noopMetrics) SessionReclaimed() {}

// AssetReader reads a static asset by path, backing the Get verb. Kept as
// an interface so tests can stub it without touching a filesystem.
type AssetReader interface {
	ReadAsset(path string) ([]byte, error)
}

// Broker is the explicit, passed-around context the dispatcher and
// Transfer engine operate against (§9's "carry them as an explicit broker
// context rather than hidden singletons"): the queue Directory, the
// connection table, the transient-queue registry and the trace ring.
type Broker struct {
	Directory *directory.Directory
	Trace     *trace.Ring

	conns     *connections
	transient *transient.Registry
	clock     clock.Clock
	log       *slog.Logger
	metrics   Metrics
	assets    AssetReader
}

// Option configures a Broker at construction time.
type Option func(*Broker)

// WithClock overrides the broker's clock (tests use clock.NewMock).
func WithClock(c clock.Clock) Option {
	return func(b *Broker) { b.clock = c }
}

// WithLogger overrides the broker's logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.log = l }
}

// WithMetrics overrides the broker's metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

// WithAssets overrides the broker's static-asset reader for the Get verb.
func WithAssets(a AssetReader) Option {
	return func(b *Broker) { b.assets = a }
}

// WithTraceCapacity overrides the trace ring's capacity.
func WithTraceCapacity(capacity int) Option {
	return func(b *Broker) { b.Trace = trace.New(capacity) }
}

// New returns a Broker with empty state.
func New(opts ...Option) *Broker {
	b := &Broker{
		Directory: directory.New(),
		Trace:     trace.New(trace.DefaultCapacity),
		conns:     newConnections(),
		transient: transient.New(),
		clock:     clock.Real(),
		log:       slog.Default(),
		metrics:   noopMetrics{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ConnectionClosed is the hook the transport façade calls when a conn_id
// disconnects: it removes the conn_id from the connection table, and if
// its session just became inactive, reclaims every transient queue that
// session owned.
func (b *Broker) ConnectionClosed(connID string) {
	session, hadSession, stillActive := b.conns.disconnect(connID)
	if !hadSession || stillActive {
		return
	}

	for _, name := range b.transient.Reclaim(session) {
		b.Directory.Remove(name)
		b.metrics.QueueDestroyed()
		b.log.Debug("reclaimed transient queue", "session", session, "queue", name)
	}
	b.metrics.SessionReclaimed()
}
