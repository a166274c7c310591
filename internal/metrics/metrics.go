// Package metrics wires the broker's counters into a Prometheus registry,
// grounded on dantte-lp-gobfd's internal/metrics.Collector: a small struct
// of pre-registered vectors/counters handed to the component that drives
// them, rather than package-global metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder satisfies broker.Metrics and additionally exposes the counters
// through a Prometheus registry for /metrics scraping.
type Recorder struct {
	queuesCreated     prometheus.Counter
	queuesDestroyed   prometheus.Counter
	messagesEnqueued  prometheus.Counter
	messagesAcked     prometheus.Counter
	sessionsLoggedIn  prometheus.Counter
	sessionsReclaimed prometheus.Counter
}

// NewRecorder registers the switchd counters against reg and
// returns a Recorder ready to be passed to broker.WithMetrics.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		queuesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "switchd",
			Name:      "queues_created_total",
			Help:      "Total number of queues created (persistent or transient).",
		}),
		queuesDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "switchd",
			Name:      "queues_destroyed_total",
			Help:      "Total number of queues destroyed, explicitly or via transient reclamation.",
		}),
		messagesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "switchd",
			Name:      "messages_enqueued_total",
			Help:      "Total number of messages accepted by Send.",
		}),
		messagesAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "switchd",
			Name:      "messages_acked_total",
			Help:      "Total number of Ack requests processed.",
		}),
		sessionsLoggedIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "switchd",
			Name:      "sessions_logged_in_total",
			Help:      "Total number of successful Login requests.",
		}),
		sessionsReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "switchd",
			Name:      "sessions_reclaimed_total",
			Help:      "Total number of sessions whose transient queues were reclaimed on disconnect.",
		}),
	}

	reg.MustRegister(
		r.queuesCreated,
		r.queuesDestroyed,
		r.messagesEnqueued,
		r.messagesAcked,
		r.sessionsLoggedIn,
		r.sessionsReclaimed,
	)

	return r
}

func (r *Recorder) QueueCreated()     { r.queuesCreated.Inc() }
func (r *Recorder) QueueDestroyed()   { r.queuesDestroyed.Inc() }
func (r *Recorder) MessageEnqueued()  { r.messagesEnqueued.Inc() }
func (r *Recorder) MessageAcked()     { r.messagesAcked.Inc() }
func (r *Recorder) SessionLoggedIn()  { r.sessionsLoggedIn.Inc() }
func (r *Recorder) SessionReclaimed() { r.sessionsReclaimed.Inc() }
