// Package trace implements the broker's bounded, cursor-addressable event
// log, generalizing the teacher's debug/info/warn Logger (util.go) from an
// unbounded text stream into a structured, replayable ring that the Trace
// verb can catch clients up on.
package trace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dantte-lp/switchd/internal/queue"
)

// Kind distinguishes a message event (enqueue or dequeue-by-Transfer) from
// an ack event.
type Kind int

const (
	KindMessage Kind = iota
	KindAck
)

// Event is one broker-observable action, addressed by a strictly
// increasing, never-reused Cursor.
type Event struct {
	Cursor         int64
	Time           time.Time
	Input          string // session name, empty if none
	Output         string // session name, empty if none
	Queue          string
	Kind           Kind
	MessageID      queue.ID
	Message        queue.Message // valid when Kind == KindMessage
	ProcessingTime *time.Duration
}

// DefaultCapacity is the recommended ring size; the source left this
// unspecified.
const DefaultCapacity = 1024

// Ring is a bounded, append-only log of Events queryable by cursor, with
// blocking catch-up reads. Each Ring stamps itself with a process-instance
// ID at construction, so trace output aggregated across broker restarts
// (or across processes, if that ever happens) can be told apart.
type Ring struct {
	mu         sync.Mutex
	capacity   int
	instanceID string
	events     []Event
	nextCursor int64
	notify     chan struct{}
}

// New returns an empty Ring holding at most capacity events, tagged with a
// freshly minted instance ID.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		capacity:   capacity,
		instanceID: uuid.NewString(),
		nextCursor: 1,
		notify:     make(chan struct{}),
	}
}

// InstanceID returns the ID stamped on this Ring at construction, for
// tagging log lines and distinguishing one broker run's trace from
// another's.
func (r *Ring) InstanceID() string {
	return r.instanceID
}

// Append assigns the next cursor to ev, stores it, evicting the oldest
// entry if at capacity, and wakes every blocked Get. Returns the stored
// event (with its assigned Cursor).
func (r *Ring) Append(ev Event) Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.Cursor = r.nextCursor
	r.nextCursor++
	r.events = append(r.events, ev)
	if len(r.events) > r.capacity {
		r.events = r.events[len(r.events)-r.capacity:]
	}

	close(r.notify)
	r.notify = make(chan struct{})
	return ev
}

func (r *Ring) snapshotAfter(from int64) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.Cursor > from {
			out = append(out, e)
		}
	}
	return out
}

// Get returns every event with cursor > from, blocking up to timeout for
// new events if none are currently available. A done ctx ends the wait
// early with whatever (possibly empty) result is available.
func (r *Ring) Get(ctx context.Context, from int64, timeout time.Duration) []Event {
	deadline := time.Now().Add(timeout)

	for {
		if evs := r.snapshotAfter(from); len(evs) > 0 {
			return evs
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		r.mu.Lock()
		ch := r.notify
		r.mu.Unlock()

		timer := time.NewTimer(remaining)
		select {
		case <-ch:
			timer.Stop()
		case <-timer.C:
			return nil
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}
