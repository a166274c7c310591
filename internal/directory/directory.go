// Package directory maps queue names to queues. It generalizes the
// teacher's server.sessions / SocketIO.sessions maps (name -> *Conn) into
// the broker's name -> *queue.Queue directory, keeping the same
// create-if-absent, idempotent-remove discipline.
package directory

import (
	"sort"
	"strings"
	"sync"

	"github.com/dantte-lp/switchd/internal/queue"
)

// Directory owns every live queue by name.
type Directory struct {
	mu     sync.Mutex
	queues map[string]*queue.Queue
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{queues: make(map[string]*queue.Queue)}
}

// Add creates a live queue named name if absent; if present, it is a no-op.
// Returns the (possibly pre-existing) queue.
func (d *Directory) Add(name string) *queue.Queue {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, ok := d.queues[name]; ok {
		return q
	}
	q := queue.New(name)
	d.queues[name] = q
	return q
}

// Remove transitions name's queue to deleted, waking all its waiters with
// the deletion signal, and unlinks the name. Idempotent for absent names.
func (d *Directory) Remove(name string) {
	d.mu.Lock()
	q, ok := d.queues[name]
	if ok {
		delete(d.queues, name)
	}
	d.mu.Unlock()

	if ok {
		q.MarkDeleted()
	}
}

// Find returns the live queue named name, if any.
func (d *Directory) Find(name string) (*queue.Queue, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[name]
	return q, ok
}

// List returns the sorted names of every queue with the given prefix.
// An empty prefix returns every name.
func (d *Directory) List(prefix string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.queues))
	for name := range d.queues {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Snapshot returns every live queue, for diagnostics. The returned map must
// not be mutated by the caller beyond reading.
func (d *Directory) Snapshot() map[string]*queue.Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]*queue.Queue, len(d.queues))
	for name, q := range d.queues {
		out[name] = q
	}
	return out
}
