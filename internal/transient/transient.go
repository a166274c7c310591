// Package transient tracks which queue names must be destroyed when their
// owning session disconnects. It is built on internal/relation the same
// way internal/broker's connection table is, since both are bidirectional
// session-keyed sets.
package transient

import "github.com/dantte-lp/switchd/internal/relation"

// Registry holds, for every session with transient queues, the set of
// queue names that die with it. It holds names only (weak references):
// the entries themselves live in the Directory's queues.
type Registry struct {
	rel *relation.Relation[string, string] // session -> queue name
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{rel: relation.New[string, string]()}
}

// Register records that name belongs to session's transient set.
func (r *Registry) Register(session, name string) {
	r.rel.Add(session, name)
}

// Reclaim forgets session and returns the queue names that were registered
// to it, for the caller to destroy via the Directory. Call this only once
// session has just become inactive (its last connection has closed).
func (r *Registry) Reclaim(session string) []string {
	names := r.rel.BsOf(session)
	r.rel.RemoveA(session)
	return names
}

// IsTransient reports whether name is registered as transient against any
// session, for partitioning Diagnostics output into transient vs permanent.
func (r *Registry) IsTransient(name string) bool {
	return r.rel.HasB(name)
}
