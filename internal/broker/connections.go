package broker

import "github.com/dantte-lp/switchd/internal/relation"

// connections is the bidirectional conn_id <-> session relation of §4.3,
// layered on internal/relation with the one constraint the raw relation
// does not express on its own: a conn_id maps to at most one session.
// Re-login on a conn_id that already has a session replaces the mapping,
// per the source-behavior decision recorded in DESIGN.md.
type connections struct {
	rel *relation.Relation[string, string]
}

func newConnections() *connections {
	return &connections{rel: relation.New[string, string]()}
}

// login attaches connID to session, replacing any prior session it held.
func (c *connections) login(connID, session string) {
	c.rel.RemoveA(connID)
	c.rel.Add(connID, session)
}

// sessionOf returns the session attached to connID, if any.
func (c *connections) sessionOf(connID string) (string, bool) {
	sessions := c.rel.BsOf(connID)
	if len(sessions) == 0 {
		return "", false
	}
	return sessions[0], true
}

// connsOf returns every conn_id currently attached to session.
func (c *connections) connsOf(session string) []string {
	return c.rel.AsOf(session)
}

// isActive reports whether session has at least one attached connection.
func (c *connections) isActive(session string) bool {
	return c.rel.HasB(session)
}

// disconnect removes connID from the relation and reports the session it
// was attached to (if any) along with whether that session is still
// active afterwards.
func (c *connections) disconnect(connID string) (session string, hadSession, stillActive bool) {
	session, hadSession = c.sessionOf(connID)
	c.rel.RemoveA(connID)
	if !hadSession {
		return "", false, false
	}
	return session, true, c.isActive(session)
}
