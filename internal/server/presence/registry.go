// Package presence tracks which users currently hold a live connection.
//
// The registry is the single source of truth for "is user online". It is
// purely in-memory: a process restart empties it and every user appears
// offline until they reconnect.
package presence

import "sync"

// Conn is the minimal connection handle the registry needs to hold. The
// gateway's peer type satisfies it.
type Conn interface {
	// Enqueue offers a marshaled frame to the connection without blocking.
	// It reports false when the frame was dropped.
	Enqueue(data []byte) bool

	// Close tears the connection down. Safe to call more than once.
	Close()
}

type entry struct {
	gen  uint64
	conn Conn
}

// Registry maps user ids to live connection handles. Each bind gets a
// generation number so a stale disconnect can never remove a newer
// connection's entry.
//
// Policy: single session per user, last bind wins; the displaced connection
// is returned to the caller to be closed.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	lastGen uint64
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Bind inserts or overwrites the entry for userID and returns the generation
// of the new binding plus the displaced connection, if any.
func (r *Registry) Bind(userID string, conn Conn) (gen uint64, prev Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[userID]; ok {
		prev = old.conn
	}
	r.lastGen++
	r.entries[userID] = entry{gen: r.lastGen, conn: conn}
	return r.lastGen, prev
}

// Unbind removes the entry for userID only if gen still identifies the live
// binding. It reports whether an entry was removed, so callers know whether
// the online set changed.
func (r *Registry) Unbind(userID string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok || e.gen != gen {
		return false
	}
	delete(r.entries, userID)
	return true
}

// Lookup returns the live connection for userID, if present.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// OnlineIDs returns the ids of all currently bound users.
func (r *Registry) OnlineIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Conns returns every live connection handle. Used for broadcasts.
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.entries))
	for _, e := range r.entries {
		conns = append(conns, e.conn)
	}
	return conns
}
