package gateway

import (
	"sync"

	"github.com/samber/lo"
)

// Tracker is the process-wide map of online identities to their single
// active connection. Presence is in-memory only: it starts empty on every
// process start and is never persisted.
//
// Sessions are single-handle: a reconnect from a second device replaces the
// prior mapping and the replaced connection is closed by the caller.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]*Conn
}

// NewTracker returns an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]*Conn)}
}

// Register records conn as the identity's active connection and returns the
// connection it replaced, if any. The caller is responsible for closing the
// replaced connection outside the tracker's lock.
//
// welcome, when non-nil, runs under the tracker's lock with the identities
// online just before conn became visible. Delivering the online snapshot from
// it guarantees the snapshot both reflects the exact pre-registration state
// and is enqueued before any broadcast can reach conn: a peer connecting
// concurrently is either in the snapshot or will observe conn and greet it,
// never neither. welcome must not call back into the tracker.
func (t *Tracker) Register(conn *Conn, welcome func(online []string)) (replaced *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if welcome != nil {
		welcome(lo.Keys(t.online))
	}
	replaced = t.online[conn.UserID]
	t.online[conn.UserID] = conn
	return replaced
}

// Unregister removes the identity's entry, but only if it still points at
// conn. A connection that was replaced by a newer session must not drop the
// successor's presence when it finally disconnects. The return value reports
// whether the identity actually went offline.
func (t *Tracker) Unregister(conn *Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.online[conn.UserID]
	if !ok || current != conn {
		return false
	}
	delete(t.online, conn.UserID)
	return true
}

// IsOnline reports whether the identity has an active connection.
func (t *Tracker) IsOnline(identity string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.online[identity]
	return ok
}

// Snapshot returns the identities currently online, as a finite list.
func (t *Tracker) Snapshot() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return lo.Keys(t.online)
}

// Connections returns every active connection, for presence broadcasts.
func (t *Tracker) Connections() []*Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return lo.Values(t.online)
}
