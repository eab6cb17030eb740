package gateway

import (
	"sync"

	"github.com/samber/lo"
)

type connSet map[*Conn]struct{}

// Rooms groups connections into two kinds of multicast groups: a personal
// room per identity (auto-joined, serves the chat-list view) and a
// conversation room per chat id (explicitly joined, serves the open
// conversation view).
type Rooms struct {
	mu           sync.RWMutex
	personal     map[string]connSet
	conversation map[string]connSet
	joined       map[*Conn]map[string]struct{} // conversation memberships per conn
}

// NewRooms returns an empty room router.
func NewRooms() *Rooms {
	return &Rooms{
		personal:     make(map[string]connSet),
		conversation: make(map[string]connSet),
		joined:       make(map[*Conn]map[string]struct{}),
	}
}

// JoinPersonal adds the connection to its identity's personal room.
func (r *Rooms) JoinPersonal(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.personal[conn.UserID]
	if set == nil {
		set = make(connSet)
		r.personal[conn.UserID] = set
	}
	set[conn] = struct{}{}
}

// JoinConversation adds the connection to a conversation room. Re-joining an
// already-joined room is a no-op.
func (r *Rooms) JoinConversation(conversationID string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.conversation[conversationID]
	if set == nil {
		set = make(connSet)
		r.conversation[conversationID] = set
	}
	set[conn] = struct{}{}

	memberships := r.joined[conn]
	if memberships == nil {
		memberships = make(map[string]struct{})
		r.joined[conn] = memberships
	}
	memberships[conversationID] = struct{}{}
}

// LeaveConversation removes the connection from a conversation room. Leaving
// a room the connection never joined is a no-op.
func (r *Rooms) LeaveConversation(conversationID string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(conversationID, conn)
}

// Detach removes the connection from its personal room and from every
// conversation room it joined. Called exactly once, on disconnect.
func (r *Rooms) Detach(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.personal[conn.UserID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.personal, conn.UserID)
		}
	}
	for conversationID := range r.joined[conn] {
		r.leaveLocked(conversationID, conn)
	}
	delete(r.joined, conn)
}

// Targets computes the delivery set for a new message in the given
// conversation: the union of the conversation room (live view) and each
// participant's personal room (list view), deduplicated by connection handle
// so a connection present in both groups is delivered to exactly once.
func (r *Rooms) Targets(conversationID string, participantIDs []string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	union := make(connSet)
	for conn := range r.conversation[conversationID] {
		union[conn] = struct{}{}
	}
	for _, identity := range participantIDs {
		for conn := range r.personal[identity] {
			union[conn] = struct{}{}
		}
	}
	return lo.Keys(union)
}

func (r *Rooms) leaveLocked(conversationID string, conn *Conn) {
	set, ok := r.conversation[conversationID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.conversation, conversationID)
	}
	if memberships, ok := r.joined[conn]; ok {
		delete(memberships, conversationID)
		if len(memberships) == 0 {
			delete(r.joined, conn)
		}
	}
}
