package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRooms_JoinLeaveIdempotent(t *testing.T) {
	r := NewRooms()
	conn := testConn("user-a")

	r.JoinConversation("chat-1", conn)
	r.JoinConversation("chat-1", conn) // re-join is a no-op

	targets := r.Targets("chat-1", nil)
	assert.Equal(t, []*Conn{conn}, targets)

	r.LeaveConversation("chat-1", conn)
	assert.Empty(t, r.Targets("chat-1", nil))

	// Leaving a room that was never joined must not panic or error.
	r.LeaveConversation("chat-2", conn)
	r.LeaveConversation("chat-1", conn)
}

func TestRooms_TargetsUnionDeduplicates(t *testing.T) {
	r := NewRooms()

	// a views the conversation AND is a participant: in both groups.
	a := testConn("user-a")
	r.JoinPersonal(a)
	r.JoinConversation("chat-1", a)

	// b is a participant with the conversation closed: personal room only.
	b := testConn("user-b")
	r.JoinPersonal(b)

	targets := r.Targets("chat-1", []string{"user-a", "user-b"})
	assert.Len(t, targets, 2, "each connection must appear exactly once")
	assert.ElementsMatch(t, []*Conn{a, b}, targets)
}

func TestRooms_TargetsExcludesNonParticipantsNotInRoom(t *testing.T) {
	r := NewRooms()

	a := testConn("user-a")
	r.JoinPersonal(a)
	r.JoinConversation("chat-1", a)

	c := testConn("user-c")
	r.JoinPersonal(c)

	// c is neither in the conversation room nor a participant.
	targets := r.Targets("chat-1", []string{"user-a", "user-b"})
	assert.Equal(t, []*Conn{a}, targets)
}

func TestRooms_DetachRemovesEverywhere(t *testing.T) {
	r := NewRooms()

	a := testConn("user-a")
	r.JoinPersonal(a)
	r.JoinConversation("chat-1", a)
	r.JoinConversation("chat-2", a)

	r.Detach(a)

	assert.Empty(t, r.Targets("chat-1", []string{"user-a"}))
	assert.Empty(t, r.Targets("chat-2", []string{"user-a"}))

	// Detach is safe to call for an unknown connection.
	r.Detach(testConn("user-z"))
}

func TestRooms_PersonalRoomSurvivesConversationLeave(t *testing.T) {
	r := NewRooms()

	a := testConn("user-a")
	r.JoinPersonal(a)
	r.JoinConversation("chat-1", a)
	r.LeaveConversation("chat-1", a)

	// Still reachable for list-view updates via the personal room.
	assert.Equal(t, []*Conn{a}, r.Targets("chat-1", []string{"user-a"}))
}
