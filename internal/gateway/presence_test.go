package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConn(userID string) *Conn {
	return &Conn{ID: "conn-" + userID, UserID: userID, done: make(chan struct{}), send: make(chan []byte, 1)}
}

func TestTracker_RegisterAndSnapshot(t *testing.T) {
	tr := NewTracker()

	assert.Empty(t, tr.Snapshot())

	a := testConn("user-a")
	b := testConn("user-b")
	assert.Nil(t, tr.Register(a, nil))
	assert.Nil(t, tr.Register(b, nil))

	assert.True(t, tr.IsOnline("user-a"))
	assert.True(t, tr.IsOnline("user-b"))
	assert.ElementsMatch(t, []string{"user-a", "user-b"}, tr.Snapshot())
	assert.Len(t, tr.Connections(), 2)
}

func TestTracker_SingleSessionReplacement(t *testing.T) {
	tr := NewTracker()

	first := testConn("user-a")
	second := &Conn{ID: "conn-user-a-2", UserID: "user-a"}

	assert.Nil(t, tr.Register(first, nil))
	replaced := tr.Register(second, nil)
	assert.Same(t, first, replaced)

	// Still exactly one online entry for the identity.
	assert.Equal(t, []string{"user-a"}, tr.Snapshot())
}

func TestTracker_GuardedUnregister(t *testing.T) {
	tr := NewTracker()

	first := testConn("user-a")
	second := &Conn{ID: "conn-user-a-2", UserID: "user-a"}

	tr.Register(first, nil)
	tr.Register(second, nil)

	// The replaced connection disconnecting must not drop the successor.
	assert.False(t, tr.Unregister(first))
	assert.True(t, tr.IsOnline("user-a"))

	// The current connection disconnecting takes the identity offline.
	assert.True(t, tr.Unregister(second))
	assert.False(t, tr.IsOnline("user-a"))

	// Unregistering twice is a no-op.
	assert.False(t, tr.Unregister(second))
}

func TestTracker_ReconnectAfterDisconnect(t *testing.T) {
	tr := NewTracker()

	first := testConn("user-a")
	tr.Register(first, nil)
	assert.True(t, tr.Unregister(first))

	again := &Conn{ID: "conn-user-a-2", UserID: "user-a"}
	assert.Nil(t, tr.Register(again, nil))
	assert.True(t, tr.IsOnline("user-a"))
}

func TestTracker_WelcomeSeesPreRegistrationState(t *testing.T) {
	tr := NewTracker()
	tr.Register(testConn("user-a"), nil)

	// The welcome callback observes exactly who was online the instant
	// before the new connection became visible, under the same lock.
	var snapshot []string
	called := false
	tr.Register(testConn("user-b"), func(online []string) {
		called = true
		snapshot = online
	})

	assert.True(t, called)
	assert.Equal(t, []string{"user-a"}, snapshot)
	assert.ElementsMatch(t, []string{"user-a", "user-b"}, tr.Snapshot())
}

func TestTracker_WelcomeOnReplacementIncludesOwnIdentity(t *testing.T) {
	tr := NewTracker()
	tr.Register(testConn("user-a"), nil)

	// A reconnecting identity was already online through the session it is
	// replacing, so its own id shows up in the pre-registration state.
	var snapshot []string
	replaced := tr.Register(&Conn{ID: "conn-user-a-2", UserID: "user-a"}, func(online []string) {
		snapshot = online
	})

	assert.NotNil(t, replaced)
	assert.Equal(t, []string{"user-a"}, snapshot)
}
