package gateway

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is the lifecycle position of a connection. The only transitions are
// Connecting → Authenticating → Active → Closed; authentication failure jumps
// straight to Closed without ever entering Active.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

// Close codes used by the gateway when it terminates a session.
const (
	closeUnauthenticated = 4401
	closeSessionReplaced = 4409
)

// Conn wraps a websocket and coordinates outbound writes through a buffered
// channel drained by a single write pump, so fan-out paths can enqueue
// concurrently without interleaving frames.
type Conn struct {
	// ID identifies this physical connection; delivery deduplication keys
	// on it, not on the identity.
	ID string

	// UserID is the internal identity bound at authentication time. It is
	// immutable for the lifetime of the connection.
	UserID string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	done  chan struct{}
	state atomic.Int32

	writeTimeout time.Duration
	pingPeriod   time.Duration
}

// NewConn constructs a Conn in the Authenticating state. The write pump is
// not started until Start is called.
func NewConn(ws *websocket.Conn, bufferSize int, writeTimeout, pongTimeout time.Duration) *Conn {
	c := &Conn{
		ID:           uuid.NewString(),
		ws:           ws,
		send:         make(chan []byte, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingPeriod:   pongTimeout * 9 / 10,
	}
	c.state.Store(int32(StateAuthenticating))
	return c
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Activate binds the resolved identity and moves the connection to Active.
func (c *Conn) Activate(userID string) {
	c.UserID = userID
	c.state.Store(int32(StateActive))
}

// Start launches the write pump. Call exactly once per connection.
func (c *Conn) Start() {
	go c.writeLoop()
}

// Send enqueues a frame for delivery. A closed connection rejects the frame;
// a full buffer means the client cannot keep up, so the connection is closed
// to keep backpressure bounded.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	case c.send <- frame:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("send buffer full")
	}
}

// Close transitions to Closed, stops the write pump and tears down the
// websocket. Safe to call multiple times; only the first call acts.
func (c *Conn) Close(code int, reason string) {
	c.once.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
		deadline := time.Now().Add(c.writeTimeout)
		_ = c.ws.SetWriteDeadline(deadline)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Conn) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
