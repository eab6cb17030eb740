// Package gateway implements the realtime messaging core: authenticated
// websocket sessions, in-memory presence, room-based fan-out and the message
// persistence path.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/data"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const maxFrameSize = 1 << 20 // 1MB inbound payload cap

// IdentityResolver authenticates a raw bearer credential into an internal
// user. Implemented by auth.Resolver.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*data.User, error)
}

// Options carries the gateway's runtime knobs.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PongTimeout      time.Duration
	SendBufferSize   int
	AllowedOrigins   []string
}

// Gateway owns the per-connection event loop: it authenticates handshakes,
// tracks presence, dispatches inbound events to handlers and translates
// coordinator and router outputs into outbound events.
type Gateway struct {
	resolver    IdentityResolver
	presence    *Tracker
	rooms       *Rooms
	coordinator *Coordinator
	upgrader    websocket.Upgrader
	validate    *validator.Validate
	log         *slog.Logger
	opts        Options
}

// New wires a Gateway from its collaborators.
func New(resolver IdentityResolver, presence *Tracker, rooms *Rooms, coordinator *Coordinator, log *slog.Logger, opts Options) *Gateway {
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	allowAll := false
	for _, origin := range opts.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return &Gateway{
		resolver:    resolver,
		presence:    presence,
		rooms:       rooms,
		coordinator: coordinator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		validate: validator.New(),
		log:      log,
		opts:     opts,
	}
}

// Presence exposes the tracker for read-only queries by the HTTP surface.
func (g *Gateway) Presence() *Tracker {
	return g.presence
}

// HandleWS is the websocket handshake endpoint. A missing credential is
// rejected before the upgrade, so no connection object is ever created; a
// credential that fails verification or resolves to no user closes the
// freshly upgraded socket with an auth close code and no domain payload.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	credential := bearerCredential(r)
	if credential == "" {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		return
	}

	conn := NewConn(ws, g.opts.SendBufferSize, g.opts.WriteTimeout, g.opts.PongTimeout)

	// Bound the authenticating phase: a verification or lookup that never
	// resolves must not hold the connection open indefinitely.
	authCtx, cancel := context.WithTimeout(r.Context(), g.opts.HandshakeTimeout)
	user, err := g.resolver.Resolve(authCtx, credential)
	cancel()
	if err != nil {
		reason := "unauthenticated"
		if errors.Is(err, auth.ErrIdentityNotFound) {
			reason = "identity not found"
		}
		g.log.Debug("handshake rejected", "reason", reason, "error", err)
		conn.Close(closeUnauthenticated, reason)
		return
	}

	conn.Activate(user.ID.Hex())
	conn.Start()
	g.log.Info("connection established", "user_id", conn.UserID, "conn_id", conn.ID)

	// The snapshot is captured and delivered while the connection registers,
	// under the tracker's lock: it excludes the connecting session (unless
	// the identity was already online elsewhere), it is the first outbound
	// event on the socket, and no peer can slip between snapshot and
	// registration unobserved.
	replaced := g.presence.Register(conn, func(online []string) {
		g.emit(conn, EventOnlineSnapshot, SnapshotPayload{Identities: online})
	})
	if replaced != nil {
		// Single-session presence: last writer wins. The replaced socket's
		// own disconnect path will clean up its rooms; its guarded
		// unregister cannot drop this connection's entry.
		replaced.Close(closeSessionReplaced, "session replaced")
	}
	g.rooms.JoinPersonal(conn)
	g.broadcastPresence(EventPresenceOnline, conn.UserID, conn)

	g.readLoop(r.Context(), conn, user)
}

// readLoop pumps inbound frames until the client disconnects or the
// transport fails, then runs the single cleanup pass for this connection.
func (g *Gateway) readLoop(ctx context.Context, conn *Conn, user *data.User) {
	defer func() {
		g.rooms.Detach(conn)
		wentOffline := g.presence.Unregister(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
		if wentOffline {
			g.broadcastPresence(EventPresenceOffline, conn.UserID, conn)
		}
		g.log.Info("connection closed", "user_id", conn.UserID, "conn_id", conn.ID)
	}()

	conn.ws.SetReadLimit(maxFrameSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(g.opts.PongTimeout))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(g.opts.PongTimeout))
	})

	for {
		_, frame, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		if conn.State() != StateActive {
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			g.scopedError(conn, "invalid event frame")
			continue
		}
		g.dispatch(ctx, conn, user, envelope)
	}
}

// dispatch binds the fixed set of recognized inbound events to handlers.
func (g *Gateway) dispatch(ctx context.Context, conn *Conn, user *data.User, envelope Envelope) {
	switch envelope.Event {
	case EventJoinConversation:
		g.handleJoin(ctx, conn, user, envelope.Data)
	case EventLeaveConversation:
		g.handleLeave(conn, envelope.Data)
	case EventSendMessage:
		g.handleSend(ctx, conn, user, envelope.Data)
	case EventTyping:
		// Reserved: accepted, deliberately a no-op.
	default:
		g.scopedError(conn, "unknown event")
	}
}

func (g *Gateway) handleJoin(ctx context.Context, conn *Conn, user *data.User, raw json.RawMessage) {
	var ref ConversationRef
	if err := g.decode(raw, &ref); err != nil {
		g.scopedError(conn, "conversationId is required")
		return
	}

	// Joining is membership-checked so a conversation room only ever
	// contains its two participants' connections.
	if _, err := g.coordinator.Authorize(ctx, user, ref.ConversationID); err != nil {
		g.scopedError(conn, scopedMessage(err))
		return
	}
	g.rooms.JoinConversation(ref.ConversationID, conn)
}

func (g *Gateway) handleLeave(conn *Conn, raw json.RawMessage) {
	var ref ConversationRef
	if err := g.decode(raw, &ref); err != nil {
		g.scopedError(conn, "conversationId is required")
		return
	}
	g.rooms.LeaveConversation(ref.ConversationID, conn)
}

func (g *Gateway) handleSend(ctx context.Context, conn *Conn, user *data.User, raw json.RawMessage) {
	var payload SendMessagePayload
	if err := g.decode(raw, &payload); err != nil {
		g.scopedError(conn, "conversationId is required")
		return
	}

	message, chat, err := g.coordinator.Send(ctx, user, payload.ConversationID, payload.Text)
	if err != nil {
		g.scopedError(conn, scopedMessage(err))
		return
	}

	frame, err := encodeEvent(EventNewMessage, message)
	if err != nil {
		g.scopedError(conn, "failed to send message")
		return
	}

	// Fan out once per physical connection: the union of the conversation
	// room and both participants' personal rooms, deduplicated by handle.
	participants := lo.Map(chat.Participants, func(id bson.ObjectID, _ int) string {
		return id.Hex()
	})
	for _, target := range g.rooms.Targets(message.ConversationID, participants) {
		if err := target.Send(frame); err != nil {
			g.log.Debug("delivery failed", "conn_id", target.ID, "error", err)
		}
	}
}

// broadcastPresence delivers a presence event to every active connection
// except the one that caused it.
func (g *Gateway) broadcastPresence(event, identity string, except *Conn) {
	frame, err := encodeEvent(event, PresencePayload{Identity: identity})
	if err != nil {
		return
	}
	for _, target := range g.presence.Connections() {
		if target == except {
			continue
		}
		_ = target.Send(frame)
	}
}

// emit sends a single event to one connection.
func (g *Gateway) emit(conn *Conn, event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return
	}
	_ = conn.Send(frame)
}

// scopedError delivers an error event to the offending connection only.
func (g *Gateway) scopedError(conn *Conn, message string) {
	g.emit(conn, EventError, ErrorPayload{Message: message})
}

func (g *Gateway) decode(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return err
	}
	return g.validate.Struct(into)
}

// scopedMessage maps an in-session failure to its client-facing text without
// leaking storage internals.
func scopedMessage(err error) string {
	switch {
	case errors.Is(err, ErrConversationNotFound):
		return ErrConversationNotFound.Error()
	case errors.Is(err, ErrNotAParticipant):
		return ErrNotAParticipant.Error()
	case errors.Is(err, ErrInvalidMessage):
		return ErrInvalidMessage.Error()
	default:
		return "failed to send message"
	}
}

// bearerCredential extracts the session credential from the handshake:
// Authorization header first, then the token query parameter (browser
// websocket clients cannot set headers).
func bearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > len("Bearer ") && header[:len("Bearer ")] == "Bearer " {
		return header[len("Bearer "):]
	}
	return r.URL.Query().Get("token")
}
