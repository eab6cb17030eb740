package gateway

import (
	"encoding/json"
	"time"

	"chat-gateway/internal/data"
)

// Inbound event names recognized by the dispatcher.
const (
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventSendMessage       = "send-message"
	EventTyping            = "typing"
)

// Outbound event names.
const (
	EventOnlineSnapshot  = "online-snapshot"
	EventPresenceOnline  = "presence-online"
	EventPresenceOffline = "presence-offline"
	EventNewMessage      = "new-message"
	EventError           = "error"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event string          `json:"event" validate:"required"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConversationRef is the payload of join-conversation and leave-conversation.
type ConversationRef struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

// SendMessagePayload is the payload of send-message. Text is deliberately
// unconstrained here: emptiness after trimming is the coordinator's call, so
// "" and "   " fail identically.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Text           string `json:"text"`
}

// SnapshotPayload carries the full set of online identities delivered to a
// freshly connected client.
type SnapshotPayload struct {
	Identities []string `json:"identities"`
}

// PresencePayload names the identity that just came online or went offline.
type PresencePayload struct {
	Identity string `json:"identity"`
}

// MessagePayload is the enriched outgoing representation of a persisted
// message.
type MessagePayload struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Sender         data.Profile `json:"sender"`
	Text           string       `json:"text"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// ErrorPayload is a scoped error, delivered only to the connection that
// caused it.
type ErrorPayload struct {
	Message string `json:"message"`
}

// encodeEvent marshals an outbound event into its wire frame.
func encodeEvent(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
