package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chat-gateway/internal/data"
	"chat-gateway/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// In-session failure taxonomy. All of these are scoped to the offending
// connection and never broadcast.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotAParticipant      = errors.New("not a participant of this conversation")
	ErrInvalidMessage       = errors.New("message text must not be empty")
	ErrPersistence          = errors.New("failed to persist message")
)

// ChatStore is the slice of the chats store the coordinator needs.
type ChatStore interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*data.Chat, error)
	SetLastMessage(ctx context.Context, chatID, messageID bson.ObjectID, at time.Time) error
}

// MessageStore is the slice of the messages store the coordinator needs.
type MessageStore interface {
	Insert(ctx context.Context, chatID, senderID bson.ObjectID, text string, at time.Time) (*data.Message, error)
}

// Coordinator is the single path by which a chat message is created. It
// enforces conversation membership, persists the message, keeps the chat's
// last-message metadata consistent and produces the enriched outgoing
// representation for fan-out.
type Coordinator struct {
	chats ChatStore
	msgs  MessageStore
	log   *slog.Logger
}

// NewCoordinator wires a Coordinator over the given stores.
func NewCoordinator(chats ChatStore, msgs MessageStore, log *slog.Logger) *Coordinator {
	return &Coordinator{chats: chats, msgs: msgs, log: log}
}

// Authorize loads the conversation and checks that the user is one of its
// two participants. Shared by the send path and the join-conversation event.
func (c *Coordinator) Authorize(ctx context.Context, user *data.User, conversationID string) (*data.Chat, error) {
	chatID, err := bson.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}

	chat, err := c.chats.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, data.ErrChatNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !chat.HasParticipant(user.ID) {
		return nil, ErrNotAParticipant
	}
	return chat, nil
}

// Send validates and persists one message from sender into the conversation.
// On success it returns the enriched payload together with the chat, whose
// participant list drives personal-room fan-out. The broadcast never happens
// before this returns: persisted-before-broadcast.
func (c *Coordinator) Send(ctx context.Context, sender *data.User, conversationID, text string) (*MessagePayload, *data.Chat, error) {
	// Membership first: the sender identity comes from the authenticated
	// connection, never from the client payload.
	chat, err := c.Authorize(ctx, sender, conversationID)
	if err != nil {
		return nil, nil, err
	}

	trimmed := normalize.Text(text)
	if trimmed == "" {
		return nil, nil, ErrInvalidMessage
	}

	msg, err := c.msgs.Insert(ctx, chat.ID, sender.ID, trimmed, time.Now().UTC())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Metadata update is not atomic with the write. If it fails the message
	// is still retrievable through history, so log and continue rather than
	// surface a failure for an already-persisted message.
	if err := c.chats.SetLastMessage(ctx, chat.ID, msg.ID, msg.CreatedAt); err != nil {
		c.log.Warn("last-message metadata update failed",
			"chat_id", chat.ID.Hex(),
			"message_id", msg.ID.Hex(),
			"error", err)
	}

	payload := &MessagePayload{
		ID:             msg.ID.Hex(),
		ConversationID: chat.ID.Hex(),
		Sender:         sender.Profile(),
		Text:           msg.Text,
		CreatedAt:      msg.CreatedAt,
	}
	return payload, chat, nil
}
