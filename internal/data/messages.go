package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// Insert persists a message and returns the saved record with its generated
// id. Text is expected to be validated and trimmed by the caller; this is
// the only write path for messages.
func (m *MessagesStore) Insert(ctx context.Context, chatID, senderID bson.ObjectID, text string, at time.Time) (*Message, error) {
	msg := &Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: at,
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}

	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// ListByChat returns a chat's messages ordered oldest first, served by the
// (chat_id, created_at) index.
func (m *MessagesStore) ListByChat(ctx context.Context, chatID bson.ObjectID) ([]*Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := m.coll.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// FindByID loads a single message, used to populate a chat's last-message
// preview in listings.
func (m *MessagesStore) FindByID(ctx context.Context, id bson.ObjectID) (*Message, error) {
	var msg Message
	if err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
