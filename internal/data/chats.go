package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatsStore performs chat DB operations.
type ChatsStore struct {
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using the provided collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// GetOrCreate returns the chat for the unordered pair (a, b), creating it
// lazily if none exists. Two concurrent creators race on the unique pair_key
// index; the loser re-fetches the winner's document.
func (c *ChatsStore) GetOrCreate(ctx context.Context, a, b bson.ObjectID) (*Chat, error) {
	key := PairKey(a, b)

	var chat Chat
	err := c.coll.FindOne(ctx, bson.M{"pair_key": key}).Decode(&chat)
	if err == nil {
		return &chat, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	now := time.Now().UTC()
	chat = Chat{
		Participants:  []bson.ObjectID{a, b},
		PairKey:       key,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result, err := c.coll.InsertOne(ctx, &chat)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the creation race; the pair's chat now exists.
			var existing Chat
			if ferr := c.coll.FindOne(ctx, bson.M{"pair_key": key}).Decode(&existing); ferr != nil {
				return nil, ferr
			}
			return &existing, nil
		}
		return nil, err
	}

	chat.ID = result.InsertedID.(bson.ObjectID)
	return &chat, nil
}

// FindByID finds a chat by ObjectID.
func (c *ChatsStore) FindByID(ctx context.Context, id bson.ObjectID) (*Chat, error) {
	var chat Chat
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// ListForUser returns all chats the user participates in, most recently
// active first.
func (c *ChatsStore) ListForUser(ctx context.Context, userID bson.ObjectID) ([]*Chat, error) {
	opts := options.Find().SetSort(bson.M{"last_message_at": -1})

	cursor, err := c.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chats []*Chat
	if err = cursor.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// SetLastMessage records the most recent message on the chat. The filter
// keeps last_message_at monotonically non-decreasing: a stale update (older
// than what is already recorded) matches nothing and is silently dropped.
func (c *ChatsStore) SetLastMessage(ctx context.Context, chatID, messageID bson.ObjectID, at time.Time) error {
	filter := bson.M{
		"_id":             chatID,
		"last_message_at": bson.M{"$lte": at},
	}
	update := bson.M{
		"$set": bson.M{
			"last_message":    messageID,
			"last_message_at": at,
			"updated_at":      time.Now().UTC(),
		},
	}

	_, err := c.coll.UpdateOne(ctx, filter, update)
	return err
}
