package data

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store-level sentinel errors. Callers map these onto transport errors
// (HTTP status codes, scoped socket errors).
var (
	ErrUserNotFound = errors.New("user not found")
	ErrChatNotFound = errors.New("chat not found")
)

// User maps to the users collection. ExternalID is the identity provider's
// subject and never changes after the first sync.
type User struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	ExternalID string        `bson:"external_id"`
	Name       string        `bson:"name"`
	Email      string        `bson:"email"`
	Avatar     string        `bson:"avatar,omitempty"`
	CreatedAt  time.Time     `bson:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at"`
}

// Profile is the minimal display projection of a user attached to outgoing
// messages and chat listings.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// Profile returns the display projection of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:     u.ID.Hex(),
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
	}
}

// Chat maps to the chats collection: exactly two participants, plus metadata
// about the most recent message for list ordering.
type Chat struct {
	ID            bson.ObjectID   `bson:"_id,omitempty"`
	Participants  []bson.ObjectID `bson:"participants"`
	PairKey       string          `bson:"pair_key"`
	LastMessage   *bson.ObjectID  `bson:"last_message,omitempty"`
	LastMessageAt time.Time       `bson:"last_message_at"`
	CreatedAt     time.Time       `bson:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at"`
}

// HasParticipant reports whether the given user is one of the two
// participants.
func (c *Chat) HasParticipant(userID bson.ObjectID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID. The boolean is
// false when userID is not a participant at all.
func (c *Chat) OtherParticipant(userID bson.ObjectID) (bson.ObjectID, bool) {
	if !c.HasParticipant(userID) {
		return bson.ObjectID{}, false
	}
	for _, p := range c.Participants {
		if p != userID {
			return p, true
		}
	}
	// Degenerate self-chat: both slots hold the same id.
	return userID, true
}

// PairKey derives the canonical key for an unordered participant pair. The
// unique index on this field is what enforces "one chat per pair".
func PairKey(a, b bson.ObjectID) string {
	ha, hb := a.Hex(), b.Hex()
	if ha > hb {
		ha, hb = hb, ha
	}
	return strings.Join([]string{ha, hb}, ":")
}

// Message maps to the messages collection. Messages are immutable; there is
// no update path.
type Message struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	ChatID    bson.ObjectID `bson:"chat_id"`
	SenderID  bson.ObjectID `bson:"sender_id"`
	Text      string        `bson:"text"`
	CreatedAt time.Time     `bson:"created_at"`
}
