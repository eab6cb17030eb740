// Package data provides DB models and stores.
package data

import (
	"context"
	"time"

	"chat-gateway/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersStore performs user DB operations.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// SyncFromProvider upserts a user from verified identity-provider claims.
// The document is created on the first sync and its profile fields are
// refreshed on every subsequent one; external_id itself is immutable.
func (u *UsersStore) SyncFromProvider(ctx context.Context, externalID, name, email, avatar string) (*User, error) {
	now := time.Now().UTC()

	filter := bson.M{"external_id": externalID}
	update := bson.M{
		"$set": bson.M{
			"name":       name,
			"email":      normalize.Email(email),
			"avatar":     avatar,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"external_id": externalID,
			"created_at":  now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user User
	if err := u.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByExternalID looks up the internal user linked to a provider identity.
func (u *UsersStore) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"external_id": externalID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByID finds a user by ObjectID.
func (u *UsersStore) FindByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListOthers returns up to limit users excluding the given one, for the
// "start a chat" picker.
func (u *UsersStore) ListOthers(ctx context.Context, selfID bson.ObjectID, limit int64) ([]*User, error) {
	opts := options.Find().
		SetSort(bson.M{"name": 1}).
		SetLimit(limit)

	cursor, err := u.coll.Find(ctx, bson.M{"_id": bson.M{"$ne": selfID}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
