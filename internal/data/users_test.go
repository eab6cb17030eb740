package data

import (
	"context"
	"errors"
	"os"
	"testing"

	"chat-gateway/internal/db"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func setupDB(t *testing.T) *db.Client {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri, "chat_gateway_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}

	_ = c.UsersCollection().Drop(ctx)
	_ = c.ChatsCollection().Drop(ctx)
	_ = c.MessagesCollection().Drop(ctx)

	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	return c
}

func TestUsersSyncFromProvider(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	created, err := users.SyncFromProvider(ctx, "ext-1", "Ada", "Ada@Example.com", "https://img.test/ada.png")
	if err != nil {
		t.Fatalf("SyncFromProvider failed: %v", err)
	}
	if created.ID.IsZero() {
		t.Fatal("expected generated id")
	}
	if created.Email != "ada@example.com" {
		t.Errorf("expected normalized email, got %q", created.Email)
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	// Second sync for the same subject updates profile fields in place.
	updated, err := users.SyncFromProvider(ctx, "ext-1", "Ada Lovelace", "ada@example.com", "")
	if err != nil {
		t.Fatalf("second SyncFromProvider failed: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("expected same document, got %s and %s", created.ID.Hex(), updated.ID.Hex())
	}
	if updated.Name != "Ada Lovelace" {
		t.Errorf("expected refreshed name, got %q", updated.Name)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("created_at must not change on re-sync")
	}
}

func TestUsersFindByExternalID(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	created, err := users.SyncFromProvider(ctx, "ext-2", "Grace", "grace@example.com", "")
	if err != nil {
		t.Fatalf("SyncFromProvider failed: %v", err)
	}

	got, err := users.FindByExternalID(ctx, "ext-2")
	if err != nil {
		t.Fatalf("FindByExternalID failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("expected %s, got %s", created.ID.Hex(), got.ID.Hex())
	}

	if _, err := users.FindByExternalID(ctx, "no-such-subject"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUsersFindByID(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	created, err := users.SyncFromProvider(ctx, "ext-3", "Linus", "linus@example.com", "")
	if err != nil {
		t.Fatalf("SyncFromProvider failed: %v", err)
	}

	got, err := users.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.ExternalID != "ext-3" {
		t.Errorf("expected external id ext-3, got %q", got.ExternalID)
	}

	if _, err := users.FindByID(ctx, bson.NewObjectID()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUsersListOthers(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	self, err := users.SyncFromProvider(ctx, "ext-self", "Self", "self@example.com", "")
	if err != nil {
		t.Fatalf("SyncFromProvider failed: %v", err)
	}
	if _, err := users.SyncFromProvider(ctx, "ext-a", "Alice", "alice@example.com", ""); err != nil {
		t.Fatalf("SyncFromProvider failed: %v", err)
	}
	if _, err := users.SyncFromProvider(ctx, "ext-b", "Bob", "bob@example.com", ""); err != nil {
		t.Fatalf("SyncFromProvider failed: %v", err)
	}

	others, err := users.ListOthers(ctx, self.ID, 50)
	if err != nil {
		t.Fatalf("ListOthers failed: %v", err)
	}
	if len(others) != 2 {
		t.Fatalf("expected 2 users, got %d", len(others))
	}
	for _, u := range others {
		if u.ID == self.ID {
			t.Error("ListOthers must exclude the requesting user")
		}
	}
	if others[0].Name != "Alice" || others[1].Name != "Bob" {
		t.Errorf("expected name-sorted order, got %q then %q", others[0].Name, others[1].Name)
	}
}
