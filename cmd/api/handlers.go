package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/data"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store interfaces consumed by the HTTP surface; satisfied by the concrete
// stores in internal/data and by fakes in tests.
type usersStore interface {
	SyncFromProvider(ctx context.Context, externalID, name, email, avatar string) (*data.User, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
	ListOthers(ctx context.Context, selfID bson.ObjectID, limit int64) ([]*data.User, error)
}

type chatsStore interface {
	GetOrCreate(ctx context.Context, a, b bson.ObjectID) (*data.Chat, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*data.Chat, error)
	ListForUser(ctx context.Context, userID bson.ObjectID) ([]*data.Chat, error)
}

type messagesStore interface {
	ListByChat(ctx context.Context, chatID bson.ObjectID) ([]*data.Message, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*data.Message, error)
}

type identityResolver interface {
	Resolve(ctx context.Context, credential string) (*data.User, error)
	VerifyOnly(ctx context.Context, credential string) (*auth.Claims, error)
}

// api bundles the request/response CRUD surface around the gateway.
type api struct {
	users    usersStore
	chats    chatsStore
	msgs     messagesStore
	resolver identityResolver
	log      *slog.Logger
}

// messageView is the JSON shape of a message in history and previews.
type messageView struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Sender         data.Profile `json:"sender"`
	Text           string       `json:"text"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// chatView is the JSON shape of a chat-list entry: the chat seen from the
// caller's side, with the other participant's profile attached.
type chatView struct {
	ID            string        `json:"id"`
	Participant   *data.Profile `json:"participant"`
	LastMessage   *messageView  `json:"lastMessage"`
	LastMessageAt time.Time     `json:"lastMessageAt"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func (app *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	app.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAuthCallback syncs the provider identity into an internal user. The
// credential is verified but, unlike every other endpoint, no linked account
// is required yet: this is where the account gets created on first contact.
func (app *api) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	credential := bearerToken(r)
	if credential == "" {
		app.writeError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}

	claims, err := app.resolver.VerifyOnly(r.Context(), credential)
	if err != nil {
		app.writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if claims.Email == "" || claims.Name == "" {
		app.writeError(w, http.StatusBadRequest, "token is missing profile claims")
		return
	}

	user, err := app.users.SyncFromProvider(r.Context(), claims.Subject, claims.Name, claims.Email, claims.Avatar)
	if err != nil {
		app.log.Error("provider sync failed", "external_id", claims.Subject, "error", err)
		app.writeError(w, http.StatusInternalServerError, "failed to sync user")
		return
	}

	app.writeJSON(w, http.StatusOK, user.Profile())
}

func (app *api) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		app.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	app.writeJSON(w, http.StatusOK, user.Profile())
}

// handleListChats returns the caller's conversations sorted by most recent
// activity, each enriched with the other participant and a last-message
// preview.
func (app *api) handleListChats(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		app.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	chats, err := app.chats.ListForUser(r.Context(), user.ID)
	if err != nil {
		app.log.Error("list chats failed", "user_id", user.ID.Hex(), "error", err)
		app.writeError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}

	views := make([]chatView, 0, len(chats))
	for _, chat := range chats {
		views = append(views, app.chatViewFor(r.Context(), user, chat))
	}
	app.writeJSON(w, http.StatusOK, views)
}

// handleCreateChat gets or lazily creates the conversation between the
// caller and the named participant. This is the only creation path for
// conversations; the realtime send path fails closed when none exists.
func (app *api) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		app.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	participantID, err := bson.ObjectIDFromHex(chi.URLParam(r, "participantID"))
	if err != nil {
		app.writeError(w, http.StatusBadRequest, "invalid participant id")
		return
	}
	if participantID == user.ID {
		app.writeError(w, http.StatusBadRequest, "cannot open a chat with yourself")
		return
	}
	if _, err := app.users.FindByID(r.Context(), participantID); err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			app.writeError(w, http.StatusNotFound, "participant not found")
			return
		}
		app.log.Error("participant lookup failed", "error", err)
		app.writeError(w, http.StatusInternalServerError, "failed to open chat")
		return
	}

	chat, err := app.chats.GetOrCreate(r.Context(), user.ID, participantID)
	if err != nil {
		app.log.Error("get-or-create chat failed", "error", err)
		app.writeError(w, http.StatusInternalServerError, "failed to open chat")
		return
	}

	app.writeJSON(w, http.StatusOK, app.chatViewFor(r.Context(), user, chat))
}

// handleListMessages returns a conversation's history, oldest first, with
// sender profiles attached. Non-participants get the same 404 as a missing
// chat so membership is not probeable.
func (app *api) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		app.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	chatID, err := bson.ObjectIDFromHex(chi.URLParam(r, "chatID"))
	if err != nil {
		app.writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	chat, err := app.chats.FindByID(r.Context(), chatID)
	if err != nil && !errors.Is(err, data.ErrChatNotFound) {
		app.log.Error("chat lookup failed", "error", err)
		app.writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if err != nil || !chat.HasParticipant(user.ID) {
		app.writeError(w, http.StatusNotFound, "chat not found")
		return
	}

	messages, err := app.msgs.ListByChat(r.Context(), chatID)
	if err != nil {
		app.log.Error("list messages failed", "chat_id", chatID.Hex(), "error", err)
		app.writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	profiles := app.participantProfiles(r.Context(), chat)
	views := lo.Map(messages, func(m *data.Message, _ int) messageView {
		return messageView{
			ID:             m.ID.Hex(),
			ConversationID: m.ChatID.Hex(),
			Sender:         profiles[m.SenderID],
			Text:           m.Text,
			CreatedAt:      m.CreatedAt,
		}
	})
	app.writeJSON(w, http.StatusOK, views)
}

// handleListUsers returns up to 50 users excluding the caller.
func (app *api) handleListUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		app.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	users, err := app.users.ListOthers(r.Context(), user.ID, 50)
	if err != nil {
		app.log.Error("list users failed", "error", err)
		app.writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	profiles := lo.Map(users, func(u *data.User, _ int) data.Profile {
		return u.Profile()
	})
	app.writeJSON(w, http.StatusOK, profiles)
}

// chatViewFor assembles the caller-side view of a chat. Enrichment is
// best-effort: a missing counterpart or preview degrades to null rather than
// failing the listing.
func (app *api) chatViewFor(ctx context.Context, user *data.User, chat *data.Chat) chatView {
	view := chatView{
		ID:            chat.ID.Hex(),
		LastMessageAt: chat.LastMessageAt,
		CreatedAt:     chat.CreatedAt,
	}

	if otherID, ok := chat.OtherParticipant(user.ID); ok {
		if other, err := app.users.FindByID(ctx, otherID); err == nil {
			profile := other.Profile()
			view.Participant = &profile
		}
	}

	if chat.LastMessage != nil {
		if msg, err := app.msgs.FindByID(ctx, *chat.LastMessage); err == nil {
			sender := data.Profile{ID: msg.SenderID.Hex()}
			if msg.SenderID == user.ID {
				sender = user.Profile()
			} else if view.Participant != nil && view.Participant.ID == msg.SenderID.Hex() {
				sender = *view.Participant
			}
			view.LastMessage = &messageView{
				ID:             msg.ID.Hex(),
				ConversationID: msg.ChatID.Hex(),
				Sender:         sender,
				Text:           msg.Text,
				CreatedAt:      msg.CreatedAt,
			}
		}
	}
	return view
}

// participantProfiles loads display profiles for both chat participants,
// keyed by id, falling back to a bare id for deleted accounts.
func (app *api) participantProfiles(ctx context.Context, chat *data.Chat) map[bson.ObjectID]data.Profile {
	profiles := make(map[bson.ObjectID]data.Profile, len(chat.Participants))
	for _, id := range chat.Participants {
		if u, err := app.users.FindByID(ctx, id); err == nil {
			profiles[id] = u.Profile()
		} else {
			profiles[id] = data.Profile{ID: id.Hex()}
		}
	}
	return profiles
}

func (app *api) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		app.log.Error("response encoding failed", "error", err)
	}
}

func (app *api) writeError(w http.ResponseWriter, status int, message string) {
	app.writeJSON(w, status, map[string]string{"message": message})
}
