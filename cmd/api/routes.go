package main

import (
	"net/http"

	"chat-gateway/internal/gateway"
	"chat-gateway/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// routes assembles the full HTTP surface: health, the versioned CRUD API and
// the websocket handshake endpoint.
func (app *api) routes(gw *gateway.Gateway, allowedOrigins []string, limiter *middleware.LimiterStore) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", app.handleHealth)

	// Credential-heavy endpoints are rate limited per client IP: each
	// handshake and callback costs an external verification.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		r.Post("/api/v1/auth/callback", app.handleAuthCallback)
		r.Get("/ws", gw.HandleWS)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(app.requireAuth)
		r.Get("/auth/me", app.handleMe)
		r.Get("/chats", app.handleListChats)
		r.Post("/chats/with/{participantID}", app.handleCreateChat)
		r.Get("/messages/chat/{chatID}", app.handleListMessages)
		r.Get("/users/all", app.handleListUsers)
	})

	return r
}
