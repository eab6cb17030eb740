package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/config"
	"chat-gateway/internal/data"
	"chat-gateway/internal/db"
	"chat-gateway/internal/gateway"
	"chat-gateway/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns the server lifecycle, so deferred
// cleanup executes on every exit path and main stays trivially testable.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database.
	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.DatabaseName)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer func() {
		log.Info("closing MongoDB connection")
		_ = dbClient.Close(context.Background())
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	// Stores and identity resolution.
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	chatsStore := data.NewChatsStore(dbClient.ChatsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, 24*time.Hour)
	resolver := auth.NewResolver(jwtMgr, usersStore)

	// Realtime core.
	coordinator := gateway.NewCoordinator(chatsStore, msgsStore, log)
	gw := gateway.New(resolver, gateway.NewTracker(), gateway.NewRooms(), coordinator, log, gateway.Options{
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		PongTimeout:      cfg.PongTimeout,
		SendBufferSize:   cfg.SendBufferSize,
		AllowedOrigins:   cfg.AllowedOrigins,
	})

	// HTTP surface.
	limiter := middleware.NewLimiterStore(cfg.RateLimitRPM, cfg.RateLimitBurst, time.Minute)
	defer limiter.Stop()

	app := &api{
		users:    usersStore,
		chats:    chatsStore,
		msgs:     msgsStore,
		resolver: resolver,
		log:      log,
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.routes(gw, cfg.AllowedOrigins, limiter),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("gateway listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("gateway stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
