// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime knob of the gateway process. Values come from
// environment variables prefixed with CHAT_ (e.g. CHAT_MONGODB_URI); a local
// .env file is loaded first when present.
type Config struct {
	MongoURI     string `envconfig:"MONGODB_URI" required:"true" validate:"required"`
	DatabaseName string `envconfig:"DATABASE_NAME" default:"chat_db"`

	ListenAddr     string   `envconfig:"LISTEN_ADDR" default:":8000"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`

	// JWTSecret is the HS256 key shared with the identity provider that
	// issues session tokens. The gateway only verifies, never issues.
	JWTSecret string `envconfig:"JWT_SECRET" required:"true" validate:"required,min=16"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:""`

	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"10s"`
	WriteTimeout     time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	PongTimeout      time.Duration `envconfig:"PONG_TIMEOUT" default:"60s"`
	SendBufferSize   int           `envconfig:"SEND_BUFFER_SIZE" default:"128" validate:"gt=0"`

	// RateLimitRPM bounds handshake and auth-callback attempts per client.
	RateLimitRPM   int `envconfig:"RATE_LIMIT_RPM" default:"60" validate:"gt=0"`
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST" default:"5" validate:"gt=0"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// Load reads the optional .env file, fills Config from the environment and
// validates it.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set variables directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("chat", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
