package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret-key-0123", "chat-gateway-test", 5*time.Minute)

	token, expiresAt, err := m.GenerateToken("ext_123", "Ada Lovelace", "ada@example.com", "https://cdn.example.com/ada.png")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ext_123", claims.Subject)
	assert.Equal(t, "Ada Lovelace", claims.Name)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "https://cdn.example.com/ada.png", claims.Avatar)
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager("test-secret-key-0123", "", -time.Minute)

	token, _, err := m.GenerateToken("ext_123", "Ada", "ada@example.com", "")
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestJWTManager_RejectsWrongKey(t *testing.T) {
	issuing := NewJWTManager("issuer-secret-0123456", "", time.Minute)
	verifying := NewJWTManager("another-secret-0123456", "", time.Minute)

	token, _, err := issuing.GenerateToken("ext_123", "Ada", "ada@example.com", "")
	require.NoError(t, err)

	_, err = verifying.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestJWTManager_RejectsForeignIssuer(t *testing.T) {
	issuing := NewJWTManager("shared-secret-0123456", "some-other-service", time.Minute)
	verifying := NewJWTManager("shared-secret-0123456", "chat-gateway", time.Minute)

	token, _, err := issuing.GenerateToken("ext_123", "Ada", "ada@example.com", "")
	require.NoError(t, err)

	_, err = verifying.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestJWTManager_RejectsGarbage(t *testing.T) {
	m := NewJWTManager("test-secret-key-0123", "", time.Minute)

	_, err := m.Verify(context.Background(), "not-a-jwt")
	assert.Error(t, err)
}
