package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, expiresAt, err := svc.GenerateAccessToken("user-1", "Alice", []string{"warehouse"})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	a, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", a.ID)
	assert.Equal(t, "Alice", a.Name)
	assert.Equal(t, []string{"warehouse"}, a.Roles)
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))
	other := NewJWTService(DefaultJWTConfig("other-secret"))

	token, _, err := svc.GenerateAccessToken("user-1", "", nil)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	cfg := DefaultJWTConfig("test-secret")
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg)

	token, _, err := svc.GenerateAccessToken("user-1", "", nil)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
