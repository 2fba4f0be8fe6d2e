package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

func TestAuthService_Token(t *testing.T) {
	user := &entity.User{ID: 42, Username: "alice"}

	t.Run("Verify_Success", func(t *testing.T) {
		authService := NewAuthService("secret", time.Hour)

		// Given: a freshly issued token
		token, err := authService.GenerateToken(user)
		require.NoError(t, err)

		// When: it is verified
		identity, err := authService.Verify(token)

		// Then: the user identity is returned
		require.NoError(t, err)
		assert.Equal(t, "42", identity)
	})

	t.Run("Verify_WrongSecret", func(t *testing.T) {
		token, err := NewAuthService("secret", time.Hour).GenerateToken(user)
		require.NoError(t, err)

		// When: a service with another key verifies it
		_, err = NewAuthService("other", time.Hour).Verify(token)

		// Then: the token is rejected
		require.ErrorIs(t, err, apperror.ErrInvalidToken)
	})

	t.Run("Verify_Expired", func(t *testing.T) {
		authService := &authServiceImpl{
			secretKey: []byte("secret"),
			ttl:       time.Minute,
			now:       func() time.Time { return time.Now().Add(-time.Hour) },
		}

		// Given: a token that expired long ago
		token, err := authService.GenerateToken(user)
		require.NoError(t, err)

		// When: it is verified with the real clock
		_, err = NewAuthService("secret", time.Minute).Verify(token)

		// Then: the token is rejected
		require.ErrorIs(t, err, apperror.ErrInvalidToken)
	})

	t.Run("Verify_Garbage", func(t *testing.T) {
		authService := NewAuthService("secret", time.Hour)

		_, err := authService.Verify("not-a-token")
		require.ErrorIs(t, err, apperror.ErrInvalidToken)

		_, err = authService.Verify("")
		require.ErrorIs(t, err, apperror.ErrInvalidToken)
	})
}

func TestAuthService_Password(t *testing.T) {
	authService := NewAuthService("secret", time.Hour)

	// Given: a hashed password
	hash, err := authService.HashPassword("p@ss")
	require.NoError(t, err)
	assert.NotEqual(t, "p@ss", hash)

	// Then: the right password matches and a wrong one does not
	require.NoError(t, authService.ComparePassword(hash, "p@ss"))
	require.ErrorIs(t, authService.ComparePassword(hash, "nope"), apperror.ErrInvalidCredentials)
}
