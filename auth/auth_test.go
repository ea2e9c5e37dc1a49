package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	token, err := Sign("secret1", "user1", "alice", time.Hour)
	require.NoError(t, err)

	ident, err := NewJWTVerifier("secret1").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user1", ident.UserID)
	assert.Equal(t, "alice", ident.DisplayName)
}

func TestVerifyRejects(t *testing.T) {
	good, err := Sign("secret1", "user1", "alice", time.Hour)
	require.NoError(t, err)
	expired, err := Sign("secret1", "user1", "alice", -time.Hour)
	require.NoError(t, err)
	noSubject, err := Sign("secret1", "", "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"empty token", "secret1", ""},
		{"garbage", "secret1", "not-a-token"},
		{"wrong secret", "other", good},
		{"expired", "secret1", expired},
		{"no subject", "secret1", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident, err := NewJWTVerifier(tt.secret).Verify(tt.token)
			assert.Nil(t, ident)
			assert.Equal(t, ErrAuthentication, err)
		})
	}
}
