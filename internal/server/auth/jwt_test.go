package auth

import (
	"testing"
	"time"

	"github.com/avolkov/filevault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken("alice", secret, time.Minute)
	require.NoError(t, err)

	userID, err := PrincipalFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestExpiredToken(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken("alice", secret, -time.Minute)
	require.NoError(t, err)

	_, err = PrincipalFromToken(token, secret)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestWrongSecret(t *testing.T) {
	token, err := GenerateToken("alice", []byte("right"), time.Minute)
	require.NoError(t, err)

	_, err = PrincipalFromToken(token, []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGarbageToken(t *testing.T) {
	_, err := PrincipalFromToken("not-a-token", []byte("k"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
