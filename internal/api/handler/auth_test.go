package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwt "github.com/golang-jwt/jwt/v5"

	"peerlink/backend/internal/config"
)

func newTestHandler(secret string) *Handler {
	return &Handler{Cfg: config.Config{JWTSecret: secret, JWTTTL: time.Hour}}
}

func TestTokenRoundTrip(t *testing.T) {
	h := newTestHandler("test-secret")

	token, err := h.generateJWT("session-123")
	require.NoError(t, err)

	sessionID, err := h.validateSession(token)
	require.NoError(t, err)
	assert.Equal(t, "session-123", sessionID)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	h := newTestHandler("test-secret")
	token, err := h.generateJWT("session-123")
	require.NoError(t, err)

	other := newTestHandler("different-secret")
	_, err = other.validateSession(token)
	assert.ErrorIs(t, err, errBadToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	h := newTestHandler("test-secret")
	h.Cfg.JWTTTL = -time.Minute

	token, err := h.generateJWT("session-123")
	require.NoError(t, err)

	_, err = h.validateSession(token)
	assert.ErrorIs(t, err, errBadToken)
}

func TestUnsignedTokenRejected(t *testing.T) {
	h := newTestHandler("test-secret")

	claims := jwt.MapClaims{"session_id": "session-123", "exp": time.Now().Add(time.Hour).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = h.validateSession(unsigned)
	assert.ErrorIs(t, err, errBadToken)
}

func TestTokenWithoutSessionRejected(t *testing.T) {
	h := newTestHandler("test-secret")

	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix(), "iss": tokenIssuer}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = h.validateSession(signed)
	assert.ErrorIs(t, err, errBadToken)
}
