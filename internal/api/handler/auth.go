package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "peerlink-service"

var errBadToken = errors.New("invalid session token")

// generateJWT signs a token carrying the anonymous session ID.
func (h *Handler) generateJWT(sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        time.Now().Add(h.Cfg.JWTTTL).Unix(),
		"iss":        tokenIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.Cfg.JWTSecret))
}

// validateSession checks the signature and expiry and returns the session ID.
func (h *Handler) validateSession(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errBadToken
		}
		return []byte(h.Cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", errBadToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errBadToken
	}
	sessionID, ok := claims["session_id"].(string)
	if !ok || sessionID == "" {
		return "", errBadToken
	}
	return sessionID, nil
}

// GetSession mints an anonymous session ID and returns it with a JWT. No
// account, no profile: the UUID is the whole identity.
func (h *Handler) GetSession(c *gin.Context) {
	sessionUUID, _ := uuid.NewRandom()
	sessionID := sessionUUID.String()

	token, err := h.generateJWT(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "session_id": sessionID})
}
