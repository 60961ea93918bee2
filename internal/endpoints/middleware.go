package endpoints

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"verbatim/internal/config"
	"verbatim/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	identityCookie = "verbatim_id"
	// Browser ids live for half a year; the janitor reclaims the tree long
	// before the cookie lapses if the user never returns.
	identityCookieMaxAge = 180 * 24 * 3600
)

// IdentityMiddleware resolves the per-browser user id. Online deployments
// hand each browser an opaque uuid in an HMAC-signed cookie; a tampered or
// missing cookie silently gets a fresh identity. Offline deployments collapse
// every request onto the shared local user.
func IdentityMiddleware() gin.HandlerFunc {
	secret := []byte(config.StorageSecret)

	return func(c *gin.Context) {
		if !config.Online {
			c.Set("user_id", store.LocalUser)
			c.Next()
			return
		}

		if raw, err := c.Cookie(identityCookie); err == nil {
			if id, ok := verifyIdentity(raw, secret); ok {
				c.Set("user_id", id)
				c.Next()
				return
			}
			slog.Warn("Rejecting tampered identity cookie", "remote_addr", c.ClientIP())
		}

		id := uuid.NewString()
		c.SetCookie(identityCookie, signIdentity(id, secret), identityCookieMaxAge, "/", "", false, true)
		c.Set("user_id", id)
		c.Next()
	}
}

func signIdentity(id string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	return id + "." + hex.EncodeToString(mac.Sum(nil))
}

func verifyIdentity(raw string, secret []byte) (string, bool) {
	id, _, found := strings.Cut(raw, ".")
	if !found || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(signIdentity(id, secret)), []byte(raw)) {
		return "", false
	}
	return id, true
}

// GetUserID is a helper to get user ID from context (use after IdentityMiddleware)
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", fmt.Errorf("user not authenticated")
	}

	userIDStr, ok := userID.(string)
	if !ok {
		return "", fmt.Errorf("invalid user ID type")
	}

	return userIDStr, nil
}
