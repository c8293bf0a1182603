package gateway

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"

	"agentpoker/internal/identity"
)

const agentContextKey = "agentpoker.agent"

// newAPIKey returns a fresh opaque bearer token: 32 bytes from crypto/rand,
// base64url-encoded. Only its hash is ever persisted.
func newAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashAPIKey returns the hex-encoded SHA-256 digest of a bearer token, the
// only form ever compared or stored (matches the Agent.apiKeyHash field).
func hashAPIKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// authMiddleware extracts the bearer token, hashes it, and looks up the
// agent. Unknown or malformed tokens are rejected with 401; banned agents
// with 403.
func authMiddleware(store identity.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(c, errUnauthenticated("missing or malformed Authorization header"))
			c.Abort()
			return
		}

		agent, err := store.AuthenticateByHash(c.Request.Context(), hashAPIKey(token))
		if err == identity.ErrBanned {
			respondError(c, errForbidden("agent is banned"))
			c.Abort()
			return
		}
		if err != nil {
			respondError(c, errUnauthenticated("invalid bearer token"))
			c.Abort()
			return
		}

		c.Set(agentContextKey, agent)
		c.Next()
	}
}

func agentFromContext(c *gin.Context) *identity.Agent {
	v, ok := c.Get(agentContextKey)
	if !ok {
		return nil
	}
	agent, _ := v.(*identity.Agent)
	return agent
}

// adminMiddleware requires the X-Admin-Key header to match the configured
// admin key.
func adminMiddleware(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" || c.GetHeader("X-Admin-Key") != adminKey {
			respondError(c, errForbidden("invalid or missing admin key"))
			c.Abort()
			return
		}
		c.Next()
	}
}
