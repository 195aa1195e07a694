package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dealflow/internal/config"
)

const actorContextKey = "auth.actor"

// AnonymousActor is the actor recorded when auth is disabled (dev mode).
const AnonymousActor = "anonymous"

// Middleware enforces bearer auth on the API surface. Infra endpoints
// stay open so probes and docs work without a token.
func Middleware(cfg config.AuthConfig) gin.HandlerFunc {
	tokens := Tokens{Secret: []byte(cfg.Secret)}

	return func(c *gin.Context) {
		if cfg.Disabled {
			c.Set(actorContextKey, AnonymousActor)
			c.Next()
			return
		}
		p := c.Request.URL.Path
		if p == "/healthz" || p == "/readyz" || strings.HasPrefix(p, "/swagger") {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(raw, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := tokens.Verify(strings.TrimSpace(strings.TrimPrefix(raw, "Bearer ")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		actor := claims.Actor()
		if actor == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token carries no actor"})
			return
		}
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// ActorFrom returns the authenticated actor id for the request.
func ActorFrom(c *gin.Context) string {
	if v, ok := c.Get(actorContextKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
