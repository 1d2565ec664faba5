// README: Bearer-token authentication. Verified claims become a
// capability-tagged Actor that handlers pass into every use case.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rewear/internal/infra"
	"rewear/internal/types"
)

const actorKey = "rewear.actor"

// Auth rejects requests without a valid bearer token and stores the caller's
// Actor in the request context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "error": "missing bearer token",
			})
			return
		}
		tok, err := verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "error": "invalid token",
			})
			return
		}
		c.Set(actorKey, types.Actor{ID: types.ID(tok.UID), Role: types.Role(tok.Role)})
		c.Next()
	}
}

// CallerActor returns the Actor set by Auth. The second result is false on
// routes that skipped the middleware.
func CallerActor(c *gin.Context) (types.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return types.Actor{}, false
	}
	actor, ok := v.(types.Actor)
	return actor, ok
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
