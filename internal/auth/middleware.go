package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/NexusXID/internal/principal"
)

const ctxCaller = "xid_caller"

// RequirePrincipal returns a Gin middleware that enforces a valid Bearer
// principal token and injects the caller into the context.
func RequirePrincipal(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer principal token required",
			})
			return
		}

		p, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		c.Set(ctxCaller, p)
		c.Next()
	}
}

// CallerFromCtx returns the principal injected by RequirePrincipal.
// ok is false when the route was not authenticated.
func CallerFromCtx(c *gin.Context) (principal.Principal, bool) {
	v, exists := c.Get(ctxCaller)
	if !exists {
		return principal.Principal{}, false
	}
	p, ok := v.(principal.Principal)
	return p, ok
}
