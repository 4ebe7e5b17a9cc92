// README: Bearer-token auth middleware; verified uid and role are stored in the gin context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"motoshop/internal/infra"
	"motoshop/internal/types"
)

const (
	ctxUID  = "caller_uid"
	ctxRole = "caller_role"
)

// Auth rejects requests without a verifiable bearer token. A token without a role claim
// is treated as a customer.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || token == nil || token.UID == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}
		role := string(types.RoleCustomer)
		if v, ok := token.Claims["role"].(string); ok && v != "" {
			role = v
		}
		c.Set(ctxUID, token.UID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

// CallerActor is the authenticated caller as seen by the services.
func CallerActor(c *gin.Context) types.Actor {
	return types.Actor{ID: types.ID(CallerUID(c)), Role: types.Role(CallerRole(c))}
}

// RequireRole admits only callers whose role is listed. Must run after Auth.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := types.Role(CallerRole(c))
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "FORBIDDEN", "role not permitted")
	}
}

func abort(c *gin.Context, status int, kind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": kind, "message": msg})
}
