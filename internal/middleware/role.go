package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"commonwealth/internal/pkg/response"
)

const RoleAdmin = "admin"

// RequireRole lets the request through when the authenticated role is one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Role not found in token")
			return
		}
		if !slices.Contains(roles, role) {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			return
		}
		c.Next()
	}
}

// AdminOnly guards community administration endpoints.
func AdminOnly() gin.HandlerFunc {
	return RequireRole(RoleAdmin)
}
