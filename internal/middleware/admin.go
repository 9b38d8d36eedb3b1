package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/util"
)

// RequireAdmin ensures the request is authenticated and the user is an admin.
// It must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := util.GetUserFromContext(c)
		if !ok {
			c.Abort()
			return
		}
		if !user.IsAdmin() {
			util.RespondForbidden(c, "admin access required")
			return
		}
		c.Next()
	}
}
