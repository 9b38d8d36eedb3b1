package util

import (
	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/models"
)

// Context keys set by the auth middleware
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
)

// GetUserFromContext extracts the authenticated user from the Gin context.
// If the request is not authenticated it responds with 401 and returns false.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	user, ok := CurrentUser(c)
	if !ok {
		RespondUnauthorized(c)
		return nil, false
	}
	return user, true
}

// CurrentUser returns the authenticated user without responding, for routes
// where authentication is optional
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// SetUser stores the authenticated user on the context
func SetUser(c *gin.Context, user *models.User) {
	c.Set(ContextUser, user)
	c.Set(ContextUserID, user.ID)
}

// CanManage reports whether user may modify a resource owned by ownerID
func CanManage(user *models.User, ownerID string) bool {
	return user != nil && (user.ID == ownerID || user.IsAdmin())
}
