package util

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HandleDBError responds for a failed lookup of resourceName. It returns
// true when err was non-nil and a response was sent.
func HandleDBError(c *gin.Context, err error, resourceName string) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		RespondNotFound(c, resourceName)
		return true
	}
	RespondWithError(c, err)
	return true
}
