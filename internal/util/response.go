package util

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/errors"
	"github.com/motheroflaunch/backend/internal/launch"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/premium"
	"github.com/motheroflaunch/backend/internal/repository"
	"github.com/motheroflaunch/backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// RespondWithAPIError sends a structured API error response
func RespondWithAPIError(c *gin.Context, apiErr *errors.APIError) {
	fields := []zap.Field{
		zap.String("code", string(apiErr.Code)),
		zap.String("message", apiErr.Message),
		zap.String("path", c.FullPath()),
	}
	if apiErr.Field != "" {
		fields = append(fields, zap.String("field", apiErr.Field))
	}
	if requestID := c.GetString("request_id"); requestID != "" {
		fields = append(fields, logger.WithRequestID(requestID))
	}

	if apiErr.IsServerError() {
		logger.Log.Error("API error", append(fields, zap.Int("status", apiErr.Status))...)
	} else if apiErr.Status >= http.StatusBadRequest {
		logger.Log.Warn("API error", fields...)
	}

	c.AbortWithStatusJSON(apiErr.Status, ErrorResponse{
		Code:    string(apiErr.Code),
		Message: apiErr.Message,
		Field:   apiErr.Field,
		Details: apiErr.Details,
	})
}

// RespondWithError maps err onto the API error taxonomy and responds with it.
// Errors the mapping does not know become a 500 whose cause is only logged.
func RespondWithError(c *gin.Context, err error) {
	RespondWithAPIError(c, ToAPIError(err))
}

// ToAPIError converts domain and storage errors into API errors
func ToAPIError(err error) *errors.APIError {
	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case stderrors.Is(err, launch.ErrInvalidDate):
		return errors.ValidationError("date", "date must be formatted YYYY-MM-DD")
	case stderrors.Is(err, launch.ErrToolNotFound), stderrors.Is(err, repository.ErrToolNotFound):
		return errors.NotFound("tool")
	case stderrors.Is(err, repository.ErrBlogNotFound):
		return errors.NotFound("blog")
	case stderrors.Is(err, repository.ErrUserNotFound), stderrors.Is(err, premium.ErrUserNotFound):
		return errors.NotFound("user")
	case stderrors.Is(err, launch.ErrSlotNotFound):
		return errors.NotFound("launch day")
	case stderrors.Is(err, launch.ErrBackupNotFound):
		return errors.NotFound("backup")
	case stderrors.Is(err, launch.ErrNotBooked):
		return errors.NotFound("launch booking")
	case stderrors.Is(err, launch.ErrVoteNotFound):
		return errors.NotFound("vote")
	case stderrors.Is(err, repository.ErrNotLiked):
		return errors.NotFound("like")
	case stderrors.Is(err, premium.ErrNoActiveGrant):
		return errors.NotFound("active premium access")
	case stderrors.Is(err, launch.ErrNotOwner):
		return errors.Forbidden(err.Error())
	case stderrors.Is(err, launch.ErrSelfVote):
		return errors.Forbidden(err.Error())
	case stderrors.Is(err, launch.ErrSlotFull):
		return errors.New(errors.ErrSlotFull, err.Error())
	case stderrors.Is(err, launch.ErrVotingClosed), stderrors.Is(err, launch.ErrSlotFinalized):
		return errors.VotingClosed(err.Error())
	case stderrors.Is(err, launch.ErrAlreadyBooked), stderrors.Is(err, launch.ErrAlreadyVoted),
		stderrors.Is(err, repository.ErrAlreadyLiked):
		return errors.New(errors.ErrAlreadyExists, err.Error())
	case stderrors.Is(err, launch.ErrToolNotApproved), stderrors.Is(err, launch.ErrCancelTooLate),
		stderrors.Is(err, launch.ErrNotLaunchDay), stderrors.Is(err, launch.ErrDayNotOver):
		return errors.Conflict(err.Error())
	case stderrors.Is(err, launch.ErrDateTooSoon):
		return errors.ValidationError("date", err.Error())
	case stderrors.Is(err, premium.ErrInvalidPlan):
		return errors.ValidationError("plan", err.Error())
	case stderrors.Is(err, repository.ErrInvalidInput):
		return errors.BadRequest(err.Error())
	case stderrors.Is(err, storage.ErrUnsupportedImage):
		return errors.ValidationError("file", err.Error())
	case stderrors.Is(err, storage.ErrImageTooLarge):
		return errors.ValidationError("file", err.Error())
	case stderrors.Is(err, cache.ErrLockBusy):
		return errors.ServiceUnavailable("launch scheduler")
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound("resource")
	}

	logger.Log.Error("Unhandled error", zap.Error(err))
	return errors.InternalError("internal server error")
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message ...string) {
	msg := "user not authenticated"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	RespondWithAPIError(c, errors.Unauthorized(msg))
}

// RespondNotFound sends a 404 Not Found response
func RespondNotFound(c *gin.Context, resource string) {
	RespondWithAPIError(c, errors.NotFound(resource))
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithAPIError(c, errors.BadRequest(message))
}

// RespondForbidden sends a 403 Forbidden response
func RespondForbidden(c *gin.Context, message ...string) {
	msg := "forbidden"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	RespondWithAPIError(c, errors.Forbidden(msg))
}

// RespondInternalError sends a 500 Internal Server Error response
func RespondInternalError(c *gin.Context, message string) {
	RespondWithAPIError(c, errors.InternalError(message))
}

// RespondValidationError sends a 422 Unprocessable Entity response
func RespondValidationError(c *gin.Context, field, message string) {
	RespondWithAPIError(c, errors.ValidationError(field, message))
}

// Page is the envelope for paginated listings
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// RespondPage sends a paginated listing. A nil slice is sent as [].
func RespondPage[T any](c *gin.Context, items []T, total int64, p Pagination) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, Page[T]{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset})
}
