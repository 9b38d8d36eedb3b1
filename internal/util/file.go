package util

import (
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/errors"
	"github.com/motheroflaunch/backend/internal/storage"
)

// FormImage opens the multipart image under field. The caller closes the
// returned file. On failure a response has already been sent.
func FormImage(c *gin.Context, field string) (multipart.File, *multipart.FileHeader, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		RespondWithAPIError(c, errors.ValidationError(field, "an image file is required"))
		return nil, nil, false
	}
	if header.Size > storage.MaxImageSize {
		RespondWithError(c, storage.ErrImageTooLarge)
		return nil, nil, false
	}
	file, err := header.Open()
	if err != nil {
		RespondWithAPIError(c, errors.BadRequest("failed to read upload"))
		return nil, nil, false
	}
	return file, header, true
}
