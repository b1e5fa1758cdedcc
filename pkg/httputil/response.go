package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vetclinic-api/pkg/errors"
)

const ContextRequestID = "request_id"

// Response wraps all API responses
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Meta   *ListMeta   `json:"meta,omitempty"`
	Error  *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code      errors.ErrorCode       `json:"code"`
	Reason    errors.Reason          `json:"reason,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ListMeta describes the page a list response covers
type ListMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

func RespondWithList(c *gin.Context, data interface{}, limit, offset, count int) {
	c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
		Meta:   &ListMeta{Limit: limit, Offset: offset, Count: count},
	})
}

// RespondWithError renders err with the status its AppError code maps to.
// Anything that is not an AppError is reported as a bare internal error.
func RespondWithError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.NewInternal(err)
	}

	c.AbortWithStatusJSON(appErr.StatusCode(), Response{
		Status: "error",
		Error: &Error{
			Code:      appErr.Code,
			Reason:    appErr.Reason,
			Message:   appErr.Message,
			Details:   appErr.Details,
			RequestID: c.GetString(ContextRequestID),
		},
	})
}
