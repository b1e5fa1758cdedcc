package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vetclinic-api/pkg/errors"
	"github.com/jwalitptl/vetclinic-api/pkg/httputil"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		last := c.Errors.Last().Err
		if errors.CodeOf(last) == errors.ErrInternal {
			log.Error(last, "request failed",
				"request_id", c.GetString(ContextRequestID),
				"method", c.Request.Method,
				"path", c.Request.URL.Path)
		}

		if c.Writer.Written() {
			return
		}
		httputil.RespondWithError(c, last)
	}
}
