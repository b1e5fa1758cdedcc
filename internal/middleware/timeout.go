package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vetclinic-api/pkg/httputil"
)

// Timeout bounds the request context. Handlers pass the context down, so a
// slow dependency returns early and the client gets a 504.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, httputil.Response{
				Status: "error",
				Error: &httputil.Error{
					Message:   "request timeout",
					RequestID: c.GetString(ContextRequestID),
				},
			})
		}
	}
}
