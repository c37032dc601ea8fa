package middleware

import (
	"net/http"

	"ecocommunity-gamification/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last handler error. BaseErrors keep their code; anything
// else is reported as an internal error without leaking its text.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		be := errutil.FromError(last.Err)
		if be.Code == errutil.StatusInternal {
			zap.L().Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(last.Err),
			)
			c.JSON(http.StatusInternalServerError, errutil.BaseError{
				Code:    errutil.StatusInternal,
				Message: be.Message,
			}.JSON())
			return
		}

		c.JSON(be.Code.HTTPStatus(), be.JSON())
	}
}
