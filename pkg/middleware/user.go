package middleware

import (
	"context"
	"strconv"

	"ecocommunity-gamification/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the caller identity resolved by the upstream gateway.
const HeaderUserID = "X-User-ID"

type userKey struct{}

var UserContextKey = userKey{}

// User reads X-User-ID into the request context. Requests without a valid
// id are rejected with 401.
func User() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			_ = c.Error(errutil.Unauthorized("missing or invalid "+HeaderUserID, err))
			c.Abort()
			return
		}

		ctx := WithUserID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserContextKey, userID)
}

// GetUserID returns the caller id placed by User, or 0.
func GetUserID(ctx context.Context) int64 {
	id, _ := ctx.Value(UserContextKey).(int64)
	return id
}
