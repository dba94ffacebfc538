package ginserver

import (
	"strings"

	gin "github.com/gin-gonic/gin"

	"motorent/internal/app/middleware"
)

// CallerHeader carries the user id set by the API gateway in front of this service.
const CallerHeader = "X-User-ID"

const callerContextKey = "motorent.caller"

// Identity copies the caller id from CallerHeader onto the request context.
// Requests without it reach the handlers anonymous and are refused by the command pipeline.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := strings.TrimSpace(c.GetHeader(CallerHeader))
		if caller != "" {
			c.Set(callerContextKey, caller)
			c.Request = c.Request.WithContext(middleware.WithCaller(c.Request.Context(), caller))
		}
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(callerContextKey)
}
