package log

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// GinMiddleware injects a request-scoped logger into the request context and
// logs each completed request. Actor fields set by pkg/middleware are
// attached after the handler chain runs.
func GinMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		child, reqID := requestLogger(logger, c.GetHeader(headerRequestID), c.Request.Method, c.Request.URL.Path, c.ClientIP())
		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		status := c.Writer.Status()
		evt := completion(&child, status).
			Int(FieldStatus, status).
			Float64(FieldLatency, float64(time.Since(start).Milliseconds()))

		if route := c.FullPath(); route != "" {
			evt = evt.Str(FieldRoute, route)
		}
		if userID := c.GetString(FieldUserID); userID != "" {
			evt = evt.Str(FieldUserID, userID)
		}
		if username := c.GetString(FieldUsername); username != "" {
			evt = evt.Str(FieldUsername, username)
		}
		if id := c.Param("id"); id != "" {
			evt = evt.Str(FieldRoomID, id)
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}

		evt.Msg("request completed")
	}
}
