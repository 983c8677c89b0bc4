package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginLoggerKey    = "logger"
)

// quietPaths are polled by orchestrators and scrapers; their summaries go to debug.
var quietPaths = map[string]bool{"/healthz": true, "/metrics": true}

// Middleware tags each request with a request_id (taken from X-Request-Id when
// present), stores the scoped logger in both contexts and writes one summary
// line when the handler returns.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		scoped := l.With("request_id", rid)
		c.Set(ginLoggerKey, scoped)
		c.Request = c.Request.WithContext(WithRequestID(With(c.Request.Context(), scoped), rid))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(began).Milliseconds(),
		}

		switch {
		case len(c.Errors) > 0:
			scoped.Error("http request", append(attrs, "errors", c.Errors.String())...)
		case status >= 500:
			scoped.Error("http request", attrs...)
		case quietPaths[route]:
			scoped.Debug("http request", attrs...)
		default:
			scoped.Info("http request", attrs...)
		}
	}
}

// FromGin returns the logger Middleware stored, or slog.Default().
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
