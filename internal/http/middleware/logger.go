package middleware

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"storyapi/internal/logging"
)

// Logger logs each HTTP request as one JSON line on stdout with UTC timestamps.
func Logger() fiber.Handler {
	return LoggerWithWriter(os.Stdout, time.UTC)
}

// LoggerWithWriter logs each HTTP request as one JSON line on w.
// Fields: request_id (set by RequestID), viewer_id, method, path, status,
// latency (milliseconds, float) and ts (RFC3339 in loc).
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	if loc == nil {
		loc = time.UTC
	}
	zl := zerolog.New(w)

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		rid, _ := c.Locals(RequestIDLocalKey).(string)
		viewer, _ := c.Locals(ViewerLocalKey).(string)

		ev := zl.Info()
		if status >= fiber.StatusInternalServerError {
			ev = zl.Error()
		}
		ev.Str("request_id", rid).
			Str("viewer_id", viewer).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Float64("latency", float64(time.Since(start).Microseconds())/1000).
			Str("ts", start.In(loc).Format(time.RFC3339Nano)).
			Send()

		return err
	}
}

// ContextLogger puts a request-scoped logger carrying request_id on the user
// context so services can log through logging.FromContext.
func ContextLogger(base *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals(RequestIDLocalKey).(string)
		c.SetUserContext(logging.WithLogger(c.UserContext(), base.With("request_id", rid)))
		return c.Next()
	}
}
