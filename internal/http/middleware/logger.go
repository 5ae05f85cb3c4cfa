package middleware

import (
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"mediaapi/internal/logging"
)

// Logger is a middleware that logs each HTTP request in JSON format to stdout.
func Logger(loc *time.Location) fiber.Handler {
	return LoggerWithWriter(os.Stdout, loc)
}

// LoggerWithWriter logs each HTTP request as one JSON line on w.
// Fields:
// - request_id (taken from context locals set by RequestID middleware)
// - method
// - path
// - status
// - latency (in milliseconds, as float)
// - bytes_in (request body size)
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	log := logging.New(w, loc)

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		// The global error handler has not run yet; derive the status from err.
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
		}

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		fields := map[string]any{
			"request_id": rid,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    float64(time.Since(start).Microseconds()) / 1000,
			"bytes_in":   len(c.Request().Body()),
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("http_request", err, fields)
		} else {
			log.Info("http_request", fields)
		}

		return err
	}
}
