package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"filepanel/internal/logging"
)

// AccessLog writes one JSON line per request through l, carrying request_id,
// method, path, status and latency in milliseconds. 5xx responses are logged
// at error level.
func AccessLog(l *logging.Logger) fiber.Handler {
	l = l.With("http")

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		level := "info"
		if status >= fiber.StatusInternalServerError {
			level = "error"
		}

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		l.Log(map[string]any{
			"level":      level,
			"event":      "http_request",
			"request_id": rid,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    float64(time.Since(start).Microseconds()) / 1000,
		})
		return err
	}
}
