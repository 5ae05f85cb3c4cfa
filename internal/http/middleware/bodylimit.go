package middleware

import "github.com/gofiber/fiber/v2"

// ContentLengthLimit rejects requests whose declared Content-Length exceeds limit
// with 413 before any of the body is consumed. With StreamRequestBody enabled the
// server no longer enforces BodyLimit itself, so this check takes its place.
func ContentLengthLimit(limit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limit > 0 && c.Request().Header.ContentLength() > limit {
			return fiber.ErrRequestEntityTooLarge
		}
		return c.Next()
	}
}
