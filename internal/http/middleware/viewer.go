package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// ViewerHeader carries the authenticated user id set by the upstream gateway.
	ViewerHeader = "X-User-ID"
	// ViewerLocalKey is the locals key holding the viewer id.
	ViewerLocalKey = "viewer_id"
)

// Viewer reads the viewer id from X-User-ID into locals. Requests without it
// pass through anonymously.
func Viewer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id := strings.TrimSpace(c.Get(ViewerHeader)); id != "" {
			c.Locals(ViewerLocalKey, id)
		}
		return c.Next()
	}
}

// RequireViewer rejects anonymous requests with 401.
func RequireViewer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ViewerID(c) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing "+ViewerHeader+" header")
		}
		return c.Next()
	}
}

// ViewerID returns the viewer id stored by Viewer, or "".
func ViewerID(c *fiber.Ctx) string {
	id, _ := c.Locals(ViewerLocalKey).(string)
	return id
}
