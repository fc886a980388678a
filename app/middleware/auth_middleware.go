package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"legis/provider"
)

const (
	userIDKey     = "userID"
	sessionCookie = "__session"
)

// Authenticate resolves the session token, if any, to a user id stored in
// the request locals. Requests without a valid session pass through
// anonymous; handlers decide whether identity is required.
func Authenticate(identity provider.IdentityProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c)
		if token == "" {
			return c.Next()
		}

		userID, err := identity.VerifySession(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, provider.ErrUnauthenticated) {
				slog.Warn("session verification failed", "path", c.Path(), "error", err)
			}
			return c.Next()
		}
		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user id or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

func sessionToken(c *fiber.Ctx) string {
	if auth := c.Get(fiber.HeaderAuthorization); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return c.Cookies(sessionCookie)
}
