package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"legis/app/middleware"
	"legis/provider"
	"legis/types"
)

// currentUser loads the profile of the authenticated caller. It returns
// nil for anonymous requests.
func currentUser(c *fiber.Ctx, identity provider.IdentityProvider) (*types.User, error) {
	userID := middleware.UserID(c)
	if userID == "" {
		return nil, nil
	}
	return identity.GetUser(c.UserContext(), userID)
}

// isAdmin never fails: an identity lookup error counts as a regular user.
func isAdmin(c *fiber.Ctx, identity provider.IdentityProvider) bool {
	user, err := currentUser(c, identity)
	if err != nil {
		slog.Warn("failed to load user", "user_id", middleware.UserID(c), "error", err)
		return false
	}
	return user.IsAdmin()
}

// requireAdmin answers 401 for anonymous callers and 403 for non-admins.
func requireAdmin(c *fiber.Ctx, identity provider.IdentityProvider) (*types.User, error) {
	user, err := currentUser(c, identity)
	switch {
	case errors.Is(err, provider.ErrUserNotFound):
		return nil, NewActionError(fiber.StatusUnauthorized, "Authentication required")
	case err != nil:
		slog.Error("failed to load user", "error", err)
		return nil, NewActionError(fiber.StatusInternalServerError, "Internal server error")
	case user == nil:
		return nil, NewActionError(fiber.StatusUnauthorized, "Authentication required")
	case !user.IsAdmin():
		return nil, NewActionError(fiber.StatusForbidden, "Admin role required")
	}
	return user, nil
}
