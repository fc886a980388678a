package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"legis/app/middleware"
	"legis/provider"
	"legis/types"
)

const monthLayout = "2006-01"

// UsageHandler counts act detail opens of free users per calendar month.
type UsageHandler struct {
	identity provider.IdentityProvider
	limit    int
	opens    prometheus.Counter
	now      func() time.Time
}

func NewUsageHandler(identity provider.IdentityProvider, limit int, opens prometheus.Counter) *UsageHandler {
	return &UsageHandler{
		identity: identity,
		limit:    limit,
		opens:    opens,
		now:      time.Now,
	}
}

// HandleUpdateModalLimit registers one open. A free user may open the
// modal while fewer than limit opens were counted this month; refused opens
// are not counted. Subscribers are never refused.
func (h *UsageHandler) HandleUpdateModalLimit(c *fiber.Ctx) error {
	var params types.ModalLimitParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}
	if sessionID := middleware.UserID(c); sessionID != "" && sessionID != params.UserID {
		return ErrForbidden("cannot update another user's limit")
	}

	ctx := c.UserContext()
	user, err := h.identity.GetUser(ctx, params.UserID)
	if errors.Is(err, provider.ErrUserNotFound) {
		return ErrNotFound(params.UserID, "user")
	}
	if err != nil {
		slog.Error("failed to load user", "user_id", params.UserID, "error", err)
		return ErrInternal("failed to load user")
	}

	month := h.now().UTC().Format(monthLayout)
	clicks := user.ClicksThisMonth
	if user.ClicksMonth != month {
		clicks = 0
	}

	subscribed := user.SubscriptionStatus == types.SubscriptionActive
	canOpen := subscribed || clicks < h.limit
	if canOpen {
		clicks++
		if err := h.identity.UpdateUnsafeMetadata(ctx, user.ID, provider.ClicksMetadata(clicks, month)); err != nil {
			slog.Error("failed to store click counter", "user_id", user.ID, "error", err)
			return ErrInternal("failed to update click counter")
		}
		if h.opens != nil {
			h.opens.Inc()
		}
	}

	return c.JSON(types.ModalLimitResponse{
		Success:         true,
		ClicksThisMonth: clicks,
		CanOpen:         canOpen,
		Limit:           h.limit,
	})
}
