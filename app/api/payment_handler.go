package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"legis/provider"
	"legis/types"
)

const (
	signatureHeader   = "Stripe-Signature"
	idempotencyHeader = "Idempotency-Key"
)

type PaymentHandler struct {
	payments provider.PaymentsProvider
	identity provider.IdentityProvider
}

func NewPaymentHandler(payments provider.PaymentsProvider, identity provider.IdentityProvider) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		identity: identity,
	}
}

func (h *PaymentHandler) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var params types.CheckoutParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	sessionID, err := h.payments.CreateCheckoutSession(c.UserContext(), provider.CheckoutRequest{
		PriceID:        params.PriceID,
		UserID:         params.UserID,
		Origin:         c.Get(fiber.HeaderOrigin),
		IdempotencyKey: c.Get(idempotencyHeader),
	})
	if err != nil {
		slog.Error("checkout session failed", "price_id", params.PriceID, "error", err)
		return ErrInternal("Error creating checkout session")
	}

	return c.JSON(types.CheckoutResponse{SessionID: sessionID})
}

func (h *PaymentHandler) HandleListPlans(c *fiber.Ctx) error {
	plans, err := h.payments.ListPlans(c.UserContext())
	if err != nil {
		slog.Error("listing plans failed", "error", err)
		return ErrInternal("Error fetching subscription plans")
	}
	if plans == nil {
		plans = []types.Plan{}
	}
	return c.JSON(plans)
}

// HandleWebhook records subscription changes announced by the payments
// provider in the user's public metadata.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	event, err := h.payments.ParseWebhook(c.Body(), c.Get(signatureHeader))
	if errors.Is(err, provider.ErrInvalidSignature) {
		return NewError(fiber.StatusBadRequest, "invalid signature")
	}
	if err != nil {
		return NewError(fiber.StatusBadRequest, err.Error())
	}
	if event == nil {
		return c.JSON(fiber.Map{"received": true})
	}
	if event.UserID == "" {
		slog.Warn("subscription event without user", "type", event.Type)
		return c.JSON(fiber.Map{"received": true})
	}

	err = h.identity.UpdatePublicMetadata(c.UserContext(), event.UserID, provider.SubscriptionMetadata(event.Status))
	if err != nil {
		slog.Error("failed to store subscription status", "user_id", event.UserID, "type", event.Type, "error", err)
		return ErrInternal("failed to update subscription status")
	}
	slog.Info("subscription status updated", "user_id", event.UserID, "status", event.Status)

	return c.JSON(fiber.Map{"received": true})
}
