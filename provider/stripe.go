package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"legis/types"
)

// checkout metadata key carrying the identity-provider user id
const metaCheckoutUser = "clerkUserId"

// StripePayments implements PaymentsProvider with the Stripe API.
type StripePayments struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

func NewStripePayments(secretKey, webhookSecret string) *StripePayments {
	return &StripePayments{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		logger:        slog.Default().With("component", "stripe"),
	}
}

func (s *StripePayments) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.Origin + "/?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(req.Origin + "/"),
	}
	params.Context = ctx
	params.AddMetadata(metaCheckoutUser, req.UserID)
	// later subscription and invoice events only carry the subscription's metadata
	params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{}
	params.SubscriptionData.AddMetadata(metaCheckoutUser, req.UserID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	s.logger.Info("checkout session created", "session", session.ID, "price", req.PriceID)
	return session.ID, nil
}

func (s *StripePayments) ListPlans(ctx context.Context) ([]types.Plan, error) {
	productParams := &stripe.ProductListParams{Active: stripe.Bool(true)}
	productParams.Context = ctx

	active := make(map[string]struct{})
	products := s.api.Products.List(productParams)
	for products.Next() {
		active[products.Product().ID] = struct{}{}
	}
	if err := products.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	priceParams := &stripe.PriceListParams{
		Active: stripe.Bool(true),
		Type:   stripe.String(string(stripe.PriceTypeRecurring)),
	}
	priceParams.Context = ctx
	priceParams.AddExpand("data.product")

	var prices []*stripe.Price
	iter := s.api.Prices.List(priceParams)
	for iter.Next() {
		prices = append(prices, iter.Price())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}

	return plansFromPrices(prices, active), nil
}

// plansFromPrices keeps recurring prices whose expanded product is active.
func plansFromPrices(prices []*stripe.Price, activeProducts map[string]struct{}) []types.Plan {
	plans := []types.Plan{}
	for _, p := range prices {
		if p == nil || p.Product == nil || p.Product.Name == "" {
			// product was not expanded
			continue
		}
		if _, ok := activeProducts[p.Product.ID]; !ok {
			continue
		}
		plan := types.Plan{
			ID:          p.ID,
			Name:        p.Product.Name,
			Description: p.Product.Description,
			Price:       p.UnitAmount,
			PriceID:     p.ID,
		}
		if p.Recurring != nil {
			plan.Interval = string(p.Recurring.Interval)
		}
		plans = append(plans, plan)
	}
	return plans
}

func (s *StripePayments) ParseWebhook(payload []byte, signature string) (*types.SubscriptionEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return subscriptionEvent(event)
}

// subscriptionEvent maps the events that change a subscription to the
// resulting status. Other events yield nil.
func subscriptionEvent(event stripe.Event) (*types.SubscriptionEvent, error) {
	if event.Data == nil {
		return nil, nil
	}

	var (
		status   types.SubscriptionStatus
		metadata map[string]string
	)
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		status, metadata = types.SubscriptionActive, session.Metadata
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		status, metadata = types.SubscriptionCanceled, sub.Metadata
	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		status, metadata = types.SubscriptionPastDue, invoice.Metadata
		if invoice.SubscriptionDetails != nil && invoice.SubscriptionDetails.Metadata[metaCheckoutUser] != "" {
			metadata = invoice.SubscriptionDetails.Metadata
		}
	default:
		return nil, nil
	}

	return &types.SubscriptionEvent{
		Type:   string(event.Type),
		UserID: metadata[metaCheckoutUser],
		Status: status,
	}, nil
}
