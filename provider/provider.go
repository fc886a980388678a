// Package provider wraps the external identity and payments services
// behind small interfaces so handlers can be tested with fakes.
package provider

import (
	"context"
	"errors"

	"legis/types"
)

var (
	ErrUnauthenticated  = errors.New("session is missing or invalid")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// IdentityProvider resolves session tokens to users and stores per-user
// metadata.
type IdentityProvider interface {
	VerifySession(ctx context.Context, token string) (string, error)
	GetUser(ctx context.Context, userID string) (*types.User, error)
	UpdatePublicMetadata(ctx context.Context, userID string, metadata map[string]any) error
	UpdateUnsafeMetadata(ctx context.Context, userID string, metadata map[string]any) error
}

type CheckoutRequest struct {
	PriceID string
	UserID  string
	Origin  string
	// IdempotencyKey is forwarded from the client's Idempotency-Key header;
	// a retry carrying the same key gets the session created first.
	IdempotencyKey string
}

// PaymentsProvider creates checkout sessions, lists plans and verifies
// webhooks. ParseWebhook returns a nil event for event types that do not
// affect subscriptions.
type PaymentsProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	ListPlans(ctx context.Context) ([]types.Plan, error)
	ParseWebhook(payload []byte, signature string) (*types.SubscriptionEvent, error)
}
