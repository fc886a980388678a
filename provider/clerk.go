package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwks"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/clerk/clerk-sdk-go/v2/user"

	"legis/types"
)

const (
	metaRole         = "role"
	metaSubscription = "subscription_status"
	metaClicks       = "clicks_this_month"
	metaClicksMonth  = "clicks_month"
)

// ClerkIdentity implements IdentityProvider with the Clerk backend API.
type ClerkIdentity struct {
	users  *user.Client
	jwks   *jwks.Client
	logger *slog.Logger

	mu   sync.RWMutex
	keys map[string]*clerk.JSONWebKey
}

func NewClerkIdentity(secretKey string) *ClerkIdentity {
	config := &clerk.ClientConfig{}
	config.Key = clerk.String(secretKey)
	return &ClerkIdentity{
		users:  user.NewClient(config),
		jwks:   jwks.NewClient(config),
		logger: slog.Default().With("component", "clerk"),
		keys:   make(map[string]*clerk.JSONWebKey),
	}
}

func (c *ClerkIdentity) VerifySession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	unsafeClaims, err := jwt.Decode(ctx, &jwt.DecodeParams{Token: token})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	jwk, err := c.jsonWebKey(ctx, unsafeClaims.KeyID)
	if err != nil {
		return "", fmt.Errorf("fetch json web key: %w", err)
	}

	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token, JWK: jwk})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return claims.Subject, nil
}

func (c *ClerkIdentity) jsonWebKey(ctx context.Context, kid string) (*clerk.JSONWebKey, error) {
	c.mu.RLock()
	jwk, ok := c.keys[kid]
	c.mu.RUnlock()
	if ok {
		return jwk, nil
	}

	jwk, err := jwt.GetJSONWebKey(ctx, &jwt.GetJSONWebKeyParams{KeyID: kid, JWKSClient: c.jwks})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.keys[kid] = jwk
	c.mu.Unlock()
	return jwk, nil
}

func (c *ClerkIdentity) GetUser(ctx context.Context, userID string) (*types.User, error) {
	u, err := c.users.Get(ctx, userID)
	if err != nil {
		var apiErr *clerk.APIErrorResponse
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
		}
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return userFromMetadata(u.ID, u.PublicMetadata, u.UnsafeMetadata)
}

func (c *ClerkIdentity) UpdatePublicMetadata(ctx context.Context, userID string, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	msg := json.RawMessage(raw)
	if _, err := c.users.UpdateMetadata(ctx, userID, &user.UpdateMetadataParams{PublicMetadata: &msg}); err != nil {
		return fmt.Errorf("update public metadata of %s: %w", userID, err)
	}
	return nil
}

func (c *ClerkIdentity) UpdateUnsafeMetadata(ctx context.Context, userID string, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	msg := json.RawMessage(raw)
	if _, err := c.users.UpdateMetadata(ctx, userID, &user.UpdateMetadataParams{UnsafeMetadata: &msg}); err != nil {
		return fmt.Errorf("update unsafe metadata of %s: %w", userID, err)
	}
	return nil
}

// userFromMetadata reads the role and subscription from public metadata and
// the usage counter from unsafe metadata. The counter may have been written
// as a number or a string.
func userFromMetadata(id string, public, unsafe json.RawMessage) (*types.User, error) {
	u := &types.User{ID: id}

	var pub map[string]any
	if err := decodeMetadata(public, &pub); err != nil {
		return nil, fmt.Errorf("decode public metadata: %w", err)
	}
	u.Role, _ = pub[metaRole].(string)
	if s, ok := pub[metaSubscription].(string); ok {
		u.SubscriptionStatus = types.SubscriptionStatus(s)
	}

	var uns map[string]any
	if err := decodeMetadata(unsafe, &uns); err != nil {
		return nil, fmt.Errorf("decode unsafe metadata: %w", err)
	}
	switch v := uns[metaClicks].(type) {
	case json.Number:
		n, _ := v.Int64()
		u.ClicksThisMonth = int(n)
	case string:
		n, _ := strconv.Atoi(v)
		u.ClicksThisMonth = n
	}
	u.ClicksMonth, _ = uns[metaClicksMonth].(string)
	return u, nil
}

func decodeMetadata(raw json.RawMessage, out *map[string]any) error {
	if len(raw) == 0 || string(raw) == "null" {
		*out = map[string]any{}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if *out == nil {
		*out = map[string]any{}
	}
	return nil
}

// ClicksMetadata is the unsafe metadata patch that stores a usage counter.
func ClicksMetadata(clicks int, month string) map[string]any {
	return map[string]any{metaClicks: clicks, metaClicksMonth: month}
}

// SubscriptionMetadata is the public metadata patch that stores a
// subscription status.
func SubscriptionMetadata(status types.SubscriptionStatus) map[string]any {
	return map[string]any{metaSubscription: string(status)}
}
