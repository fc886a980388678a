package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legis/metrics"
	"legis/provider"
	"legis/types"
)

type stubIdentity struct {
	provider.IdentityProvider
}

func (stubIdentity) VerifySession(_ context.Context, token string) (string, error) {
	switch token {
	case "good":
		return "user_1", nil
	case "broken":
		return "", errors.New("jwks unavailable")
	}
	return "", provider.ErrUnauthenticated
}

func (stubIdentity) GetUser(context.Context, string) (*types.User, error) {
	return nil, provider.ErrUserNotFound
}

func whoami(t *testing.T, app *fiber.App, req *http.Request) string {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestAuthenticate(t *testing.T) {
	app := fiber.New()
	app.Use(Authenticate(stubIdentity{}))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})

	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"anonymous", "", "", ""},
		{"bearer", "Bearer good", "", "user_1"},
		{"cookie", "", "good", "user_1"},
		{"invalid token", "Bearer bad", "", ""},
		{"verifier failure", "Bearer broken", "", ""},
		{"not bearer", "Basic good", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookie, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, whoami(t, app, req))
		})
	}
}

func TestWithLoggingRecordsRequests(t *testing.T) {
	m := metrics.New()
	app := fiber.New()
	app.Use(WithLogging(m))
	app.Get("/acts/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "0" {
			return fiber.NewError(fiber.StatusNotFound, "missing")
		}
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/acts/1", nil), -1)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/acts/0", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/acts/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/acts/:id", "404")))
}
