package hook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"legis/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTriggerPostsToHook(t *testing.T) {
	received := make(chan RebuildRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req RebuildRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	m := metrics.New()
	n := NewNotifier(srv.URL, m.RebuildHooks)
	n.Trigger(RebuildRequest{Reason: "act updated", ActID: 7})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Wait(ctx))

	assert.Equal(t, RebuildRequest{Reason: "act updated", ActID: 7}, <-received)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RebuildHooks.WithLabelValues("ok")))
	n.client.CloseIdleConnections()
}

func TestTriggerFailureIsOnlyCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := metrics.New()
	n := NewNotifier(srv.URL, m.RebuildHooks)
	n.Trigger(RebuildRequest{Reason: "act updated", ActID: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Wait(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RebuildHooks.WithLabelValues("error")))
	n.client.CloseIdleConnections()
}

func TestTriggerWithoutURLSkips(t *testing.T) {
	m := metrics.New()
	n := NewNotifier("", m.RebuildHooks)
	n.Trigger(RebuildRequest{Reason: "act updated"})

	require.NoError(t, n.Wait(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RebuildHooks.WithLabelValues("skipped")))
}

func TestTriggerTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	m := metrics.New()
	n := NewNotifier(srv.URL, m.RebuildHooks)
	n.timeout = 50 * time.Millisecond
	n.Trigger(RebuildRequest{Reason: "slow hook"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Wait(ctx))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RebuildHooks.WithLabelValues("error")))
	n.client.CloseIdleConnections()
}
