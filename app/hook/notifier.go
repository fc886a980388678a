package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultTimeout = 10 * time.Second

type RebuildRequest struct {
	Reason string `json:"reason"`
	ActID  int64  `json:"act_id,omitempty"`
}

// Notifier asks an external deploy hook to rebuild the site. Triggers are
// fire-and-forget: failures are logged and counted, never returned.
type Notifier struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	results *prometheus.CounterVec

	wg sync.WaitGroup
}

// NewNotifier returns a notifier posting to url. results may be nil.
func NewNotifier(url string, results *prometheus.CounterVec) *Notifier {
	return &Notifier{
		url:     url,
		client:  &http.Client{},
		timeout: defaultTimeout,
		logger:  slog.Default().With("component", "rebuild-hook"),
		results: results,
	}
}

// Trigger starts a rebuild notification in the background and returns
// immediately.
func (n *Notifier) Trigger(req RebuildRequest) {
	if n.url == "" {
		n.logger.Warn("rebuild hook url not configured", "reason", req.Reason)
		n.count("skipped")
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		start := time.Now()
		if err := n.post(ctx, req); err != nil {
			n.logger.Error("rebuild hook failed", "error", err, "act_id", req.ActID)
			n.count("error")
			return
		}
		n.logger.Info("rebuild hook triggered", "act_id", req.ActID, "took", time.Since(start))
		n.count("ok")
	}()
}

func (n *Notifier) post(ctx context.Context, req RebuildRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hook responded %d: %s", resp.StatusCode, string(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (n *Notifier) count(result string) {
	if n.results != nil {
		n.results.WithLabelValues(result).Inc()
	}
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
