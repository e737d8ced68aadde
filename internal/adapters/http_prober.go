package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPProber implements domain.HealthProber with a bounded retry budget. The
// budget is fixed at construction; a probe either succeeds within it or the
// stage fails — never an open-ended wait.
type HTTPProber struct {
	maxRetries uint64
	client     *http.Client
	logger     *slog.Logger
}

// NewHTTPProber builds a prober that gives up after maxRetries attempts.
func NewHTTPProber(maxRetries int, logger *slog.Logger) *HTTPProber {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &HTTPProber{
		maxRetries: uint64(maxRetries - 1),
		client:     &http.Client{},
		logger:     logger,
	}
}

// Probe polls the application on 127.0.0.1:port until it answers with a
// non-5xx status or the retry budget is exhausted.
func (p *HTTPProber) Probe(ctx context.Context, port int, path string, timeout time.Duration) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)

	attempt := 0
	operation := func() error {
		attempt++
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			p.logger.Debug("health probe failed", slog.Int("attempt", attempt), slog.Any("error", err))
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			err := fmt.Errorf("health check returned %s", resp.Status)
			p.logger.Debug("health probe failed", slog.Int("attempt", attempt), slog.Any("error", err))
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("health check on %s did not pass after %d attempts: %w", url, attempt, err)
	}
	return nil
}
