package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"csvinsight/internal"
)

const (
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 8 * time.Second
	maxResponseBytes = 8 << 20
)

// transport posts JSON payloads and retries transient failures with
// exponential backoff. Rate limits honour Retry-After when it is given.
type transport struct {
	provider  string
	client    *http.Client
	retryMax  int
	baseDelay time.Duration
	maxDelay  time.Duration
	logger    *internal.Logger
}

func newTransport(provider string, timeout time.Duration, retryMax int) *transport {
	return &transport{
		provider:  provider,
		client:    &http.Client{Timeout: timeout},
		retryMax:  retryMax,
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
		logger:    internal.DefaultLogger.WithComponent("LLM"),
	}
}

// post sends payload to url and returns the body of the first 2xx reply.
func (t *transport) post(ctx context.Context, url string, headers map[string]string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= t.retryMax; attempt++ {
		if attempt > 0 {
			wait := t.backoff(attempt, lastErr)
			t.logger.Warn("%s attempt %d failed (%v), retrying in %s", t.provider, attempt, lastErr, wait)
			if err := sleepContext(ctx, wait); err != nil {
				return nil, err
			}
		}

		body, err := t.do(ctx, url, headers, payload)
		if err == nil {
			return body, nil
		}
		if !shouldRetry(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%s: giving up after %d attempts: %w", t.provider, t.retryMax+1, lastErr)
}

func (t *transport) do(ctx context.Context, url string, headers map[string]string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", t.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyAPIError(t.provider, resp, body)
	}
	return body, nil
}

func (t *transport) backoff(attempt int, lastErr error) time.Duration {
	var rl *RateLimitError
	if errors.As(lastErr, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	d := t.baseDelay << (attempt - 1)
	if d > t.maxDelay || d <= 0 {
		d = t.maxDelay
	}
	return withJitter(d)
}

func shouldRetry(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	if errors.As(err, &rl) || errors.As(err, &se) {
		return true
	}
	return isRetryableNetErr(err)
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET)
}

// parseRetryAfterSeconds accepts delay-seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// withJitter spreads d by a factor in [0.8, 1.2)
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
