package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// IdempotencyHeader marks a write request as safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// maxRetryAfter caps how long a Retry-After header can stall a retry.
const maxRetryAfter = 5 * time.Second

// HTTPClient sends requests with retries, an optional per-attempt timeout and
// an optional circuit breaker. Only GET, HEAD and requests carrying an
// Idempotency-Key are retried. Transport errors and 5xx responses count as
// breaker failures; 429 is retried after Retry-After but counts as a success.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
	// Fallback, when set, receives the last error instead of the caller.
	Fallback func(context.Context, *http.Request, error) (*http.Response, error)
}

// Do sends req. The final attempt's response is returned whatever its status;
// ErrOpenCircuit is returned when the breaker refuses the call.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	attempts := 1
	if cl.MaxAttempts > 1 && retryable(req) {
		attempts = cl.MaxAttempts
	}
	body, err := bufferBody(req)
	if err != nil {
		return nil, fmt.Errorf("resilience: buffer request body: %w", err)
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if !cl.Breaker.Allow(ctx) {
			lastErr = ErrOpenCircuit
			break
		}
		resp, err := cl.doOnce(withBody(req.Clone(ctx), body))
		failed := err != nil || resp.StatusCode >= http.StatusInternalServerError
		cl.Breaker.Report(ctx, !failed)

		again := failed || resp.StatusCode == http.StatusTooManyRequests
		if !again {
			return resp, nil
		}
		if attempt >= attempts {
			if err != nil {
				lastErr = err
				break
			}
			return resp, nil
		}

		wait := Backoff(cl.BaseBackoff, attempt, cl.Jitter)
		if err != nil {
			lastErr = err
		} else {
			if ra, ok := retryAfter(resp); ok {
				wait = ra
			}
			lastErr = errors.New(resp.Status)
			drain(resp)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if cl.Fallback != nil {
		return cl.Fallback(ctx, req, lastErr)
	}
	return nil, lastErr
}

// doOnce sends one attempt. The per-attempt timeout stays armed until the
// response body is closed.
func (cl HTTPClient) doOnce(req *http.Request) (*http.Response, error) {
	if cl.Timeout <= 0 {
		return cl.Client.Do(req)
	}
	ctx, cancel := context.WithTimeout(req.Context(), cl.Timeout)
	resp, err := cl.Client.Do(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func retryable(req *http.Request) bool {
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		return true
	}
	return req.Header.Get(IdempotencyHeader) != ""
}

// bufferBody reads req's body once so every attempt can resend it.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer func() { _ = req.Body.Close() }()
	return io.ReadAll(req.Body)
}

func withBody(req *http.Request, body []byte) *http.Request {
	if body == nil {
		req.Body = http.NoBody
		req.GetBody = nil
		return req
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.ContentLength = int64(len(body))
	return req
}

// retryAfter parses a delay-seconds Retry-After header.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter), true
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
