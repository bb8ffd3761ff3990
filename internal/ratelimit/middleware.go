// Package ratelimit throttles API writes per client.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/invoice-api/internal/common"
)

// Config describes how requests are keyed and how many fit in a window.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
	// WritesOnly exempts GET, HEAD and OPTIONS requests.
	WritesOnly bool
}

// Handler enforces Config through Limiter. When the limiter fails the
// request is let through and OnError is told.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// ClientKey keys limits by client IP.
func ClientKey(r *http.Request) string {
	return "ip:" + common.ClientIP(r)
}

// Middleware sets X-RateLimit-* headers on limited requests and answers
// 429 with Retry-After once the window is full.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.applies(r) {
			next.ServeHTTP(w, r)
			return
		}
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		hdr := w.Header()
		hdr.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
		hdr.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		hdr.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}
		hdr.Set("Retry-After", strconv.Itoa(retryAfterSeconds(resetAt)))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
	})
}

func (h Handler) applies(r *http.Request) bool {
	if h.Limiter == nil || h.Config.Key == nil {
		return false
	}
	if !h.Config.WritesOnly {
		return true
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// retryAfterSeconds rounds up so clients never retry before the reset.
func retryAfterSeconds(resetAt time.Time) int {
	secs := math.Ceil(time.Until(resetAt).Seconds())
	return int(max(secs, 0))
}
