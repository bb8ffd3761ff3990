package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	counted := Handler{
		Limiter: SlidingRedis{Client: client, Prefix: "ratelimit:"},
		Config: Config{
			Key:    func(*http.Request) string { return "static" },
			Window: time.Second,
			Max:    1,
		},
	}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/customers", nil)
	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.JSONEq(t, `{"error":"rate limit exceeded","code":"RATE_LIMITED"}`, rr2.Body.String())
}

func TestHandlerMiddlewareWritesOnly(t *testing.T) {
	counted := Handler{
		Limiter: NewMemory("test:"),
		Config: Config{
			Key:        ClientKey,
			Window:     time.Minute,
			Max:        1,
			WritesOnly: true,
		},
	}.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		counted.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/invoices", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/invoices", nil)
		req.RemoteAddr = ip + ":5000"
		rr := httptest.NewRecorder()
		counted.ServeHTTP(rr, req)
		return rr.Code
	}
	require.Equal(t, http.StatusOK, post("10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, post("10.0.0.1"))
	require.Equal(t, http.StatusOK, post("10.0.0.2"))
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	called := false
	counted := Handler{
		Limiter: SlidingRedis{Client: client, Prefix: "ratelimit:"},
		Config: Config{
			Key:    func(*http.Request) string { return "err" },
			Window: time.Second,
			Max:    1,
		},
		OnError: func(error) { called = true },
	}.Middleware(okHandler())

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/customers", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}
