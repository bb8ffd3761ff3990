package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles readiness; shutdown flips it off so load balancers drain
// the instance before the listener closes.
func SetReady(v bool) {
	ready.Store(v)
}

// Pinger is a dependency that can be probed for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Handler exposes HTTP handlers for health endpoints. A nil Redis pinger is
// reported as disabled and does not fail readiness.
type Handler struct {
	DB           Pinger
	Redis        Pinger
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "shutting down"})
		return
	}
	ctx := r.Context()
	healthy := true
	status := map[string]string{}

	if h.DB == nil {
		status["db"] = "not configured"
		healthy = false
	} else if err := probe(ctx, h.DB, h.dbTimeout()); err != nil {
		status["db"] = err.Error()
		healthy = false
	} else {
		status["db"] = "ok"
	}

	if h.Redis == nil {
		status["redis"] = "disabled"
	} else if err := probe(ctx, h.Redis, h.redisTimeout()); err != nil {
		status["redis"] = err.Error()
		healthy = false
	} else {
		status["redis"] = "ok"
	}

	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func probe(ctx context.Context, p Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(ctx)
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
