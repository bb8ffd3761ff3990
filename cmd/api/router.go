package main

import (
	"context"
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-api/internal/api"
	"github.com/noah-isme/invoice-api/internal/common"
	"github.com/noah-isme/invoice-api/internal/config"
	"github.com/noah-isme/invoice-api/internal/health"
	"github.com/noah-isme/invoice-api/internal/obs"
	"github.com/noah-isme/invoice-api/internal/ratelimit"
	"github.com/noah-isme/invoice-api/internal/security"
)

type handlerDeps struct {
	cfg         *config.Config
	logger      zerolog.Logger
	api         *api.Router
	redis       *redis.Client
	db          health.Pinger
	httpMetrics *obs.HTTPMetrics
	metrics     http.Handler
	tracing     bool
}

func newHandler(d handlerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.cfg.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", common.ReplayHeader, "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{HSTS: d.cfg.HSTSMaxAge, NoStore: true}.Middleware)
	r.NotFound(d.api.NotFound)
	r.MethodNotAllowed(d.api.NotFound)

	if d.httpMetrics != nil {
		metrics := d.metrics
		if metrics == nil {
			metrics = promhttp.Handler()
		}
		r.Handle("/metrics", metrics)
	}
	if d.cfg.Obs.EnablePprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), d.cfg.Obs.PprofBasicAuthUser, d.cfg.Obs.PprofBasicAuthPass))
	}

	healthHandler := health.Handler{
		DB:           d.db,
		DBTimeout:    d.cfg.Obs.ReadyDBTimeout,
		RedisTimeout: d.cfg.Obs.ReadyRedisTimeout,
	}
	if d.redis != nil {
		rdb := d.redis
		healthHandler.Redis = health.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	// RATE_LIMIT_WRITE_MAX=0 turns write limiting off.
	var limiter ratelimit.Limiter
	switch {
	case d.cfg.RateLimitWriteMax == 0:
	case d.redis != nil:
		limiter = ratelimit.SlidingRedis{Client: d.redis, Prefix: "ratelimit:"}
	default:
		limiter = ratelimit.NewMemory("ratelimit:")
	}
	limits := ratelimit.Handler{
		Limiter: limiter,
		Config: ratelimit.Config{
			Key:        ratelimit.ClientKey,
			Window:     d.cfg.RateLimitWindow,
			Max:        d.cfg.RateLimitWriteMax,
			WritesOnly: true,
		},
		OnError: func(err error) {
			d.logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}
	idem := common.Idem{R: d.redis, TTL: d.cfg.IdempotencyTTL}

	r.Group(func(g chi.Router) {
		g.Use(security.BodyLimit{Max: d.cfg.BodyLimitBytes}.Middleware)
		g.Use(limits.Middleware)
		g.Use(idem.Middleware)
		g.Handle("/api", d.api)
		g.Handle("/api/*", d.api)
	})
	return r
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return http.StripPrefix("/debug/pprof", mux)
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorised", nil)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
