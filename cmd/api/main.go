package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-api/internal/api"
	"github.com/noah-isme/invoice-api/internal/config"
	"github.com/noah-isme/invoice-api/internal/health"
	"github.com/noah-isme/invoice-api/internal/invoicing"
	"github.com/noah-isme/invoice-api/internal/obs"
	"github.com/noah-isme/invoice-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	tracingEnabled := cfg.Obs.EnableTracing
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "invoice-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	backend, kind, err := store.Open(connectCtx, store.Options{
		URL:             cfg.DatabaseURL,
		AutoMigrate:     cfg.DBAutoMigrate,
		ApplicationName: "invoice-api",
		Tracer:          obs.PGXTracer{},
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	}()
	logger.Info().Str("backend", string(kind)).Msg("store ready")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if cfg.Obs.EnablePrometheus {
			if err := redisotel.InstrumentMetrics(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		if err := redisClient.Ping(connectCtx).Err(); err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("REDIS_URL not set; idempotency disabled, rate limits are per instance")
	}

	svc, err := invoicing.NewService(invoicing.ServiceConfig{Store: backend})
	if err != nil {
		return err
	}

	var domainMetrics *obs.DomainMetrics
	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.EnablePrometheus {
		domainMetrics = obs.NewDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBucketsMS), nil)
	}

	apiRouter, err := api.NewRouter(api.Config{
		Service: svc,
		Logger:  logger,
		Metrics: domainMetrics,
	})
	if err != nil {
		return err
	}

	handler := newHandler(handlerDeps{
		cfg:         cfg,
		logger:      logger,
		api:         apiRouter,
		redis:       redisClient,
		db:          svc,
		httpMetrics: httpMetrics,
		tracing:     tracingEnabled,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Strs("routes", apiRouter.Routes()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown requested")
	health.SetReady(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
