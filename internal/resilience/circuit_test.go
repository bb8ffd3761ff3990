package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-api/internal/resilience"
)

func TestBreakerTransitions(t *testing.T) {
	breaker := resilience.NewBreaker(2, 0.5, 50*time.Millisecond)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.False(t, breaker.Allow(ctx), "breaker should open after threshold exceeded")
	require.Equal(t, resilience.Open, breaker.State())

	time.Sleep(60 * time.Millisecond)
	require.True(t, breaker.Allow(ctx), "breaker should move to half-open after cool off")
	breaker.Report(ctx, true)
	require.True(t, breaker.Allow(ctx), "breaker should close after successful probe")
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestBreakerMetricsTransitions(t *testing.T) {
	metrics := resilience.NewMetrics("invoice", prometheus.NewRegistry())
	breaker := resilience.NewBreaker(1, 0.5, 20*time.Millisecond).WithTarget("api").WithMetrics(metrics)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.State.WithLabelValues("api")))

	require.Eventually(t, func() bool {
		return breaker.Allow(ctx)
	}, 100*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.State.WithLabelValues("api")))

	breaker.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.State.WithLabelValues("api")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Opened.WithLabelValues("api")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("api", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("api", "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("api", "half_open", "closed")))
}

func TestNilBreakerAllows(t *testing.T) {
	var breaker *resilience.Breaker
	require.True(t, breaker.Allow(context.Background()))
	require.NotPanics(t, func() { breaker.Report(context.Background(), false) })
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))

	d3 := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d3, base*2-(base*2/5))
	require.LessOrEqual(t, d3, base*2+(base*2/5))
}

func TestBreakerHalfOpenAdmitsSingleProbe(t *testing.T) {
	breaker := resilience.NewBreaker(1, 1, 10*time.Millisecond)
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())

	require.Eventually(t, func() bool { return breaker.Allow(ctx) }, 200*time.Millisecond, 2*time.Millisecond)
	require.False(t, breaker.Allow(ctx), "second caller must wait for the probe")

	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
}

func TestBreakerOldFailuresSlideOut(t *testing.T) {
	breaker := resilience.NewBreaker(2, 0.75, time.Minute)
	ctx := context.Background()

	breaker.Report(ctx, false)
	breaker.Report(ctx, true)
	breaker.Report(ctx, true)
	breaker.Report(ctx, true)
	// window of four: the early failure is evicted by these
	breaker.Report(ctx, false)
	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())

	breaker.Report(ctx, false)
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
}
