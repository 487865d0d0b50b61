package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/burgonet-eu/gateway/internal/ratelimit"
)

// RateLimitEvictor periodically sweeps the rate limiter registry, dropping
// per-(user, model) buckets untouched since before the retention window so a
// long-running process with a large, slowly-rotating user set doesn't grow
// its limiter map without bound.
type RateLimitEvictor struct {
	Registry  *ratelimit.Registry
	Interval  time.Duration
	Retention time.Duration
}

// NewRateLimitEvictor constructs a RateLimitEvictor with the given sweep
// interval and staleness retention window.
func NewRateLimitEvictor(reg *ratelimit.Registry, interval, retention time.Duration) *RateLimitEvictor {
	return &RateLimitEvictor{Registry: reg, Interval: interval, Retention: retention}
}

func (w *RateLimitEvictor) Name() string { return "rate_limit_evictor" }

func (w *RateLimitEvictor) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			evicted := w.Registry.EvictStale(now.Add(-w.Retention))
			if evicted > 0 {
				slog.Info("rate limiter buckets evicted", "count", evicted)
			}
		}
	}
}
