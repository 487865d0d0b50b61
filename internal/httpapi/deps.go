package httpapi

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/burgonet-eu/gateway/internal/budget"
	"github.com/burgonet-eu/gateway/internal/config"
	"github.com/burgonet-eu/gateway/internal/inspector"
	"github.com/burgonet-eu/gateway/internal/ratelimit"
	"github.com/burgonet-eu/gateway/internal/routing"
	"github.com/burgonet-eu/gateway/internal/storage"
	"github.com/burgonet-eu/gateway/internal/telemetry"
)

// UsageMirror best-effort mirrors a committed usage delta to an external
// store. commitID is a globally unique idempotency key for this commit
// (stable across retries of the same commit, distinct across different
// ones); callers must not derive it from the delta value alone, since two
// legitimate commits can carry the same delta. Implemented by
// internal/usagemirror; nil disables mirroring.
type UsageMirror interface {
	Record(user, model, direction, commitID string, delta int64)
}

// Deps holds the dependencies wired into the gateway pipeline.
type Deps struct {
	Store       storage.Store
	Routes      *routing.Registry
	RateLimiter *ratelimit.Registry
	Inspector   *inspector.Inspector
	Metrics     *telemetry.Metrics
	Tracer      trace.Tracer // carried for wiring; the pipeline starts no spans with it
	Mirror      UsageMirror  // nil disables the usage mirror

	Auth         config.AuthConfig
	MaxBodyBytes int64

	// MetricsHandler, when set, is mounted at /metrics.
	MetricsHandler http.Handler
}

// budgetCheck is a package-level indirection point so tests can stub the
// budget checker without a real store snapshot; production wiring always
// calls budget.Check.
var budgetCheck = budget.Check
