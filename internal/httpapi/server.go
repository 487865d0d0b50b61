package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// TokenInvalidator drops a cached bearer-token-to-user mapping. Implemented
// by the pipeline's internal token cache; exposed so the admin API can keep
// the gateway's cache consistent with its own token mutations.
type TokenInvalidator interface {
	Invalidate(token string)
}

// New builds the client-facing HTTP handler: security headers, recovery,
// request ID, logging, then the catch-all gateway pipeline. Health and
// metrics endpoints bypass the pipeline entirely. The returned
// TokenInvalidator lets callers (the admin API) evict stale token-cache
// entries after a token mutation.
func New(deps Deps, ready ReadyChecker) (http.Handler, TokenInvalidator, error) {
	h, err := newGatewayHandler(deps)
	if err != nil {
		return nil, nil, fmt.Errorf("httpapi: %w", err)
	}
	s := &server{deps: deps, ready: ready}

	r := chi.NewRouter()
	r.Use(s.securityHeaders)
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	// /login is not a distinct endpoint: it is matched like any other model
	// route and gated by the Phase 1 login-guard check (admit's last step),
	// which runs after auth/routing/rate/group/budget -- preserving the
	// observed ordering in the original source. A request to /login that
	// passes admission is forwarded upstream exactly like any other model.

	r.NotFound(h.ServeHTTP)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { h.ServeHTTP(w, r) })
	// Any path not matched above (i.e. every client-facing model route)
	// falls through to NotFound, which runs the gateway pipeline. chi's
	// NotFound handler still executes the middleware stack above.

	return r, h.tokens, nil
}

type server struct {
	deps  Deps
	ready ReadyChecker
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse(err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
