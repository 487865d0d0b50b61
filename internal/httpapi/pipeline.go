// Package httpapi wires the chi router and the five-phase gateway pipeline
// of SPEC_FULL.md §4.7: admission, request body inspection, upstream
// forwarding, response inspection, and logging/accounting.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gateway "github.com/burgonet-eu/gateway/internal"
	"github.com/burgonet-eu/gateway/internal/parser"
	"github.com/burgonet-eu/gateway/internal/storage"
)

// gatewayHandler serves every client-facing request through the five
// phases. A single instance is shared across requests; per-request state
// lives entirely in the gateway.GatewayContext built at the top of
// ServeHTTP.
type gatewayHandler struct {
	deps   Deps
	tokens *tokenCache
}

func newGatewayHandler(deps Deps) (*gatewayHandler, error) {
	tc, err := newTokenCache()
	if err != nil {
		return nil, err
	}
	return &gatewayHandler{deps: deps, tokens: tc}, nil
}

func (h *gatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gc := &gateway.GatewayContext{
		ArrivedAt: time.Now().UTC(),
		RequestID: gateway.RequestIDFromContext(r.Context()),
	}
	r = r.WithContext(gateway.ContextWithGatewayContext(r.Context(), gc))
	defer h.releaseSnapshot(gc)

	model, status, err := h.admit(r, gc)
	if err != nil {
		h.deny(w, r, gc, status, err)
		return
	}
	gc.Model = &model

	body, status, err := h.inspectRequest(r, gc, model)
	if err != nil {
		h.deny(w, r, gc, status, err)
		return
	}

	respBody, respHeader, upstreamStatus, err := h.forward(r.Context(), r.Method, model, body)
	if err != nil {
		h.deny(w, r, gc, errorStatus(err), err)
		return
	}

	parseErr := h.parseResponse(gc, model, respBody)

	status = upstreamStatus
	if parseErr != nil {
		status = errorStatus(parseErr)
	}
	h.logAndCommit(r.Context(), gc, model, status)

	if parseErr != nil {
		writeJSON(w, status, errorResponse(parseErr.Error()))
		return
	}

	writeResponseHeaders(w.Header(), respHeader)
	w.WriteHeader(upstreamStatus)
	w.Write(respBody)
}

// writeResponseHeaders implements Phase 4's header rewrite: the upstream's
// headers are copied through, then Server is forced, alt-svc and
// Content-Length are stripped, and the response is repackaged as a chunked
// stream regardless of how upstream framed it.
func writeResponseHeaders(dst http.Header, upstream http.Header) {
	for k, vv := range upstream {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	dst.Del("Content-Length")
	dst.Del("Alt-Svc")
	dst.Set("Server", "Burgonet")
	dst.Set("Transfer-Encoding", "chunked")
}

// admit runs Phase 1 (admission): authenticate the caller, resolve the
// model, and check rate/group/budget policy against the read snapshot.
func (h *gatewayHandler) admit(r *http.Request, gc *gateway.GatewayContext) (gateway.Model, int, error) {
	ctx := r.Context()

	tx, err := h.deps.Store.BeginRead(ctx)
	if err != nil {
		return gateway.Model{}, errorStatus(gateway.ErrStoreIO), fmt.Errorf("%w: begin read: %v", gateway.ErrStoreIO, err)
	}
	gc.ReadTxn = tx

	user, err := h.authenticate(ctx, r, tx)
	if err != nil {
		h.releaseSnapshot(gc)
		return gateway.Model{}, errorStatus(err), err
	}
	gc.User = user

	model, ok := h.deps.Routes.Resolve(r.URL.Path)
	if !ok {
		h.releaseSnapshot(gc)
		return gateway.Model{}, errorStatus(gateway.ErrNotFound), gateway.ErrNotFound
	}

	if res := h.deps.RateLimiter.Check(user, model.Location, model.Rate); !res.Allowed {
		h.releaseSnapshot(gc)
		return gateway.Model{}, errorStatus(gateway.ErrRateExceeded), gateway.ErrRateExceeded
	}

	if err := h.checkGroup(ctx, tx, user, model); err != nil {
		h.releaseSnapshot(gc)
		return gateway.Model{}, errorStatus(err), err
	}

	if err := budgetCheck(ctx, tx, user, model.Location, gc.ArrivedAt, model.Budget); err != nil {
		h.releaseSnapshot(gc)
		return gateway.Model{}, errorStatus(err), err
	}

	if !h.checkLogin(r.URL.Path, r.Header.Get) {
		h.releaseSnapshot(gc)
		return gateway.Model{}, errorStatus(gateway.ErrLoginDenied), gateway.ErrLoginDenied
	}

	return model, 0, nil
}

// authenticate implements Phase 1 steps 1-3: bearer token via the read
// snapshot, else the first configured trusted header present.
func (h *gatewayHandler) authenticate(ctx context.Context, r *http.Request, tx storage.ReadTxn) (string, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
			user, found, err := h.tokens.resolve(ctx, tx, token)
			if err != nil {
				return "", fmt.Errorf("%w: token lookup: %v", gateway.ErrStoreIO, err)
			}
			if !found || user == "" {
				return "", gateway.ErrUnauthenticated
			}
			return user, nil
		}
	}

	for _, name := range h.deps.Auth.TrustHeaderAuthentication {
		if v := r.Header.Get(name); v != "" {
			return v, nil
		}
	}

	return "", gateway.ErrUnauthenticated
}

func (h *gatewayHandler) checkGroup(ctx context.Context, tx storage.ReadTxn, user string, model gateway.Model) error {
	if len(model.DisabledGroups) == 0 {
		return nil
	}
	groups, err := tx.Groups(ctx, user)
	if err != nil {
		return fmt.Errorf("%w: groups lookup: %v", gateway.ErrStoreIO, err)
	}
	for _, g := range groups {
		for _, disabled := range model.DisabledGroups {
			if g == disabled {
				return fmt.Errorf("%w: group %q", gateway.ErrGroupDenied, g)
			}
		}
	}
	return nil
}

// inspectRequest runs Phase 2: buffer the request body (enforcing the size
// cap) and evaluate blacklist/PII policy against it.
func (h *gatewayHandler) inspectRequest(r *http.Request, gc *gateway.GatewayContext, model gateway.Model) ([]byte, int, error) {
	limit := h.deps.MaxBodyBytes
	if limit <= 0 {
		limit = 4 << 20
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, errorStatus(gateway.ErrStoreIO), fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, errorStatus(gateway.ErrBodyTooLarge), gateway.ErrBodyTooLarge
	}
	gc.Buffer = body

	if err := h.deps.Inspector.Inspect(r.Context(), model, body); err != nil {
		return nil, errorStatus(err), err
	}
	return body, 0, nil
}

// forward implements Phase 3 (upstream_peer): builds and sends the upstream
// request, injecting the model's credential and content headers.
func (h *gatewayHandler) forward(ctx context.Context, method string, model gateway.Model, body []byte) ([]byte, http.Header, int, error) {
	target, err := url.Parse(model.ProxyPass)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, nil, 0, fmt.Errorf("%w: %q", gateway.ErrBadUpstreamURL, model.ProxyPass)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: build request: %v", gateway.ErrBadUpstreamURL, err)
	}
	req.Header.Set("Authorization", "Bearer "+model.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if gc := gateway.FromContext(ctx); gc != nil && gc.RequestID != "" {
		req.Header.Set("X-Request-Id", gc.RequestID)
	}
	req.Host = target.Host

	resp, err := upstreamClient.Do(req)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", gateway.ErrBadUpstreamURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: read response: %v", gateway.ErrStoreIO, err)
	}
	return respBody, resp.Header, resp.StatusCode, nil
}

// parseResponse implements the accounting half of Phase 4: dispatches to
// the configured response parser and stashes the attributed token counts on
// the context. A parser failure zero-attributes the request and is
// returned so the caller can surface HTTP 500 on the response path.
func (h *gatewayHandler) parseResponse(gc *gateway.GatewayContext, model gateway.Model, body []byte) error {
	in, out, err := parser.Parse(model.Parser, body)
	if err != nil {
		slog.LogAttrs(context.Background(), slog.LevelError, "response parser failed",
			slog.String("model", model.Location),
			slog.String("parser", model.Parser),
			slog.String("error", err.Error()),
		)
		return err
	}
	gc.InputTokens = in
	gc.OutputTokens = out
	return nil
}

// logAndCommit implements Phase 5: increments usage counters for all four
// granularities in both directions, commits, and records metrics. It runs
// for every request that got an upstream reply; requests denied at
// admission or inspection, and upstream failures, are counted and logged by
// deny instead. If the client disconnected before a response was written,
// status is forced to 0 and no usage is attributed, per the cancellation
// contract.
func (h *gatewayHandler) logAndCommit(ctx context.Context, gc *gateway.GatewayContext, model gateway.Model, status int) {
	if ctx.Err() != nil {
		status = 0
		gc.InputTokens, gc.OutputTokens = 0, 0
	}
	gc.StatusCode = status

	if h.deps.Metrics != nil {
		h.deps.Metrics.ReqCounter.WithLabelValues(model.Location, fmt.Sprint(status)).Inc()
	}

	if gc.InputTokens > 0 || gc.OutputTokens > 0 {
		if err := h.commitUsage(ctx, gc, model); err != nil {
			slog.LogAttrs(ctx, slog.LevelError, "usage commit failed",
				slog.String("user", gc.User), slog.String("model", model.Location),
				slog.String("error", err.Error()))
		} else if h.deps.Metrics != nil {
			h.deps.Metrics.InputTokens.WithLabelValues(gc.User, model.Location).Add(float64(gc.InputTokens))
			h.deps.Metrics.OutputTokens.WithLabelValues(gc.User, model.Location).Add(float64(gc.OutputTokens))
		}
	}

	slog.LogAttrs(ctx, slog.LevelInfo, "request",
		slog.String("user", gc.User),
		slog.String("model", model.Location),
		slog.Int("status", status),
		slog.Int64("input_tokens", gc.InputTokens),
		slog.Int64("output_tokens", gc.OutputTokens),
		slog.String("request_id", gc.RequestID),
	)
}

func (h *gatewayHandler) commitUsage(ctx context.Context, gc *gateway.GatewayContext, model gateway.Model) error {
	wtx, err := h.deps.Store.BeginWrite(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin write: %v", gateway.ErrStoreIO, err)
	}
	defer wtx.Discard()

	// commitID is per-request, not per-delta: the mirror's idempotency
	// marker must distinguish two legitimate commits that happen to carry
	// the same token delta.
	inputCommitID := gc.RequestID + ":" + string(gateway.DirectionInput)
	outputCommitID := gc.RequestID + ":" + string(gateway.DirectionOutput)

	for _, g := range gateway.AllGranularities {
		if gc.InputTokens > 0 {
			key := gateway.PeriodKey(g, gc.ArrivedAt, gc.User, model.Location, gateway.DirectionInput)
			if err := wtx.IncrementUsage(ctx, key, uint64(gc.InputTokens)); err != nil {
				return fmt.Errorf("%w: increment %q: %v", gateway.ErrStoreIO, key, err)
			}
		}
		if gc.OutputTokens > 0 {
			key := gateway.PeriodKey(g, gc.ArrivedAt, gc.User, model.Location, gateway.DirectionOutput)
			if err := wtx.IncrementUsage(ctx, key, uint64(gc.OutputTokens)); err != nil {
				return fmt.Errorf("%w: increment %q: %v", gateway.ErrStoreIO, key, err)
			}
		}
	}
	if err := wtx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", gateway.ErrStoreIO, err)
	}

	// Mirror only after the local commit succeeded, once per direction.
	if h.deps.Mirror != nil {
		if gc.InputTokens > 0 {
			h.deps.Mirror.Record(gc.User, model.Location, string(gateway.DirectionInput), inputCommitID, gc.InputTokens)
		}
		if gc.OutputTokens > 0 {
			h.deps.Mirror.Record(gc.User, model.Location, string(gateway.DirectionOutput), outputCommitID, gc.OutputTokens)
		}
	}
	return nil
}

// deny writes an early failure response and still counts the request
// (with zero attribution, per the denial non-attribution property) before
// releasing the read snapshot. If the client already disconnected, no
// response is emitted and the logged status is forced to 0, per the
// cancellation contract.
func (h *gatewayHandler) deny(w http.ResponseWriter, r *http.Request, gc *gateway.GatewayContext, status int, err error) {
	disconnected := r.Context().Err() != nil
	if disconnected {
		status = 0
	}
	gc.StatusCode = status

	if h.deps.Metrics != nil {
		model := ""
		if gc.Model != nil {
			model = gc.Model.Location
		}
		h.deps.Metrics.ReqCounter.WithLabelValues(model, fmt.Sprint(status)).Inc()
	}
	slog.LogAttrs(r.Context(), slog.LevelWarn, "request denied",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("request_id", gc.RequestID),
	)
	if disconnected {
		return
	}
	writeJSON(w, status, errorResponse(err.Error()))
}

// releaseSnapshot releases the read snapshot exactly once, if it was opened.
func (h *gatewayHandler) releaseSnapshot(gc *gateway.GatewayContext) {
	if tx, ok := gc.ReadTxn.(storage.ReadTxn); ok && tx != nil {
		tx.Release()
		gc.ReadTxn = nil
	}
}
