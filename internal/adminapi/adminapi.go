// Package adminapi implements loopback-only CRUD over the tokens and groups
// tables. Trust here rests entirely on bind-address: the listener is meant
// to be reachable only from localhost, so there is no authentication layer
// of its own -- unlike the client-facing gateway, which authenticates every
// request.
package adminapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	gateway "github.com/burgonet-eu/gateway/internal"
	"github.com/burgonet-eu/gateway/internal/storage"
)

const maxAdminBody = 1 << 20

// TokenInvalidator is notified when a token mapping changes, so the
// client-facing gateway's token-resolution cache doesn't serve a stale
// answer after an admin mutation.
type TokenInvalidator interface {
	Invalidate(token string)
}

// Deps holds the dependencies wired into the admin API.
type Deps struct {
	Store       storage.Store
	Invalidator TokenInvalidator // nil disables cache invalidation
}

// New builds the admin API handler: list/set/delete tokens, list every
// user's groups, set one user's groups.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}
	r := chi.NewRouter()
	r.Get("/admin/v1/tokens", s.handleListTokens)
	r.Put("/admin/v1/tokens/{token}", s.handleSetToken)
	r.Delete("/admin/v1/tokens/{token}", s.handleDeleteToken)
	r.Get("/admin/v1/groups", s.handleListGroups)
	r.Put("/admin/v1/groups/{user}", s.handleSetGroups)
	return r
}

type server struct {
	deps Deps
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAdminBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, gateway.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse("not found"))
		return
	}
	slog.LogAttrs(r.Context(), slog.LevelError, "admin store error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
}

func (s *server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.deps.Store.ListTokens(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

type setTokenRequest struct {
	User string `json:"user"`
}

func (s *server) handleSetToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	var req setTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.User == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("user is required"))
		return
	}

	wtx, err := s.deps.Store.BeginWrite(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	defer wtx.Discard()
	if err := wtx.SetToken(r.Context(), token, req.User); err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := wtx.Commit(r.Context()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	if s.deps.Invalidator != nil {
		s.deps.Invalidator.Invalidate(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	wtx, err := s.deps.Store.BeginWrite(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	defer wtx.Discard()
	if err := wtx.DeleteToken(r.Context(), token); err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := wtx.Commit(r.Context()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	if s.deps.Invalidator != nil {
		s.deps.Invalidator.Invalidate(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.deps.Store.ListGroups(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

type setGroupsRequest struct {
	Groups []string `json:"groups"`
}

func (s *server) handleSetGroups(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	var req setGroupsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	wtx, err := s.deps.Store.BeginWrite(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	defer wtx.Discard()
	if err := wtx.SetGroups(r.Context(), user, req.Groups); err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := wtx.Commit(r.Context()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
