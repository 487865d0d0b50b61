package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/burgonet-eu/gateway/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) Invalidate(token string) {
	f.invalidated = append(f.invalidated, token)
}

func TestSetAndListTokens(t *testing.T) {
	st := newTestStore(t)
	inv := &fakeInvalidator{}
	h := New(Deps{Store: st, Invalidator: inv})

	req := httptest.NewRequest(http.MethodPut, "/admin/v1/tokens/tok-alice", strings.NewReader(`{"user":"alice"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("set token status = %d, body=%s", w.Code, w.Body.String())
	}
	if len(inv.invalidated) != 1 || inv.invalidated[0] != "tok-alice" {
		t.Errorf("invalidator not called with tok-alice: %v", inv.invalidated)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/tokens", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var tokens map[string]string
	if err := json.NewDecoder(w.Body).Decode(&tokens); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tokens["tok-alice"] != "alice" {
		t.Errorf("tokens = %v, want tok-alice -> alice", tokens)
	}
}

func TestDeleteTokenInvalidatesCache(t *testing.T) {
	st := newTestStore(t)
	wtx, _ := st.BeginWrite(context.Background())
	_ = wtx.SetToken(context.Background(), "tok-bob", "bob")
	_ = wtx.Commit(context.Background())

	inv := &fakeInvalidator{}
	h := New(Deps{Store: st, Invalidator: inv})

	req := httptest.NewRequest(http.MethodDelete, "/admin/v1/tokens/tok-bob", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if len(inv.invalidated) != 1 || inv.invalidated[0] != "tok-bob" {
		t.Errorf("invalidator not called with tok-bob: %v", inv.invalidated)
	}
}

func TestSetAndListGroups(t *testing.T) {
	st := newTestStore(t)
	h := New(Deps{Store: st})

	req := httptest.NewRequest(http.MethodPut, "/admin/v1/groups/carol", strings.NewReader(`{"groups":["hr","it"]}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("set groups status = %d, body=%s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/groups", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var groups map[string][]string
	if err := json.NewDecoder(w.Body).Decode(&groups); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(groups["carol"]) != 2 {
		t.Errorf("groups[carol] = %v, want 2 entries", groups["carol"])
	}
}

func TestSetTokenRejectsMissingUser(t *testing.T) {
	st := newTestStore(t)
	h := New(Deps{Store: st})

	req := httptest.NewRequest(http.MethodPut, "/admin/v1/tokens/tok-x", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
