package httpapi

import "strings"

// placeholderLoginSecret is the literal hard-coded credential carried over
// from the original source for fidelity to the design note: this is a stub,
// not a credential verifier, and must not be reused elsewhere.
// TODO: replace with a real check against the tokens table.
const placeholderLoginSecret = "burgonet-dev-login"

// checkLogin is Phase 1 step 8, the flagged placeholder login guard. It
// runs last in admission, after auth/routing/rate/group/budget have all
// passed, matching the observed ordering in the original source rather than
// gating on it independently. Requests whose path doesn't start with
// "/login" always pass.
func (h *gatewayHandler) checkLogin(path string, header func(string) string) bool {
	if !strings.HasPrefix(path, "/login") {
		return true
	}
	guardHeader := h.deps.Auth.LoginGuardHeader
	want := h.deps.Auth.LoginGuardValue
	if want == "" {
		want = placeholderLoginSecret
	}
	return guardHeader != "" && header(guardHeader) == want
}
