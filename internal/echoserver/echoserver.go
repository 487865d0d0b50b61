// Package echoserver implements a loopback-only HTTP listener that mirrors
// a request's method, path, and body back as JSON. Useful for verifying
// the gateway's forwarding behavior without a real upstream model.
package echoserver

import (
	"encoding/json"
	"io"
	"net/http"
)

// echoResponse is the JSON shape returned for every request.
type echoResponse struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Headers map[string][]string `json:"headers"`
	Body    string              `json:"body"`
}

// New returns a handler that echoes back the request it received.
func New() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		resp := echoResponse{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: map[string][]string(r.Header),
			Body:    string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
