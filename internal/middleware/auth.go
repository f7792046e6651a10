package middleware

import (
	"crypto/subtle"
	"net/http"

	"parcelhub-sync-agent/pkg/apierror"
)

// NewAgentKeyAuth guards the local agent API with a shared key the on-device
// UI presents in X-Agent-Key. An empty configured key disables the check,
// which is the normal mode when the agent binds loopback only.
func NewAgentKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get("X-Agent-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeError(w, apierror.Unauthorized("Invalid agent key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
