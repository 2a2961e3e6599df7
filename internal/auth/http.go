// ABOUTME: HTTP middleware for MCP token authentication
// ABOUTME: Reads the token from ?token= or a bearer header and adds the principal to context

package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// extractToken returns the token carried by the request. The token query
// parameter wins; the Authorization bearer header is the fallback carrier.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Middleware authenticates every request through the gate before calling next.
// Failures are answered with {"error": ...} and never reach next.
func Middleware(gate *Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := gate.Authenticate(r.Context(), extractToken(r))
			if err != nil {
				status := StatusCode(err)
				if status == http.StatusInternalServerError {
					gate.logger.Error("token lookup failed", "error", err)
				} else {
					gate.logger.Info("rejected MCP request", "reason", err.Error(), "remote_addr", r.RemoteAddr)
				}
				writeError(w, status, ErrorMessage(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
