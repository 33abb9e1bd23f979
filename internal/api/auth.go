package api

import (
	"net/http"

	"github.com/kmoray/trestle/internal/auth"
)

// extractAPIKey accepts the key from X-API-Key or an Authorization bearer
// header; the explicit header wins when both are present.
func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	key, err := auth.ExtractBearerToken(r)
	if err != nil {
		return ""
	}
	return key
}

// authMiddleware authenticates the presented key and attaches the
// resulting principal to the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			s.writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		principal, ok := auth.Authenticate(key, s.config.APIKey, s.config.Tokens)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// requireScopes gates a route on the principal holding any of the scopes.
// The admin wildcard always passes.
func (s *Server) requireScopes(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				s.writeError(w, http.StatusUnauthorized, "missing API key")
				return
			}
			if !auth.HasAnyScope(principal, scopes...) {
				s.writeError(w, http.StatusForbidden, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
