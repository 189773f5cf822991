package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kubesage/kubesage-backend/internal/auth"
)

// Auth extracts the bearer token, resolves it to a principal and stores the
// principal on the request context. Missing or bad credentials yield 401; an
// unreachable identity service yields 503 so callers can distinguish "retry"
// from "re-login".
func Auth(validator auth.Validator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}

			p, err := validator.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrUnavailable) {
					log.Error("token validation unavailable", "error", err)
					writeAuthError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "authentication service unavailable")
					return
				}
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authentication credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
