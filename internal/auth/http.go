// ABOUTME: HTTP middleware for session authentication on API endpoints
// ABOUTME: Extracts the session token from Authorization header or cookie and adds Identity to context

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// SessionToken returns the session token from the Authorization header,
// falling back to the named cookie. Returns "" when neither is present.
func SessionToken(r *http.Request, cookieName string) string {
	if token, errMsg := extractBearerToken(r.Header.Get("Authorization")); errMsg == "" {
		return token
	}
	if cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// StatusFor maps gate and admission errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the error text shown to callers.
func publicMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "access denied"
	default:
		return "internal server error"
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// MiddlewareConfig configures HTTPAuthMiddleware.
type MiddlewareConfig struct {
	Gate       *Gate
	Policy     *Policy // nil skips admission (authentication only)
	CookieName string
	Logger     *slog.Logger
}

// HTTPAuthMiddleware authorizes the caller and, when a Policy is set, applies it.
// On success the Identity is stored in the request context.
func HTTPAuthMiddleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r, cfg.CookieName)

			id, err := cfg.Gate.Authorize(r.Context(), token)
			if err != nil {
				status := StatusFor(err)
				if status == http.StatusInternalServerError {
					logger.Error("authorization failed", "error", err)
				} else {
					logger.Debug("request rejected", "status", status, "reason", err)
				}
				writeJSONError(w, status, publicMessage(status))
				return
			}

			if cfg.Policy != nil {
				warning, err := cfg.Policy.Admit(id)
				if err != nil {
					logger.Info("admission denied", "account_id", id.AccountID, "reason", err)
					writeJSONError(w, http.StatusForbidden, publicMessage(http.StatusForbidden))
					return
				}
				if warning != "" {
					logger.Warn("admitting inactive account", "account_id", id.AccountID, "status", id.Status)
					id.Warning = warning
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
