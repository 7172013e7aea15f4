package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gatewarden/gatewarden/internal/platform/httpx"
	"github.com/gatewarden/gatewarden/internal/shared"
)

// Middleware authenticates requests and injects the resolved actor into the
// request context. Requests without a valid API key are rejected with 401.
type Middleware struct {
	service *Service
	logger  *slog.Logger
}

// NewMiddleware constructs the authentication middleware.
func NewMiddleware(service *Service, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{service: service, logger: logger}
}

// RequireAPIKey wraps next with API-key authentication.
func (m *Middleware) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := bearerToken(r)
		if apiKey == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing API key")
			return
		}
		actor, err := m.service.Authenticate(r.Context(), apiKey)
		if err != nil {
			m.logger.Warn("authentication failed", "path", r.URL.Path, "error", err)
			httpx.RespondError(w, shared.ErrInvalidCredentials)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// bearerToken reads the API key from the Authorization header, accepting the
// X-Api-Key header as a fallback for non-browser clients.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-Api-Key"))
}
