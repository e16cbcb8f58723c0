// Package auth guards routes behind bearer-token authentication and flat
// role checks.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"registrar/internal/auth/token"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/requestcontext"
)

// TokenValidator verifies an access token string.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// SessionChecker reports whether the token's server-side session is still
// active, so revocation takes effect before token expiry.
type SessionChecker interface {
	IsActive(ctx context.Context, sessionID string) (bool, error)
}

// RequireAuth rejects requests without a valid bearer token. On success the
// authenticated identity lands in the request context.
func RequireAuth(validator TokenValidator, sessions SessionChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "missing bearer token",
					"request_id", requestcontext.RequestID(ctx))
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.Validate(raw)
			if err != nil {
				logger.WarnContext(ctx, "invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx))
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			if sessions != nil {
				active, err := sessions.IsActive(ctx, claims.SessionID)
				if err != nil {
					logger.ErrorContext(ctx, "check session",
						"error", err,
						"request_id", requestcontext.RequestID(ctx))
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to validate session"))
					return
				}
				if !active {
					logger.WarnContext(ctx, "revoked session",
						"session_id", claims.SessionID,
						"request_id", requestcontext.RequestID(ctx))
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "session has been revoked"))
					return
				}
			}

			ctx = requestcontext.WithUserID(ctx, claims.UserID)
			ctx = requestcontext.WithUsername(ctx, claims.Username)
			ctx = requestcontext.WithRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose role is not in the allow
// list. Roles are flat; admin gets no implicit access to other surfaces.
func RequireRole(logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := requestcontext.Role(ctx)
			if !allowed[role] {
				logger.WarnContext(ctx, "role not permitted",
					"role", role,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx))
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
