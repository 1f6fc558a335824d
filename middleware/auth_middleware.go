package middleware

import (
	"net/http"

	"github.com/arthurmvo/Coffee-Shop/authz"
	"go.uber.org/zap"
)

// AuthMiddleware adapts an authz.Guard to chi style middleware
type AuthMiddleware struct {
	guard  *authz.Guard
	logger *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(guard *authz.Guard, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		guard:  guard,
		logger: logger,
	}
}

// RequirePermission is a middleware that lets a request through only when its
// bearer token grants permission. The verified claims are put in the request
// context for the next handler.
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	wrap := m.guard.RequirePermission(permission)

	return func(next http.Handler) http.Handler {
		return wrap(func(w http.ResponseWriter, r *http.Request, claims *authz.ClaimSet) {
			ctx := r.Context()

			m.logger.Debug("permission granted",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.String("sub", claims.Subject()),
				zap.String("permission", permission))

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}
