package authz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ClaimsHandlerFunc is a handler that runs only after authorization succeeded.
type ClaimsHandlerFunc func(w http.ResponseWriter, r *http.Request, claims *ClaimSet)

// ErrorHandlerFunc answers a request that failed authorization.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err *AuthorizationError)

// GuardConfig configures a Guard.
type GuardConfig struct {
	Verifier TokenVerifier

	// ErrorHandler is the single error channel for every failure.
	// Default: DefaultErrorHandler
	ErrorHandler ErrorHandlerFunc

	Recorder MetricsRecorder
	Logger   *zap.Logger
}

// Guard enforces a required permission in front of a handler.
type Guard struct {
	verifier TokenVerifier
	onError  ErrorHandlerFunc
	recorder MetricsRecorder
	logger   *zap.Logger
}

// NewGuard creates a permission guard.
func NewGuard(cfg GuardConfig) (*Guard, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Guard{
		verifier: cfg.Verifier,
		onError:  cfg.ErrorHandler,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}, nil
}

// Authorize checks that claims grant permission. A missing permissions claim
// is PermissionsClaimMissing only when the verifier's policy requires it.
func (g *Guard) Authorize(claims *ClaimSet, permission string) error {
	if claims == nil {
		return newError(KindMalformedToken, "no verified claims", nil)
	}
	if !claims.PermissionsPresent() && claims.PermissionsRequired() {
		return newError(KindPermissionsClaimMissing, "permissions not included in token", nil)
	}
	if !claims.HasPermission(permission) {
		return insufficientPermissions(permission, claims.Permissions())
	}
	return nil
}

// Check runs the whole pipeline for one request: extract the bearer token,
// verify it, then authorize it for permission. Every outcome is recorded.
func (g *Guard) Check(ctx context.Context, h Header, permission string) (*ClaimSet, error) {
	claims, err := g.check(ctx, h, permission)
	if err != nil {
		authErr := ensureAuthorizationError(err, KindMalformedToken, "unable to verify token")
		g.recorder.RecordDecision(ctx, permission, string(authErr.Kind))
		g.logger.Info("request denied",
			zap.String("permission", permission),
			zap.String("kind", string(authErr.Kind)),
			zap.String("reason", authErr.Description))
		return nil, authErr
	}

	g.recorder.RecordDecision(ctx, permission, OutcomeAllowed)
	g.logger.Debug("request authorized",
		zap.String("permission", permission),
		zap.String("subject", claims.Subject()))
	return claims, nil
}

func (g *Guard) check(ctx context.Context, h Header, permission string) (*ClaimSet, error) {
	raw, err := ExtractBearerToken(h)
	if err != nil {
		return nil, err
	}

	claims, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	if err := g.Authorize(claims, permission); err != nil {
		return nil, err
	}
	return claims, nil
}

// RequirePermission returns the wrapping function for permission. The
// wrapped handler runs only with verified, authorized claims; on any failure
// the guard's error handler answers instead.
func (g *Guard) RequirePermission(permission string) func(ClaimsHandlerFunc) http.Handler {
	return func(next ClaimsHandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := g.Check(r.Context(), r.Header, permission)
			if err != nil {
				authErr, _ := AsAuthorizationError(err)
				g.onError(w, r, authErr)
				return
			}
			next(w, r, claims)
		})
	}
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// DefaultErrorHandler writes {success:false, error:<status>, message:<description>}.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err *AuthorizationError) {
	w.Header().Set("Content-Type", "application/json")
	if challenge := err.Challenge(); challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Success: false,
		Error:   err.Status,
		Message: err.Description,
	})
}
