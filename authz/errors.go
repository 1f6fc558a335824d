package authz

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the category of an authorization failure.
type Kind string

const (
	KindMissingAuthHeader       Kind = "missing_auth_header"
	KindMalformedAuthHeader     Kind = "malformed_auth_header"
	KindMalformedToken          Kind = "malformed_token"
	KindUnsupportedAlgorithm    Kind = "unsupported_algorithm"
	KindUnknownSigningKey       Kind = "unknown_signing_key"
	KindInvalidSignature        Kind = "invalid_signature"
	KindInvalidIssuer           Kind = "invalid_issuer"
	KindInvalidAudience         Kind = "invalid_audience"
	KindTokenExpired            Kind = "token_expired"
	KindTokenNotYetValid        Kind = "token_not_yet_valid"
	KindInsufficientPermissions Kind = "insufficient_permissions"
	KindPermissionsClaimMissing Kind = "permissions_claim_missing"
)

// Status returns the HTTP status a boundary layer should answer with.
// Authentication failures map to 401, authorization failures to 403.
func (k Kind) Status() int {
	switch k {
	case KindInsufficientPermissions, KindPermissionsClaimMissing:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// IsAuthentication reports whether the kind belongs to the extraction or
// verification stage rather than permission enforcement.
func (k Kind) IsAuthentication() bool {
	return k.Status() == http.StatusUnauthorized
}

// AuthorizationError is the single error type produced by every stage of the
// authorization pipeline.
type AuthorizationError struct {
	Kind        Kind
	Status      int
	Description string

	// Required and Granted are set for permission failures.
	Required string
	Granted  []string

	Err error
}

// Error implements the error interface
func (e *AuthorizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Unwrap implements errors.Unwrap
func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// Challenge returns the WWW-Authenticate value for the failure, or "" when
// the request did carry a bearer credential.
func (e *AuthorizationError) Challenge() string {
	if e.Kind == KindMissingAuthHeader || e.Kind == KindMalformedAuthHeader {
		return "Bearer"
	}
	return ""
}

// Is matches any AuthorizationError of the same kind, so the package level
// sentinels can be used with errors.Is.
func (e *AuthorizationError) Is(target error) bool {
	t, ok := target.(*AuthorizationError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, description string, err error) *AuthorizationError {
	return &AuthorizationError{
		Kind:        kind,
		Status:      kind.Status(),
		Description: description,
		Err:         err,
	}
}

func insufficientPermissions(required string, granted []string) *AuthorizationError {
	e := newError(KindInsufficientPermissions,
		fmt.Sprintf("permission %q not granted", required), nil)
	e.Required = required
	e.Granted = granted
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrMissingAuthHeader       = newError(KindMissingAuthHeader, "authorization header is expected", nil)
	ErrMalformedAuthHeader     = newError(KindMalformedAuthHeader, "authorization header must be bearer token", nil)
	ErrMalformedToken          = newError(KindMalformedToken, "unable to parse authentication token", nil)
	ErrUnsupportedAlgorithm    = newError(KindUnsupportedAlgorithm, "token signing algorithm is not allowed", nil)
	ErrUnknownSigningKey       = newError(KindUnknownSigningKey, "unable to find the appropriate key", nil)
	ErrInvalidSignature        = newError(KindInvalidSignature, "token signature is invalid", nil)
	ErrInvalidIssuer           = newError(KindInvalidIssuer, "incorrect issuer", nil)
	ErrInvalidAudience         = newError(KindInvalidAudience, "incorrect audience", nil)
	ErrTokenExpired            = newError(KindTokenExpired, "token expired", nil)
	ErrTokenNotYetValid        = newError(KindTokenNotYetValid, "token is not valid yet", nil)
	ErrInsufficientPermissions = newError(KindInsufficientPermissions, "permission not found", nil)
	ErrPermissionsClaimMissing = newError(KindPermissionsClaimMissing, "permissions not included in token", nil)
)

// AsAuthorizationError extracts an AuthorizationError from an error chain.
func AsAuthorizationError(err error) (*AuthorizationError, bool) {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// KindOf returns the kind of an authorization error, or an empty Kind.
func KindOf(err error) Kind {
	if authErr, ok := AsAuthorizationError(err); ok {
		return authErr.Kind
	}
	return ""
}

// ensureAuthorizationError keeps the taxonomy closed: anything that is not
// already an AuthorizationError is reported as the given kind.
func ensureAuthorizationError(err error, fallback Kind, description string) *AuthorizationError {
	if authErr, ok := AsAuthorizationError(err); ok {
		return authErr
	}
	return newError(fallback, description, err)
}
