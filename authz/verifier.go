package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenVerifier validates a raw credential and returns its verified claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*ClaimSet, error)
}

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	Policy Policy
	Keys   *KeyStore
	Logger *zap.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Verifier checks signatures against a KeyStore and validates registered
// claims against a Policy.
type Verifier struct {
	policy Policy
	keys   *KeyStore
	parser *jwt.Parser
	logger *zap.Logger
	now    func() time.Time
}

// NewVerifier creates a verifier. The policy is validated up front so that a
// misconfiguration fails at startup, not per request.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	policy := cfg.Policy.withDefaults()
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid verification policy: %w", err)
	}
	if cfg.Keys == nil {
		return nil, errors.New("key store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Verifier{
		policy: policy,
		keys:   cfg.Keys,
		parser: jwt.NewParser(),
		logger: cfg.Logger,
		now:    cfg.Now,
	}, nil
}

// Policy returns the effective policy, with defaults applied.
func (v *Verifier) Policy() Policy {
	return v.policy
}

// Verify runs structural, cryptographic and claim validation, in that order,
// and fails on the first problem found.
func (v *Verifier) Verify(ctx context.Context, raw string) (*ClaimSet, error) {
	// Structure. Nothing read here is trusted yet.
	claims := jwt.MapClaims{}
	token, parts, err := v.parser.ParseUnverified(raw, claims)
	unknownAlg := err != nil && token != nil && errors.Is(err, jwt.ErrTokenUnverifiable)
	if err != nil && !unknownAlg {
		return nil, newError(KindMalformedToken, "unable to parse authentication token", err)
	}
	if len(parts) != 3 {
		return nil, newError(KindMalformedToken, "unable to parse authentication token", nil)
	}
	signature, err := v.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, newError(KindMalformedToken, "unable to decode token signature", err)
	}

	// Algorithm, checked against policy before any key is touched.
	alg, _ := token.Header["alg"].(string)
	if unknownAlg || !v.policy.allowsAlgorithm(alg) {
		return nil, newError(KindUnsupportedAlgorithm,
			fmt.Sprintf("signing algorithm %q is not allowed", alg), nil)
	}

	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, newError(KindMalformedToken, "token header has no key id", nil)
	}

	key, err := v.lookupKey(ctx, kid)
	if err != nil {
		return nil, err
	}

	// Signature.
	if key.Algorithm != "" && key.Algorithm != alg {
		return nil, newError(KindInvalidSignature,
			fmt.Sprintf("key %q is not valid for %s", kid, alg), nil)
	}
	if err := token.Method.Verify(strings.Join(parts[:2], "."), signature, key.Key); err != nil {
		return nil, newError(KindInvalidSignature, "token signature is invalid", err)
	}

	return v.validateClaims(claims)
}

// lookupKey finds kid in the store, refreshing the store at most once when the
// key is unknown. The same path populates an empty store lazily.
func (v *Verifier) lookupKey(ctx context.Context, kid string) (SigningKey, error) {
	if key, ok := v.keys.Lookup(kid); ok {
		return key, nil
	}

	refreshErr := v.keys.Refresh(ctx)
	if refreshErr != nil {
		v.logger.Debug("signing key refresh before retry failed",
			zap.String("kid", kid),
			zap.Error(refreshErr))
	}

	if key, ok := v.keys.Lookup(kid); ok {
		return key, nil
	}
	return SigningKey{}, newError(KindUnknownSigningKey,
		fmt.Sprintf("unable to find the appropriate key (kid %q)", kid), refreshErr)
}

func (v *Verifier) validateClaims(claims jwt.MapClaims) (*ClaimSet, error) {
	iss, err := claims.GetIssuer()
	if err != nil {
		return nil, newError(KindMalformedToken, "iss claim is malformed", err)
	}
	if iss != v.policy.Issuer {
		return nil, newError(KindInvalidIssuer, "incorrect issuer, please check the issuer", nil)
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return nil, newError(KindMalformedToken, "aud claim is malformed", err)
	}
	if !containsString(aud, v.policy.Audience) {
		return nil, newError(KindInvalidAudience, "incorrect audience, please check the audience", nil)
	}

	now := v.now()

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, newError(KindMalformedToken, "exp claim is malformed", err)
	}
	if exp == nil {
		return nil, newError(KindMalformedToken, "token has no expiration", nil)
	}
	// Expired at exp itself, not one tick after.
	if !now.Before(exp.Time) {
		return nil, newError(KindTokenExpired, "token expired", nil)
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return nil, newError(KindMalformedToken, "nbf claim is malformed", err)
	}
	var notBefore time.Time
	if nbf != nil {
		notBefore = nbf.Time
		if now.Before(notBefore) {
			return nil, newError(KindTokenNotYetValid, "token is not valid yet", nil)
		}
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, newError(KindMalformedToken, "iat claim is malformed", err)
	}
	var issuedAt time.Time
	if iat != nil {
		issuedAt = iat.Time
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, newError(KindMalformedToken, "sub claim is malformed", err)
	}

	permissions, present, err := parsePermissions(claims[v.policy.PermissionsClaim])
	if err != nil {
		return nil, newError(KindMalformedToken,
			fmt.Sprintf("%s claim is malformed", v.policy.PermissionsClaim), err)
	}

	set := newClaimSet(claims, iss, sub, aud, exp.Time, notBefore, issuedAt, permissions, present)
	set.permissionsRequired = v.policy.RequirePermissionsClaim
	return set, nil
}

// parsePermissions accepts a JSON array of strings or a space-delimited
// string (OAuth scope style). A missing or null claim is reported as absent.
func parsePermissions(v interface{}) ([]string, bool, error) {
	switch p := v.(type) {
	case nil:
		return nil, false, nil
	case string:
		return strings.Fields(p), true, nil
	case []string:
		return p, true, nil
	case []interface{}:
		out := make([]string, 0, len(p))
		for _, item := range p {
			s, ok := item.(string)
			if !ok {
				return nil, true, fmt.Errorf("permission %v is not a string", item)
			}
			out = append(out, s)
		}
		return out, true, nil
	default:
		return nil, true, fmt.Errorf("unexpected type %T", v)
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
