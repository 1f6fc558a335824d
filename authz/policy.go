package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultPermissionsClaim is the claim read when a Policy does not name one.
const DefaultPermissionsClaim = "permissions"

// Policy describes which tokens the verifier accepts.
type Policy struct {
	// Issuer must equal the token's iss claim exactly.
	Issuer string

	// Audience must be one of the token's aud values.
	Audience string

	// Algorithms is the allow-list for the token header's alg.
	// Default: RS256
	Algorithms []string

	// PermissionsClaim names the claim holding the granted permissions.
	// Default: "permissions"
	PermissionsClaim string

	// RequirePermissionsClaim makes a token without the permissions claim fail
	// authorization with PermissionsClaimMissing instead of being treated as
	// holding no permissions.
	RequirePermissionsClaim bool
}

// withDefaults returns a copy of the policy with defaults applied.
func (p Policy) withDefaults() Policy {
	if len(p.Algorithms) == 0 {
		p.Algorithms = []string{jwt.SigningMethodRS256.Alg()}
	} else {
		p.Algorithms = append([]string(nil), p.Algorithms...)
	}
	if p.PermissionsClaim == "" {
		p.PermissionsClaim = DefaultPermissionsClaim
	}
	return p
}

// Validate checks that the policy can be enforced.
func (p Policy) Validate() error {
	if p.Issuer == "" {
		return errors.New("issuer is required")
	}
	if p.Audience == "" {
		return errors.New("audience is required")
	}
	for _, alg := range p.Algorithms {
		if strings.EqualFold(alg, "none") {
			return errors.New(`algorithm "none" cannot be allowed`)
		}
		if jwt.GetSigningMethod(alg) == nil {
			return fmt.Errorf("unknown signing algorithm: %s", alg)
		}
	}
	return nil
}

func (p Policy) allowsAlgorithm(alg string) bool {
	for _, allowed := range p.Algorithms {
		if allowed == alg {
			return true
		}
	}
	return false
}
