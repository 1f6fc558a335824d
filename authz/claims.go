package authz

import (
	"sort"
	"time"
)

// ClaimSet is the verified payload of a credential. It can only be produced
// by a successful Verify and is never modified afterwards.
type ClaimSet struct {
	issuer    string
	subject   string
	audience  []string
	expiresAt time.Time
	notBefore time.Time
	issuedAt  time.Time

	permissions         []string
	permissionIndex     map[string]struct{}
	permissionsPresent  bool
	permissionsRequired bool

	raw map[string]interface{}
}

func newClaimSet(raw map[string]interface{}, issuer, subject string, audience []string,
	expiresAt, notBefore, issuedAt time.Time, permissions []string, present bool) *ClaimSet {

	perms := make([]string, 0, len(permissions))
	index := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		if _, dup := index[p]; dup {
			continue
		}
		index[p] = struct{}{}
		perms = append(perms, p)
	}
	sort.Strings(perms)

	copied := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		copied[k] = cloneClaimValue(v)
	}

	return &ClaimSet{
		issuer:             issuer,
		subject:            subject,
		audience:           append([]string(nil), audience...),
		expiresAt:          expiresAt,
		notBefore:          notBefore,
		issuedAt:           issuedAt,
		permissions:        perms,
		permissionIndex:    index,
		permissionsPresent: present,
		raw:                copied,
	}
}

// Issuer returns the iss claim.
func (c *ClaimSet) Issuer() string { return c.issuer }

// Subject returns the sub claim, if any.
func (c *ClaimSet) Subject() string { return c.subject }

// Audience returns a copy of the aud values.
func (c *ClaimSet) Audience() []string { return append([]string(nil), c.audience...) }

// ExpiresAt returns the exp claim.
func (c *ClaimSet) ExpiresAt() time.Time { return c.expiresAt }

// NotBefore returns the nbf claim, or the zero time.
func (c *ClaimSet) NotBefore() time.Time { return c.notBefore }

// IssuedAt returns the iat claim, or the zero time.
func (c *ClaimSet) IssuedAt() time.Time { return c.issuedAt }

// Permissions returns the granted permissions, sorted and de-duplicated.
func (c *ClaimSet) Permissions() []string { return append([]string(nil), c.permissions...) }

// HasPermission reports whether permission was granted.
func (c *ClaimSet) HasPermission(permission string) bool {
	_, ok := c.permissionIndex[permission]
	return ok
}

// PermissionsPresent reports whether the token carried a permissions claim
// at all, as opposed to carrying an empty one.
func (c *ClaimSet) PermissionsPresent() bool { return c.permissionsPresent }

// PermissionsRequired reports whether the verification policy demanded the
// permissions claim.
func (c *ClaimSet) PermissionsRequired() bool { return c.permissionsRequired }

// Claim returns a copy of a raw payload claim by name. Nested objects and
// arrays are copied too.
func (c *ClaimSet) Claim(name string) (interface{}, bool) {
	v, ok := c.raw[name]
	if !ok {
		return nil, false
	}
	return cloneClaimValue(v), true
}

// cloneClaimValue deep-copies decoded JSON containers.
func cloneClaimValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = cloneClaimValue(e)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(t))
		for i, e := range t {
			l[i] = cloneClaimValue(e)
		}
		return l
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
