package authz

import (
	"crypto"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// SigningKey is a public verification key published by the token issuer.
type SigningKey struct {
	// ID is the key identifier (kid) tokens reference in their header.
	ID string

	// Algorithm is the alg the issuer bound to the key, if any.
	Algorithm string

	// Key is the raw public key: *rsa.PublicKey, *ecdsa.PublicKey,
	// ed25519.PublicKey, or []byte for HMAC keys.
	Key crypto.PublicKey
}

// KeySet is an immutable, ordered set of signing keys indexed by kid.
// A KeySet is never modified after construction; refreshes replace it.
type KeySet struct {
	keys []SigningKey
	byID map[string]int
}

// NewKeySet builds a key set. Later keys with a duplicate kid are ignored.
func NewKeySet(keys ...SigningKey) *KeySet {
	set := &KeySet{
		keys: make([]SigningKey, 0, len(keys)),
		byID: make(map[string]int, len(keys)),
	}
	for _, k := range keys {
		if _, exists := set.byID[k.ID]; exists {
			continue
		}
		set.byID[k.ID] = len(set.keys)
		set.keys = append(set.keys, k)
	}
	return set
}

// ParseKeySet parses a JSON Web Key Set document. Keys marked for encryption
// use are skipped; private keys are reduced to their public half.
func ParseKeySet(data []byte) (*KeySet, error) {
	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}

	keys := make([]SigningKey, 0, set.Len())
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		if use := key.KeyUsage(); use != "" && use != string(jwk.ForSignature) {
			continue
		}

		pub, err := jwk.PublicKeyOf(key)
		if err != nil {
			return nil, fmt.Errorf("failed to derive public key for kid %q: %w", key.KeyID(), err)
		}

		var raw interface{}
		if err := pub.Raw(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode key %q: %w", key.KeyID(), err)
		}

		var alg string
		if a := key.Algorithm(); a != nil {
			alg = a.String()
		}

		keys = append(keys, SigningKey{
			ID:        key.KeyID(),
			Algorithm: alg,
			Key:       raw,
		})
	}

	return NewKeySet(keys...), nil
}

// Lookup returns the key with the given kid.
func (s *KeySet) Lookup(kid string) (SigningKey, bool) {
	if s == nil || kid == "" {
		return SigningKey{}, false
	}
	i, ok := s.byID[kid]
	if !ok {
		return SigningKey{}, false
	}
	return s.keys[i], true
}

// Len returns the number of keys in the set.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// IDs returns the key identifiers in set order.
func (s *KeySet) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.keys))
	for i, k := range s.keys {
		ids[i] = k.ID
	}
	return ids
}
