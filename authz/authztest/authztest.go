// Package authztest mints signed tokens and key sets for tests.
package authztest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"

	"github.com/arthurmvo/Coffee-Shop/authz"
)

const (
	Issuer   = "https://coffee-shop.test/"
	Audience = "drinks"
)

// Signer holds an RSA key pair published under a key id.
type Signer struct {
	KeyID string
	key   *rsa.PrivateKey
}

// NewSigner generates a fresh RS256 key pair.
func NewSigner(t testing.TB, kid string) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &Signer{KeyID: kid, key: key}
}

// PublicJWK returns the public half as a JWK.
func (s *Signer) PublicJWK(t testing.TB) jwk.Key {
	t.Helper()
	key, err := jwk.FromRaw(&s.key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, s.KeyID))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))
	require.NoError(t, key.Set(jwk.KeyUsageKey, "sig"))
	return key
}

// SigningKey returns the public key as the verifier sees it.
func (s *Signer) SigningKey() authz.SigningKey {
	return authz.SigningKey{
		ID:        s.KeyID,
		Algorithm: jwt.SigningMethodRS256.Alg(),
		Key:       &s.key.PublicKey,
	}
}

// Sign signs claims with RS256 and the signer's kid.
func (s *Signer) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.KeyID
	signed, err := token.SignedString(s.key)
	require.NoError(t, err)
	return signed
}

// Claims returns a valid payload for Issuer and Audience, expiring in an hour.
func Claims(permissions ...string) jwt.MapClaims {
	now := time.Now()
	perms := make([]interface{}, len(permissions))
	for i, p := range permissions {
		perms[i] = p
	}
	return jwt.MapClaims{
		"iss":         Issuer,
		"sub":         "auth0|" + uuid.New().String(),
		"aud":         []string{Audience},
		"iat":         now.Unix(),
		"exp":         now.Add(time.Hour).Unix(),
		"permissions": perms,
	}
}

// JWKS encodes the public keys of signers as a JWK Set document.
func JWKS(t testing.TB, signers ...*Signer) []byte {
	t.Helper()
	set := jwk.NewSet()
	for _, s := range signers {
		require.NoError(t, set.AddKey(s.PublicJWK(t)))
	}
	data, err := json.Marshal(set)
	require.NoError(t, err)
	return data
}

// KeySet builds a key set holding the public keys of signers.
func KeySet(signers ...*Signer) *authz.KeySet {
	keys := make([]authz.SigningKey, len(signers))
	for i, s := range signers {
		keys[i] = s.SigningKey()
	}
	return authz.NewKeySet(keys...)
}

// KeyServer serves a JWKS document whose keys can be swapped mid-test.
type KeyServer struct {
	*httptest.Server

	mu   sync.RWMutex
	body []byte
	hits atomic.Int32
}

// NewKeyServer starts a JWKS endpoint publishing signers. It is closed
// when the test ends.
func NewKeyServer(t testing.TB, signers ...*Signer) *KeyServer {
	t.Helper()
	ks := &KeyServer{body: JWKS(t, signers...)}
	ks.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ks.hits.Add(1)
		ks.mu.RLock()
		body := ks.body
		ks.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(ks.Close)
	return ks
}

// Publish replaces the served keys.
func (ks *KeyServer) Publish(t testing.TB, signers ...*Signer) {
	t.Helper()
	body := JWKS(t, signers...)
	ks.mu.Lock()
	ks.body = body
	ks.mu.Unlock()
}

// Hits returns how many times the key set was fetched.
func (ks *KeyServer) Hits() int {
	return int(ks.hits.Load())
}

// Policy returns a verification policy matching Claims.
func Policy() authz.Policy {
	return authz.Policy{
		Issuer:   Issuer,
		Audience: Audience,
	}
}
