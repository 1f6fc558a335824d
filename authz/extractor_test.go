package authz

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		set      bool
		want     string
		wantKind Kind
	}{
		{name: "valid", header: "Bearer abc.def.ghi", set: true, want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc.def.ghi", set: true, want: "abc.def.ghi"},
		{name: "mixed case scheme", header: "BeArEr token", set: true, want: "token"},
		{name: "missing", set: false, wantKind: KindMissingAuthHeader},
		{name: "empty value", header: "", set: true, wantKind: KindMalformedAuthHeader},
		{name: "scheme only", header: "Bearer", set: true, wantKind: KindMalformedAuthHeader},
		{name: "three parts", header: "Bearer abc def", set: true, wantKind: KindMalformedAuthHeader},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", set: true, wantKind: KindMalformedAuthHeader},
		{name: "token only", header: "abc.def.ghi", set: true, wantKind: KindMalformedAuthHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.set {
				h.Set("Authorization", tt.header)
			}

			got, err := ExtractBearerToken(h)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
				assert.Equal(t, http.StatusUnauthorized, err.(*AuthorizationError).Status)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractBearerToken_CanonicalizesHeaderName(t *testing.T) {
	h := http.Header{}
	h.Set("authorization", "Bearer xyz")

	got, err := ExtractBearerToken(h)
	require.NoError(t, err)
	assert.Equal(t, "xyz", got)
}

func TestKindStatus(t *testing.T) {
	forbidden := []Kind{KindInsufficientPermissions, KindPermissionsClaimMissing}
	unauthorized := []Kind{
		KindMissingAuthHeader, KindMalformedAuthHeader, KindMalformedToken,
		KindUnsupportedAlgorithm, KindUnknownSigningKey, KindInvalidSignature,
		KindInvalidIssuer, KindInvalidAudience, KindTokenExpired, KindTokenNotYetValid,
	}

	for _, k := range forbidden {
		assert.Equal(t, http.StatusForbidden, k.Status(), k)
		assert.False(t, k.IsAuthentication(), k)
	}
	for _, k := range unauthorized {
		assert.Equal(t, http.StatusUnauthorized, k.Status(), k)
		assert.True(t, k.IsAuthentication(), k)
	}
}

func TestAuthorizationError_Is(t *testing.T) {
	err := newError(KindTokenExpired, "token expired at noon", nil)

	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrInvalidIssuer)

	wrapped := insufficientPermissions("get:drinks-detail", []string{"get:drinks"})
	assert.ErrorIs(t, wrapped, ErrInsufficientPermissions)
	assert.Equal(t, "get:drinks-detail", wrapped.Required)
	assert.Equal(t, []string{"get:drinks"}, wrapped.Granted)
}

func TestAuthorizationError_Challenge(t *testing.T) {
	assert.Equal(t, "Bearer", ErrMissingAuthHeader.Challenge())
	assert.Equal(t, "Bearer", ErrMalformedAuthHeader.Challenge())
	assert.Empty(t, ErrTokenExpired.Challenge())
	assert.Empty(t, ErrInsufficientPermissions.Challenge())
}
