package authz

import "strings"

// AuthorizationHeader is the request metadata field carrying the credential.
const AuthorizationHeader = "Authorization"

const bearerScheme = "bearer"

// Header is read-only access to request metadata. http.Header satisfies it.
type Header interface {
	Values(key string) []string
}

// ExtractBearerToken returns the raw credential from the Authorization header.
// The token itself is returned verbatim; no decoding happens here.
func ExtractBearerToken(h Header) (string, error) {
	values := h.Values(AuthorizationHeader)
	if len(values) == 0 {
		return "", newError(KindMissingAuthHeader, "authorization header is expected", nil)
	}

	parts := strings.Fields(values[0])
	if len(parts) != 2 {
		return "", newError(KindMalformedAuthHeader,
			"authorization header must be in the format 'Bearer <token>'", nil)
	}
	if strings.ToLower(parts[0]) != bearerScheme {
		return "", newError(KindMalformedAuthHeader,
			"authorization header must start with 'Bearer'", nil)
	}

	return parts[1], nil
}
