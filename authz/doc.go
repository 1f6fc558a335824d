// Package authz gates HTTP handlers behind bearer token permissions.
//
// A request passes through three stages before its handler runs:
//   - ExtractBearerToken pulls the raw token out of the Authorization header
//   - Verifier checks the signature against the issuer's KeyStore and
//     validates iss, aud, exp and nbf against a Policy
//   - Guard checks that the verified ClaimSet grants the required permission
//
// Guard.RequirePermission combines the three into a wrapping function. Any
// failure is reported as an *AuthorizationError whose Kind maps to a 401 or
// 403 status, and is answered by the guard's single error handler.
//
// The KeyStore is shared by all requests. It starts empty and is populated by
// Init at startup or by the first verification that needs a key. An unknown
// kid triggers at most one refresh followed by one retry.
package authz
