package authz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxJWKSBytes bounds the size of a fetched key set document.
const maxJWKSBytes = 1 << 20

var (
	// ErrJWKSFetchFailed is returned when the key set endpoint cannot be read
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")
)

// KeySource produces the issuer's current signing key set.
type KeySource interface {
	FetchKeySet(ctx context.Context) (*KeySet, error)
}

// StaticKeySource serves a fixed key set supplied by configuration.
type StaticKeySource struct {
	set *KeySet
}

// NewStaticKeySource creates a key source that always returns set.
func NewStaticKeySource(set *KeySet) *StaticKeySource {
	return &StaticKeySource{set: set}
}

// FetchKeySet returns the configured key set.
func (s *StaticKeySource) FetchKeySet(context.Context) (*KeySet, error) {
	if s.set == nil {
		return nil, errors.New("static key set is empty")
	}
	return s.set, nil
}

// FileKeySource reads a JWKS document from disk on every fetch, so replacing
// the file rotates keys without a restart.
type FileKeySource struct {
	path string
}

// NewFileKeySource creates a key source backed by a JWKS file.
func NewFileKeySource(path string) *FileKeySource {
	return &FileKeySource{path: path}
}

// FetchKeySet reads and parses the JWKS file.
func (s *FileKeySource) FetchKeySet(context.Context) (*KeySet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS file: %w", err)
	}
	return ParseKeySet(data)
}

// RemoteKeySource fetches the key set from the issuer's published endpoint.
type RemoteKeySource struct {
	url        string
	httpClient *http.Client
}

// NewRemoteKeySource creates a key source for a JWKS URL. A nil client gets a
// default with a 10s timeout.
func NewRemoteKeySource(url string, client *http.Client) *RemoteKeySource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteKeySource{
		url:        url,
		httpClient: client,
	}
}

// JWKSURLForIssuer returns the conventional key set location for an issuer.
func JWKSURLForIssuer(issuer string) string {
	return strings.TrimSuffix(issuer, "/") + "/.well-known/jwks.json"
}

// URL returns the endpoint the source reads from.
func (s *RemoteKeySource) URL() string {
	return s.url
}

// FetchKeySet downloads and parses the key set.
func (s *RemoteKeySource) FetchKeySet(ctx context.Context) (*KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}

	return ParseKeySet(data)
}
