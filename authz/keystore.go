package authz

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrRefreshThrottled is returned when a refresh is requested sooner than
	// the configured minimum interval after the previous attempt
	ErrRefreshThrottled = errors.New("signing key refresh throttled")

	// ErrRefreshTimeout is returned when the key source does not answer in time
	ErrRefreshTimeout = errors.New("signing key refresh timed out")
)

// Key refresh outcomes reported to a MetricsRecorder.
const (
	RefreshSuccess   = "success"
	RefreshFailed    = "error"
	RefreshTimeout   = "timeout"
	RefreshThrottled = "throttled"
)

// KeyStoreConfig configures a KeyStore.
type KeyStoreConfig struct {
	// Source supplies the key set.
	Source KeySource

	// RefreshTimeout bounds a single fetch from Source.
	// Default: 5s
	RefreshTimeout time.Duration

	// MinRefreshInterval is the minimum time between two refresh attempts
	// triggered by verification. Zero disables the limit.
	MinRefreshInterval time.Duration

	Recorder MetricsRecorder
	Logger   *zap.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type keySnapshot struct {
	set       *KeySet
	fetchedAt time.Time
}

// KeyStore holds the current signing key set shared by all verifications.
//
// The set is replaced wholesale on refresh (copy-on-write), so a verification
// always sees one complete set. It starts empty: call Init at startup, or let
// the first verification populate it. Nothing needs to be closed.
type KeyStore struct {
	source      KeySource
	timeout     time.Duration
	minInterval time.Duration
	recorder    MetricsRecorder
	logger      *zap.Logger
	now         func() time.Time

	current     atomic.Pointer[keySnapshot]
	lastAttempt atomic.Int64
	group       singleflight.Group
}

// NewKeyStore creates an empty key store.
func NewKeyStore(cfg KeyStoreConfig) *KeyStore {
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 5 * time.Second
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &KeyStore{
		source:      cfg.Source,
		timeout:     cfg.RefreshTimeout,
		minInterval: cfg.MinRefreshInterval,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

// Init populates the store, ignoring the refresh rate limit.
func (s *KeyStore) Init(ctx context.Context) error {
	return s.refresh(ctx, true)
}

// Refresh replaces the key set with a fresh copy from the source. On failure
// the previous set stays in place.
func (s *KeyStore) Refresh(ctx context.Context) error {
	return s.refresh(ctx, false)
}

// Lookup finds a key in the current set. It never fetches.
func (s *KeyStore) Lookup(kid string) (SigningKey, bool) {
	snap := s.current.Load()
	if snap == nil {
		return SigningKey{}, false
	}
	return snap.set.Lookup(kid)
}

// KeySet returns the current set, or nil before the first successful fetch.
func (s *KeyStore) KeySet() *KeySet {
	if snap := s.current.Load(); snap != nil {
		return snap.set
	}
	return nil
}

// FetchedAt returns when the current set was fetched.
func (s *KeyStore) FetchedAt() time.Time {
	if snap := s.current.Load(); snap != nil {
		return snap.fetchedAt
	}
	return time.Time{}
}

// Run refreshes the store every interval until ctx is done.
func (s *KeyStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.refresh(ctx, true); err != nil {
				s.logger.Warn("background signing key refresh failed", zap.Error(err))
			}
		}
	}
}

func (s *KeyStore) refresh(ctx context.Context, force bool) error {
	// Concurrent callers share one fetch. Forced and rate-limited refreshes
	// are separate flights so a forced one never inherits a throttled result.
	key := "refresh"
	if force {
		key = "refresh-forced"
	}

	// The shared fetch outlives any single caller: it is bounded by the
	// refresh timeout, not by the request that happened to start it.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return nil, s.doRefresh(shared, force)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *KeyStore) doRefresh(ctx context.Context, force bool) error {
	if !force && !s.refreshAllowed() {
		s.recorder.RecordKeyRefresh(ctx, RefreshThrottled)
		return ErrRefreshThrottled
	}
	stamp := s.now().UnixNano()
	prev := s.lastAttempt.Swap(stamp)

	set, err := s.fetch(ctx)
	if err != nil {
		// A cancelled fetch says nothing about the source.
		if errors.Is(err, context.Canceled) {
			s.lastAttempt.CompareAndSwap(stamp, prev)
			return err
		}
		outcome := RefreshFailed
		if errors.Is(err, ErrRefreshTimeout) {
			outcome = RefreshTimeout
		}
		s.recorder.RecordKeyRefresh(ctx, outcome)
		s.logger.Warn("signing key refresh failed", zap.Error(err))
		return err
	}

	s.current.Store(&keySnapshot{set: set, fetchedAt: s.now()})
	s.recorder.RecordKeyRefresh(ctx, RefreshSuccess)
	s.logger.Info("signing keys refreshed",
		zap.Int("keys", set.Len()),
		zap.Strings("kids", set.IDs()))
	return nil
}

func (s *KeyStore) refreshAllowed() bool {
	if s.minInterval <= 0 {
		return true
	}
	last := s.lastAttempt.Load()
	if last == 0 {
		return true
	}
	return s.now().Sub(time.Unix(0, last)) >= s.minInterval
}

// fetch calls the source under the refresh timeout. The timeout holds even
// for sources that ignore their context.
func (s *KeyStore) fetch(ctx context.Context) (*KeySet, error) {
	if s.source == nil {
		return nil, errors.New("no signing key source configured")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		set *KeySet
		err error
	}
	done := make(chan result, 1)
	go func() {
		set, err := s.source.FetchKeySet(fetchCtx)
		done <- result{set: set, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %v", ErrRefreshTimeout, r.err)
			}
			return nil, fmt.Errorf("failed to fetch signing keys: %w", r.err)
		}
		if r.set == nil {
			return nil, errors.New("key source returned no key set")
		}
		return r.set, nil
	case <-fetchCtx.Done():
		return nil, fmt.Errorf("%w after %s", ErrRefreshTimeout, s.timeout)
	}
}
