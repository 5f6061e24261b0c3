// Package services holds the application services that sit between the HTTP
// layer and the outbound ports.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"finview/internal/cache"
	"finview/internal/core"
	"finview/internal/sheets"

	"golang.org/x/sync/singleflight"
)

// DefaultLedgerTTL is the freshness window of a fetched ledger.
const DefaultLedgerTTL = 60 * time.Second

// Snapshot is one parsed fetch of the ledger. It is immutable and shared
// between requests served from the cache.
type Snapshot struct {
	Ledger    *core.Ledger
	FetchedAt time.Time
	Cached    bool
}

// ErrorReporter receives fetch failures worth alerting on.
type ErrorReporter func(ctx context.Context, err error)

// LedgerService serves ledger snapshots keyed by access token. Fresh
// snapshots come from the cache; concurrent misses for the same token share
// one fetch.
type LedgerService struct {
	reader sheets.LedgerReader
	cache  *cache.LRUCache[*core.Ledger]
	group  singleflight.Group
	epoch  atomic.Uint64
	now    cache.Clock
	logger *slog.Logger
	report ErrorReporter
}

type LedgerOption func(*ledgerOptions)

type ledgerOptions struct {
	clock    cache.Clock
	logger   *slog.Logger
	reporter ErrorReporter
	maxSize  int
}

func WithClock(c cache.Clock) LedgerOption {
	return func(o *ledgerOptions) { o.clock = c }
}

func WithLogger(l *slog.Logger) LedgerOption {
	return func(o *ledgerOptions) { o.logger = l }
}

// WithErrorReporter installs a sink for unexpected fetch errors. Rejected
// tokens and cancelled requests are not reported.
func WithErrorReporter(r ErrorReporter) LedgerOption {
	return func(o *ledgerOptions) { o.reporter = r }
}

// WithMaxEntries bounds the number of cached tokens.
func WithMaxEntries(n int) LedgerOption {
	return func(o *ledgerOptions) { o.maxSize = n }
}

func NewLedgerService(reader sheets.LedgerReader, ttl time.Duration, opts ...LedgerOption) *LedgerService {
	o := ledgerOptions{clock: time.Now, maxSize: 64}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &LedgerService{
		reader: reader,
		cache:  cache.NewLRUCache[*core.Ledger](o.maxSize, ttl, cache.WithClock(o.clock)),
		now:    o.clock,
		logger: o.logger.With("component", "ledger"),
		report: o.reporter,
	}
}

// TokenKey derives the cache key for an access token so raw tokens are never
// held as map keys or logged.
func TokenKey(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:])
}

// Snapshot returns the ledger for accessToken, fetching it when no fresh
// snapshot is cached. Failed fetches are never cached.
//
// The shared fetch outlives the caller that started it, so a cancelled
// request does not fail the others waiting on the same token.
func (s *LedgerService) Snapshot(ctx context.Context, accessToken string) (Snapshot, error) {
	key := TokenKey(accessToken)
	if e, ok := s.cache.GetEntry(key); ok {
		s.logger.DebugContext(ctx, "Ledger cache hit", "cache_key", key[:12], "fetched_at", e.FetchedAt)
		return Snapshot{Ledger: e.Value, FetchedAt: e.FetchedAt, Cached: true}, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		epoch := s.epoch.Load()
		raw, err := s.reader.ReadLedger(fetchCtx, accessToken)
		if err != nil {
			return nil, err
		}
		entry := cache.Entry[*core.Ledger]{Value: core.NewLedger(raw), FetchedAt: s.now()}
		// An Invalidate during the fetch means the result may predate it.
		if s.epoch.Load() == epoch {
			s.cache.SetEntry(key, entry)
		}
		return entry, nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Ledger fetch failed", "cache_key", key[:12], "error", err)
		if s.report != nil && !errors.Is(err, sheets.ErrUnauthorized) && !errors.Is(err, context.Canceled) {
			s.report(ctx, err)
		}
		return Snapshot{}, fmt.Errorf("fetch ledger: %w", err)
	}

	entry := v.(cache.Entry[*core.Ledger])
	s.logger.DebugContext(ctx, "Ledger fetched",
		"cache_key", key[:12],
		"rows", entry.Value.Len(),
		"shared", shared)
	return Snapshot{Ledger: entry.Value, FetchedAt: entry.FetchedAt}, nil
}

// Invalidate drops the cached snapshot for accessToken. The next Snapshot
// call fetches again, and a fetch already in flight is neither joined nor
// cached.
func (s *LedgerService) Invalidate(accessToken string) {
	key := TokenKey(accessToken)
	s.epoch.Add(1)
	s.group.Forget(key)
	s.cache.Delete(key)
}

// CachedAt returns when the snapshot for accessToken was fetched, if a fresh
// one is cached.
func (s *LedgerService) CachedAt(accessToken string) (time.Time, bool) {
	e, ok := s.cache.GetEntry(TokenKey(accessToken))
	return e.FetchedAt, ok
}

// Cache exposes the snapshot cache for lifecycle management.
func (s *LedgerService) Cache() cache.Cleaner {
	return s.cache
}

// Entries is the number of cached snapshots.
func (s *LedgerService) Entries() int {
	return s.cache.Size()
}
