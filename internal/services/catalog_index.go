package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// indexSnapshot is an immutable view over one catalog load. Snapshots are
// built wholesale and swapped atomically; they are never mutated in place.
type indexSnapshot struct {
	entries     []domain.CatalogEntry
	normNames   []string
	nameTokens  [][]string
	tokenIdx    map[string][]int
	phoneticIdx map[string][]int
	categoryIdx map[string][]int
}

// CatalogIndexConfig bounds the query-result cache.
type CatalogIndexConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultCatalogIndexConfig returns the production cache bounds.
func DefaultCatalogIndexConfig() CatalogIndexConfig {
	return CatalogIndexConfig{CacheSize: 256, CacheTTL: 5 * time.Minute}
}

// CatalogIndex holds the in-memory token, phonetic and category indexes over
// a product snapshot, plus a bounded, time-expiring query-result cache.
type CatalogIndex struct {
	backend domain.CatalogBackend
	norm    *Normalizer
	logger  *slog.Logger

	mu       sync.RWMutex
	snapshot *indexSnapshot

	cache *expirable.LRU[string, []domain.MatchCandidate]
}

// NewCatalogIndex builds an empty index; call Reindex to load the catalog.
func NewCatalogIndex(backend domain.CatalogBackend, norm *Normalizer, cfg CatalogIndexConfig, logger *slog.Logger) *CatalogIndex {
	if cfg.CacheSize <= 0 {
		cfg = DefaultCatalogIndexConfig()
	}
	return &CatalogIndex{
		backend:  backend,
		norm:     norm,
		logger:   logger.With(slog.String("component", "catalog_index")),
		snapshot: &indexSnapshot{tokenIdx: map[string][]int{}, phoneticIdx: map[string][]int{}, categoryIdx: map[string][]int{}},
		cache:    expirable.NewLRU[string, []domain.MatchCandidate](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// Reindex reloads active products from the backend and rebuilds every index
// wholesale. The previous snapshot serves reads until the swap.
func (ci *CatalogIndex) Reindex(ctx context.Context) error {
	entries, err := ci.backend.ListProducts(ctx, domain.ProductFilter{OnlyActive: true})
	if err != nil {
		return err
	}
	snap := buildSnapshot(entries, ci.norm)

	ci.mu.Lock()
	ci.snapshot = snap
	ci.mu.Unlock()
	ci.cache.Purge()

	ci.logger.Info("catalog reindexed", slog.Int("products", len(entries)))
	return nil
}

// Rebuild replaces the snapshot from an already-loaded product list. Used by
// tests and by callers that fetched the catalog themselves.
func (ci *CatalogIndex) Rebuild(entries []domain.CatalogEntry) {
	snap := buildSnapshot(entries, ci.norm)
	ci.mu.Lock()
	ci.snapshot = snap
	ci.mu.Unlock()
	ci.cache.Purge()
}

func buildSnapshot(entries []domain.CatalogEntry, norm *Normalizer) *indexSnapshot {
	snap := &indexSnapshot{
		entries:     make([]domain.CatalogEntry, 0, len(entries)),
		tokenIdx:    make(map[string][]int),
		phoneticIdx: make(map[string][]int),
		categoryIdx: make(map[string][]int),
	}
	for _, e := range entries {
		if !e.Active {
			continue
		}
		pos := len(snap.entries)
		snap.entries = append(snap.entries, e)

		name := norm.Normalize(e.Name)
		tokens := norm.Tokens(e.Name)
		snap.normNames = append(snap.normNames, name)
		snap.nameTokens = append(snap.nameTokens, tokens)

		for _, t := range tokens {
			snap.tokenIdx[t] = append(snap.tokenIdx[t], pos)
			if pk := PhoneticKey(t); pk != "" {
				snap.phoneticIdx[pk] = append(snap.phoneticIdx[pk], pos)
			}
		}
		if e.Category != "" {
			for _, t := range norm.Tokens(e.Category) {
				snap.categoryIdx[t] = append(snap.categoryIdx[t], pos)
			}
		}
	}
	return snap
}

// current returns the live snapshot.
func (ci *CatalogIndex) current() *indexSnapshot {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return ci.snapshot
}

// Size returns how many products the live snapshot holds.
func (ci *CatalogIndex) Size() int {
	return len(ci.current().entries)
}

// cachedResult looks up a previous result for the cache key; a miss simply
// recomputes.
func (ci *CatalogIndex) cachedResult(key string) ([]domain.MatchCandidate, bool) {
	return ci.cache.Get(key)
}

func (ci *CatalogIndex) storeResult(key string, result []domain.MatchCandidate) {
	ci.cache.Add(key, result)
}
