package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// ResolverConfig tunes the match scoring. Zero values fall back to defaults.
type ResolverConfig struct {
	WeightJaccard     float64
	WeightJaroWinkler float64
	WeightPhonetic    float64
	BonusSubstring    float64
	BonusCategory     float64
	Threshold         float64
}

// DefaultResolverConfig returns the production weights.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		WeightJaccard:     0.5,
		WeightJaroWinkler: 0.3,
		WeightPhonetic:    0.2,
		BonusSubstring:    0.25,
		BonusCategory:     0.15,
		Threshold:         0.55,
	}
}

// ProductResolverImpl implements domain.ProductResolver over a CatalogIndex.
// Resolve is a pure function over the index's immutable snapshot; the
// snapshot itself only changes through an explicit Reindex.
type ProductResolverImpl struct {
	index *CatalogIndex
	norm  *Normalizer
	cfg   ResolverConfig
}

// NewProductResolver creates a resolver over the given index.
func NewProductResolver(index *CatalogIndex, norm *Normalizer, cfg ResolverConfig) domain.ProductResolver {
	def := DefaultResolverConfig()
	if cfg.WeightJaccard == 0 && cfg.WeightJaroWinkler == 0 && cfg.WeightPhonetic == 0 {
		cfg.WeightJaccard = def.WeightJaccard
		cfg.WeightJaroWinkler = def.WeightJaroWinkler
		cfg.WeightPhonetic = def.WeightPhonetic
	}
	if cfg.BonusSubstring == 0 {
		cfg.BonusSubstring = def.BonusSubstring
	}
	if cfg.BonusCategory == 0 {
		cfg.BonusCategory = def.BonusCategory
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = def.Threshold
	}
	return &ProductResolverImpl{index: index, norm: norm, cfg: cfg}
}

// Reindex rebuilds the underlying catalog snapshot.
func (r *ProductResolverImpl) Reindex(ctx context.Context) error {
	return r.index.Reindex(ctx)
}

// Resolve returns ranked candidates scoring at or above the acceptance
// threshold. An empty result means no confident match; callers must never
// treat it as a best guess. An empty query returns an empty result without
// error.
func (r *ProductResolverImpl) Resolve(query string, limit int) []domain.MatchCandidate {
	normQuery := r.norm.NormalizeQuery(query)
	if normQuery == "" {
		return nil
	}
	if limit <= 0 {
		limit = 5
	}

	cacheKey := fmt.Sprintf("%s|%d", normQuery, limit)
	if hit, ok := r.index.cachedResult(cacheKey); ok {
		return hit
	}

	snap := r.index.current()
	queryTokens := strings.Fields(normQuery)
	queryKey := PhoneticKey(normQuery)

	candidates := r.collect(snap, queryTokens)

	scored := make([]domain.MatchCandidate, 0, len(candidates))
	for pos := range candidates {
		score := r.score(snap, pos, normQuery, queryTokens, queryKey)
		if score < r.cfg.Threshold {
			continue
		}
		scored = append(scored, domain.MatchCandidate{Entry: snap.entries[pos], Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Entry.Stock != scored[j].Entry.Stock {
			return scored[i].Entry.Stock > scored[j].Entry.Stock
		}
		return len(scored[i].Entry.Name) < len(scored[j].Entry.Name)
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	r.index.storeResult(cacheKey, scored)
	return scored
}

// collect gathers candidate positions as the union of token-index hits per
// query token, phonetic-index hits for each query token, and category-index
// hits when a token names a category.
func (r *ProductResolverImpl) collect(snap *indexSnapshot, queryTokens []string) map[int]struct{} {
	candidates := make(map[int]struct{})
	for _, t := range queryTokens {
		for _, pos := range snap.tokenIdx[t] {
			candidates[pos] = struct{}{}
		}
		for _, pos := range snap.phoneticIdx[PhoneticKey(t)] {
			candidates[pos] = struct{}{}
		}
		for _, pos := range snap.categoryIdx[t] {
			candidates[pos] = struct{}{}
		}
	}
	return candidates
}

// score combines the weighted token-overlap, Jaro-Winkler and phonetic
// signals with the substring and category bonuses.
func (r *ProductResolverImpl) score(snap *indexSnapshot, pos int, normQuery string, queryTokens []string, queryKey string) float64 {
	name := snap.normNames[pos]
	nameTokens := snap.nameTokens[pos]

	score := r.cfg.WeightJaccard * Jaccard(queryTokens, nameTokens)
	score += r.cfg.WeightJaroWinkler * JaroWinkler(normQuery, name)
	if queryKey != "" && queryKey == PhoneticKey(name) {
		score += r.cfg.WeightPhonetic
	}
	if strings.Contains(name, normQuery) || strings.Contains(normQuery, name) {
		score += r.cfg.BonusSubstring
	}
	if r.categoryOverlap(snap, pos, queryTokens) {
		score += r.cfg.BonusCategory
	}
	return score
}

func (r *ProductResolverImpl) categoryOverlap(snap *indexSnapshot, pos int, queryTokens []string) bool {
	for _, t := range queryTokens {
		for _, catPos := range snap.categoryIdx[t] {
			if catPos == pos {
				return true
			}
		}
	}
	return false
}
