// Package catalog implements the whiskey catalog search engine: text
// normalization, tiered matching over a ports.CatalogReader, de-duplication
// and final ordering.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/corey/whiskeybar/internal/logging"
	"github.com/corey/whiskeybar/internal/metrics"
	"github.com/corey/whiskeybar/internal/ports"
	"github.com/rs/zerolog"
)

// Limit bounds for Search.
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Tier names one matching strategy attempt.
type Tier string

const (
	TierBrowse          Tier = "browse" // empty-query fast path
	TierExactName       Tier = "exact_name"
	TierExactDistillery Tier = "exact_distillery"
	TierSubstring       Tier = "substring"
)

// Options tunes a SearchEngine. The zero value is usable.
type Options struct {
	// TierTimeout bounds every store call made by a single tier.
	// Zero leaves the caller's context as the only bound.
	TierTimeout time.Duration
}

// SearchEngine answers catalog searches against an injected CatalogReader.
// It holds no per-request state and no cache; every call re-reads the store.
type SearchEngine struct {
	store ports.CatalogReader
	opts  Options
	log   zerolog.Logger
}

// SearchResult holds the output of a search operation.
type SearchResult struct {
	Hits []Hit

	// Degraded is true when every attempted tier failed, so an empty Hits
	// reflects store unavailability rather than a legitimate empty match set.
	Degraded bool

	// Failures lists tiers that failed and were skipped.
	Failures []TierFailure
}

// Hit is a single search result: one id and one display name/distillery,
// chosen by ports.DisplayLocales.
type Hit struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Distillery string `json:"distillery"`
}

// TierFailure records a tier that was skipped.
type TierFailure struct {
	Tier Tier
	Err  error
}

func (f TierFailure) Error() string {
	return fmt.Sprintf("tier %s: %v", f.Tier, f.Err)
}

// NewSearchEngine creates an engine over store.
func NewSearchEngine(store ports.CatalogReader, opts Options) *SearchEngine {
	return &SearchEngine{
		store: store,
		opts:  opts,
		log:   logging.WithComponent("search"),
	}
}

// SetLogger replaces the engine's logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (e *SearchEngine) SetLogger(l zerolog.Logger) {
	e.log = l
}

// ClampLimit maps limit into [1, MaxLimit]; non-positive values become DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Search executes query against the catalog and returns at most limit hits
// with unique ids. It never returns an error: failing tiers are skipped and
// total unavailability is reported through SearchResult.Degraded.
func (e *SearchEngine) Search(ctx context.Context, query string, limit int) *SearchResult {
	return e.SearchFiltered(ctx, query, "", limit)
}

// SearchFiltered is Search restricted to entries with a localized distillery
// containing distillery, case-insensitively. The filter is applied to what
// the tiers return, before ordering and truncation; an empty distillery
// filters nothing.
func (e *SearchEngine) SearchFiltered(ctx context.Context, query, distillery string, limit int) *SearchResult {
	start := time.Now()
	limit = ClampLimit(limit)
	query = strings.TrimSpace(query)
	normalized := Normalize(query)
	keep := distilleryFilter(distillery)

	var result *SearchResult
	if normalized == "" {
		result = e.browse(ctx, limit, keep)
	} else {
		result = e.searchTiers(ctx, query, normalized, limit, keep)
	}

	outcome := "ok"
	switch {
	case result.Degraded:
		outcome = "degraded"
		metrics.DegradedResponses.WithLabelValues("search").Inc()
	case len(result.Hits) == 0:
		outcome = "empty"
	}
	metrics.SearchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	e.log.Debug().
		Str("query", truncate(query, 50)).
		Str("distillery", truncate(distillery, 50)).
		Int("limit", limit).
		Int("hits", len(result.Hits)).
		Bool("degraded", result.Degraded).
		Dur("elapsed", time.Since(start)).
		Msg("search")

	return result
}

// Lookup returns the hit for a single whiskey id, or nil if it does not exist.
func (e *SearchEngine) Lookup(ctx context.Context, id string) (*Hit, error) {
	ctx, cancel := e.tierContext(ctx)
	defer cancel()

	entry, err := e.store.GetWhiskey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", id, err)
	}
	if entry == nil {
		return nil, nil
	}
	h := toHit(entry)
	return &h, nil
}

// browse is the empty-query fast path: the first limit entries in store
// order, presented alphabetically by display name. A filter turns the bounded
// scan into a full one so limit still counts kept entries.
func (e *SearchEngine) browse(ctx context.Context, limit int, keep func(*ports.WhiskeyEntry) bool) *SearchResult {
	scanLimit := limit
	if keep != nil {
		scanLimit = 0
	}
	entries, err := e.runTier(ctx, TierBrowse, func(ctx context.Context) ([]ports.WhiskeyEntry, error) {
		return e.store.ScanWhiskeys(ctx, scanLimit)
	})
	if err != nil {
		return &SearchResult{Degraded: true, Failures: []TierFailure{{Tier: TierBrowse, Err: err}}}
	}

	acc := newAccumulator(limit, keep)
	acc.add(entries)
	hits := acc.hits
	if len(hits) > limit {
		hits = hits[:limit]
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Name < hits[j].Name
	})
	return &SearchResult{Hits: hits}
}

// searchTiers runs exact-name, exact-distillery and substring tiers in order.
// An id accumulated by an earlier tier is never reconsidered by a later one.
func (e *SearchEngine) searchTiers(ctx context.Context, query, normalized string, limit int, keep func(*ports.WhiskeyEntry) bool) *SearchResult {
	matcher := newSubstringMatcher(query, normalized)

	tiers := []struct {
		tier Tier
		run  func(ctx context.Context) ([]ports.WhiskeyEntry, error)
	}{
		{TierExactName, func(ctx context.Context) ([]ports.WhiskeyEntry, error) {
			return e.store.QueryWhiskeys(ctx, ports.NameIndex, normalized)
		}},
		{TierExactDistillery, func(ctx context.Context) ([]ports.WhiskeyEntry, error) {
			return e.store.QueryWhiskeys(ctx, ports.DistilleryIndex, normalized)
		}},
		{TierSubstring, func(ctx context.Context) ([]ports.WhiskeyEntry, error) {
			all, err := e.store.ScanWhiskeys(ctx, 0)
			if err != nil {
				return nil, err
			}
			return matcher.filter(all), nil
		}},
	}

	result := &SearchResult{}
	acc := newAccumulator(limit, keep)
	for _, t := range tiers {
		entries, err := e.runTier(ctx, t.tier, t.run)
		if err != nil {
			result.Failures = append(result.Failures, TierFailure{Tier: t.tier, Err: err})
			continue
		}
		acc.add(entries)
	}

	if len(result.Failures) == len(tiers) {
		result.Degraded = true
		return result
	}

	hits := acc.hits
	orderByRelevance(hits, query)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	result.Hits = hits
	return result
}

// runTier executes one tier under the tier timeout. Errors are logged and
// counted here; callers only decide whether to continue.
func (e *SearchEngine) runTier(ctx context.Context, tier Tier, fn func(context.Context) ([]ports.WhiskeyEntry, error)) ([]ports.WhiskeyEntry, error) {
	tctx, cancel := e.tierContext(ctx)
	defer cancel()

	entries, err := fn(tctx)
	if err != nil {
		metrics.SearchTierFailures.WithLabelValues(string(tier)).Inc()
		e.log.Warn().Err(err).Str("tier", string(tier)).Msg("search tier failed, skipping")
		return nil, err
	}
	return entries, nil
}

func (e *SearchEngine) tierContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.TierTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.TierTimeout)
	}
	return context.WithCancel(ctx)
}

// accumulator collects hits in arrival order, dropping ids already seen and
// entries keep rejects. A nil keep accepts everything.
type accumulator struct {
	seen map[string]struct{}
	hits []Hit
	keep func(*ports.WhiskeyEntry) bool
}

func newAccumulator(capacity int, keep func(*ports.WhiskeyEntry) bool) *accumulator {
	return &accumulator{
		seen: make(map[string]struct{}, capacity),
		hits: make([]Hit, 0, capacity),
		keep: keep,
	}
}

func (a *accumulator) add(entries []ports.WhiskeyEntry) {
	for i := range entries {
		id := entries[i].ID
		if id == "" {
			continue
		}
		if a.keep != nil && !a.keep(&entries[i]) {
			continue
		}
		if _, dup := a.seen[id]; dup {
			continue
		}
		a.seen[id] = struct{}{}
		a.hits = append(a.hits, toHit(&entries[i]))
	}
}

// distilleryFilter returns a case-insensitive partial match on any localized
// distillery, or nil for a blank filter.
func distilleryFilter(distillery string) func(*ports.WhiskeyEntry) bool {
	want := strings.ToLower(strings.TrimSpace(distillery))
	if want == "" {
		return nil
	}
	return func(e *ports.WhiskeyEntry) bool {
		for _, l := range ports.DisplayLocales {
			if d := e.Distillery.Get(l); d != "" && strings.Contains(strings.ToLower(d), want) {
				return true
			}
		}
		return false
	}
}

func toHit(e *ports.WhiskeyEntry) Hit {
	return Hit{
		ID:         e.ID,
		Name:       e.DisplayName(),
		Distillery: e.DisplayDistillery(),
	}
}

// Relevance classes for the final ordering.
const (
	classExact = iota
	classPrefix
	classOther
)

// orderByRelevance sorts hits in place: case-insensitive exact name match,
// then name prefix match, then the rest. Stable within each class.
func orderByRelevance(hits []Hit, query string) {
	q := strings.ToLower(query)
	classes := make(map[string]int, len(hits))
	for _, h := range hits {
		name := strings.ToLower(h.Name)
		switch {
		case name == q:
			classes[h.ID] = classExact
		case strings.HasPrefix(name, q):
			classes[h.ID] = classPrefix
		default:
			classes[h.ID] = classOther
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return classes[hits[i].ID] < classes[hits[j].ID]
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
