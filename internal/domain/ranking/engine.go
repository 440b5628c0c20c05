package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/corey/whiskeybar/internal/logging"
	"github.com/corey/whiskeybar/internal/metrics"
	"github.com/corey/whiskeybar/internal/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Row is one line of the popularity ranking.
type Row struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Distillery  string  `json:"distillery"`
	AvgRating   float64 `json:"avg_rating"`
	ReviewCount int     `json:"review_count"`
}

// Page is the result of Rank.
type Page struct {
	Rows       []Row
	Pagination Pagination

	// Degraded is true when the catalog or the reviews could not be read;
	// Rows is then empty and the counts in Pagination are zero.
	Degraded bool
}

// Options tunes an Engine. The zero value is usable.
type Options struct {
	// CallTimeout bounds each store scan. Zero leaves the caller's context
	// as the only bound.
	CallTimeout time.Duration
}

// Engine computes rankings from injected catalog and review readers.
// Every call re-reads both stores; nothing is cached between calls.
type Engine struct {
	catalog ports.CatalogReader
	reviews ports.ReviewReader
	opts    Options
	log     zerolog.Logger
}

// NewEngine creates a ranking engine.
func NewEngine(catalog ports.CatalogReader, reviews ports.ReviewReader, opts Options) *Engine {
	return &Engine{
		catalog: catalog,
		reviews: reviews,
		opts:    opts,
		log:     logging.WithComponent("ranking"),
	}
}

// SetLogger replaces the engine's logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (e *Engine) SetLogger(l zerolog.Logger) {
	e.log = l
}

// errMissingID marks a catalog entry that cannot be joined.
var errMissingID = errors.New("entry has no id")

// Rank returns one page of the ranking. Out-of-range page and pageSize are
// clamped. It never returns an error; store failures yield a degraded page.
func (e *Engine) Rank(ctx context.Context, page, pageSize int) *Page {
	start := time.Now()
	defer func() { metrics.RankDuration.Observe(time.Since(start).Seconds()) }()

	page, pageSize = ClampPage(page, pageSize)

	rows, err := e.rows(ctx)
	if err != nil {
		metrics.DegradedResponses.WithLabelValues("rank").Inc()
		e.log.Error().Err(err).Int("page", page).Int("page_size", pageSize).Msg("ranking unavailable")
		return &Page{
			Rows:       []Row{},
			Pagination: Pagination{Page: page, PageSize: pageSize},
			Degraded:   true,
		}
	}

	pageRows, p := paginate(rows, page, pageSize)
	e.log.Debug().
		Int("page", page).
		Int("page_size", pageSize).
		Int("total_items", p.TotalItems).
		Dur("elapsed", time.Since(start)).
		Msg("rank")
	return &Page{Rows: pageRows, Pagination: p}
}

// RankDefault is the backward-compatible form: the rows of page 1 at
// DefaultPageSize, without the pagination envelope.
func (e *Engine) RankDefault(ctx context.Context) ([]Row, bool) {
	p := e.Rank(ctx, 1, DefaultPageSize)
	return p.Rows, p.Degraded
}

// rows produces the full sorted ranking.
func (e *Engine) rows(ctx context.Context) ([]Row, error) {
	var (
		entries []ports.WhiskeyEntry
		reviews []ports.ReviewRecord
	)

	// Both scans must finish before the join.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := e.callContext(gctx)
		defer cancel()
		var err error
		entries, err = e.catalog.ScanWhiskeys(cctx, 0)
		if err != nil {
			return fmt.Errorf("scan catalog: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		cctx, cancel := e.callContext(gctx)
		defer cancel()
		var err error
		reviews, err = e.reviews.ScanReviews(cctx)
		if err != nil {
			return fmt.Errorf("scan reviews: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := Aggregate(reviews)

	rows := make([]Row, 0, len(entries))
	for i := range entries {
		row, err := join(&entries[i], stats)
		if err != nil {
			metrics.RankSkippedRows.Inc()
			e.log.Warn().Err(err).Int("position", i).Msg("skipping whiskey in ranking")
			continue
		}
		rows = append(rows, row)
	}

	sortRows(rows)
	return rows, nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// join attaches aggregate stats to a catalog entry, defaulting to zero.
func join(entry *ports.WhiskeyEntry, stats map[string]Stats) (Row, error) {
	if entry.ID == "" {
		return Row{}, errMissingID
	}
	s := stats[entry.ID]
	return Row{
		ID:          entry.ID,
		Name:        entry.DisplayName(),
		Distillery:  entry.DisplayDistillery(),
		AvgRating:   s.Avg,
		ReviewCount: s.Count,
	}, nil
}

// sortRows orders rows descending by (hasReviews, avgRating, reviewCount),
// stable over catalog order.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ha, hb := a.ReviewCount > 0, b.ReviewCount > 0; ha != hb {
			return ha
		}
		if a.AvgRating != b.AvgRating {
			return a.AvgRating > b.AvgRating
		}
		return a.ReviewCount > b.ReviewCount
	})
}
