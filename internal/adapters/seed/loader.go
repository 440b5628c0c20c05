// Package seed loads catalog and review seed files into a store. Historical
// record shapes are unified into ports.WhiskeyEntry here, at the edge, so the
// core only ever sees one schema. Invalid records are skipped and reported.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/corey/whiskeybar/internal/logging"
	"github.com/corey/whiskeybar/internal/ports"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Writer is the store write path the loader needs.
type Writer interface {
	PutWhiskey(ctx context.Context, e *ports.WhiskeyEntry) error
	PutReview(ctx context.Context, r *ports.ReviewRecord) error
}

// Report summarises one load.
type Report struct {
	Loaded  int
	Skipped int
}

// Loader validates seed records and writes them through a Writer.
type Loader struct {
	w        Writer
	validate *validator.Validate
	log      zerolog.Logger
}

// NewLoader creates a loader writing to w.
func NewLoader(w Writer) *Loader {
	return &Loader{
		w:        w,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logging.WithComponent("seed"),
	}
}

// SetLogger replaces the loader's logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (l *Loader) SetLogger(lg zerolog.Logger) {
	l.log = lg
}

// errNoName rejects entries that have nothing to display or match on.
var errNoName = errors.New("entry has no name in any locale")

// LoadCatalogFile reads path and loads every valid entry.
func (l *Loader) LoadCatalogFile(ctx context.Context, path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read catalog: %w", err)
	}
	return l.LoadCatalog(ctx, data)
}

// LoadCatalog decodes data and loads every valid entry. A decode failure
// loads nothing; a failed write stops the load and is returned.
func (l *Loader) LoadCatalog(ctx context.Context, data []byte) (Report, error) {
	raw, err := decodeCatalog(data)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	for i := range raw {
		e := raw[i].toEntry()
		if err := l.checkEntry(&e); err != nil {
			rep.Skipped++
			l.log.Warn().Err(err).Int("position", i).Str("id", e.ID).Msg("skipping invalid whiskey")
			continue
		}
		if err := l.w.PutWhiskey(ctx, &e); err != nil {
			return rep, fmt.Errorf("put whiskey %s: %w", e.ID, err)
		}
		rep.Loaded++
	}
	l.log.Info().Int("loaded", rep.Loaded).Int("skipped", rep.Skipped).Msg("catalog loaded")
	return rep, nil
}

func (l *Loader) checkEntry(e *ports.WhiskeyEntry) error {
	if e.Name.IsZero() {
		return errNoName
	}
	return l.validate.Struct(e)
}

// LoadReviewsFile reads path and loads every valid review.
func (l *Loader) LoadReviewsFile(ctx context.Context, path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read reviews: %w", err)
	}
	return l.LoadReviews(ctx, data)
}

// LoadReviews decodes data and loads every valid review. Reviews may
// reference whiskeys that do not exist.
func (l *Loader) LoadReviews(ctx context.Context, data []byte) (Report, error) {
	raw, err := decodeReviews(data)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	for i := range raw {
		r, err := raw[i].toRecord()
		if err == nil {
			err = l.validate.Struct(&r)
		}
		if err != nil {
			rep.Skipped++
			l.log.Warn().Err(err).Int("position", i).Str("id", r.ID).Msg("skipping invalid review")
			continue
		}
		if err := l.w.PutReview(ctx, &r); err != nil {
			return rep, fmt.Errorf("put review %s: %w", r.ID, err)
		}
		rep.Loaded++
	}
	l.log.Info().Int("loaded", rep.Loaded).Int("skipped", rep.Skipped).Msg("reviews loaded")
	return rep, nil
}
