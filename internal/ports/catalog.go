// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned (possibly wrapped) when the backing store cannot
// serve a read at all: closed database, open circuit breaker, or a call that
// exceeded its deadline.
var ErrUnavailable = errors.New("store unavailable")

// IndexName identifies a precomputed secondary key on the catalog.
type IndexName string

// Secondary indexes maintained by every CatalogReader implementation.
const (
	NameIndex       IndexName = "NameIndex"       // normalized_name -> entries
	DistilleryIndex IndexName = "DistilleryIndex" // normalized_distillery -> entries
)

// CatalogReader is the read-only view of the whiskey catalog consumed by the
// search and ranking engines. Implementations return entries in their natural
// (stable) order. Every method must honour ctx: a cancelled or expired context
// is reported as an error, never as an unbounded block.
type CatalogReader interface {
	// ScanWhiskeys returns entries in store order. limit <= 0 means all entries.
	ScanWhiskeys(ctx context.Context, limit int) ([]WhiskeyEntry, error)

	// GetWhiskey returns the entry with the given id.
	// Returns nil, nil if no such entry exists.
	GetWhiskey(ctx context.Context, id string) (*WhiskeyEntry, error)

	// QueryWhiskeys returns all entries with an indexed key equal to value.
	// Every localization is indexed under its normalized form. This is a point
	// lookup on a secondary index, not a scan.
	QueryWhiskeys(ctx context.Context, index IndexName, value string) ([]WhiskeyEntry, error)
}

// ReviewReader is the read-only view of review records.
type ReviewReader interface {
	// ScanReviews returns every review in store order.
	ScanReviews(ctx context.Context) ([]ReviewRecord, error)
}

// Locale is a display-language tag for localized catalog text.
type Locale string

const (
	LocaleJa Locale = "ja"
	LocaleEn Locale = "en"
)

// DisplayLocales is the fixed preference order used to pick a single display
// name or distillery for an entry. It does not depend on the request.
var DisplayLocales = []Locale{LocaleJa, LocaleEn}

// LocalizedText holds one string per supported locale.
type LocalizedText struct {
	Ja string `json:"ja,omitempty"`
	En string `json:"en,omitempty"`
}

// Get returns the text for a single locale.
func (t LocalizedText) Get(l Locale) string {
	switch l {
	case LocaleJa:
		return t.Ja
	case LocaleEn:
		return t.En
	}
	return ""
}

// Preferred returns the first non-empty text in DisplayLocales order.
func (t LocalizedText) Preferred() string {
	for _, l := range DisplayLocales {
		if s := t.Get(l); s != "" {
			return s
		}
	}
	return ""
}

// IsZero reports whether no localization is set.
func (t LocalizedText) IsZero() bool {
	return t.Ja == "" && t.En == ""
}

// WhiskeyEntry is one catalog record.
//
// NormalizedName and NormalizedDistillery are derived from the preferred
// display text; the indexes also cover the other localizations. They are
// written only by the store's write path, together with the display fields,
// so a reader never observes them out of sync.
type WhiskeyEntry struct {
	ID                   string        `json:"id" validate:"required"`
	Name                 LocalizedText `json:"name"`
	Distillery           LocalizedText `json:"distillery"`
	Region               string        `json:"region,omitempty"`
	Type                 string        `json:"type,omitempty"`
	NormalizedName       string        `json:"normalized_name"`
	NormalizedDistillery string        `json:"normalized_distillery"`
	Confidence           float64       `json:"confidence" validate:"gte=0,lte=1"`
	Source               string        `json:"source,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// DisplayName is the entry's name under the fixed locale preference.
func (e *WhiskeyEntry) DisplayName() string { return e.Name.Preferred() }

// DisplayDistillery is the entry's distillery under the fixed locale preference.
func (e *WhiskeyEntry) DisplayDistillery() string { return e.Distillery.Preferred() }

// ServingStyle is how a reviewed dram was served.
type ServingStyle string

const (
	StyleNeat       ServingStyle = "Neat"
	StyleRock       ServingStyle = "Rock"
	StyleTwiceUp    ServingStyle = "Twice Up"
	StyleHighBall   ServingStyle = "High Ball"
	StyleOnTheRocks ServingStyle = "On the Rocks"
	StyleWater      ServingStyle = "Water"
	StyleHot        ServingStyle = "Hot"
	StyleCocktail   ServingStyle = "Cocktail"
)

// ServingStyles lists every accepted ServingStyle.
var ServingStyles = []ServingStyle{
	StyleNeat, StyleRock, StyleTwiceUp, StyleHighBall,
	StyleOnTheRocks, StyleWater, StyleHot, StyleCocktail,
}

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// ReviewRecord is a single user review. WhiskeyID is a reference only: it may
// point at an entry that does not exist, and readers must tolerate that.
type ReviewRecord struct {
	ID            string         `json:"id" validate:"required"`
	WhiskeyID     string         `json:"whiskey_id" validate:"required"`
	UserID        string         `json:"user_id"`
	Rating        int            `json:"rating" validate:"min=1,max=5"`
	Notes         string         `json:"notes,omitempty"`
	ServingStyles []ServingStyle `json:"serving_style,omitempty" validate:"dive,oneof=Neat Rock 'Twice Up' 'High Ball' 'On the Rocks' Water Hot Cocktail"`
	Date          string         `json:"date,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
