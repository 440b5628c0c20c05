package seed

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/corey/whiskeybar/internal/domain/catalog"
	"github.com/corey/whiskeybar/internal/ports"
	"github.com/google/uuid"
	json "github.com/goccy/go-json"
)

// idNamespace derives stable ids for records that arrive without one, so
// loading the same file twice updates instead of duplicating.
var idNamespace = uuid.MustParse("6f1c7c2e-3b8e-4d7a-9a51-0f6a2b9e5c10")

// rawWhiskey accepts every historical catalog shape:
//
//   - single-language: name, distillery (Japanese or English text)
//   - bilingual: name_ja, name_en, distillery_ja, distillery_en
//   - migrated: English name and distillery plus name_ja, distillery_ja
//   - extraction output: whiskey_name instead of name
type rawWhiskey struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	WhiskeyName  string   `json:"whiskey_name"`
	NameJa       string   `json:"name_ja"`
	NameEn       string   `json:"name_en"`
	Distillery   string   `json:"distillery"`
	DistilleryJa string   `json:"distillery_ja"`
	DistilleryEn string   `json:"distillery_en"`
	Region       string   `json:"region"`
	Type         string   `json:"type"`
	Confidence   *float64 `json:"confidence"`
	Source       string   `json:"source"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// catalogFile is the envelope form of a catalog seed. A bare array is also
// accepted, as is the extraction format with results[].extracted_whiskeys.
type catalogFile struct {
	Whiskeys []rawWhiskey `json:"whiskeys"`
	Results  []struct {
		ExtractedWhiskeys []rawWhiskey `json:"extracted_whiskeys"`
	} `json:"results"`
}

func decodeCatalog(data []byte) ([]rawWhiskey, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raw []rawWhiskey
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return raw, nil
	}

	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	raw := f.Whiskeys
	for _, r := range f.Results {
		raw = append(raw, r.ExtractedWhiskeys...)
	}
	return raw, nil
}

// toEntry unifies a raw record. Explicit per-locale fields win; a plain
// name or distillery fills the slot matching its script.
func (r *rawWhiskey) toEntry() ports.WhiskeyEntry {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = strings.TrimSpace(r.WhiskeyName)
	}

	e := ports.WhiskeyEntry{
		ID:         strings.TrimSpace(r.ID),
		Name:       localize(name, r.NameJa, r.NameEn),
		Distillery: localize(r.Distillery, r.DistilleryJa, r.DistilleryEn),
		Region:     strings.TrimSpace(r.Region),
		Type:       strings.TrimSpace(r.Type),
		Source:     r.Source,
		CreatedAt:  parseTime(r.CreatedAt),
		UpdatedAt:  parseTime(r.UpdatedAt),
	}
	if r.Confidence != nil {
		e.Confidence = *r.Confidence
	} else {
		e.Confidence = 1
	}
	if e.Source == "" {
		e.Source = "seed"
	}
	if e.ID == "" {
		e.ID = uuid.NewSHA1(idNamespace, []byte(
			"whiskey\x00"+catalog.Normalize(e.DisplayName())+"\x00"+catalog.Normalize(e.DisplayDistillery()),
		)).String()
	}
	return e
}

func localize(plain, ja, en string) ports.LocalizedText {
	t := ports.LocalizedText{Ja: strings.TrimSpace(ja), En: strings.TrimSpace(en)}
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return t
	}
	if isJapanese(plain) {
		if t.Ja == "" {
			t.Ja = plain
		}
	} else if t.En == "" {
		t.En = plain
	}
	return t
}

// isJapanese reports whether s contains any kana or kanji.
func isJapanese(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999", // Python isoformat without zone
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime returns the zero time for empty or unrecognised input; the store
// stamps those on write.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// servingStyles accepts a single string or a list.
type servingStyles []string

func (s *servingStyles) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = nil
		return nil
	case len(data) > 0 && data[0] == '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*s = servingStyles{one}
	return nil
}

// styleAliases maps legacy spellings onto the accepted styles.
var styleAliases = map[string]ports.ServingStyle{
	"rocks": ports.StyleOnTheRocks,
	"soda":  ports.StyleHighBall,
}

// canonicalStyle matches case-insensitively against the accepted styles.
// Unknown values pass through unchanged for the validator to reject.
func canonicalStyle(s string) ports.ServingStyle {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, st := range ports.ServingStyles {
		if strings.ToLower(string(st)) == key {
			return st
		}
	}
	if st, ok := styleAliases[key]; ok {
		return st
	}
	return ports.ServingStyle(s)
}

type rawReview struct {
	ID           string        `json:"id"`
	WhiskeyID    string        `json:"whiskey_id"`
	UserID       string        `json:"user_id"`
	Rating       float64       `json:"rating"`
	Notes        string        `json:"notes"`
	ServingStyle servingStyles `json:"serving_style"`
	Date         string        `json:"date"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
}

type reviewFile struct {
	Reviews []rawReview `json:"reviews"`
}

func decodeReviews(data []byte) ([]rawReview, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raw []rawReview
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode reviews: %w", err)
		}
		return raw, nil
	}
	var f reviewFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return f.Reviews, nil
}

// toRecord converts a raw review. Fractional ratings cannot be represented
// and are reported as errors.
func (r *rawReview) toRecord() (ports.ReviewRecord, error) {
	rec := ports.ReviewRecord{
		ID:        strings.TrimSpace(r.ID),
		WhiskeyID: strings.TrimSpace(r.WhiskeyID),
		UserID:    r.UserID,
		Notes:     r.Notes,
		Date:      r.Date,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
	if r.Rating != math.Trunc(r.Rating) {
		return rec, fmt.Errorf("rating %v is not a whole number", r.Rating)
	}
	rec.Rating = int(r.Rating)
	for _, s := range r.ServingStyle {
		rec.ServingStyles = append(rec.ServingStyles, canonicalStyle(s))
	}
	if rec.ID == "" {
		rec.ID = uuid.NewSHA1(idNamespace, []byte(
			"review\x00"+rec.WhiskeyID+"\x00"+rec.UserID+"\x00"+rec.Date+"\x00"+rec.Notes,
		)).String()
	}
	return rec, nil
}
