package seed

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/corey/whiskeybar/internal/logging"
	"github.com/corey/whiskeybar/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	whiskeys map[string]ports.WhiskeyEntry
	reviews  map[string]ports.ReviewRecord
	order    []string
	failOn   string
}

func newMemWriter() *memWriter {
	return &memWriter{whiskeys: map[string]ports.WhiskeyEntry{}, reviews: map[string]ports.ReviewRecord{}}
}

func (m *memWriter) PutWhiskey(_ context.Context, e *ports.WhiskeyEntry) error {
	if e.ID == m.failOn {
		return errors.New("write failed")
	}
	m.whiskeys[e.ID] = *e
	m.order = append(m.order, e.ID)
	return nil
}

func (m *memWriter) PutReview(_ context.Context, r *ports.ReviewRecord) error {
	m.reviews[r.ID] = *r
	return nil
}

func newTestLoader(w Writer) (*Loader, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLoader(w)
	l.SetLogger(logging.NewTestLogger(&buf))
	return l, &buf
}

func TestLoadCatalog_UnifiesHistoricalSchemas(t *testing.T) {
	w := newMemWriter()
	l, _ := newTestLoader(w)

	data := []byte(`[
		{"id": "single-ja", "name": "山崎 12年", "distillery": "サントリー山崎蒸溜所", "confidence": 0.95},
		{"id": "single-en", "name": "Glenfiddich 12", "distillery": "Glenfiddich"},
		{"id": "bilingual", "name_ja": "白州", "name_en": "Hakushu", "distillery_ja": "サントリー白州蒸溜所", "distillery_en": "Hakushu Distillery"},
		{"id": "migrated", "name": "Hibiki 17", "name_ja": "響 17年", "distillery": "Suntory", "distillery_ja": "サントリー", "region": "Japan", "type": "Blended"}
	]`)
	rep, err := l.LoadCatalog(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, Report{Loaded: 4}, rep)

	assert.Equal(t, ports.LocalizedText{Ja: "山崎 12年"}, w.whiskeys["single-ja"].Name)
	assert.Equal(t, ports.LocalizedText{Ja: "サントリー山崎蒸溜所"}, w.whiskeys["single-ja"].Distillery)
	assert.Equal(t, 0.95, w.whiskeys["single-ja"].Confidence)

	assert.Equal(t, ports.LocalizedText{En: "Glenfiddich 12"}, w.whiskeys["single-en"].Name)
	assert.Equal(t, 1.0, w.whiskeys["single-en"].Confidence)
	assert.Equal(t, "seed", w.whiskeys["single-en"].Source)

	assert.Equal(t, ports.LocalizedText{Ja: "白州", En: "Hakushu"}, w.whiskeys["bilingual"].Name)
	assert.Equal(t, ports.LocalizedText{Ja: "サントリー白州蒸溜所", En: "Hakushu Distillery"}, w.whiskeys["bilingual"].Distillery)

	migrated := w.whiskeys["migrated"]
	assert.Equal(t, ports.LocalizedText{Ja: "響 17年", En: "Hibiki 17"}, migrated.Name)
	assert.Equal(t, ports.LocalizedText{Ja: "サントリー", En: "Suntory"}, migrated.Distillery)
	assert.Equal(t, "響 17年", migrated.DisplayName())
	assert.Equal(t, "Japan", migrated.Region)
	assert.Equal(t, "Blended", migrated.Type)

	assert.Equal(t, []string{"single-ja", "single-en", "bilingual", "migrated"}, w.order)
}

func TestLoadCatalog_EnvelopeAndExtractionFormats(t *testing.T) {
	w := newMemWriter()
	l, _ := newTestLoader(w)

	rep, err := l.LoadCatalog(context.Background(), []byte(`{"whiskeys": [{"id": "a", "name": "Ardbeg 10"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Loaded)

	rep, err = l.LoadCatalog(context.Background(), []byte(`{"results": [
		{"product_name": "ignored", "extracted_whiskeys": [{"name": "余市", "distillery": "ニッカウヰスキー余市蒸溜所", "confidence": 0.8}]},
		{"extracted_whiskeys": [{"whiskey_name": "Talisker 10"}]}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Loaded)
	assert.Len(t, w.whiskeys, 3)
}

func TestLoadCatalog_DerivesStableIDs(t *testing.T) {
	w := newMemWriter()
	l, _ := newTestLoader(w)
	data := []byte(`[{"name": "竹鶴 17年", "distillery": "ニッカ"}]`)

	_, err := l.LoadCatalog(context.Background(), data)
	require.NoError(t, err)
	_, err = l.LoadCatalog(context.Background(), data)
	require.NoError(t, err)

	require.Len(t, w.whiskeys, 1, "reloading must not duplicate")
	require.Len(t, w.order, 2)
	assert.Equal(t, w.order[0], w.order[1])
	assert.Len(t, w.order[0], 36)
}

func TestLoadCatalog_SkipsInvalidEntries(t *testing.T) {
	w := newMemWriter()
	l, logs := newTestLoader(w)

	rep, err := l.LoadCatalog(context.Background(), []byte(`[
		{"id": "nameless", "distillery": "Somewhere"},
		{"id": "overconfident", "name": "Laphroaig", "confidence": 1.5},
		{"id": "ok", "name": "Lagavulin 16"}
	]`))
	require.NoError(t, err)
	assert.Equal(t, Report{Loaded: 1, Skipped: 2}, rep)
	assert.Contains(t, w.whiskeys, "ok")
	assert.Contains(t, logs.String(), "skipping invalid whiskey")
}

func TestLoadCatalog_DecodeErrorLoadsNothing(t *testing.T) {
	w := newMemWriter()
	l, _ := newTestLoader(w)

	_, err := l.LoadCatalog(context.Background(), []byte(`[{"id": "a", "name": "x"},`))
	require.Error(t, err)
	assert.Empty(t, w.whiskeys)
}

func TestLoadCatalog_WriteFailureStops(t *testing.T) {
	w := newMemWriter()
	w.failOn = "b"
	l, _ := newTestLoader(w)

	rep, err := l.LoadCatalog(context.Background(), []byte(`[{"id":"a","name":"A"},{"id":"b","name":"B"},{"id":"c","name":"C"}]`))
	require.Error(t, err)
	assert.Equal(t, 1, rep.Loaded)
	assert.NotContains(t, w.whiskeys, "c")
}

func TestLoadReviews_ValidatesAndCanonicalizes(t *testing.T) {
	w := newMemWriter()
	l, logs := newTestLoader(w)

	rep, err := l.LoadReviews(context.Background(), []byte(`[
		{"id": "r1", "whiskey_id": "w1", "user_id": "u1", "rating": 5, "serving_style": "NEAT", "date": "2025-06-01"},
		{"id": "r2", "whiskey_id": "w1", "user_id": "u2", "rating": 4.0, "serving_style": ["Rock", "twice up"]},
		{"id": "r3", "whiskey_id": "w2", "user_id": "u1", "rating": 3, "serving_style": "SODA"},
		{"id": "r4", "whiskey_id": "w2", "rating": 6},
		{"id": "r5", "whiskey_id": "w2", "rating": 0},
		{"id": "r6", "whiskey_id": "w2", "rating": 3.5},
		{"id": "r7", "whiskey_id": "w2", "rating": 3, "serving_style": "Shaken"},
		{"id": "r8", "rating": 3},
		{"id": "r9", "whiskey_id": "deleted", "rating": 2}
	]`))
	require.NoError(t, err)
	assert.Equal(t, Report{Loaded: 4, Skipped: 5}, rep)

	assert.Equal(t, []ports.ServingStyle{ports.StyleNeat}, w.reviews["r1"].ServingStyles)
	assert.Equal(t, "2025-06-01", w.reviews["r1"].Date)
	assert.Equal(t, 4, w.reviews["r2"].Rating)
	assert.Equal(t, []ports.ServingStyle{ports.StyleRock, ports.StyleTwiceUp}, w.reviews["r2"].ServingStyles)
	assert.Equal(t, []ports.ServingStyle{ports.StyleHighBall}, w.reviews["r3"].ServingStyles)
	assert.Contains(t, w.reviews, "r9", "dangling whiskey references are allowed")
	assert.Contains(t, logs.String(), "skipping invalid review")
}

func TestLoadReviews_EnvelopeAndGeneratedIDs(t *testing.T) {
	w := newMemWriter()
	l, _ := newTestLoader(w)

	rep, err := l.LoadReviews(context.Background(), []byte(`{"reviews": [
		{"whiskey_id": "w1", "user_id": "u1", "rating": 4, "date": "2025-01-02"},
		{"whiskey_id": "w1", "user_id": "u1", "rating": 4, "date": "2025-01-02"},
		{"whiskey_id": "w1", "user_id": "u1", "rating": 5, "date": "2025-01-03", "serving_style": null}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Loaded)
	assert.Len(t, w.reviews, 2, "identical anonymous reviews collapse to one id")
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.json")
	reviewsPath := filepath.Join(dir, "reviews.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`[{"id":"w1","name":"Yamazaki 12","distillery":"Suntory"}]`), 0o644))
	require.NoError(t, os.WriteFile(reviewsPath, []byte(`[{"id":"r1","whiskey_id":"w1","rating":5}]`), 0o644))

	w := newMemWriter()
	l, _ := newTestLoader(w)

	rep, err := l.LoadCatalogFile(context.Background(), catalogPath)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Loaded)

	rep, err = l.LoadReviewsFile(context.Background(), reviewsPath)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Loaded)

	_, err = l.LoadCatalogFile(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
	assert.Equal(t, 2025, parseTime("2025-03-04T05:06:07.123456").Year())
	assert.Equal(t, 7, parseTime("2025-03-04T05:06:07Z").Second())
	assert.Equal(t, 4, parseTime("2025-03-04").Day())
}
