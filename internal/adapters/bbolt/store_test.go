package bbolt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/corey/whiskeybar/internal/domain/catalog"
	"github.com/corey/whiskeybar/internal/domain/ranking"
	"github.com/corey/whiskeybar/internal/logging"
	"github.com/corey/whiskeybar/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

// newTestStore creates a temporary bbolt store for testing.
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	store, err := NewStore(path, 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func whiskey(id, nameJa, nameEn, distilleryJa, distilleryEn string) *ports.WhiskeyEntry {
	return &ports.WhiskeyEntry{
		ID:         id,
		Name:       ports.LocalizedText{Ja: nameJa, En: nameEn},
		Distillery: ports.LocalizedText{Ja: distilleryJa, En: distilleryEn},
		Region:     "Japan",
		Type:       "Single Malt",
		Confidence: 0.9,
		Source:     "seed",
	}
}

// seedStore writes a small realistic catalog with reviews.
func seedStore(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, e := range []*ports.WhiskeyEntry{
		whiskey("w1", "", "Yamazaki 12 Year", "", "Suntory"),
		whiskey("w2", "", "Hakushu 12", "", "Suntory"),
		whiskey("w3", "マッカラン 12年", "Macallan 12", "マッカラン", "Macallan"),
		whiskey("w4", "", "Yamazaki", "", "Suntory"),
	} {
		require.NoError(t, s.PutWhiskey(ctx, e))
	}
	for _, r := range []*ports.ReviewRecord{
		{ID: "r1", WhiskeyID: "w1", UserID: "u1", Rating: 5, ServingStyles: []ports.ServingStyle{ports.StyleNeat}},
		{ID: "r2", WhiskeyID: "w1", UserID: "u2", Rating: 3},
		{ID: "r3", WhiskeyID: "gone", UserID: "u1", Rating: 4},
	} {
		require.NoError(t, s.PutReview(ctx, r))
	}
}

func ids(entries []ports.WhiskeyEntry) []string {
	out := make([]string, len(entries))
	for i := range entries {
		out[i] = entries[i].ID
	}
	return out
}

func TestStore_ProvisionsBuckets(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	entries, err := store.ScanWhiskeys(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	reviews, err := store.ScanReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	got, err := store.GetWhiskey(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_PutWhiskey_DerivesNormalizedFields(t *testing.T) {
	store, _ := newTestStore(t)
	seedStore(t, store)
	ctx := context.Background()

	got, err := store.GetWhiskey(ctx, "w3")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "マッカラン 12年", got.DisplayName())
	assert.Equal(t, catalog.Normalize("マッカラン 12年"), got.NormalizedName)
	assert.Equal(t, "まっからん12年", got.NormalizedName)
	assert.Equal(t, "まっからん", got.NormalizedDistillery)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, 0.9, got.Confidence)

	got, err = store.GetWhiskey(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "yamazaki12year", got.NormalizedName)
	assert.Equal(t, "suntory", got.NormalizedDistillery)
}

func TestStore_PutWhiskey_IgnoresCallerNormalizedFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	e := whiskey("w1", "", "Hibiki Harmony", "", "Suntory")
	e.NormalizedName = "something stale"
	require.NoError(t, store.PutWhiskey(ctx, e))
	assert.Equal(t, "hibikiharmony", e.NormalizedName)

	hits, err := store.QueryWhiskeys(ctx, ports.NameIndex, "something stale")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_PutWhiskey_RejectsBadIDs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	assert.Error(t, store.PutWhiskey(ctx, nil))
	assert.Error(t, store.PutWhiskey(ctx, whiskey("", "", "x", "", "")))
	assert.Error(t, store.PutWhiskey(ctx, whiskey("a\x00b", "", "x", "", "")))
	assert.Error(t, store.PutReview(ctx, &ports.ReviewRecord{WhiskeyID: "w1", Rating: 3}))
}

func TestStore_QueryWhiskeys_ExactIndexMatch(t *testing.T) {
	store, _ := newTestStore(t)
	seedStore(t, store)
	ctx := context.Background()

	hits, err := store.QueryWhiskeys(ctx, ports.NameIndex, "yamazaki")
	require.NoError(t, err)
	assert.Equal(t, []string{"w4"}, ids(hits), "prefix siblings like yamazaki12year must not match")

	hits, err = store.QueryWhiskeys(ctx, ports.DistilleryIndex, "suntory")
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2", "w4"}, ids(hits))

	hits, err = store.QueryWhiskeys(ctx, ports.DistilleryIndex, "まっからん")
	require.NoError(t, err)
	assert.Equal(t, []string{"w3"}, ids(hits))

	hits, err = store.QueryWhiskeys(ctx, ports.NameIndex, "")
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = store.QueryWhiskeys(ctx, ports.IndexName("RegionIndex"), "japan")
	assert.Error(t, err)
}

func TestStore_PutWhiskey_ReplacesIndexKeys(t *testing.T) {
	store, _ := newTestStore(t)
	seedStore(t, store)
	ctx := context.Background()

	before, err := store.GetWhiskey(ctx, "w2")
	require.NoError(t, err)

	store.now = func() time.Time { return before.CreatedAt.Add(time.Hour) }
	renamed := whiskey("w2", "白州 12年", "Hakushu 12 Year", "白州", "Beam Suntory")
	require.NoError(t, store.PutWhiskey(ctx, renamed))

	hits, err := store.QueryWhiskeys(ctx, ports.NameIndex, "hakushu12")
	require.NoError(t, err)
	assert.Empty(t, hits, "old index key must be removed")

	hits, err = store.QueryWhiskeys(ctx, ports.NameIndex, "白州12年")
	require.NoError(t, err)
	assert.Equal(t, []string{"w2"}, ids(hits))

	hits, err = store.QueryWhiskeys(ctx, ports.NameIndex, "hakushu12year")
	require.NoError(t, err)
	assert.Equal(t, []string{"w2"}, ids(hits))

	// Dropping a localization drops its key.
	require.NoError(t, store.PutWhiskey(ctx, whiskey("w2", "白州 12年", "", "白州", "")))
	hits, err = store.QueryWhiskeys(ctx, ports.NameIndex, "hakushu12year")
	require.NoError(t, err)
	assert.Empty(t, hits)
	hits, err = store.QueryWhiskeys(ctx, ports.DistilleryIndex, "beamsuntory")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = store.QueryWhiskeys(ctx, ports.DistilleryIndex, "suntory")
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w4"}, ids(hits))

	after, err := store.GetWhiskey(ctx, "w2")
	require.NoError(t, err)
	assert.True(t, after.CreatedAt.Equal(before.CreatedAt), "created_at is preserved")
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	all, err := store.ScanWhiskeys(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStore_IndexesEveryLocalization(t *testing.T) {
	store, _ := newTestStore(t)
	seedStore(t, store)
	ctx := context.Background()

	got, err := store.GetWhiskey(ctx, "w3")
	require.NoError(t, err)
	assert.Equal(t, "まっからん12年", got.NormalizedName, "derived fields follow the preferred locale")

	for _, q := range []struct {
		index ports.IndexName
		value string
	}{
		{ports.NameIndex, "まっからん12年"},
		{ports.NameIndex, "macallan12"},
		{ports.DistilleryIndex, "まっからん"},
		{ports.DistilleryIndex, "macallan"},
	} {
		hits, err := store.QueryWhiskeys(ctx, q.index, q.value)
		require.NoError(t, err)
		assert.Equal(t, []string{"w3"}, ids(hits), "%s %s", q.index, q.value)
	}

	engine := catalog.NewSearchEngine(store, catalog.Options{TierTimeout: time.Second})
	engine.SetLogger(logging.NewTestLogger(&bytes.Buffer{}))

	res := engine.Search(ctx, "Macallan", 10)
	require.False(t, res.Degraded)
	require.Equal(t, []string{"w3"}, hitIDs(res.Hits))
	assert.Equal(t, "マッカラン 12年", res.Hits[0].Name)

	res = engine.Search(ctx, "macallan 12", 10)
	assert.Equal(t, []string{"w3"}, hitIDs(res.Hits))
}

func TestStore_PutWhiskey_RejectsNULInDisplayText(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutWhiskey(ctx, whiskey("a1", "", "Glen", "", "")))
	for _, e := range []*ports.WhiskeyEntry{
		whiskey("a2", "", "Glen\x00Bad", "", ""),
		whiskey("a2", "グレン\x00", "", "", ""),
		whiskey("a2", "", "Glen", "", "Glen\x00Bad"),
		whiskey("a2", "", "Glen", "\x00", ""),
	} {
		assert.ErrorContains(t, store.PutWhiskey(ctx, e), "contains NUL")
	}

	hits, err := store.QueryWhiskeys(ctx, ports.NameIndex, "glen")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids(hits))

	got, err := store.GetWhiskey(ctx, "a2")
	require.NoError(t, err)
	assert.Nil(t, got, "rejected writes leave nothing behind")
}

func TestStore_SkipsUndecodableRecords(t *testing.T) {
	store, _ := newTestStore(t)
	var logBuf bytes.Buffer
	store.SetLogger(logging.NewTestLogger(&logBuf))
	seedStore(t, store)
	ctx := context.Background()

	require.NoError(t, store.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketWhiskeys).Put([]byte("w9"), []byte("{not json")); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIdxName).Put(indexKey("hakushu12", "w9"), nil); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIdxName).Put(indexKey("hakushu12", "w8"), nil); err != nil {
			return err
		}
		return tx.Bucket(bucketReviews).Put([]byte("r9"), []byte("{not json"))
	}))

	all, err := store.ScanWhiskeys(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2", "w3", "w4"}, ids(all))

	// The limit counts decodable entries only.
	five, err := store.ScanWhiskeys(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, five, 4)

	hits, err := store.QueryWhiskeys(ctx, ports.NameIndex, "hakushu12")
	require.NoError(t, err)
	assert.Equal(t, []string{"w2"}, ids(hits), "dangling and undecodable targets are skipped")

	reviews, err := store.ScanReviews(ctx)
	require.NoError(t, err)
	assert.Len(t, reviews, 3)

	assert.Contains(t, logBuf.String(), "skipping unreadable record")
	assert.Contains(t, logBuf.String(), "w9")

	engine := catalog.NewSearchEngine(store, catalog.Options{TierTimeout: time.Second})
	engine.SetLogger(logging.NewTestLogger(&bytes.Buffer{}))
	res := engine.Search(ctx, "Hakushu", 10)
	assert.False(t, res.Degraded)
	assert.Empty(t, res.Failures)
	assert.Equal(t, []string{"w2"}, hitIDs(res.Hits))

	res = engine.Search(ctx, "", 10)
	assert.Empty(t, res.Failures)
	assert.Len(t, res.Hits, 4)

	ranker := ranking.NewEngine(store, store, ranking.Options{CallTimeout: time.Second})
	ranker.SetLogger(logging.NewTestLogger(&bytes.Buffer{}))
	page := ranker.Rank(ctx, 1, 10)
	assert.False(t, page.Degraded)
	require.NotEmpty(t, page.Rows)
	assert.Equal(t, "w1", page.Rows[0].ID)
	assert.Equal(t, 4, page.Pagination.TotalItems)
}

func hitIDs(hits []catalog.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestStore_ScanWhiskeys_KeyOrderAndLimit(t *testing.T) {
	store, _ := newTestStore(t)
	seedStore(t, store)
	ctx := context.Background()

	all, err := store.ScanWhiskeys(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2", "w3", "w4"}, ids(all))

	two, err := store.ScanWhiskeys(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2"}, ids(two))

	more, err := store.ScanWhiskeys(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, more, 4)
}

func TestStore_ScanReviews_KeepsDanglingReferences(t *testing.T) {
	store, _ := newTestStore(t)
	seedStore(t, store)

	reviews, err := store.ScanReviews(context.Background())
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	assert.Equal(t, "gone", reviews[2].WhiskeyID)
	assert.Equal(t, []ports.ServingStyle{ports.StyleNeat}, reviews[0].ServingStyles)
	assert.Equal(t, 5, reviews[0].Rating)
}

func TestStore_Counts(t *testing.T) {
	store, _ := newTestStore(t)
	seedStore(t, store)

	w, r, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, r)
}

func TestStore_CancelledContext(t *testing.T) {
	store, _ := newTestStore(t)
	seedStore(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ScanWhiskeys(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.ScanReviews(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.QueryWhiskeys(ctx, ports.NameIndex, "yamazaki")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.PutReview(ctx, &ports.ReviewRecord{ID: "r9", WhiskeyID: "w1", Rating: 2}), context.Canceled)
}

func TestStore_ClosedIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "closed.db"), 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	ctx := context.Background()
	_, err = store.ScanWhiskeys(ctx, 0)
	assert.ErrorIs(t, err, ports.ErrUnavailable)
	_, err = store.GetWhiskey(ctx, "w1")
	assert.ErrorIs(t, err, ports.ErrUnavailable)
	_, err = store.QueryWhiskeys(ctx, ports.DistilleryIndex, "suntory")
	assert.ErrorIs(t, err, ports.ErrUnavailable)
	_, err = store.ScanReviews(ctx)
	assert.ErrorIs(t, err, ports.ErrUnavailable)
}

func TestStore_SearchEngineOverStore(t *testing.T) {
	// The search engine only sees the reader interface; run it against the
	// real index buckets.
	store, _ := newTestStore(t)
	seedStore(t, store)

	engine := catalog.NewSearchEngine(store, catalog.Options{TierTimeout: time.Second})
	engine.SetLogger(logging.NewTestLogger(&bytes.Buffer{}))
	ctx := context.Background()

	res := engine.Search(ctx, "Yamazaki", 10)
	require.False(t, res.Degraded)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "w4", res.Hits[0].ID)
	assert.Equal(t, "w1", res.Hits[1].ID)

	res = engine.Search(ctx, "マッカラン", 10)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "w3", res.Hits[0].ID)
	assert.Equal(t, "マッカラン 12年", res.Hits[0].Name)

	res = engine.Search(ctx, "まっからん 12年", 10)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "w3", res.Hits[0].ID)
}

func TestStore_CrashRecovery(t *testing.T) {
	// Committed writes survive close and reopen; bbolt fsyncs on commit.
	dir := t.TempDir()
	path := filepath.Join(dir, "crash.db")

	store, err := NewStore(path, 0)
	require.NoError(t, err)
	seedStore(t, store)
	require.NoError(t, store.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	store2, err := NewStore(path, 0)
	require.NoError(t, err)
	defer store2.Close()

	all, err := store2.ScanWhiskeys(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	hits, err := store2.QueryWhiskeys(context.Background(), ports.DistilleryIndex, "suntory")
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestStore_ConcurrentReads(t *testing.T) {
	// bbolt supports concurrent readers, single writer.
	store, _ := newTestStore(t)
	seedStore(t, store)

	var wg sync.WaitGroup
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := store.QueryWhiskeys(context.Background(), ports.DistilleryIndex, "suntory")
			if err != nil {
				errs <- err
				return
			}
			if len(hits) != 3 {
				errs <- fmt.Errorf("expected 3 hits, got %d", len(hits))
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent read error: %v", err)
	}
}

func TestStore_LargeCatalog_Performance(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		e := whiskey(fmt.Sprintf("w%04d", i), "", fmt.Sprintf("Whiskey %d", i), "", fmt.Sprintf("Distillery %d", i%24))
		require.NoError(t, store.PutWhiskey(ctx, e))
	}

	start := time.Now()
	all, err := store.ScanWhiskeys(ctx, 0)
	scanTime := time.Since(start)
	require.NoError(t, err)
	assert.Len(t, all, 500)

	start = time.Now()
	hits, err := store.QueryWhiskeys(ctx, ports.DistilleryIndex, "distillery7")
	queryTime := time.Since(start)
	require.NoError(t, err)
	assert.Len(t, hits, 21)

	assert.Less(t, scanTime, 500*time.Millisecond, "scan took %v", scanTime) // generous for CI
	assert.Less(t, queryTime, 100*time.Millisecond, "query took %v", queryTime)
	t.Logf("Performance: scan=%v query=%v", scanTime, queryTime)
}

// =============================================================================
// Lock contention tests: the open timeout prevents hangs
// =============================================================================

func TestStore_OpenTimeout_DoesNotHang(t *testing.T) {
	// When another process/goroutine holds the bbolt exclusive lock,
	// a second open should time out, not hang forever.
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.db")

	store1, err := NewStore(path, 0)
	require.NoError(t, err)
	defer store1.Close()

	start := time.Now()
	store2, err := NewStore(path, 200*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err, "second open should fail with lock timeout")
	assert.Nil(t, store2, "store should be nil on timeout")
	assert.True(t, IsLockTimeout(err), "error should be a lock timeout: %v", err)
	assert.Contains(t, err.Error(), "bbolt open")
	assert.Less(t, elapsed, 3*time.Second, "should complete quickly, not hang")
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond, "should wait for the configured timeout")
}

func TestStore_OpenAfterClose_Succeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "released.db")

	store1, err := NewStore(path, 0)
	require.NoError(t, err)
	seedStore(t, store1)
	store1.Close()

	start := time.Now()
	store2, err := NewStore(path, 0)
	elapsed := time.Since(start)

	require.NoError(t, err, "open after close should succeed")
	require.NotNil(t, store2)
	assert.Less(t, elapsed, 500*time.Millisecond, "should open instantly after lock released")
	defer store2.Close()

	got, err := store2.GetWhiskey(context.Background(), "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Yamazaki 12 Year", got.DisplayName())
}
