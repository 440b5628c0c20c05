// Package bbolt implements the catalog and review readers on bbolt (embedded
// B+ tree). Whiskeys and reviews live in their own top-level buckets keyed by
// id; two index buckets map the normalized form of every localized name and
// distillery to ids. Every write updates a record and its index keys in one
// transaction, so readers never see derived fields out of sync with the
// display text. Scans skip records that no longer decode.
package bbolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/corey/whiskeybar/internal/domain/catalog"
	"github.com/corey/whiskeybar/internal/logging"
	"github.com/corey/whiskeybar/internal/metrics"
	"github.com/corey/whiskeybar/internal/ports"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

// Bucket keys
var (
	bucketWhiskeys      = []byte("whiskeys")
	bucketReviews       = []byte("reviews")
	bucketIdxName       = []byte("idx_name")
	bucketIdxDistillery = []byte("idx_distillery")
)

// DefaultOpenTimeout bounds how long NewStore waits for the file lock.
const DefaultOpenTimeout = 1 * time.Second

// Store implements ports.CatalogReader and ports.ReviewReader backed by bbolt.
type Store struct {
	db  *bolt.DB
	now func() time.Time
	log zerolog.Logger
}

// NewStore opens (or creates) a bbolt database at the given path and
// provisions every bucket the readers expect.
func NewStore(path string, openTimeout time.Duration) (*Store, error) {
	if openTimeout <= 0 {
		openTimeout = DefaultOpenTimeout
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketWhiskeys, bucketReviews, bucketIdxName, bucketIdxDistillery} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now, log: logging.WithComponent("bbolt")}, nil
}

// SetLogger replaces the store's logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (s *Store) SetLogger(l zerolog.Logger) {
	s.log = l
}

// Close closes the underlying bbolt database. Reads after Close fail with
// ports.ErrUnavailable.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// view runs fn in a read transaction after checking ctx.
func (s *Store) view(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return unavailable(s.db.View(fn))
}

func (s *Store) update(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return unavailable(s.db.Update(fn))
}

// IsLockTimeout reports whether err came from NewStore giving up on the file
// lock held by another process.
func IsLockTimeout(err error) bool {
	return errors.Is(err, bolt.ErrTimeout)
}

// unavailable tags errors meaning the database cannot serve at all.
func unavailable(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return fmt.Errorf("%w: %w", ports.ErrUnavailable, err)
	}
	return err
}

// skip logs and counts a record a read could not use. k may alias bbolt
// memory and is only read here.
func (s *Store) skip(bucket, k []byte, err error) {
	metrics.StoreSkippedRecords.WithLabelValues(string(bucket)).Inc()
	s.log.Warn().Err(err).
		Str("bucket", string(bucket)).
		Str("key", string(k)).
		Msg("skipping unreadable record")
}

// ScanWhiskeys returns entries in key order. limit <= 0 means all entries;
// otherwise at most limit decodable entries are returned.
func (s *Store) ScanWhiskeys(ctx context.Context, limit int) ([]ports.WhiskeyEntry, error) {
	var out []ports.WhiskeyEntry
	err := s.view(ctx, func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketWhiskeys).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := decodeWhiskey(v)
			if err != nil {
				s.skip(bucketWhiskeys, k, err)
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetWhiskey returns the entry with the given id.
// Returns nil, nil if no such entry exists.
func (s *Store) GetWhiskey(ctx context.Context, id string) (*ports.WhiskeyEntry, error) {
	var found *ports.WhiskeyEntry
	err := s.view(ctx, func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketWhiskeys).Get([]byte(id))
		if v == nil {
			return nil
		}
		e, err := decodeWhiskey(v)
		if err != nil {
			return fmt.Errorf("whiskey %q: %w", id, err)
		}
		found = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// QueryWhiskeys returns every entry with a localization whose normalized form
// equals value, in id order. An empty value matches nothing. Dangling or
// undecodable targets are skipped.
func (s *Store) QueryWhiskeys(ctx context.Context, index ports.IndexName, value string) ([]ports.WhiskeyEntry, error) {
	bucket, err := indexBucket(index)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}

	var out []ports.WhiskeyEntry
	err = s.view(ctx, func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketWhiskeys)
		prefix := indexPrefix(value)
		c := tx.Bucket(bucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := idFromIndexKey(k)
			if err != nil {
				return err
			}
			v := records.Get([]byte(id))
			if v == nil {
				// Index keys are written with their record; a miss means the
				// file was edited outside this package.
				s.skip(bucket, k, fmt.Errorf("index %s points at missing whiskey %q", index, id))
				continue
			}
			e, err := decodeWhiskey(v)
			if err != nil {
				s.skip(bucketWhiskeys, []byte(id), err)
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func indexBucket(index ports.IndexName) ([]byte, error) {
	switch index {
	case ports.NameIndex:
		return bucketIdxName, nil
	case ports.DistilleryIndex:
		return bucketIdxDistillery, nil
	}
	return nil, fmt.Errorf("unknown index %q", index)
}

// ScanReviews returns every review in key order.
func (s *Store) ScanReviews(ctx context.Context) ([]ports.ReviewRecord, error) {
	var out []ports.ReviewRecord
	err := s.view(ctx, func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReviews).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := decodeReview(v)
			if err != nil {
				s.skip(bucketReviews, k, err)
				continue
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutWhiskey inserts or replaces an entry. The normalized fields are
// recomputed from the preferred display text and every localization gets its
// own index key. Stale index keys of the previous version are removed, and
// CreatedAt is carried over from it. e is updated in place with the stored
// values.
func (s *Store) PutWhiskey(ctx context.Context, e *ports.WhiskeyEntry) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("put whiskey: missing id")
	}
	for _, f := range []struct{ name, value string }{
		{"id", e.ID},
		{"name.ja", e.Name.Ja},
		{"name.en", e.Name.En},
		{"distillery.ja", e.Distillery.Ja},
		{"distillery.en", e.Distillery.En},
	} {
		if strings.IndexByte(f.value, keySep) >= 0 {
			return fmt.Errorf("put whiskey %q: %s contains NUL", e.ID, f.name)
		}
	}

	e.NormalizedName = catalog.Normalize(e.DisplayName())
	e.NormalizedDistillery = catalog.Normalize(e.DisplayDistillery())
	now := s.now().UTC()
	e.UpdatedAt = now

	return s.update(ctx, func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketWhiskeys)
		names := tx.Bucket(bucketIdxName)
		distilleries := tx.Bucket(bucketIdxDistillery)

		if v := records.Get([]byte(e.ID)); v != nil {
			prev, err := decodeWhiskey(v)
			if err != nil {
				return fmt.Errorf("whiskey %q: %w", e.ID, err)
			}
			if err := deleteIndexKeys(names, e.ID, prev.Name); err != nil {
				return err
			}
			if err := deleteIndexKeys(distilleries, e.ID, prev.Distillery); err != nil {
				return err
			}
			if !prev.CreatedAt.IsZero() {
				e.CreatedAt = prev.CreatedAt
			}
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}

		data, err := encodeWhiskey(e)
		if err != nil {
			return err
		}
		if err := records.Put([]byte(e.ID), data); err != nil {
			return err
		}
		for _, v := range indexValues(e.Name) {
			if err := names.Put(indexKey(v, e.ID), nil); err != nil {
				return err
			}
		}
		for _, v := range indexValues(e.Distillery) {
			if err := distilleries.Put(indexKey(v, e.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// indexValues returns the distinct non-empty normalized forms of every
// localization of t.
func indexValues(t ports.LocalizedText) []string {
	var out []string
	for _, l := range ports.DisplayLocales {
		v := catalog.Normalize(t.Get(l))
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// deleteIndexKeys removes every key a previous version of id wrote to b.
func deleteIndexKeys(b *bolt.Bucket, id string, t ports.LocalizedText) error {
	for _, v := range indexValues(t) {
		if err := b.Delete(indexKey(v, id)); err != nil {
			return err
		}
	}
	return nil
}

// PutReview inserts or replaces a review. The referenced whiskey need not
// exist.
func (s *Store) PutReview(ctx context.Context, r *ports.ReviewRecord) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("put review: missing id")
	}
	now := s.now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	data, err := encodeReview(r)
	if err != nil {
		return err
	}
	return s.update(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReviews).Put([]byte(r.ID), data)
	})
}

// Counts reports how many whiskeys and reviews are stored.
func (s *Store) Counts(ctx context.Context) (whiskeys, reviews int, err error) {
	err = s.view(ctx, func(tx *bolt.Tx) error {
		whiskeys = tx.Bucket(bucketWhiskeys).Stats().KeyN
		reviews = tx.Bucket(bucketReviews).Stats().KeyN
		return nil
	})
	return whiskeys, reviews, err
}
