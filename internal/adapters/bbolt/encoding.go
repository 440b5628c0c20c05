// Record and index-key encoding for the catalog buckets.
//
// Records are stored as JSON values keyed by their id. Secondary index
// buckets hold empty values under composite keys:
//
//	normalized value | 0x00 | id
//
// so every entry sharing a normalized value sits in one contiguous key range
// and a point lookup is a prefix seek. An entry has one key per distinct
// normalized localization. PutWhiskey rejects 0x00 in ids and display text,
// so the first separator in a key always ends the value.
package bbolt

import (
	"bytes"
	"fmt"

	"github.com/corey/whiskeybar/internal/ports"
	json "github.com/goccy/go-json"
)

const keySep = 0x00

// indexKey builds the composite key for one index entry.
func indexKey(value, id string) []byte {
	k := make([]byte, 0, len(value)+1+len(id))
	k = append(k, value...)
	k = append(k, keySep)
	k = append(k, id...)
	return k
}

// indexPrefix is the seek prefix matching every id indexed under value.
func indexPrefix(value string) []byte {
	p := make([]byte, 0, len(value)+1)
	p = append(p, value...)
	return append(p, keySep)
}

// idFromIndexKey returns the id part of a composite key.
func idFromIndexKey(k []byte) (string, error) {
	i := bytes.IndexByte(k, keySep)
	if i < 0 {
		return "", fmt.Errorf("index key %q has no separator", k)
	}
	return string(k[i+1:]), nil
}

func encodeWhiskey(e *ports.WhiskeyEntry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal whiskey %s: %w", e.ID, err)
	}
	return data, nil
}

// decodeWhiskey decodes a stored record. v may alias bbolt memory; the
// decoder copies everything it keeps.
func decodeWhiskey(v []byte) (ports.WhiskeyEntry, error) {
	var e ports.WhiskeyEntry
	if err := json.Unmarshal(v, &e); err != nil {
		return e, fmt.Errorf("unmarshal whiskey: %w", err)
	}
	return e, nil
}

func encodeReview(r *ports.ReviewRecord) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal review %s: %w", r.ID, err)
	}
	return data, nil
}

func decodeReview(v []byte) (ports.ReviewRecord, error) {
	var r ports.ReviewRecord
	if err := json.Unmarshal(v, &r); err != nil {
		return r, fmt.Errorf("unmarshal review: %w", err)
	}
	return r, nil
}
