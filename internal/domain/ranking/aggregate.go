// Package ranking computes the live popularity ranking: per-whiskey review
// aggregates joined with the catalog, ordered and paginated.
package ranking

import "github.com/corey/whiskeybar/internal/ports"

// Stats is the aggregate of all reviews for one whiskey.
type Stats struct {
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// Aggregate groups ratings by whiskey id into mean and count. Ratings are
// summed as float64. Whiskeys with no reviews are absent from the map; callers
// treat absence as the zero Stats. Reviews without a whiskey id are ignored.
func Aggregate(reviews []ports.ReviewRecord) map[string]Stats {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range reviews {
		if r.WhiskeyID == "" {
			continue
		}
		sums[r.WhiskeyID] += float64(r.Rating)
		counts[r.WhiskeyID]++
	}

	out := make(map[string]Stats, len(counts))
	for id, n := range counts {
		out[id] = Stats{Avg: sums[id] / float64(n), Count: n}
	}
	return out
}
