package storage

import (
	"errors"
	"sort"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/similarity"
)

// ScanSimilar is the shared brute-force nearest-neighbor scan used by backends
// without a native vector index. Listings lacking the requested embedding are
// skipped, never scored as zero. Scores are normalized to [0,1] like the
// ranker's, so thresholds are interchangeable between both paths.
func ScanSimilar(items []*listing.Listing, query listing.Embedding, kind similarity.Kind, threshold float64, limit int) ([]SimilarListing, error) {
	if len(query) == 0 {
		return nil, similarity.ErrMissingEmbedding
	}

	hits := make([]SimilarListing, 0)
	for _, l := range items {
		vector := l.FullEmbedding
		if kind == similarity.KindVibe {
			vector = l.VibeEmbedding
		}
		if len(vector) == 0 {
			continue
		}

		c, err := similarity.Cosine(query, vector)
		if err != nil {
			if errors.Is(err, similarity.ErrMissingEmbedding) {
				continue
			}
			return nil, err
		}

		score := (c + 1) / 2
		if score > threshold {
			hits = append(hits, SimilarListing{Listing: l, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Listing.IngestedAt.After(hits[j].Listing.IngestedAt)
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
