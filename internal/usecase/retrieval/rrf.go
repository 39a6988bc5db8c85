package retrieval

import (
	"sort"

	"github.com/waypointhq/ragcore/internal/domain"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges vector and keyword rankings via weighted Reciprocal Rank
// Fusion. The vector list contributes (1-keywordWeight)/(k+rank), the
// keyword list keywordWeight/(k+rank); ranks are 1-based. When a chunk
// appears in both lists its contributions sum and the vector-side copy is
// kept.
func fuseRRF(vector, keyword []domain.RetrievalResult, keywordWeight float64, topK int) []domain.RetrievalResult {
	type scored struct {
		res   domain.RetrievalResult
		score float64
	}

	vectorWeight := 1.0 - keywordWeight
	merged := make(map[string]*scored)

	for rank, r := range vector {
		s := vectorWeight / float64(rrfK+rank+1)
		merged[r.ChunkID()] = &scored{res: r, score: s}
	}

	for rank, r := range keyword {
		s := keywordWeight / float64(rrfK+rank+1)
		if existing, ok := merged[r.ChunkID()]; ok {
			existing.score += s
		} else {
			merged[r.ChunkID()] = &scored{res: r, score: s}
		}
	}

	results := make([]domain.RetrievalResult, 0, len(merged))
	for _, s := range merged {
		results = append(results, s.res.WithScore(s.score))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score() != results[j].Score() {
			return results[i].Score() > results[j].Score()
		}
		return results[i].ChunkID() < results[j].ChunkID()
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results
}
