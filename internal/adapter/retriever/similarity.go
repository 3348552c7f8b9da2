package retriever

import (
	"math"
	"sort"

	"semnotes/internal/domain"
)

// CosineSimilarity calculates the cosine similarity between two vectors.
// Vectors of different length or zero norm score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// unitEpsilon absorbs float32 rounding so identical vectors score exactly 1.
const unitEpsilon = 1e-6

// Score maps a cosine similarity into [0,1]. Negative similarity counts as
// unrelated rather than being shifted upwards, so orthogonal notes score 0.
func Score(cosine float64) float64 {
	switch {
	case math.IsNaN(cosine), cosine <= 0:
		return 0
	case cosine >= 1-unitEpsilon:
		return 1
	default:
		return cosine
	}
}

// Rank scores candidates against query and returns those at or above
// threshold, best first, at most limit of them.
//
// Only searchable candidates owned by ownerID are considered. Ties on score are
// broken by CreatedAt (newest first) and then by ID so the order is stable.
func Rank(ownerID string, candidates []domain.Note, query []float32, threshold float64, limit int) []domain.SimilarityResult {
	if limit <= 0 || len(query) == 0 {
		return []domain.SimilarityResult{}
	}

	results := make([]domain.SimilarityResult, 0, len(candidates))
	for _, note := range candidates {
		if note.OwnerID != ownerID || !note.Embedding.Searchable() {
			continue
		}
		if len(note.Embedding.Vector) != len(query) {
			continue
		}
		score := Score(CosineSimilarity(query, note.Embedding.Vector))
		if score < threshold {
			continue
		}
		results = append(results, domain.SimilarityResult{Note: note, Score: score})
	}

	SortResults(results)

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// SortResults orders results by score descending, then CreatedAt descending,
// then ID ascending.
func SortResults(results []domain.SimilarityResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Note.CreatedAt.Equal(b.Note.CreatedAt) {
			return a.Note.CreatedAt.After(b.Note.CreatedAt)
		}
		return a.Note.ID < b.Note.ID
	})
}
