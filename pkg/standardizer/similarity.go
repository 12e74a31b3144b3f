package standardizer

import (
	"math"
	"sort"
)

// CosineSimilarity calculates cosine similarity between two vectors.
// Returns a value between 0 and 1 for count vectors, where 1 means
// identical direction. Mismatched lengths and zero vectors score 0.0,
// keeping degenerate comparisons at the bottom of every ranking.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64

	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	// Handle zero vectors
	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// scoreAgainst computes the similarity mapping of one input vector
// against every standard in the space. The result is sorted by
// descending score; equal scores keep the standards' original order, so
// top-match selection is deterministic across runs.
func scoreAgainst(input []float32, space *vectorSpace) Matches {
	matches := make(Matches, len(space.standards))
	for i, std := range space.standards {
		matches[i] = Match{
			Standard: std,
			Score:    CosineSimilarity(input, space.vectors[i]),
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches
}
