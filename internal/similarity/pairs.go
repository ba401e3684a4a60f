package similarity

import (
	"sort"
)

// SimilarPair is a pair of items with their similarity score
type SimilarPair struct {
	Idx1       int     `json:"index1"`
	Idx2       int     `json:"index2"`
	Similarity float64 `json:"similarity"`
}

// DefaultThreshold is the similarity above which two candidates count as near-duplicates
const DefaultThreshold = 0.9

// FindSimilarPairs finds all pairs (i<j) with similarity at or above the threshold,
// sorted by similarity descending.
func FindSimilarPairs(vectors [][]float64, threshold float64) []SimilarPair {
	return FindSimilarPairsFromMatrix(CosineSimilarityMatrix(vectors), threshold)
}

// FindSimilarPairsFromMatrix finds similar pairs from a precomputed similarity matrix
func FindSimilarPairsFromMatrix(matrix [][]float64, threshold float64) []SimilarPair {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	pairs := []SimilarPair{}
	for i := 0; i < len(matrix); i++ {
		for j := i + 1; j < len(matrix[i]); j++ {
			if matrix[i][j] >= threshold {
				pairs = append(pairs, SimilarPair{Idx1: i, Idx2: j, Similarity: matrix[i][j]})
			}
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].Similarity > pairs[b].Similarity
	})
	return pairs
}
