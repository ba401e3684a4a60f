package similarity

import (
	"sort"
	"strings"

	"github.com/todmy/logic-refine/internal/formalization"
	"github.com/todmy/logic-refine/pkg/models"
)

// Features returns the bag of symbolic features of a formalization: predicate
// signatures weighted by occurrence, and each canonical formula once. A
// failed formalization has no features.
func Features(f models.Formalization) map[string]float64 {
	features := make(map[string]float64)
	if f.Failed() {
		return features
	}
	for sym, n := range formalization.Symbols(f) {
		features["p:"+sym] += float64(n)
	}
	for _, line := range strings.Split(formalization.Normalize(f), "\n") {
		if line = strings.TrimSpace(line); line != "" && line != "⊢" {
			features["f:"+line] = 1
		}
	}
	return features
}

// Vectorize maps formalizations onto a shared, sorted feature vocabulary
func Vectorize(forms ...models.Formalization) [][]float64 {
	bags := make([]map[string]float64, len(forms))
	vocab := make(map[string]struct{})
	for i, f := range forms {
		bags[i] = Features(f)
		for k := range bags[i] {
			vocab[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(vocab))
	for k := range vocab {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vectors := make([][]float64, len(forms))
	for i, bag := range bags {
		v := make([]float64, len(keys))
		for j, k := range keys {
			v[j] = bag[k]
		}
		vectors[i] = v
	}
	return vectors
}

// Similarity is the cosine similarity of the feature vectors of a and b
func Similarity(a, b models.Formalization) float64 {
	v := Vectorize(a, b)
	return CosineSimilarity(v[0], v[1])
}
