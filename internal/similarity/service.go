package similarity

import (
	"github.com/todmy/logic-refine/pkg/models"
)

// Service measures how formalizations move during refinement
type Service struct {
	threshold float64
}

// NewService creates a similarity service. A threshold <= 0 uses DefaultThreshold.
func NewService(threshold float64) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{threshold: threshold}
}

// GetThreshold returns the near-duplicate threshold
func (s *Service) GetThreshold() float64 {
	return s.threshold
}

// Drift is the cosine distance between the initial and final formalization
// of a trace. 0 means refinement left the formalization unchanged.
func (s *Service) Drift(trace models.Trace) float64 {
	v := Vectorize(trace.Initial, trace.Final)
	if len(v[0]) == 0 {
		return 0
	}
	return CosineDistance(v[0], v[1])
}

// DuplicateCandidates finds near-duplicate pairs among the candidates of one
// iteration. Candidates that failed to parse are never duplicates.
func (s *Service) DuplicateCandidates(rec models.IterationRecord) []SimilarPair {
	forms := make([]models.Formalization, len(rec.Candidates))
	for i, c := range rec.Candidates {
		forms[i] = c.Formalization
	}
	return FindSimilarPairs(Vectorize(forms...), s.threshold)
}
