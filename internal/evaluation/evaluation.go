package evaluation

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/todmy/logic-refine/internal/similarity"
	"github.com/todmy/logic-refine/pkg/models"
)

// IterationStats is one row of the backtracking table
type IterationStats struct {
	Iteration  int     `json:"iteration"`
	Decisions  int     `json:"decisions"`
	Reverts    int     `json:"reverts"`
	RevertRate float64 `json:"revert_rate"`
}

// Report aggregates the outcome of many refinement sessions.
//
// ExecutionRate is the fraction of sessions whose final formalization executed
// (answer other than Error). ExecutionAccuracy is the fraction correct among
// executed, labelled sessions; Accuracy is the fraction correct among all
// labelled sessions.
type Report struct {
	Total             int     `json:"total"`
	Executed          int     `json:"executed"`
	ExecutionRate     float64 `json:"execution_rate"`
	Labeled           int     `json:"labeled"`
	ExecutedLabeled   int     `json:"executed_labeled"`
	Correct           int     `json:"correct"`
	ExecutionAccuracy float64 `json:"execution_accuracy"`
	Accuracy          float64 `json:"accuracy"`

	Backtracking []IterationStats `json:"backtracking"`
	TotalReverts int              `json:"total_reverts"`

	Answers      map[models.Answer]int            `json:"answers"`
	Terminations map[models.TerminationReason]int `json:"terminations"`

	MeanIterations      float64 `json:"mean_iterations"`
	MeanLLMCalls        float64 `json:"mean_llm_calls"`
	MeanSolverTimeMs    float64 `json:"mean_solver_time_ms"`
	MeanDrift           float64 `json:"mean_drift"`
	DuplicateCandidates int     `json:"duplicate_candidates"`
}

// Evaluator computes reports over session traces
type Evaluator struct {
	similarity *similarity.Service
}

// New creates an evaluator. A nil service uses the default similarity threshold.
func New(sim *similarity.Service) *Evaluator {
	if sim == nil {
		sim = similarity.NewService(0)
	}
	return &Evaluator{similarity: sim}
}

// Evaluate is New(nil).Evaluate
func Evaluate(traces []models.Trace) Report {
	return New(nil).Evaluate(traces)
}

// Evaluate computes execution rate, execution accuracy and backtracking
// statistics over traces.
func (e *Evaluator) Evaluate(traces []models.Trace) Report {
	r := Report{
		Total:        len(traces),
		Backtracking: []IterationStats{},
		Answers:      make(map[models.Answer]int),
		Terminations: make(map[models.TerminationReason]int),
	}
	if len(traces) == 0 {
		return r
	}

	iterations := make([]float64, 0, len(traces))
	calls := make([]float64, 0, len(traces))
	drift := make([]float64, 0, len(traces))
	var solveTimes []float64

	for _, tr := range traces {
		answer := tr.FinalResult.Answer
		if answer == "" {
			answer = models.AnswerError
		}
		r.Answers[answer]++
		r.Terminations[tr.Termination]++

		executed := tr.FinalResult.Executed()
		if executed {
			r.Executed++
		}
		if want, ok := models.ParseLabel(tr.Label); ok {
			r.Labeled++
			if executed {
				r.ExecutedLabeled++
				if answer == want {
					r.Correct++
				}
			}
		}

		for _, rec := range tr.History {
			r.addDecision(rec)
			r.DuplicateCandidates += len(e.similarity.DuplicateCandidates(rec))
			for _, c := range rec.Candidates {
				if c.Result != nil {
					solveTimes = append(solveTimes, float64(c.Result.Duration)/float64(time.Millisecond))
				}
			}
		}

		iterations = append(iterations, float64(tr.Iterations))
		calls = append(calls, float64(tr.LLMCalls))
		drift = append(drift, e.similarity.Drift(tr))
	}

	r.ExecutionRate = ratio(r.Executed, r.Total)
	r.ExecutionAccuracy = ratio(r.Correct, r.ExecutedLabeled)
	r.Accuracy = ratio(r.Correct, r.Labeled)
	for i := range r.Backtracking {
		row := &r.Backtracking[i]
		row.RevertRate = ratio(row.Reverts, row.Decisions)
	}

	r.MeanIterations = stat.Mean(iterations, nil)
	r.MeanLLMCalls = stat.Mean(calls, nil)
	r.MeanDrift = stat.Mean(drift, nil)
	if len(solveTimes) > 0 {
		r.MeanSolverTimeMs = stat.Mean(solveTimes, nil)
	}
	return r
}

func (r *Report) addDecision(rec models.IterationRecord) {
	if rec.Iteration <= 0 {
		return
	}
	for len(r.Backtracking) < rec.Iteration {
		r.Backtracking = append(r.Backtracking, IterationStats{Iteration: len(r.Backtracking) + 1})
	}
	row := &r.Backtracking[rec.Iteration-1]
	row.Decisions++
	if rec.Decision == models.DecisionRevert {
		row.Reverts++
		r.TotalReverts++
	}
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
