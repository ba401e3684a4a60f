package solver

import (
	"context"

	gsolver "github.com/crillab/gophersat/solver"
	"github.com/go-air/gini/z"

	"github.com/todmy/logic-refine/internal/logic"
	"github.com/todmy/logic-refine/pkg/models"
)

// cnf collects the clauses produced by circuit.ToCnf in DIMACS form
type cnf struct {
	clauses [][]int
	cur     []int
}

func (c *cnf) Add(m z.Lit) {
	if m == z.LitNull {
		c.clauses = append(c.clauses, c.cur)
		c.cur = nil
		return
	}
	c.cur = append(c.cur, m.Dimacs())
}

// GophersatBackend checks entailment with the gophersat solver.
// Assumptions are passed as unit clauses on a fresh problem per check.
type GophersatBackend struct {
	grounder logic.Grounder
}

// NewGophersatBackend creates a gophersat backend
func NewGophersatBackend(g logic.Grounder) *GophersatBackend {
	return &GophersatBackend{grounder: g}
}

func (b *GophersatBackend) Name() models.Backend {
	return models.BackendGophersat
}

func (b *GophersatBackend) Prove(ctx context.Context, premises []*logic.Formula, conclusion *logic.Formula) Outcome {
	enc, err := encode(b.grounder, premises, conclusion)
	if err != nil {
		return Outcome{Answer: models.AnswerError, Err: err.Error()}
	}

	var base cnf
	enc.c.ToCnf(&base)

	check := func(ctx context.Context, assumptions []z.Lit) int {
		clauses := make([][]int, len(base.clauses), len(base.clauses)+len(assumptions))
		copy(clauses, base.clauses)
		for _, m := range assumptions {
			clauses = append(clauses, []int{m.Dimacs()})
		}

		// gophersat cannot be interrupted; an abandoned solve finishes in the background
		done := make(chan gsolver.Status, 1)
		go func() {
			s := gsolver.New(gsolver.ParseSlice(clauses))
			done <- s.Solve()
		}()

		select {
		case status := <-done:
			switch status {
			case gsolver.Sat:
				return satisfiable
			case gsolver.Unsat:
				return unsatisfiable
			default:
				return 0
			}
		case <-ctx.Done():
			return 0
		}
	}
	return entail(ctx, check, enc.premises, enc.conclusion)
}
