package solver

import (
	"context"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/todmy/logic-refine/internal/logic"
	"github.com/todmy/logic-refine/pkg/models"
)

// GiniBackend checks entailment with the gini CDCL solver
type GiniBackend struct {
	grounder logic.Grounder
}

// NewGiniBackend creates a gini backend
func NewGiniBackend(g logic.Grounder) *GiniBackend {
	return &GiniBackend{grounder: g}
}

func (b *GiniBackend) Name() models.Backend {
	return models.BackendGini
}

func (b *GiniBackend) Prove(ctx context.Context, premises []*logic.Formula, conclusion *logic.Formula) Outcome {
	enc, err := encode(b.grounder, premises, conclusion)
	if err != nil {
		return Outcome{Answer: models.AnswerError, Err: err.Error()}
	}

	g := gini.New()
	enc.c.ToCnf(g)

	check := func(ctx context.Context, assumptions []z.Lit) int {
		g.Assume(assumptions...)
		s := g.GoSolve()
		deadline, ok := ctx.Deadline()
		if !ok {
			return s.Wait()
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return s.Stop()
		}
		return s.Try(remaining)
	}
	return entail(ctx, check, enc.premises, enc.conclusion)
}
