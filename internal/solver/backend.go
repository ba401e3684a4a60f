package solver

import (
	"context"
	"fmt"

	circuit "github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/todmy/logic-refine/internal/logic"
	"github.com/todmy/logic-refine/pkg/models"
)

const (
	satisfiable   = 1
	unsatisfiable = -1
)

// Outcome is what a backend reports for one entailment query
type Outcome struct {
	Answer  models.Answer
	Timeout bool
	Err     string
}

// Backend proves or refutes an entailment
type Backend interface {
	Name() models.Backend
	Prove(ctx context.Context, premises []*logic.Formula, conclusion *logic.Formula) Outcome
}

// satCheck reports 1 when the assumptions are satisfiable, -1 when they are
// not, and 0 when the check was stopped before concluding.
type satCheck func(ctx context.Context, assumptions []z.Lit) int

// encoding is a grounded entailment query as a Boolean circuit
type encoding struct {
	c          *circuit.C
	atoms      map[string]z.Lit
	premises   []z.Lit
	conclusion z.Lit
}

func encode(g logic.Grounder, premises []*logic.Formula, conclusion *logic.Formula) (*encoding, error) {
	all := make([]*logic.Formula, 0, len(premises)+1)
	all = append(all, premises...)
	all = append(all, conclusion)

	ground, err := g.Ground(all...)
	if err != nil {
		return nil, err
	}

	e := &encoding{
		c:     circuit.NewC(),
		atoms: make(map[string]z.Lit),
	}
	for _, f := range ground[:len(premises)] {
		e.premises = append(e.premises, e.lit(f))
	}
	e.conclusion = e.lit(ground[len(premises)])
	return e, nil
}

func (e *encoding) lit(f *logic.Formula) z.Lit {
	switch f.Kind {
	case logic.KindConst:
		if f.Value {
			return e.c.T
		}
		return e.c.F
	case logic.KindAtom:
		key := f.AtomKey()
		if m, ok := e.atoms[key]; ok {
			return m
		}
		m := e.c.Lit()
		e.atoms[key] = m
		return m
	case logic.KindNot:
		return e.lit(f.Subs[0]).Not()
	case logic.KindAnd:
		return e.c.Ands(e.lits(f.Subs)...)
	case logic.KindOr:
		return e.c.Ors(e.lits(f.Subs)...)
	case logic.KindImplies:
		return e.c.Implies(e.lit(f.Subs[0]), e.lit(f.Subs[1]))
	case logic.KindXor:
		ms := e.lits(f.Subs)
		acc := ms[0]
		for _, m := range ms[1:] {
			acc = e.c.Xor(acc, m)
		}
		return acc
	case logic.KindIff:
		ms := e.lits(f.Subs)
		acc := ms[0]
		for _, m := range ms[1:] {
			acc = e.c.Xor(acc, m).Not()
		}
		return acc
	default:
		panic(fmt.Sprintf("unexpected formula kind %d after grounding", f.Kind))
	}
}

func (e *encoding) lits(fs []*logic.Formula) []z.Lit {
	ms := make([]z.Lit, len(fs))
	for i, f := range fs {
		ms[i] = e.lit(f)
	}
	return ms
}

// entail runs the two satisfiability checks of an entailment query. The
// refutation check runs first, so inconsistent premises yield Proved.
func entail(ctx context.Context, check satCheck, premises []z.Lit, conclusion z.Lit) Outcome {
	with := func(m z.Lit) []z.Lit {
		out := make([]z.Lit, 0, len(premises)+1)
		out = append(out, premises...)
		return append(out, m)
	}

	switch check(ctx, with(conclusion.Not())) {
	case unsatisfiable:
		return Outcome{Answer: models.AnswerProved}
	case 0:
		return Outcome{Answer: models.AnswerUnknown, Timeout: true}
	}

	switch check(ctx, with(conclusion)) {
	case unsatisfiable:
		return Outcome{Answer: models.AnswerDisproved}
	case 0:
		return Outcome{Answer: models.AnswerUnknown, Timeout: true}
	}
	return Outcome{Answer: models.AnswerUnknown}
}
