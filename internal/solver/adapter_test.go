package solver

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/logic-refine/internal/logic"
	"github.com/todmy/logic-refine/pkg/models"
)

func newTestAdapter(opts ...Option) *Adapter {
	logger, _ := test.NewNullLogger()
	return NewAdapter(DefaultConfig(), append([]Option{WithLogger(logger)}, opts...)...)
}

func TestAdapter_Solve_Entailment(t *testing.T) {
	tests := []struct {
		name       string
		premises   []string
		conclusion string
		want       models.Answer
	}{
		{
			name:       "modus ponens",
			premises:   []string{"P(a)", "Implies(P(a), Q(a))"},
			conclusion: "Q(a)",
			want:       models.AnswerProved,
		},
		{
			name:       "contradicted conclusion",
			premises:   []string{"P(a)", "¬Q(a)"},
			conclusion: "Q(a)",
			want:       models.AnswerDisproved,
		},
		{
			name:       "independent conclusion",
			premises:   []string{"P(a)"},
			conclusion: "Q(a)",
			want:       models.AnswerUnknown,
		},
		{
			name:       "universal instantiation",
			premises:   []string{"∀x (Man(x) → Mortal(x))", "Man(socrates)"},
			conclusion: "Mortal(socrates)",
			want:       models.AnswerProved,
		},
		{
			name:       "universal refutes",
			premises:   []string{"∀x. Bird(x) → Flies(x)", "Bird(tweety)"},
			conclusion: "¬Flies(tweety)",
			want:       models.AnswerDisproved,
		},
		{
			name:       "existential does not name a constant",
			premises:   []string{"∃x P(x)"},
			conclusion: "P(a)",
			want:       models.AnswerUnknown,
		},
		{
			name:       "existential introduction",
			premises:   []string{"P(a)"},
			conclusion: "∃x P(x)",
			want:       models.AnswerProved,
		},
		{
			name:       "inconsistent premises prove anything",
			premises:   []string{"P(a)", "¬P(a)"},
			conclusion: "Q(b)",
			want:       models.AnswerProved,
		},
		{
			name:       "propositional chain",
			premises:   []string{"Rain -> Wet", "Wet -> Slippery", "Rain"},
			conclusion: "Slippery",
			want:       models.AnswerProved,
		},
		{
			name:       "unique names",
			premises:   []string{"P(a)"},
			conclusion: "a = b",
			want:       models.AnswerDisproved,
		},
	}

	a := newTestAdapter()
	for _, backend := range []models.Backend{models.BackendGini, models.BackendGophersat} {
		for _, tt := range tests {
			t.Run(string(backend)+"/"+tt.name, func(t *testing.T) {
				res := a.Solve(context.Background(), tt.premises, tt.conclusion, backend, 5*time.Second)
				assert.Equal(t, tt.want, res.Answer, "error: %s", res.Error)
				assert.Empty(t, res.Error)
				assert.False(t, res.Timeout)
				assert.Equal(t, backend, res.Backend)
			})
		}
	}
}

func TestAdapter_Solve_IllPosed(t *testing.T) {
	a := newTestAdapter()

	tests := []struct {
		name       string
		premises   []string
		conclusion string
		backend    models.Backend
		contains   string
	}{
		{"empty premises", nil, "Q(a)", models.BackendGini, "empty premises"},
		{"empty conclusion", []string{"P(a)"}, "  ", models.BackendGini, "empty conclusion"},
		{"premise syntax", []string{"P(a) ∧"}, "Q(a)", models.BackendGini, "syntax error"},
		{"conclusion syntax", []string{"P(a)"}, "Q(a))", models.BackendGophersat, "syntax error"},
		{"syntax with timeout predicate", []string{"Timeout(a) ∧"}, "TimedOut(a)", models.BackendGini, "syntax error"},
		{"prover9 declared", []string{"P(a)"}, "P(a)", models.BackendProver9, "not implemented"},
		{"z3 declared", []string{"P(a)"}, "P(a)", models.BackendZ3, "not implemented"},
		{"unknown backend", []string{"P(a)"}, "P(a)", models.Backend("vampire"), "unsupported backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.Solve(context.Background(), tt.premises, tt.conclusion, tt.backend, time.Second)
			assert.Equal(t, models.AnswerError, res.Answer)
			require.NotEmpty(t, res.Error)
			assert.Contains(t, res.Error, tt.contains)
			assert.False(t, res.Timeout)
		})
	}
}

func TestAdapter_Solve_GroundingLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grounder = logic.Grounder{MaxDomain: 2, MaxWitnesses: 1}
	logger, _ := test.NewNullLogger()
	a := NewAdapter(cfg, WithLogger(logger))

	res := a.Solve(context.Background(), []string{"∀x P(x)", "Q(a)", "Q(b)"}, "P(c)", models.BackendGini, time.Second)
	assert.Equal(t, models.AnswerError, res.Answer)
	assert.Contains(t, res.Error, "grounding limit")
}

type panicBackend struct{}

func (panicBackend) Name() models.Backend { return models.BackendGini }

func (panicBackend) Prove(context.Context, []*logic.Formula, *logic.Formula) Outcome {
	panic("boom")
}

func TestAdapter_Solve_RecoversPanics(t *testing.T) {
	a := newTestAdapter(WithBackend(panicBackend{}))

	res := a.Solve(context.Background(), []string{"P(a)"}, "P(a)", models.BackendGini, time.Second)
	assert.Equal(t, models.AnswerError, res.Answer)
	assert.Contains(t, res.Error, "boom")
}

// slowBackend blocks until its deadline and records whether it saw an early cancel
type slowBackend struct {
	cancelledOnEntry bool
}

func (b *slowBackend) Name() models.Backend { return models.BackendGophersat }

func (b *slowBackend) Prove(ctx context.Context, _ []*logic.Formula, _ *logic.Formula) Outcome {
	b.cancelledOnEntry = ctx.Err() != nil
	<-ctx.Done()
	return Outcome{Answer: models.AnswerUnknown, Timeout: true}
}

func TestAdapter_Solve_Timeout(t *testing.T) {
	slow := &slowBackend{}
	a := newTestAdapter(WithBackend(slow))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	res := a.Solve(ctx, []string{"P(a)"}, "Q(a)", models.BackendGophersat, 50*time.Millisecond)

	assert.False(t, slow.cancelledOnEntry, "session cancellation must not interrupt a solve")
	assert.True(t, res.Timeout)
	assert.Equal(t, models.AnswerUnknown, res.Answer)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.GreaterOrEqual(t, res.Duration, 50*time.Millisecond)
}

func TestAdapter_Solve_Deterministic(t *testing.T) {
	a := newTestAdapter()
	premises := []string{"∀x (P(x) → Q(x))", "P(a) ∨ P(b)"}

	first := a.Solve(context.Background(), premises, "Q(a) ∨ Q(b)", models.BackendGini, time.Second)
	second := a.Solve(context.Background(), premises, "Q(a) ∨ Q(b)", models.BackendGini, time.Second)

	assert.Equal(t, models.AnswerProved, first.Answer)
	assert.Equal(t, first.Answer, second.Answer)
}

func TestAdapter_Solve_ResultInvariants(t *testing.T) {
	a := newTestAdapter()
	queries := []struct {
		premises   []string
		conclusion string
	}{
		{[]string{"P(a)"}, "P(a)"},
		{nil, "P(a)"},
		{[]string{"P("}, "P(a)"},
		{[]string{"∃x ∀y R(x, y)"}, "∀y ∃x R(x, y)"},
		{[]string{"A ⊕ B", "A"}, "¬B"},
		{[]string{"A <-> B", "¬B"}, "A"},
	}

	for _, backend := range []models.Backend{models.BackendGini, models.BackendGophersat, models.BackendZ3} {
		for _, q := range queries {
			res := a.Solve(context.Background(), q.premises, q.conclusion, backend, time.Second)
			if res.Answer == models.AnswerError {
				assert.NotEmpty(t, res.Error)
			} else {
				assert.Empty(t, res.Error)
			}
			if res.Timeout {
				assert.Contains(t, []models.Answer{models.AnswerUnknown, models.AnswerError}, res.Answer)
			}
		}
	}
}

func TestAdapter_Backends(t *testing.T) {
	a := NewAdapter(Config{}, WithLogger(logrus.New()))
	assert.ElementsMatch(t, []models.Backend{
		models.BackendGini, models.BackendGophersat, models.BackendProver9, models.BackendZ3,
	}, a.Backends())
}
