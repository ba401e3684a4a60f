package refinement

import (
	"context"
	"time"

	"github.com/todmy/logic-refine/pkg/models"
)

// Config is the explicit configuration of a refinement session
type Config struct {
	Backend            models.Backend `yaml:"backend" validate:"required,oneof=gini gophersat prover9 z3"`
	Candidates         int            `yaml:"candidates" validate:"min=1,max=16"`
	EarlyStopThreshold int            `yaml:"early_stop_threshold" validate:"min=1"`
	MaxIterations      int            `yaml:"max_iterations" validate:"min=0"`
	// SolveOnly solves the initial formalization and runs no refinement
	// iterations. A zero MaxIterations falls back to the default instead.
	SolveOnly          bool           `yaml:"solve_only"`
	SolverTimeout      time.Duration  `yaml:"solver_timeout"`
	GeneratorTimeout   time.Duration  `yaml:"generator_timeout"`
	SessionTimeout     time.Duration  `yaml:"session_timeout"`
}

// DefaultConfig returns the reference refinement settings
func DefaultConfig() Config {
	return Config{
		Backend:            models.BackendGini,
		Candidates:         2,
		EarlyStopThreshold: 2,
		MaxIterations:      4,
		SolverTimeout:      10 * time.Second,
		GeneratorTimeout:   60 * time.Second,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Candidates <= 0 {
		c.Candidates = d.Candidates
	}
	if c.EarlyStopThreshold <= 0 {
		c.EarlyStopThreshold = d.EarlyStopThreshold
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.SolveOnly {
		c.MaxIterations = 0
	}
	if c.SolverTimeout <= 0 {
		c.SolverTimeout = d.SolverTimeout
	}
	if c.GeneratorTimeout <= 0 {
		c.GeneratorTimeout = d.GeneratorTimeout
	}
	return c
}

// Generator is the external candidate generator and comparator
type Generator interface {
	Formalize(ctx context.Context, statement string) (string, error)
	Propose(ctx context.Context, statement string, best models.Formalization, feedback string, n int) ([]string, error)
	Compare(ctx context.Context, statement string, a, b models.Formalization) (models.Comparison, error)
}

// Observer receives session events, e.g. for metrics
type Observer interface {
	SolverResult(result models.SolverResult)
	Decision(iteration int, decision models.Decision)
	SessionFinished(trace models.Trace)
}

type noopObserver struct{}

func (noopObserver) SolverResult(models.SolverResult) {}
func (noopObserver) Decision(int, models.Decision) {}
func (noopObserver) SessionFinished(models.Trace) {}
