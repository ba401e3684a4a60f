package solver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/todmy/logic-refine/internal/logic"
	"github.com/todmy/logic-refine/pkg/models"
)

const defaultTimeout = 10 * time.Second

// Solver is the entailment-checking boundary consumed by the refinement loop
type Solver interface {
	Solve(ctx context.Context, premises []string, conclusion string, backend models.Backend, timeout time.Duration) models.SolverResult
}

// Config holds adapter configuration
type Config struct {
	DefaultTimeout time.Duration
	Grounder       logic.Grounder
}

// DefaultConfig returns default adapter configuration
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: defaultTimeout,
		Grounder:       logic.DefaultGrounder(),
	}
}

// Adapter dispatches entailment queries to registered backends.
// It holds no per-call state and is safe for concurrent use.
type Adapter struct {
	config   Config
	backends map[models.Backend]Backend
	logger   logrus.FieldLogger
}

// Option configures the Adapter
type Option func(*Adapter)

// WithLogger sets the adapter logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// WithBackend registers or replaces a backend
func WithBackend(b Backend) Option {
	return func(a *Adapter) {
		a.backends[b.Name()] = b
	}
}

// NewAdapter creates an adapter with the gini and gophersat backends and the
// declared prover9 and z3 backends.
func NewAdapter(config Config, opts ...Option) *Adapter {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaultTimeout
	}
	if config.Grounder == (logic.Grounder{}) {
		config.Grounder = logic.DefaultGrounder()
	}

	a := &Adapter{
		config:   config,
		backends: make(map[models.Backend]Backend),
		logger:   logrus.StandardLogger(),
	}
	for _, b := range []Backend{
		NewGiniBackend(config.Grounder),
		NewGophersatBackend(config.Grounder),
		NewUnimplementedBackend(models.BackendProver9),
		NewUnimplementedBackend(models.BackendZ3),
	} {
		a.backends[b.Name()] = b
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Backends lists the registered backend names
func (a *Adapter) Backends() []models.Backend {
	names := make([]models.Backend, 0, len(a.backends))
	for name := range a.backends {
		names = append(names, name)
	}
	return names
}

// Solve checks whether the premises entail the conclusion.
//
// It always returns a result. Ill-posed queries, unparseable formulas,
// unknown backends and backend panics are reported as answer Error. The call
// is bounded by timeout and is not interrupted by cancellation of ctx, so a
// cancelled session stops at its next checkpoint rather than mid-solve.
func (a *Adapter) Solve(ctx context.Context, premises []string, conclusion string, backend models.Backend, timeout time.Duration) (result models.SolverResult) {
	start := time.Now()
	result.Backend = backend
	defer func() {
		if r := recover(); r != nil {
			result = models.SolverResult{
				Answer:  models.AnswerError,
				Error:   Classify(fmt.Sprintf("backend panic: %v", r), backend),
				Backend: backend,
			}
		}
		result.Duration = time.Since(start)
		a.logger.WithFields(logrus.Fields{
			"backend":  backend,
			"answer":   result.Answer,
			"timeout":  result.Timeout,
			"duration": result.Duration,
		}).Debug("solve finished")
	}()

	b, ok := a.backends[backend]
	if !ok {
		return errorResult(backend, fmt.Sprintf("unsupported backend %q", backend))
	}
	if len(premises) == 0 {
		return errorResult(backend, "empty premises: the query has nothing to reason from")
	}
	if strings.TrimSpace(conclusion) == "" {
		return errorResult(backend, "empty conclusion: nothing to prove")
	}

	parsedPremises, err := logic.ParseAll(premises)
	if err != nil {
		return errorResult(backend, "premise "+err.Error())
	}
	parsedConclusion, err := logic.Parse(conclusion)
	if err != nil {
		return errorResult(backend, "conclusion "+err.Error())
	}

	if timeout <= 0 {
		timeout = a.config.DefaultTimeout
	}
	solveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	out := b.Prove(solveCtx, parsedPremises, parsedConclusion)
	result.Answer = out.Answer
	result.Timeout = out.Timeout
	if out.Answer == models.AnswerError {
		result.Error = Classify(out.Err, backend)
	}
	return result
}

func errorResult(backend models.Backend, raw string) models.SolverResult {
	return models.SolverResult{
		Answer:  models.AnswerError,
		Error:   Classify(raw, backend),
		Backend: backend,
	}
}
