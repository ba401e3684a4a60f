package refinement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/todmy/logic-refine/internal/formalization"
	"github.com/todmy/logic-refine/internal/solver"
	"github.com/todmy/logic-refine/pkg/models"
)

// ErrGeneratorUnreachable is returned when the generator or comparator call
// cannot be completed. The partial trace is returned alongside it.
var ErrGeneratorUnreachable = errors.New("generator unreachable")

// Controller runs Formalize, Solve, Refine sessions. It holds no session
// state and may run many sessions concurrently.
type Controller struct {
	generator Generator
	solver    solver.Solver
	config    Config
	logger    logrus.FieldLogger
	observer  Observer
}

// Option configures the Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithObserver sets the session observer
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// NewController creates a refinement controller
func NewController(gen Generator, s solver.Solver, config Config, opts ...Option) *Controller {
	c := &Controller{
		generator: gen,
		solver:    s,
		config:    config.normalized(),
		logger:    logrus.StandardLogger(),
		observer:  noopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration
func (c *Controller) Config() Config {
	return c.config
}

// session is the running state of one refinement session. It is owned by a
// single Run call and never shared.
type session struct {
	trace              models.Trace
	iteration          int
	best               models.Formalization
	bestResult         models.SolverResult
	consecutiveReverts int
	feedback           string
	llmCalls           atomic.Int64
	logger             logrus.FieldLogger
}

func (c *Controller) newSession(problem models.Problem) *session {
	id := uuid.New().String()
	return &session{
		trace: models.Trace{
			ID:        id,
			ProblemID: problem.ID,
			Statement: problem.Statement,
			Label:     problem.Label,
			Backend:   c.config.Backend,
			History:   []models.IterationRecord{},
			StartedAt: time.Now(),
		},
		logger: c.logger.WithFields(logrus.Fields{
			"session": id,
			"problem": problem.ID,
		}),
	}
}

// Run formalizes the problem statement and refines the result
func (c *Controller) Run(ctx context.Context, problem models.Problem) (models.Trace, error) {
	s := c.newSession(problem)
	ctx, cancel := c.sessionContext(ctx)
	defer cancel()

	if ctx.Err() != nil {
		return c.finish(s, models.TerminationSessionTimeout), nil
	}

	genCtx, genCancel := context.WithTimeout(ctx, c.config.GeneratorTimeout)
	s.llmCalls.Add(1)
	payload, err := c.generator.Formalize(genCtx, problem.Statement)
	genCancel()
	if err != nil {
		return c.abort(ctx, s, fmt.Errorf("formalize: %w", err))
	}
	return c.run(ctx, s, payload)
}

// RunFrom refines a problem starting from an already generated initial payload
func (c *Controller) RunFrom(ctx context.Context, problem models.Problem, initialPayload string) (models.Trace, error) {
	s := c.newSession(problem)
	ctx, cancel := c.sessionContext(ctx)
	defer cancel()
	return c.run(ctx, s, initialPayload)
}

func (c *Controller) sessionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.SessionTimeout > 0 {
		return context.WithTimeout(ctx, c.config.SessionTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Controller) run(ctx context.Context, s *session, payload string) (models.Trace, error) {
	s.trace.Initial = formalization.Parse(payload)
	s.best = s.trace.Initial
	s.bestResult = c.solve(ctx, s.best)
	if !s.bestResult.Executed() {
		s.feedback = failureFeedback(s.best, s.bestResult)
	}
	s.logger.WithField("answer", s.bestResult.Answer).Info("initial formalization solved")

	for {
		if reason, done := c.terminated(ctx, s); done {
			return c.finish(s, reason), nil
		}

		rec, err := c.iterate(ctx, s)
		if err != nil {
			return c.abort(ctx, s, err)
		}
		s.trace.History = append(s.trace.History, rec)
	}
}

// terminated is the single place where termination conditions are checked
func (c *Controller) terminated(ctx context.Context, s *session) (models.TerminationReason, bool) {
	switch {
	case s.bestResult.Answer.Decisive():
		return models.TerminationDecisive, true
	case s.consecutiveReverts >= c.config.EarlyStopThreshold:
		return models.TerminationRevertBudget, true
	case s.iteration >= c.config.MaxIterations:
		return models.TerminationIterationCap, true
	case ctx.Err() != nil:
		return models.TerminationSessionTimeout, true
	}
	return "", false
}

func (c *Controller) iterate(ctx context.Context, s *session) (models.IterationRecord, error) {
	rec := models.IterationRecord{
		Iteration: s.iteration + 1,
		Chosen:    -1,
		Feedback:  s.feedback,
	}
	log := s.logger.WithField("iteration", rec.Iteration)

	// PROPOSE
	payloads, err := c.propose(ctx, s)
	if err != nil {
		return rec, fmt.Errorf("propose: %w", err)
	}

	// VALIDATE and SOLVE, concurrently per candidate
	rec.Candidates = make([]models.CandidateRecord, len(payloads))
	var eg errgroup.Group
	for i, p := range payloads {
		eg.Go(func() error {
			rec.Candidates[i] = c.evaluate(ctx, p)
			return nil
		})
	}
	_ = eg.Wait()

	// COMPARE, serialized against the current best
	decision, chosen, reasoning, err := c.decide(ctx, s, rec.Candidates)
	if err != nil {
		return rec, fmt.Errorf("compare: %w", err)
	}

	rec.Decision = decision
	rec.Chosen = chosen
	rec.Reasoning = reasoning
	if decision == models.DecisionImproved {
		cand := rec.Candidates[chosen]
		s.best = cand.Formalization
		s.bestResult = *cand.Result
		s.consecutiveReverts = 0
		s.feedback = ""
	} else {
		s.consecutiveReverts++
		s.feedback = reasoning
	}
	rec.ConsecutiveReverts = s.consecutiveReverts
	s.iteration++

	c.observer.Decision(rec.Iteration, decision)
	log.WithFields(logrus.Fields{
		"decision":            decision,
		"candidate":           chosen,
		"consecutive_reverts": s.consecutiveReverts,
		"answer":              s.bestResult.Answer,
	}).Info("iteration decided")
	return rec, nil
}

func (c *Controller) propose(ctx context.Context, s *session) ([]string, error) {
	genCtx, cancel := context.WithTimeout(ctx, c.config.GeneratorTimeout)
	defer cancel()

	s.llmCalls.Add(int64(c.config.Candidates))
	payloads, err := c.generator.Propose(genCtx, s.trace.Statement, s.best, s.feedback, c.config.Candidates)
	if err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, errors.New("generator returned no candidates")
	}
	return payloads, nil
}

// evaluate parses, validates and, when well-formed, solves one candidate
func (c *Controller) evaluate(ctx context.Context, payload string) models.CandidateRecord {
	cand := models.CandidateRecord{
		Payload:       payload,
		Formalization: formalization.Parse(payload),
	}
	if issues := formalization.Issues(cand.Formalization); len(issues) > 0 {
		cand.Issues = issues
		cand.Diagnostic = issues[0]
		return cand
	}

	result := c.solve(ctx, cand.Formalization)
	cand.Result = &result
	cand.Diagnostic = result.Error
	return cand
}

func (c *Controller) solve(ctx context.Context, f models.Formalization) models.SolverResult {
	if issues := formalization.Issues(f); len(issues) > 0 {
		return models.SolverResult{
			Answer:  models.AnswerError,
			Error:   "invalid formalization: " + issues[0],
			Backend: c.config.Backend,
		}
	}
	result := c.solver.Solve(ctx, f.Premises, f.Conclusion, c.config.Backend, c.config.SolverTimeout)
	c.observer.SolverResult(result)
	return result
}

// decide picks IMPROVED or REVERT for one iteration and returns the index of
// the accepted candidate (-1 on revert) with the reasoning behind it.
func (c *Controller) decide(ctx context.Context, s *session, cands []models.CandidateRecord) (models.Decision, int, string, error) {
	var valid, executed []int
	for i, cand := range cands {
		if len(cand.Issues) > 0 {
			continue
		}
		valid = append(valid, i)
		if cand.Result != nil && cand.Result.Executed() {
			executed = append(executed, i)
		}
	}

	if len(valid) == 0 {
		return models.DecisionRevert, -1, "all candidates failed validation: " + cands[0].Diagnostic, nil
	}

	for _, i := range valid {
		if cands[i].Result.Answer.Decisive() {
			return models.DecisionImproved, i, fmt.Sprintf("candidate %d solved decisively (%s)", i+1, cands[i].Result.Answer), nil
		}
	}

	if len(executed) == 0 {
		return models.DecisionRevert, -1, "solver failed on every candidate: " + cands[valid[0]].Diagnostic, nil
	}

	if !s.bestResult.Executed() {
		i := executed[0]
		return models.DecisionImproved, i, fmt.Sprintf("candidate %d executes and the current formalization does not", i+1), nil
	}

	bestForm := formalization.Normalize(s.best)
	var reasons []string
	for _, i := range executed {
		if formalization.Normalize(cands[i].Formalization) == bestForm {
			cands[i].Verdict = models.VerdictA
			reasons = append(reasons, fmt.Sprintf("candidate %d is identical to the current formalization", i+1))
			continue
		}

		genCtx, cancel := context.WithTimeout(ctx, c.config.GeneratorTimeout)
		s.llmCalls.Add(1)
		cmp, err := c.generator.Compare(genCtx, s.trace.Statement, s.best, cands[i].Formalization)
		cancel()
		if err != nil {
			return "", -1, "", err
		}

		cands[i].Verdict = cmp.Verdict
		if models.DecisionFor(cmp.Verdict) == models.DecisionImproved {
			return models.DecisionImproved, i, cmp.Reasoning, nil
		}
		reasons = append(reasons, fmt.Sprintf("candidate %d rejected: %s", i+1, cmp.Reasoning))
	}
	return models.DecisionRevert, -1, "comparator preferred the current formalization; " + strings.Join(reasons, "; "), nil
}

func failureFeedback(f models.Formalization, r models.SolverResult) string {
	if f.Failed() {
		return "formalization error: " + f.Error
	}
	return r.Error
}

func (c *Controller) finish(s *session, reason models.TerminationReason) models.Trace {
	s.trace.Final = s.best
	s.trace.FinalResult = s.bestResult
	s.trace.Termination = reason
	s.trace.Iterations = s.iteration
	s.trace.LLMCalls = int(s.llmCalls.Load())
	s.trace.FinishedAt = time.Now()

	c.observer.SessionFinished(s.trace)
	s.logger.WithFields(logrus.Fields{
		"termination": reason,
		"iterations":  s.iteration,
		"answer":      s.bestResult.Answer,
	}).Info("session finished")
	return s.trace
}

// abort ends the session after a generator failure. Cancellation of the
// session context is a normal session-timeout, not a failure.
func (c *Controller) abort(ctx context.Context, s *session, err error) (models.Trace, error) {
	if ctx.Err() != nil {
		return c.finish(s, models.TerminationSessionTimeout), nil
	}
	s.trace.Error = err.Error()
	s.logger.WithError(err).Error("generator unreachable")
	return c.finish(s, models.TerminationGeneratorUnreached), fmt.Errorf("%w: %w", ErrGeneratorUnreachable, err)
}
