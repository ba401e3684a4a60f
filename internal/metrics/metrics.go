package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/todmy/logic-refine/pkg/models"
)

const namespace = "logic_refine"

// Metrics records refinement activity. It implements refinement.Observer.
type Metrics struct {
	// solverCalls counts solver invocations.
	// Labels: backend, answer (Proved, Disproved, Unknown, Error)
	solverCalls *prometheus.CounterVec

	// solverTimeouts counts solver invocations that hit their time budget.
	// Labels: backend
	solverTimeouts *prometheus.CounterVec

	// solverDuration measures solver wall time.
	// Labels: backend
	solverDuration *prometheus.HistogramVec

	// decisions counts iteration decisions.
	// Labels: iteration, decision (IMPROVED, REVERT)
	decisions *prometheus.CounterVec

	// sessions counts finished sessions.
	// Labels: termination, answer
	sessions *prometheus.CounterVec

	// sessionIterations is the distribution of iterations per session
	sessionIterations prometheus.Histogram

	// llmCalls counts generator and comparator calls
	llmCalls prometheus.Counter
}

// New registers the refinement metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		solverCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "calls_total",
			Help:      "Total solver invocations by backend and answer",
		}, []string{"backend", "answer"}),
		solverTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "timeouts_total",
			Help:      "Total solver invocations that exceeded their timeout",
		}, []string{"backend"}),
		solverDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "duration_seconds",
			Help:      "Solver invocation latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"backend"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refinement",
			Name:      "decisions_total",
			Help:      "Total refinement decisions by iteration index",
		}, []string{"iteration", "decision"}),
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refinement",
			Name:      "sessions_total",
			Help:      "Total finished refinement sessions",
		}, []string{"termination", "answer"}),
		sessionIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refinement",
			Name:      "session_iterations",
			Help:      "Refinement iterations per session",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12, 16},
		}),
		llmCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "calls_total",
			Help:      "Total generator and comparator calls made by sessions",
		}),
	}
}

// SolverResult records one solver invocation
func (m *Metrics) SolverResult(result models.SolverResult) {
	backend := string(result.Backend)
	m.solverCalls.WithLabelValues(backend, string(result.Answer)).Inc()
	if result.Timeout {
		m.solverTimeouts.WithLabelValues(backend).Inc()
	}
	m.solverDuration.WithLabelValues(backend).Observe(result.Duration.Seconds())
}

// Decision records one iteration decision
func (m *Metrics) Decision(iteration int, decision models.Decision) {
	m.decisions.WithLabelValues(iterationLabel(iteration), string(decision)).Inc()
}

// SessionFinished records a finished session
func (m *Metrics) SessionFinished(trace models.Trace) {
	m.sessions.WithLabelValues(string(trace.Termination), string(trace.FinalResult.Answer)).Inc()
	m.sessionIterations.Observe(float64(trace.Iterations))
	m.llmCalls.Add(float64(trace.LLMCalls))
}

// iteration indexes are bounded to keep label cardinality small
func iterationLabel(i int) string {
	switch {
	case i <= 0:
		return "0"
	case i < 10:
		return strconv.Itoa(i)
	default:
		return "10+"
	}
}
