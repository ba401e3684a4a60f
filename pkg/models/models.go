package models

import (
	"strings"
	"time"
)

// Answer is the outcome of an entailment check
type Answer string

const (
	AnswerProved    Answer = "Proved"
	AnswerDisproved Answer = "Disproved"
	AnswerUnknown   Answer = "Unknown"
	AnswerError     Answer = "Error"
)

// Decisive reports whether the answer settles the entailment question
func (a Answer) Decisive() bool {
	return a == AnswerProved || a == AnswerDisproved
}

// ParseLabel maps a ground-truth label to an Answer.
// Accepts True/False/Uncertain, Proved/Disproved/Unknown and the A/B/C option style.
func ParseLabel(label string) (Answer, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "true", "proved", "a", "entailment", "yes":
		return AnswerProved, true
	case "false", "disproved", "b", "contradiction", "no":
		return AnswerDisproved, true
	case "uncertain", "unknown", "c", "notmentioned", "neutral":
		return AnswerUnknown, true
	default:
		return "", false
	}
}

// Backend names a reasoning backend
type Backend string

const (
	BackendGini      Backend = "gini"
	BackendGophersat Backend = "gophersat"
	BackendProver9   Backend = "prover9"
	BackendZ3        Backend = "z3"
)

// Formalization is a candidate logical encoding of a statement
type Formalization struct {
	Predicates map[string]string `json:"predicates"`
	Premises   []string          `json:"premises"`
	Conclusion string            `json:"conclusion"`
	Error      string            `json:"formalization_error,omitempty"`
}

// Failed reports whether the formalization could not be constructed
func (f Formalization) Failed() bool {
	return f.Error != ""
}

// SolverResult is the outcome of one solver invocation
type SolverResult struct {
	Answer   Answer        `json:"answer"`
	Error    string        `json:"error,omitempty"`
	Timeout  bool          `json:"timeout"`
	Backend  Backend       `json:"backend,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// Executed reports whether the solver ran to a non-error answer
func (r SolverResult) Executed() bool {
	return r.Answer != "" && r.Answer != AnswerError
}

// Validation is the result of structural checks on a candidate
type Validation struct {
	Valid         bool     `json:"valid"`
	NumPredicates int      `json:"num_predicates"`
	Issues        []string `json:"issues"`
}

// Verdict identifies the preferred formalization of a pairwise comparison
type Verdict string

const (
	VerdictA Verdict = "A"
	VerdictB Verdict = "B"
)

// Comparison is the comparator's judgement between current best (A) and candidate (B)
type Comparison struct {
	Verdict   Verdict `json:"verdict"`
	Reasoning string  `json:"reasoning"`
}

// Decision is the controller's outcome for one iteration
type Decision string

const (
	DecisionImproved Decision = "IMPROVED"
	DecisionRevert   Decision = "REVERT"
)

// DecisionFor maps a comparison verdict to a decision
func DecisionFor(v Verdict) Decision {
	if v == VerdictB {
		return DecisionImproved
	}
	return DecisionRevert
}

// TerminationReason explains why a refinement session stopped
type TerminationReason string

const (
	TerminationDecisive           TerminationReason = "decisive-success"
	TerminationRevertBudget       TerminationReason = "revert-budget-exhausted"
	TerminationIterationCap       TerminationReason = "iteration-cap"
	TerminationGeneratorUnreached TerminationReason = "generator-unreachable"
	TerminationSessionTimeout     TerminationReason = "session-timeout"
)

// CandidateRecord captures one candidate considered during an iteration
type CandidateRecord struct {
	Payload       string        `json:"payload"`
	Formalization Formalization `json:"formalization"`
	Issues        []string      `json:"issues,omitempty"`
	Result        *SolverResult `json:"result,omitempty"`
	Diagnostic    string        `json:"diagnostic,omitempty"`
	Verdict       Verdict       `json:"verdict,omitempty"`
}

// IterationRecord is one entry of a session history
type IterationRecord struct {
	Iteration          int               `json:"iteration"`
	Candidates         []CandidateRecord `json:"candidates"`
	Decision           Decision          `json:"decision"`
	Chosen             int               `json:"chosen"`
	Reasoning          string            `json:"reasoning"`
	Feedback           string            `json:"feedback,omitempty"`
	ConsecutiveReverts int               `json:"consecutive_reverts"`
}

// Problem is one natural-language statement to formalize and check
type Problem struct {
	ID        string `json:"id" yaml:"id"`
	Statement string `json:"statement" yaml:"statement"`
	Label     string `json:"label,omitempty" yaml:"label"`
}

// Trace is the persisted record of one refinement session
type Trace struct {
	ID          string            `json:"id"`
	ClientID    string            `json:"client_id,omitempty"`
	ProblemID   string            `json:"problem_id"`
	Statement   string            `json:"statement"`
	Label       string            `json:"label,omitempty"`
	Backend     Backend           `json:"backend"`
	Initial     Formalization     `json:"initial"`
	History     []IterationRecord `json:"history"`
	Final       Formalization     `json:"final"`
	FinalResult SolverResult      `json:"final_result"`
	Termination TerminationReason `json:"termination"`
	Iterations  int               `json:"iterations"`
	LLMCalls    int               `json:"llm_calls"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
}
