package api

import (
	"net/http"
	"time"

	"github.com/todmy/logic-refine/internal/formalization"
	"github.com/todmy/logic-refine/pkg/models"
)

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SolveRequest is the body of POST /solve
type SolveRequest struct {
	Premises   []string       `json:"premises"`
	Conclusion string         `json:"conclusion"`
	Backend    models.Backend `json:"backend" validate:"omitempty,oneof=gini gophersat prover9 z3"`
	TimeoutMs  int            `json:"timeout_ms" validate:"min=0,max=600000"`
}

// handleSolve runs one entailment check. Ill-posed queries are answered with
// answer Error, not an HTTP error.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if !s.decode(w, r, &req) {
		return
	}

	backend := req.Backend
	if backend == "" {
		backend = s.config.DefaultBackend
	}
	timeout := s.config.SolverTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	result := s.config.Solver.Solve(r.Context(), req.Premises, req.Conclusion, backend, timeout)
	respondJSON(w, http.StatusOK, result)
}

// ValidateRequest is the body of POST /validate
type ValidateRequest struct {
	Payload    string   `json:"payload"`
	Premises   []string `json:"premises"`
	Conclusion string   `json:"conclusion"`
}

// ValidateResponse reports the parsed formalization and its structural issues
type ValidateResponse struct {
	Formalization models.Formalization `json:"formalization"`
	Validation    models.Validation    `json:"validation"`
}

// handleValidate validates either a raw generator payload or explicit formulas
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !s.decode(w, r, &req) {
		return
	}

	var f models.Formalization
	if req.Payload != "" {
		f = formalization.Parse(req.Payload)
	} else {
		f = models.Formalization{Predicates: map[string]string{}, Premises: req.Premises, Conclusion: req.Conclusion}
	}

	v := formalization.Validate(f.Premises, f.Conclusion)
	if f.Failed() {
		v.Valid = false
		v.Issues = formalization.Issues(f)
	}
	respondJSON(w, http.StatusOK, ValidateResponse{Formalization: f, Validation: v})
}
