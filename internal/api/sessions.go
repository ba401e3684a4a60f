package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/todmy/logic-refine/internal/auth"
	"github.com/todmy/logic-refine/internal/refinement"
	"github.com/todmy/logic-refine/internal/storage"
	"github.com/todmy/logic-refine/pkg/models"
)

// CreateSessionRequest is the body of POST /sessions
type CreateSessionRequest struct {
	ProblemID      string `json:"problem_id" validate:"max=200"`
	Statement      string `json:"statement" validate:"required,max=20000"`
	Label          string `json:"label" validate:"max=32"`
	InitialPayload string `json:"initial_payload"`
}

// handleCreateSession runs a refinement session and persists its trace. A
// generator failure still persists the partial trace and answers 502.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !s.decode(w, r, &req) {
		return
	}

	problem := models.Problem{ID: req.ProblemID, Statement: req.Statement, Label: req.Label}
	if problem.ID == "" {
		problem.ID = uuid.New().String()
	}

	var (
		trace models.Trace
		err   error
	)
	if req.InitialPayload != "" {
		trace, err = s.config.Controller.RunFrom(r.Context(), problem, req.InitialPayload)
	} else {
		trace, err = s.config.Controller.Run(r.Context(), problem)
	}

	trace.ClientID = clientID(r)
	if s.config.Traces != nil {
		if storeErr := s.config.Traces.Create(r.Context(), &trace); storeErr != nil {
			s.logger.WithError(storeErr).WithField("session", trace.ID).Error("failed to persist trace")
			respondError(w, http.StatusInternalServerError, "failed to persist trace")
			return
		}
	}

	if err != nil {
		if errors.Is(err, refinement.ErrGeneratorUnreachable) {
			respondJSON(w, http.StatusBadGateway, trace)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, trace)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.config.Traces == nil {
		respondError(w, http.StatusServiceUnavailable, "trace storage not configured")
		return
	}

	limit, offset := pagination(r)
	traces, err := s.config.Traces.List(r.Context(), clientID(r), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("failed to list traces")
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	respondJSON(w, http.StatusOK, traces)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.config.Traces == nil {
		respondError(w, http.StatusServiceUnavailable, "trace storage not configured")
		return
	}

	trace, err := s.config.Traces.GetByID(r.Context(), clientID(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, storage.ErrTraceNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.WithError(err).Error("failed to get trace")
		respondError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	respondJSON(w, http.StatusOK, trace)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.config.Traces == nil {
		respondError(w, http.StatusServiceUnavailable, "trace storage not configured")
		return
	}

	if err := s.config.Traces.Delete(r.Context(), clientID(r), chi.URLParam(r, "sessionID")); err != nil {
		if errors.Is(err, storage.ErrTraceNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleEvaluation evaluates the caller's most recent sessions
func (s *Server) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	if s.config.Traces == nil {
		respondError(w, http.StatusServiceUnavailable, "trace storage not configured")
		return
	}

	limit, offset := pagination(r)
	traces, err := s.config.Traces.List(r.Context(), clientID(r), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("failed to list traces")
		respondError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}

	values := make([]models.Trace, len(traces))
	for i, t := range traces {
		values[i] = *t
	}
	respondJSON(w, http.StatusOK, s.config.Evaluator.Evaluate(values))
}

// clientID is the authenticated caller; sessions are owned per client
func clientID(r *http.Request) string {
	if claims, ok := auth.GetClientFromContext(r.Context()); ok {
		return claims.ClientID
	}
	return ""
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
