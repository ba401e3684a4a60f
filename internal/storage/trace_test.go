package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/todmy/logic-refine/pkg/models"
)

var sessionRowColumns = []string{
	"id", "client_id", "problem_id", "statement", "label", "backend", "initial", "final", "final_result",
	"termination", "iterations", "llm_calls", "error", "started_at", "finished_at",
}

var iterationRowColumns = []string{
	"session_id", "iteration", "decision", "chosen", "reasoning", "feedback", "consecutive_reverts", "candidates",
}

const (
	traceID  = "123e4567-e89b-12d3-a456-426614174000"
	clientID = "9f0c1b2a-3d4e-4f50-8a6b-7c8d9e0f1a2b"
)

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	return data
}

func sampleTrace() *models.Trace {
	f := models.Formalization{Predicates: map[string]string{}, Premises: []string{"P(a)"}, Conclusion: "Q(a)"}
	return &models.Trace{
		ClientID:    clientID,
		ProblemID:   "folio-1",
		Statement:   "If P then Q. P.",
		Label:       "True",
		Backend:     models.BackendGini,
		Initial:     f,
		Final:       f,
		FinalResult: models.SolverResult{Answer: models.AnswerUnknown, Backend: models.BackendGini},
		Termination: models.TerminationRevertBudget,
		Iterations:  2,
		LLMCalls:    5,
		History: []models.IterationRecord{
			{Iteration: 1, Decision: models.DecisionRevert, Chosen: -1, Reasoning: "A keeps the premise", ConsecutiveReverts: 1},
			{Iteration: 2, Decision: models.DecisionRevert, Chosen: -1, Reasoning: "A keeps the premise", ConsecutiveReverts: 2},
		},
	}
}

func TestPostgresTraceRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresTraceRepository(db)
	trace := sampleTrace()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO refinement_sessions").
		WithArgs(sqlmock.AnyArg(), clientID, "folio-1", trace.Statement, "True", "gini",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"revert-budget-exhausted", 2, 5, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep := mock.ExpectPrepare("INSERT INTO refinement_iterations")
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), 1, "REVERT", -1, "A keeps the premise", "", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), 2, "REVERT", -1, "A keeps the premise", "", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), trace); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if trace.ID == "" {
		t.Error("expected trace ID to be generated")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresTraceRepository_Create_RollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresTraceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO refinement_sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	prep := mock.ExpectPrepare("INSERT INTO refinement_iterations")
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := repo.Create(context.Background(), sampleTrace()); err == nil {
		t.Error("expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresTraceRepository_Create_RequiresClient(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresTraceRepository(db)
	trace := sampleTrace()
	trace.ClientID = ""

	if err := repo.Create(context.Background(), trace); err != ErrMissingClient {
		t.Errorf("expected ErrMissingClient, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresTraceRepository_List_ScopedToClient(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresTraceRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM refinement_sessions WHERE client_id").
		WithArgs(clientID, 10, 0).
		WillReturnRows(sqlmock.NewRows(sessionRowColumns))

	traces, err := repo.List(context.Background(), clientID, 10, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(traces) != 0 {
		t.Errorf("expected no traces, got %d", len(traces))
	}

	// a malformed client id never reaches the database
	traces, err = repo.List(context.Background(), "nobody", 10, 0)
	if err != nil || len(traces) != 0 {
		t.Errorf("expected empty list, got %v, %v", traces, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresTraceRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresTraceRepository(db)
	trace := sampleTrace()
	now := time.Now()

	candidates := []models.CandidateRecord{{Payload: "{}", Issues: []string{"premises are empty"}}}

	mock.ExpectQuery("SELECT (.+) FROM refinement_sessions WHERE id = \\$1 AND client_id = \\$2").
		WithArgs(traceID, clientID).
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).AddRow(
			traceID, clientID, "folio-1", trace.Statement, "True", "gini",
			mustJSON(t, trace.Initial), mustJSON(t, trace.Final), mustJSON(t, trace.FinalResult),
			"revert-budget-exhausted", 2, 5, "", now, now,
		))
	mock.ExpectQuery("SELECT (.+) FROM refinement_iterations").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(iterationRowColumns).
			AddRow(traceID, 1, "REVERT", -1, "r1", "", 1, mustJSON(t, candidates)).
			AddRow(traceID, 2, "REVERT", -1, "r2", "r1", 2, mustJSON(t, candidates)))

	got, err := repo.GetByID(context.Background(), clientID, traceID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got.ID != traceID {
		t.Errorf("expected ID %s, got %s", traceID, got.ID)
	}
	if got.ClientID != clientID {
		t.Errorf("expected client %s, got %s", clientID, got.ClientID)
	}
	if got.Termination != models.TerminationRevertBudget {
		t.Errorf("expected termination %s, got %s", models.TerminationRevertBudget, got.Termination)
	}
	if got.FinalResult.Answer != models.AnswerUnknown {
		t.Errorf("expected answer Unknown, got %s", got.FinalResult.Answer)
	}
	if got.Final.Conclusion != "Q(a)" {
		t.Errorf("expected conclusion Q(a), got %s", got.Final.Conclusion)
	}
	if len(got.History) != 2 {
		t.Fatalf("expected 2 iterations, got %d", len(got.History))
	}
	if got.History[1].Feedback != "r1" || got.History[1].ConsecutiveReverts != 2 {
		t.Errorf("unexpected second iteration %+v", got.History[1])
	}
	if len(got.History[0].Candidates) != 1 || got.History[0].Candidates[0].Issues[0] != "premises are empty" {
		t.Errorf("unexpected candidates %+v", got.History[0].Candidates)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresTraceRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresTraceRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM refinement_sessions WHERE id").
		WithArgs(traceID, clientID).
		WillReturnError(sql.ErrNoRows)

	trace, err := repo.GetByID(context.Background(), clientID, traceID)
	if err != ErrTraceNotFound {
		t.Errorf("expected ErrTraceNotFound, got %v", err)
	}
	if trace != nil {
		t.Error("expected nil trace")
	}

	// malformed ids never reach the database
	if _, err := repo.GetByID(context.Background(), clientID, "not-a-uuid"); err != ErrTraceNotFound {
		t.Errorf("expected ErrTraceNotFound, got %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "", traceID); err != ErrTraceNotFound {
		t.Errorf("expected ErrTraceNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresTraceRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresTraceRepository(db)
	trace := sampleTrace()
	now := time.Now()
	otherID := "223e4567-e89b-12d3-a456-426614174000"

	mock.ExpectQuery("SELECT (.+) FROM refinement_sessions WHERE client_id = \\$1 ORDER BY started_at DESC").
		WithArgs(clientID, 50, 0).
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow(traceID, clientID, "folio-1", trace.Statement, "True", "gini",
				mustJSON(t, trace.Initial), mustJSON(t, trace.Final), mustJSON(t, trace.FinalResult),
				"revert-budget-exhausted", 1, 3, "", now, now).
			AddRow(otherID, clientID, "folio-2", trace.Statement, "False", "gini",
				mustJSON(t, trace.Initial), mustJSON(t, trace.Final), mustJSON(t, trace.FinalResult),
				"decisive-success", 0, 1, "", now, now))
	mock.ExpectQuery("SELECT (.+) FROM refinement_iterations").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(iterationRowColumns).
			AddRow(traceID, 1, "REVERT", -1, "r1", "", 1, []byte("[]")))

	traces, err := repo.List(context.Background(), clientID, 0, -1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(traces) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(traces))
	}
	if len(traces[0].History) != 1 {
		t.Errorf("expected 1 iteration on first trace, got %d", len(traces[0].History))
	}
	if traces[1].History == nil || len(traces[1].History) != 0 {
		t.Errorf("expected empty history on second trace, got %v", traces[1].History)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresTraceRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresTraceRepository(db)

	mock.ExpectExec("DELETE FROM refinement_sessions WHERE id = \\$1 AND client_id = \\$2").
		WithArgs(traceID, clientID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM refinement_sessions WHERE id").
		WithArgs(traceID, clientID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), clientID, traceID); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := repo.Delete(context.Background(), clientID, traceID); err != ErrTraceNotFound {
		t.Errorf("expected ErrTraceNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
