package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/todmy/logic-refine/pkg/models"
)

var (
	// ErrTraceNotFound is returned when a trace does not exist or belongs to another client
	ErrTraceNotFound = errors.New("trace not found")
	// ErrMissingClient is returned when a trace is stored without an owning client
	ErrMissingClient = errors.New("trace has no client")
)

// TraceRepository defines the interface for refinement trace storage.
// Every trace belongs to the API client that created it; reads and deletes
// only see the given client's traces.
type TraceRepository interface {
	Create(ctx context.Context, trace *models.Trace) error
	GetByID(ctx context.Context, clientID, id string) (*models.Trace, error)
	List(ctx context.Context, clientID string, limit, offset int) ([]*models.Trace, error)
	Delete(ctx context.Context, clientID, id string) error
}

// PostgresTraceRepository implements TraceRepository using PostgreSQL
type PostgresTraceRepository struct {
	db *sql.DB
}

// NewPostgresTraceRepository creates a new PostgresTraceRepository
func NewPostgresTraceRepository(db *sql.DB) *PostgresTraceRepository {
	return &PostgresTraceRepository{db: db}
}

const sessionColumns = `id, client_id, problem_id, statement, label, backend, initial, final, final_result,
		termination, iterations, llm_calls, error, started_at, finished_at`

// Create inserts a session and all of its iterations in a single transaction
func (r *PostgresTraceRepository) Create(ctx context.Context, trace *models.Trace) error {
	if _, err := uuid.Parse(trace.ClientID); err != nil {
		return ErrMissingClient
	}
	if trace.ID == "" {
		trace.ID = uuid.New().String()
	}
	if trace.StartedAt.IsZero() {
		trace.StartedAt = time.Now()
	}
	if trace.FinishedAt.IsZero() {
		trace.FinishedAt = trace.StartedAt
	}

	initial, err := json.Marshal(trace.Initial)
	if err != nil {
		return fmt.Errorf("failed to encode initial formalization: %w", err)
	}
	final, err := json.Marshal(trace.Final)
	if err != nil {
		return fmt.Errorf("failed to encode final formalization: %w", err)
	}
	result, err := json.Marshal(trace.FinalResult)
	if err != nil {
		return fmt.Errorf("failed to encode final result: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refinement_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		trace.ID,
		trace.ClientID,
		trace.ProblemID,
		trace.Statement,
		trace.Label,
		string(trace.Backend),
		initial,
		final,
		result,
		string(trace.Termination),
		trace.Iterations,
		trace.LLMCalls,
		trace.Error,
		trace.StartedAt,
		trace.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if len(trace.History) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO refinement_iterations (session_id, iteration, decision, chosen, reasoning, feedback,
				consecutive_reverts, candidates)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rec := range trace.History {
			candidates, err := json.Marshal(rec.Candidates)
			if err != nil {
				return fmt.Errorf("failed to encode candidates of iteration %d: %w", rec.Iteration, err)
			}
			_, err = stmt.ExecContext(ctx,
				trace.ID,
				rec.Iteration,
				string(rec.Decision),
				rec.Chosen,
				rec.Reasoning,
				rec.Feedback,
				rec.ConsecutiveReverts,
				candidates,
			)
			if err != nil {
				return fmt.Errorf("failed to create iteration %d: %w", rec.Iteration, err)
			}
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.Trace, error) {
	var (
		trace                  models.Trace
		backend, termination   string
		initial, final, result []byte
	)
	err := row.Scan(
		&trace.ID,
		&trace.ClientID,
		&trace.ProblemID,
		&trace.Statement,
		&trace.Label,
		&backend,
		&initial,
		&final,
		&result,
		&termination,
		&trace.Iterations,
		&trace.LLMCalls,
		&trace.Error,
		&trace.StartedAt,
		&trace.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	trace.Backend = models.Backend(backend)
	trace.Termination = models.TerminationReason(termination)
	if err := json.Unmarshal(initial, &trace.Initial); err != nil {
		return nil, fmt.Errorf("failed to decode initial formalization: %w", err)
	}
	if err := json.Unmarshal(final, &trace.Final); err != nil {
		return nil, fmt.Errorf("failed to decode final formalization: %w", err)
	}
	if err := json.Unmarshal(result, &trace.FinalResult); err != nil {
		return nil, fmt.Errorf("failed to decode final result: %w", err)
	}
	trace.History = []models.IterationRecord{}
	return &trace, nil
}

// GetByID retrieves one of the client's traces with its full history
func (r *PostgresTraceRepository) GetByID(ctx context.Context, clientID, id string) (*models.Trace, error) {
	if !validIDs(clientID, id) {
		return nil, ErrTraceNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM refinement_sessions
		WHERE id = $1 AND client_id = $2
	`, id, clientID)

	trace, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}

	if err := r.loadHistory(ctx, map[string]*models.Trace{trace.ID: trace}); err != nil {
		return nil, err
	}
	return trace, nil
}

// List retrieves the client's traces ordered by most recent first, each with
// its history
func (r *PostgresTraceRepository) List(ctx context.Context, clientID string, limit, offset int) ([]*models.Trace, error) {
	if !validIDs(clientID) {
		return []*models.Trace{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM refinement_sessions
		WHERE client_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}
	defer rows.Close()

	traces := []*models.Trace{}
	byID := make(map[string]*models.Trace)
	for rows.Next() {
		trace, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, trace)
		byID[trace.ID] = trace
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(traces) == 0 {
		return traces, nil
	}
	if err := r.loadHistory(ctx, byID); err != nil {
		return nil, err
	}
	return traces, nil
}

func (r *PostgresTraceRepository) loadHistory(ctx context.Context, traces map[string]*models.Trace) error {
	ids := make([]string, 0, len(traces))
	for id := range traces {
		ids = append(ids, id)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, iteration, decision, chosen, reasoning, feedback, consecutive_reverts, candidates
		FROM refinement_iterations
		WHERE session_id = ANY($1)
		ORDER BY session_id, iteration ASC
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sessionID, decision string
			candidates          []byte
			rec                 models.IterationRecord
		)
		err := rows.Scan(
			&sessionID,
			&rec.Iteration,
			&decision,
			&rec.Chosen,
			&rec.Reasoning,
			&rec.Feedback,
			&rec.ConsecutiveReverts,
			&candidates,
		)
		if err != nil {
			return err
		}
		rec.Decision = models.Decision(decision)
		if err := json.Unmarshal(candidates, &rec.Candidates); err != nil {
			return fmt.Errorf("failed to decode candidates of iteration %d: %w", rec.Iteration, err)
		}
		if trace, ok := traces[sessionID]; ok {
			trace.History = append(trace.History, rec)
		}
	}
	return rows.Err()
}

// Delete removes one of the client's traces; its iterations are removed by cascade
func (r *PostgresTraceRepository) Delete(ctx context.Context, clientID, id string) error {
	if !validIDs(clientID, id) {
		return ErrTraceNotFound
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM refinement_sessions WHERE id = $1 AND client_id = $2`, id, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete trace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTraceNotFound
	}
	return nil
}

func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
