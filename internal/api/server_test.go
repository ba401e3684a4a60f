package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/logic-refine/internal/auth"
	"github.com/todmy/logic-refine/internal/evaluation"
	"github.com/todmy/logic-refine/internal/metrics"
	"github.com/todmy/logic-refine/internal/refinement"
	"github.com/todmy/logic-refine/internal/solver"
	"github.com/todmy/logic-refine/internal/storage"
	"github.com/todmy/logic-refine/pkg/models"
)

type memoryClients struct {
	mu      sync.Mutex
	clients map[string]*auth.Client
}

func (r *memoryClients) Create(ctx context.Context, c *auth.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.New().String()
	r.clients[c.Name] = c
	return nil
}

func (r *memoryClients) GetByID(ctx context.Context, id string) (*auth.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, auth.ErrClientNotFound
}

func (r *memoryClients) GetByName(ctx context.Context, name string) (*auth.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[name]; ok {
		return c, nil
	}
	return nil, auth.ErrClientNotFound
}

type memoryTraces struct {
	mu     sync.Mutex
	traces map[string]models.Trace
}

func (r *memoryTraces) Create(ctx context.Context, t *models.Trace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces[t.ID] = *t
	return nil
}

func (r *memoryTraces) GetByID(ctx context.Context, clientID, id string) (*models.Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.traces[id]
	if !ok || t.ClientID != clientID {
		return nil, storage.ErrTraceNotFound
	}
	return &t, nil
}

func (r *memoryTraces) List(ctx context.Context, clientID string, limit, offset int) ([]*models.Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Trace{}
	for _, t := range r.traces {
		if t.ClientID != clientID {
			continue
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryTraces) Delete(ctx context.Context, clientID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.traces[id]; !ok || t.ClientID != clientID {
		return storage.ErrTraceNotFound
	}
	delete(r.traces, id)
	return nil
}

// stubGenerator formalizes every statement as modus ponens missing its rule,
// then proposes the repaired version.
type stubGenerator struct {
	fail bool
}

func (g *stubGenerator) Formalize(ctx context.Context, statement string) (string, error) {
	if g.fail {
		return "", errors.New("connection refused")
	}
	return `{"premises": ["P(a)"], "conclusion": "Q(a)"}`, nil
}

func (g *stubGenerator) Propose(ctx context.Context, statement string, best models.Formalization, feedback string, n int) ([]string, error) {
	out := make([]string, n)
	for i := range out {
		out[i] = `{"premises": ["P(a)", "P(a) → Q(a)"], "conclusion": "Q(a)"}`
	}
	return out, nil
}

func (g *stubGenerator) Compare(ctx context.Context, statement string, a, b models.Formalization) (models.Comparison, error) {
	return models.Comparison{Verdict: models.VerdictB, Reasoning: "B states the rule"}, nil
}

type testEnv struct {
	server *Server
	traces *memoryTraces
	auth   *auth.JWTService
	token  string
}

// register adds a client and returns its bearer token
func (e *testEnv) register(t *testing.T, name string) string {
	t.Helper()
	_, err := e.auth.RegisterClient(context.Background(), name, "long-enough-secret")
	require.NoError(t, err)
	token, err := e.auth.IssueToken(context.Background(), name, "long-enough-secret")
	require.NoError(t, err)
	return token
}

func newTestEnv(t *testing.T, gen refinement.Generator) *testEnv {
	t.Helper()
	logger, _ := test.NewNullLogger()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	adapter := solver.NewAdapter(solver.DefaultConfig(), solver.WithLogger(logger))
	controller := refinement.NewController(gen, adapter, refinement.DefaultConfig(),
		refinement.WithLogger(logger), refinement.WithObserver(m))

	authService := auth.NewJWTService(auth.Config{SecretKey: "test"}, &memoryClients{clients: map[string]*auth.Client{}})

	traces := &memoryTraces{traces: map[string]models.Trace{}}
	server := NewServer(ServerConfig{
		Solver:        adapter,
		Controller:    controller,
		Traces:        traces,
		Auth:          authService,
		Evaluator:     evaluation.New(nil),
		Gatherer:      reg,
		Logger:        logger,
		SolverTimeout: 5 * time.Second,
	})
	env := &testEnv{server: server, traces: traces, auth: authService}
	env.token = env.register(t, "tester")
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})
	env.token = ""
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})
	env.token = ""
	rec := env.do(t, http.MethodPost, "/api/v1/solve", SolveRequest{Premises: []string{"P(a)"}, Conclusion: "P(a)"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSolve(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})

	tests := []struct {
		name string
		req  SolveRequest
		want models.Answer
	}{
		{"modus ponens", SolveRequest{Premises: []string{"P(a)", "Implies(P(a), Q(a))"}, Conclusion: "Q(a)"}, models.AnswerProved},
		{"contradiction", SolveRequest{Premises: []string{"¬Q(a)"}, Conclusion: "Q(a)", Backend: models.BackendGophersat}, models.AnswerDisproved},
		{"empty premises", SolveRequest{Conclusion: "Q(a)"}, models.AnswerError},
		{"unimplemented backend", SolveRequest{Premises: []string{"P(a)"}, Conclusion: "P(a)", Backend: models.BackendZ3}, models.AnswerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/solve", tt.req)
			require.Equal(t, http.StatusOK, rec.Code)

			var result models.SolverResult
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
			assert.Equal(t, tt.want, result.Answer)
			if tt.want == models.AnswerError {
				assert.NotEmpty(t, result.Error)
			}
		})
	}
}

func TestSolve_BadRequest(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})

	rec := env.do(t, http.MethodPost, "/api/v1/solve", SolveRequest{Conclusion: "P(a)", Backend: "vampire"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/solve", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+env.token)
	raw := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})

	rec := env.do(t, http.MethodPost, "/api/v1/validate", ValidateRequest{Payload: "Not a valid JSON response"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ValidateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Validation.Valid)
	assert.NotEmpty(t, resp.Formalization.Error)

	rec = env.do(t, http.MethodPost, "/api/v1/validate", ValidateRequest{Premises: []string{"∀x (Man(x) → Mortal(x))", "Man(socrates)"}, Conclusion: "Mortal(socrates)"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = ValidateResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Validation.Valid)
	assert.Equal(t, 2, resp.Validation.NumPredicates)
}

func TestSessions_Lifecycle(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{
		ProblemID: "mp-1",
		Statement: "If P then Q. P holds.",
		Label:     "True",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var trace models.Trace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&trace))
	assert.Equal(t, models.TerminationDecisive, trace.Termination)
	assert.Equal(t, models.AnswerProved, trace.FinalResult.Answer)
	require.Len(t, trace.History, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+trace.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Trace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/evaluation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report evaluation.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1.0, report.ExecutionRate)
	assert.Equal(t, 1.0, report.ExecutionAccuracy)

	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+trace.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+trace.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_ScopedToClient(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})
	owner := env.token

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{Statement: "P holds.", Label: "True"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var trace models.Trace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&trace))
	assert.NotEmpty(t, trace.ClientID)

	env.token = env.register(t, "other")

	rec = env.do(t, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Trace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Empty(t, list)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+trace.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+trace.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/evaluation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report evaluation.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, 0, report.Total)

	env.token = owner
	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+trace.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessions_InitialPayload(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{fail: true})

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{
		Statement:      "P holds. Does Q?",
		InitialPayload: `{"premises": ["P(a)", "P(a) → Q(a)"], "conclusion": "Q(a)"}`,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var trace models.Trace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&trace))
	assert.Equal(t, 0, trace.Iterations)
	assert.Equal(t, models.AnswerProved, trace.FinalResult.Answer)
	assert.NotEmpty(t, trace.ProblemID)
}

func TestSessions_GeneratorUnreachable(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{fail: true})

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{Statement: "P holds."})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var trace models.Trace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&trace))
	assert.Equal(t, models.TerminationGeneratorUnreached, trace.Termination)
	assert.Contains(t, trace.Error, "connection refused")

	// the partial trace is persisted
	assert.Len(t, env.traces.traces, 1)
}

func TestSessions_Validation(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})
	rec := env.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})
	rec := env.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{Statement: "P holds."})
	require.Equal(t, http.StatusCreated, rec.Code)

	env.token = ""
	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "logic_refine_refinement_sessions_total")
	assert.Contains(t, rec.Body.String(), "logic_refine_solver_calls_total")
}

func TestPagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&offset=10", nil)
	limit, offset := pagination(req)
	assert.Equal(t, 5, limit)
	assert.Equal(t, 10, offset)

	req = httptest.NewRequest(http.MethodGet, "/?limit=-1&offset=-3", nil)
	limit, offset = pagination(req)
	assert.Equal(t, 100, limit)
	assert.Equal(t, 0, offset)
}
