package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/todmy/logic-refine/internal/auth"
	"github.com/todmy/logic-refine/internal/evaluation"
	"github.com/todmy/logic-refine/internal/refinement"
	"github.com/todmy/logic-refine/internal/solver"
	"github.com/todmy/logic-refine/internal/storage"
	"github.com/todmy/logic-refine/pkg/models"
)

// ServerConfig holds the collaborators of the HTTP API
type ServerConfig struct {
	Solver         solver.Solver
	Controller     *refinement.Controller
	Traces         storage.TraceRepository
	Auth           auth.Service
	Evaluator      *evaluation.Evaluator
	Gatherer       prometheus.Gatherer
	Logger         logrus.FieldLogger
	AllowedOrigins []string
	DefaultBackend models.Backend
	SolverTimeout  time.Duration
}

type Server struct {
	router   *chi.Mux
	config   ServerConfig
	logger   logrus.FieldLogger
	validate *validator.Validate
}

func NewServer(config ServerConfig) *Server {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if config.Evaluator == nil {
		config.Evaluator = evaluation.New(nil)
	}
	if config.DefaultBackend == "" {
		config.DefaultBackend = models.BackendGini
	}
	if config.SolverTimeout <= 0 {
		config.SolverTimeout = solver.DefaultConfig().DefaultTimeout
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"http://localhost:*", "https://*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:   r,
		config:   config,
		logger:   config.Logger,
		validate: validator.New(),
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))

	authHandlers := auth.NewHandlers(s.config.Auth)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public)
		r.Post("/auth/clients", authHandlers.RegisterClient)
		r.Post("/auth/token", authHandlers.Token)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.config.Auth))

			r.Get("/auth/me", authHandlers.Me)
			r.Post("/solve", s.handleSolve)
			r.Post("/validate", s.handleValidate)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", s.handleListSessions)
				r.Post("/", s.handleCreateSession)
				r.Get("/{sessionID}", s.handleGetSession)
				r.Delete("/{sessionID}", s.handleDeleteSession)
			})

			r.Get("/evaluation", s.handleEvaluation)
		})
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

// Helper to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
