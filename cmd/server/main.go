package main

import (
	"database/sql"
	"flag"
	"os"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/todmy/logic-refine/internal/api"
	"github.com/todmy/logic-refine/internal/auth"
	"github.com/todmy/logic-refine/internal/config"
	"github.com/todmy/logic-refine/internal/evaluation"
	"github.com/todmy/logic-refine/internal/metrics"
	"github.com/todmy/logic-refine/internal/refinement"
	"github.com/todmy/logic-refine/internal/similarity"
	"github.com/todmy/logic-refine/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	solve, closeCache, err := cfg.NewSolver(logger)
	if err != nil {
		logger.Fatalf("Failed to build solver: %v", err)
	}
	defer closeCache()

	gen, err := cfg.NewGenerator(logger)
	if err != nil {
		logger.Fatalf("Failed to build generator: %v", err)
	}

	controller := refinement.NewController(gen, solve, cfg.Refinement,
		refinement.WithLogger(logger),
		refinement.WithObserver(metrics.New(reg)),
	)

	server := api.NewServer(api.ServerConfig{
		Solver:         solve,
		Controller:     controller,
		Traces:         storage.NewPostgresTraceRepository(db),
		Auth:           auth.NewJWTService(cfg.Auth, auth.NewPostgresRepository(db)),
		Evaluator:      evaluation.New(similarity.NewService(similarity.DefaultThreshold)),
		Gatherer:       reg,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DefaultBackend: cfg.Refinement.Backend,
		SolverTimeout:  cfg.Refinement.SolverTimeout,
	})

	logger.WithField("port", cfg.Server.Port).WithField("backend", cfg.Refinement.Backend).Info("Starting logic-refine server")
	if err := server.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
