package config

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/todmy/logic-refine/internal/generator"
	"github.com/todmy/logic-refine/internal/solver"
)

// NewSolver builds the solver adapter behind a result cache. With a cache
// path the cache is a BadgerDB, otherwise it lives in memory. The returned
// close function releases the cache.
func (c Config) NewSolver(logger logrus.FieldLogger) (solver.Solver, func() error, error) {
	adapter := solver.NewAdapter(solver.Config{
		DefaultTimeout: c.Refinement.SolverTimeout,
		Grounder:       c.Solver.Grounder(),
	}, solver.WithLogger(logger))

	if c.Solver.CachePath == "" {
		return solver.NewCachedSolver(adapter, solver.NewMemoryCache(), logger), func() error { return nil }, nil
	}

	cache, err := solver.OpenBadgerCache(solver.BadgerConfig{
		Path:   c.Solver.CachePath,
		TTL:    c.Solver.CacheTTL,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open solver cache: %w", err)
	}
	return solver.NewCachedSolver(adapter, cache, logger), cache.Close, nil
}

// NewGenerator builds the LLM generator for the configured provider
func (c Config) NewGenerator(logger logrus.FieldLogger) (*generator.LLMGenerator, error) {
	client, err := generator.NewChatClient(c.LLM.Provider, c.LLM.Chat)
	if err != nil {
		return nil, err
	}
	return generator.New(client, c.Generator, logger), nil
}
