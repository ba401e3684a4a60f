package solver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/todmy/logic-refine/pkg/models"
)

// Cache defines the interface for solver result caches
type Cache interface {
	// Get retrieves a result from cache
	Get(ctx context.Context, key string) (models.SolverResult, bool, error)

	// Set stores a result in cache
	Set(ctx context.Context, key string, result models.SolverResult) error
}

// GenerateCacheKey creates a cache key from a backend and an entailment query
func GenerateCacheKey(backend models.Backend, premises []string, conclusion string) string {
	h := sha256.New()
	h.Write([]byte(string(backend) + "\x00" + strings.Join(premises, "\x1f") + "\x00" + conclusion))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// CachedSolver wraps a Solver with caching.
// Timed-out results are never cached since they depend on the budget.
type CachedSolver struct {
	solver Solver
	cache  Cache
	logger logrus.FieldLogger
}

// NewCachedSolver creates a caching solver
func NewCachedSolver(solver Solver, cache Cache, logger logrus.FieldLogger) *CachedSolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachedSolver{
		solver: solver,
		cache:  cache,
		logger: logger,
	}
}

// Solve returns a cached result when one exists, otherwise solves and caches
func (c *CachedSolver) Solve(ctx context.Context, premises []string, conclusion string, backend models.Backend, timeout time.Duration) models.SolverResult {
	key := GenerateCacheKey(backend, premises, conclusion)

	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		// continue without cache
		c.logger.WithError(err).Warn("solver cache read failed")
	}
	if ok {
		return cached
	}

	result := c.solver.Solve(ctx, premises, conclusion, backend, timeout)
	if !result.Timeout {
		if err := c.cache.Set(ctx, key, result); err != nil {
			c.logger.WithError(err).Warn("solver cache write failed")
		}
	}
	return result
}

// MemoryCache is a process-local cache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.SolverResult
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]models.SolverResult)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (models.SolverResult, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, result models.SolverResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
	return nil
}

// Len returns the number of cached results
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NoOpCache is a cache that doesn't cache anything (for testing)
type NoOpCache struct{}

func (c *NoOpCache) Get(ctx context.Context, key string) (models.SolverResult, bool, error) {
	return models.SolverResult{}, false, nil
}

func (c *NoOpCache) Set(ctx context.Context, key string, result models.SolverResult) error {
	return nil
}
