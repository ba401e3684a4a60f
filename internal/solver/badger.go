package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/todmy/logic-refine/pkg/models"
)

const badgerKeyPrefix = "solve:"

// BadgerConfig configures the persistent result cache
type BadgerConfig struct {
	Path     string
	InMemory bool
	TTL      time.Duration
	Logger   logrus.FieldLogger
}

// BadgerCache persists solver results in a BadgerDB
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadgerCache opens the cache at cfg.Path, or in memory
func OpenBadgerCache(cfg BadgerConfig) (*BadgerCache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerCache{db: db, ttl: cfg.TTL}, nil
}

func (c *BadgerCache) Get(ctx context.Context, key string) (models.SolverResult, bool, error) {
	var result models.SolverResult
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.SolverResult{}, false, nil
	}
	if err != nil {
		return models.SolverResult{}, false, fmt.Errorf("read cached result: %w", err)
	}
	return result, true, nil
}

func (c *BadgerCache) Set(ctx context.Context, key string, result models.SolverResult) error {
	val, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(badgerKeyPrefix+key), val)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Close closes the underlying database
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
