package refinement

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/todmy/logic-refine/pkg/models"
)

// Batch runs independent sessions for many problems on a bounded worker pool
type Batch struct {
	controller *Controller
	workers    int
	logger     logrus.FieldLogger
	sink       func(models.Trace)
	mu         sync.Mutex
}

// BatchOption configures a Batch
type BatchOption func(*Batch)

// WithSink is called with every finished trace, one call at a time
func WithSink(fn func(models.Trace)) BatchOption {
	return func(b *Batch) {
		b.sink = fn
	}
}

// WithBatchLogger sets the batch logger
func WithBatchLogger(l logrus.FieldLogger) BatchOption {
	return func(b *Batch) {
		b.logger = l
	}
}

// NewBatch creates a batch runner. workers <= 0 means 4.
func NewBatch(controller *Controller, workers int, opts ...BatchOption) *Batch {
	if workers <= 0 {
		workers = 4
	}
	b := &Batch{
		controller: controller,
		workers:    workers,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run runs one session per problem and returns the traces in input order.
// A session that fails keeps its partial trace with Error set; the batch continues.
func (b *Batch) Run(ctx context.Context, problems []models.Problem) []models.Trace {
	traces := make([]models.Trace, len(problems))

	var eg errgroup.Group
	eg.SetLimit(b.workers)
	for i, p := range problems {
		eg.Go(func() error {
			trace, err := b.controller.Run(ctx, p)
			if err != nil {
				b.logger.WithError(err).WithField("problem", p.ID).Warn("session failed")
			}
			traces[i] = trace

			if b.sink != nil {
				b.mu.Lock()
				b.sink(trace)
				b.mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	return traces
}
