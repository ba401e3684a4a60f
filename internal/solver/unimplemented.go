package solver

import (
	"context"
	"fmt"

	"github.com/todmy/logic-refine/internal/logic"
	"github.com/todmy/logic-refine/pkg/models"
)

// UnimplementedBackend is a declared backend with no prover behind it.
// It always answers Error so callers never mistake it for a logical result.
type UnimplementedBackend struct {
	name models.Backend
}

// NewUnimplementedBackend declares a backend that always reports "not implemented"
func NewUnimplementedBackend(name models.Backend) *UnimplementedBackend {
	return &UnimplementedBackend{name: name}
}

func (b *UnimplementedBackend) Name() models.Backend {
	return b.name
}

func (b *UnimplementedBackend) Prove(ctx context.Context, premises []*logic.Formula, conclusion *logic.Formula) Outcome {
	return Outcome{
		Answer: models.AnswerError,
		Err:    fmt.Sprintf("%s backend not implemented", b.name),
	}
}
