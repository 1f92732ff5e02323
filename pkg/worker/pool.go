package worker

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selivandex/vollab/pkg/logger"
)

// Task is one unit of work executed by a pool.
type Task func(ctx context.Context) error

// Pool runs a batch of independent tasks with bounded parallelism. It is
// transient: build one, run one batch, let it go. Tasks must not share
// mutable state.
type Pool struct {
	limit int
}

// NewPool creates a pool. A non-positive limit means one worker per CPU.
func NewPool(limit int) *Pool {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return &Pool{limit: limit}
}

// Run executes all tasks and waits for completion. The first task error
// cancels the remaining tasks and is returned.
func (p *Pool) Run(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	logger.Debug("worker pool started",
		zap.Int("tasks", len(tasks)),
		zap.Int("limit", p.limit),
	)

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return task(ctx)
		})
	}

	return g.Wait()
}
