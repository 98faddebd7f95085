// Package worker runs bounded stages of work: each stage executes one task
// per input with at most K tasks in flight and reports every outcome.
package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/expwatch/pkg/logger"
	"github.com/okian/expwatch/pkg/metrics"
)

// Default stage configuration constants.
const (
	defaultLimit = 10
)

// Task processes one input.
type Task[In, Out any] func(ctx context.Context, in In) (Out, error)

// Result is the outcome of one task. Exactly one of Out or Err is meaningful.
type Result[In, Out any] struct {
	In  In
	Out Out
	Err error
}

// Stage executes a Task over a stream of inputs with bounded concurrency.
// A failing task never stops the stage; its error is returned in the Result.
type Stage[In, Out any] struct {
	name   string
	task   Task[In, Out]
	limit  int
	logger logger.Logger
}

// NewStage creates a stage named name running task.
func NewStage[In, Out any](name string, task Task[In, Out], opts ...Option) *Stage[In, Out] {
	s := settings{limit: defaultLimit, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Stage[In, Out]{
		name:   name,
		task:   task,
		limit:  s.limit,
		logger: s.logger.Named(name),
	}
}

// Limit returns the maximum number of concurrent tasks.
func (s *Stage[In, Out]) Limit() int { return s.limit }

// Run consumes in until it is closed and emits one Result per input. The
// returned channel is closed only after every launched task has settled.
// Once ctx is done, remaining inputs are drained and reported with ctx.Err()
// without running the task.
func (s *Stage[In, Out]) Run(ctx context.Context, in <-chan In) <-chan Result[In, Out] {
	out := make(chan Result[In, Out])

	go func() {
		defer close(out)

		var g errgroup.Group
		g.SetLimit(s.limit)
		for item := range in {
			g.Go(func() error {
				out <- s.process(ctx, item)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return out
}

// Map runs the stage over items and returns results in input order.
func (s *Stage[In, Out]) Map(ctx context.Context, items []In) []Result[In, Out] {
	in := make(chan indexed[In])
	go func() {
		defer close(in)
		for i, it := range items {
			in <- indexed[In]{i: i, in: it}
		}
	}()

	inner := &Stage[indexed[In], Out]{
		name:   s.name,
		limit:  s.limit,
		logger: s.logger,
		task: func(ctx context.Context, x indexed[In]) (Out, error) {
			return s.task(ctx, x.in)
		},
	}

	results := make([]Result[In, Out], len(items))
	for r := range inner.Run(ctx, in) {
		results[r.In.i] = Result[In, Out]{In: r.In.in, Out: r.Out, Err: r.Err}
	}
	return results
}

type indexed[T any] struct {
	i  int
	in T
}

func (s *Stage[In, Out]) process(ctx context.Context, item In) Result[In, Out] {
	if err := ctx.Err(); err != nil {
		return Result[In, Out]{In: item, Err: err}
	}

	metrics.AddStageInFlight(s.name, 1)
	start := time.Now()
	out, err := s.task(ctx, item)
	took := time.Since(start)
	metrics.AddStageInFlight(s.name, -1)
	metrics.RecordStageLatency(s.name, took)

	if err != nil {
		s.logger.Debug(ctx, "task failed", logger.Duration("took", took), logger.Error(err))
	}
	return Result[In, Out]{In: item, Out: out, Err: err}
}
