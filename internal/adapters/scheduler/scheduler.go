// Package scheduler triggers collection runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/expwatch/pkg/logger"
	"github.com/okian/expwatch/pkg/metrics"
)

// Job is the work run on every tick.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron schedule in UTC. A tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	cron       *cron.Cron
	entry      cron.EntryID
	spec       string
	job        Job
	runOnStart bool
	logger     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	manual sync.WaitGroup // runs started by Trigger
}

// New parses spec (standard five-field cron or a descriptor such as
// "@every 30m") and binds job to it.
func New(spec string, job Job, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{spec: spec, job: job, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("scheduler")
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cl := cronLogger{l: s.logger}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) run() {
	ctx := s.ctx
	start := time.Now()
	s.logger.Debug(ctx, "tick")
	if err := s.job(ctx); err != nil {
		metrics.RecordErrorByComponent("scheduler", "run")
		s.logger.Error(ctx, "scheduled run failed", logger.Error(err), logger.Duration("took", time.Since(start)))
		return
	}
	s.logger.Info(ctx, "scheduled run finished", logger.Duration("took", time.Since(start)))
}

// Start begins firing ticks. With run-on-start enabled one run is
// triggered immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info(ctx, "scheduler started",
		logger.String("schedule", s.spec),
		logger.Time("next", s.Next()),
	)
	if s.runOnStart {
		s.Trigger()
	}
}

// Trigger runs the job now, outside the schedule, unless a run is active.
func (s *Scheduler) Trigger() {
	job := s.cron.Entry(s.entry).WrappedJob
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		job.Run()
	}()
}

// Next returns the time of the next scheduled tick, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Stop halts the schedule and waits for an active run to finish. When ctx
// expires first the run's context is cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	defer s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.manual.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
