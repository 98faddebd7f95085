// Package collector samples the current level and experience of a roster of
// characters. A run resolves every name, fetches stats for the names that
// resolved, and stamps all resulting snapshots with one shared timestamp.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/expwatch/internal/adapters/worker"
	"github.com/okian/expwatch/internal/domain/model"
	"github.com/okian/expwatch/pkg/logger"
	"github.com/okian/expwatch/pkg/metrics"
)

// Default collector configuration constants.
const (
	defaultConcurrency = 10
)

// Stage names a step of a collection run.
type Stage string

// Collection stages.
const (
	StageResolve Stage = "resolve"
	StageFetch   Stage = "fetch"
)

// Resolver maps a character name to its upstream identifier.
type Resolver interface {
	Resolve(ctx context.Context, name string) (model.Identifier, error)
}

// Fetcher returns the current stats for an identifier.
type Fetcher interface {
	Fetch(ctx context.Context, id model.Identifier) (model.Stats, error)
}

// forgetter is implemented by resolvers that cache identifiers.
type forgetter interface {
	Forget(name string)
}

// Failure records why one name produced no snapshot.
type Failure struct {
	Name  string
	Stage Stage
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Stage, f.Name, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// MarshalJSON renders Err as a string.
func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Name  string `json:"nickname"`
		Stage Stage  `json:"stage"`
		Error string `json:"error"`
	}{f.Name, f.Stage, msg})
}

// Batch is the outcome of one run. Snapshots and Failures follow roster order.
type Batch struct {
	RunID     uuid.UUID        `json:"run_id"`
	Timestamp time.Time        `json:"timestamp"`
	Attempted int              `json:"attempted"`
	Snapshots []model.Snapshot `json:"snapshots"`
	Failures  []Failure        `json:"failures"`
}

// Collector runs collection batches. It is safe for concurrent use; the
// caller decides whether runs may overlap.
type Collector struct {
	resolver    Resolver
	fetcher     Fetcher
	concurrency int
	now         func() time.Time
	logger      logger.Logger
}

// New creates a Collector.
func New(resolver Resolver, fetcher Fetcher, opts ...Option) *Collector {
	c := &Collector{
		resolver:    resolver,
		fetcher:     fetcher,
		concurrency: defaultConcurrency,
		now:         time.Now,
		logger:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("collector")
	return c
}

type entry struct {
	idx  int
	name string
}

type resolved struct {
	entry
	id model.Identifier
}

// Run performs one collection over roster. Per-name failures are reported
// in the batch and never abort the run. When names were attempted but none
// resolved, the (empty) batch is returned together with ErrUpstreamOutage.
func (c *Collector) Run(ctx context.Context, roster []string) (Batch, error) {
	start := time.Now()
	names := NormalizeRoster(roster)
	batch := Batch{
		RunID:     uuid.New(),
		Timestamp: c.now().UTC().Truncate(time.Second),
		Attempted: len(names),
	}
	log := c.logger.With(logger.String("run_id", batch.RunID.String()))
	if len(names) == 0 {
		log.Info(ctx, "empty roster, nothing to collect")
		return batch, nil
	}

	resolveStage := worker.NewStage[entry, model.Identifier]("resolve", func(ctx context.Context, e entry) (model.Identifier, error) {
		return c.resolver.Resolve(ctx, e.name)
	}, worker.WithLimit(c.concurrency), worker.WithLogger(log))

	fetchStage := worker.NewStage[resolved, model.Stats]("fetch", func(ctx context.Context, r resolved) (model.Stats, error) {
		return c.fetcher.Fetch(ctx, r.id)
	}, worker.WithLimit(c.concurrency), worker.WithLogger(log))

	in := make(chan entry)
	go func() {
		defer close(in)
		for i, n := range names {
			in <- entry{idx: i, name: n}
		}
	}()

	// Resolved names flow into the fetch stage as soon as they are known.
	var (
		failures      []indexedFailure
		resolveFailed []indexedFailure
		resolvedCount int
	)
	fetchIn := make(chan resolved)
	go func() {
		defer close(fetchIn)
		for r := range resolveStage.Run(ctx, in) {
			if r.Err != nil {
				resolveFailed = append(resolveFailed, indexedFailure{r.In.idx, Failure{Name: r.In.name, Stage: StageResolve, Err: r.Err}})
				continue
			}
			resolvedCount++
			fetchIn <- resolved{entry: r.In, id: r.Out}
		}
	}()

	snaps := make([]*model.Snapshot, len(names))
	for r := range fetchStage.Run(ctx, fetchIn) {
		if r.Err != nil {
			failures = append(failures, indexedFailure{r.In.idx, Failure{Name: r.In.name, Stage: StageFetch, Err: r.Err}})
			if f, ok := c.resolver.(forgetter); ok {
				f.Forget(r.In.name)
			}
			continue
		}
		snaps[r.In.idx] = &model.Snapshot{
			Timestamp: batch.Timestamp,
			Name:      r.In.name,
			World:     r.Out.World,
			Level:     r.Out.Level,
			Exp:       r.Out.Exp,
		}
	}
	// fetchIn is closed only after the resolve consumer finished, so its
	// results are visible here.
	failures = append(failures, resolveFailed...)

	for _, s := range snaps {
		if s != nil {
			batch.Snapshots = append(batch.Snapshots, *s)
		}
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].idx < failures[j].idx })
	for _, f := range failures {
		batch.Failures = append(batch.Failures, f.Failure)
		metrics.RecordCollectorFailure(string(f.Stage))
		log.Warn(ctx, "entity skipped",
			logger.String("nickname", f.Name),
			logger.String("stage", string(f.Stage)),
			logger.Error(f.Err),
		)
	}

	took := time.Since(start)
	result := metrics.ResultSuccess
	var err error
	switch {
	case resolvedCount == 0:
		result = metrics.ResultOutage
		err = fmt.Errorf("%w: %d names attempted", ErrUpstreamOutage, len(names))
		metrics.RecordErrorByComponent("collector", "upstream_outage")
	case len(batch.Failures) > 0:
		result = metrics.ResultPartial
	}
	metrics.RecordCollectorRun(result, batch.Attempted, len(batch.Snapshots), took)

	log.Info(ctx, "collection finished",
		logger.Time("timestamp", batch.Timestamp),
		logger.Int("attempted", batch.Attempted),
		logger.Int("collected", len(batch.Snapshots)),
		logger.Int("failed", len(batch.Failures)),
		logger.Duration("took", took),
	)
	return batch, err
}

type indexedFailure struct {
	idx int
	Failure
}

// NormalizeRoster trims names, drops blanks and keeps the first occurrence
// of each duplicate.
func NormalizeRoster(roster []string) []string {
	out := make([]string, 0, len(roster))
	seen := make(map[string]struct{}, len(roster))
	for _, n := range roster {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
