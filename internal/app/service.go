// Package service composes collection and the progression analytics into
// the operations used by the HTTP API, the scheduler and the one-shot
// collector binary.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/expwatch/internal/adapters/ledger"
	"github.com/okian/expwatch/internal/collector"
	"github.com/okian/expwatch/internal/domain/analytics"
	"github.com/okian/expwatch/internal/domain/leveltable"
	"github.com/okian/expwatch/internal/domain/model"
	"github.com/okian/expwatch/pkg/logger"
	"github.com/okian/expwatch/pkg/metrics"
)

// Runner performs one collection run over a roster.
type Runner interface {
	Run(ctx context.Context, roster []string) (collector.Batch, error)
}

// Ranking is the ranking computed at the latest ledger timestamp.
type Ranking struct {
	Timestamp time.Time            `json:"timestamp"`
	Total     int                  `json:"total"`
	Entries   []model.RankedEntity `json:"entries"`
}

// Window selects the samples a velocity estimate is taken from. A zero To
// is the latest sample; a zero From is To minus Span, and a zero Span is
// the configured default.
type Window struct {
	From time.Time
	To   time.Time
	Span time.Duration
}

// VelocityEntry holds the estimate for one name. Velocity is nil when the
// window holds fewer than two samples of that name.
type VelocityEntry struct {
	Name     string          `json:"nickname"`
	Velocity *model.Velocity `json:"velocity"`
}

// VelocityReport is the answer to a velocity query.
type VelocityReport struct {
	Window  model.Window    `json:"window"`
	Entries []VelocityEntry `json:"entries"`
}

// OvertakeEntry is an overtake projection with its wall-clock estimate.
type OvertakeEntry struct {
	model.Overtake
	ETA *time.Time `json:"eta,omitempty"`
}

// OvertakeReport is the answer to an overtake query.
type OvertakeReport struct {
	Timestamp time.Time       `json:"timestamp"`
	Window    model.Window    `json:"window"`
	Entries   []OvertakeEntry `json:"entries"`
}

// MilestoneEntry is a milestone projection with its wall-clock estimate.
type MilestoneEntry struct {
	model.Milestone
	ETA *time.Time `json:"eta,omitempty"`
}

// MilestoneReport is the answer to a milestone query.
type MilestoneReport struct {
	Timestamp time.Time        `json:"timestamp"`
	Window    model.Window     `json:"window"`
	Level     int              `json:"level"`
	TargetExp int64            `json:"target_exp"`
	Entries   []MilestoneEntry `json:"entries"`
}

// Service implements the operations of the tracker.
type Service struct {
	runMu sync.Mutex // one collection run at a time
	mu    sync.RWMutex

	runner Runner
	ledger ledger.Ledger

	rank       *analytics.RankEngine
	velocity   *analytics.VelocityEngine
	projection *analytics.ProjectionEngine

	// Configuration
	roster         []string
	topN           int
	maxLimit       int
	window         time.Duration
	milestoneLevel int

	// State
	lastBatch *collector.Batch
	runs      int

	logger logger.Logger
}

// New constructs a Service over a collector, a ledger and a level table.
func New(runner Runner, l ledger.Ledger, table *leveltable.Table, opts ...Option) *Service {
	norm := analytics.NewNormalizer(table)
	s := &Service{
		runner:         runner,
		ledger:         l,
		rank:           analytics.NewRankEngine(norm),
		velocity:       analytics.NewVelocityEngine(norm),
		projection:     analytics.NewProjectionEngine(table),
		topN:           defaultTopN,
		maxLimit:       defaultMaxLimit,
		window:         defaultWindow,
		milestoneLevel: defaultMilestoneLevel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Collect runs one collection over the roster and appends the snapshots
// to the ledger. Runs never overlap. On an upstream outage nothing is
// appended and the batch is returned together with the error.
func (s *Service) Collect(ctx context.Context) (collector.Batch, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	batch, err := s.runner.Run(ctx, s.roster)
	s.remember(batch)
	if err != nil {
		return batch, err
	}
	if len(batch.Snapshots) == 0 {
		return batch, nil
	}

	if err := s.ledger.Append(ctx, batch.Snapshots); err != nil {
		return batch, fmt.Errorf("append batch %s: %w", batch.RunID, err)
	}
	metrics.UpdateTrackedEntities(len(batch.Snapshots))
	s.logger.Info(ctx, "batch appended",
		logger.String("run_id", batch.RunID.String()),
		logger.Int("snapshots", len(batch.Snapshots)),
		logger.Int("failures", len(batch.Failures)),
	)
	return batch, nil
}

func (s *Service) remember(b collector.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBatch = &b
	s.runs++
}

// LatestRanking ranks the snapshots of the latest ledger timestamp and
// returns the first limit entries. limit <= 0 selects the default size;
// larger limits are capped.
func (s *Service) LatestRanking(ctx context.Context, limit int) (Ranking, error) {
	var out Ranking
	err := s.observe("ranking", func() error {
		ts, ranked, err := s.latestRanked(ctx)
		if err != nil {
			return err
		}
		out = Ranking{Timestamp: ts, Total: len(ranked), Entries: analytics.Top(ranked, s.clampLimit(limit))}
		return nil
	})
	return out, err
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.topN
	}
	return min(limit, s.maxLimit)
}

// Snapshots returns the history of names between from and to, newest
// first. A zero bound leaves that side open. No names selects the current
// top entities.
func (s *Service) Snapshots(ctx context.Context, names []string, from, to time.Time) ([]model.Snapshot, error) {
	var out []model.Snapshot
	err := s.observe("snapshots", func() error {
		selected, err := s.selection(ctx, names)
		if err != nil {
			return err
		}
		rows, err := s.read(ctx, from, to)
		if err != nil {
			return err
		}

		want := toSet(selected)
		for _, r := range rows {
			if _, ok := want[r.Name]; ok {
				out = append(out, r)
			}
		}
		// ledger order is oldest first
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return nil
	})
	return out, err
}

func (s *Service) read(ctx context.Context, from, to time.Time) ([]model.Snapshot, error) {
	if from.IsZero() && to.IsZero() {
		return s.ledger.ReadAll(ctx)
	}
	if to.IsZero() {
		to = time.Unix(0, 1<<62).UTC()
	}
	return s.ledger.ReadRange(ctx, from, to)
}

// Names returns every name present in the ledger, sorted.
func (s *Service) Names(ctx context.Context) ([]string, error) {
	var out []string
	err := s.observe("names", func() error {
		rows, err := s.ledger.ReadAll(ctx)
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(rows))
		for _, r := range rows {
			if _, ok := seen[r.Name]; !ok {
				seen[r.Name] = struct{}{}
				out = append(out, r.Name)
			}
		}
		sort.Strings(out)
		return nil
	})
	return out, err
}

// Velocity estimates exp per hour for names inside w. A zero window uses
// the default duration ending at the latest sample.
func (s *Service) Velocity(ctx context.Context, names []string, w Window) (VelocityReport, error) {
	var out VelocityReport
	err := s.observe("velocity", func() error {
		selected, err := s.selection(ctx, names)
		if err != nil {
			return err
		}
		win, err := s.resolveWindow(ctx, w)
		if err != nil {
			return err
		}
		vels, err := s.estimate(ctx, selected, win)
		if err != nil {
			return err
		}

		out = VelocityReport{Window: win, Entries: make([]VelocityEntry, len(selected))}
		for i, name := range selected {
			out.Entries[i] = VelocityEntry{Name: name, Velocity: vels[name]}
		}
		return nil
	})
	return out, err
}

// Overtake projects, for every selected name present in the latest
// ranking, when it reaches the entity ranked directly above it.
func (s *Service) Overtake(ctx context.Context, names []string, w Window) (OvertakeReport, error) {
	var out OvertakeReport
	err := s.observe("overtake", func() error {
		ts, ranked, err := s.latestRanked(ctx)
		if err != nil {
			return err
		}
		selected := names
		if len(selected) == 0 {
			selected = namesOf(analytics.Top(ranked, s.topN))
		}
		win, err := s.resolveWindow(ctx, w)
		if err != nil {
			return err
		}

		pos := make(map[string]int, len(ranked))
		for i, r := range ranked {
			pos[r.Name] = i
		}
		// targets need a velocity too
		wanted := make([]string, 0, 2*len(selected))
		for _, name := range selected {
			if i, ok := pos[name]; ok {
				wanted = append(wanted, name)
				if above := analytics.Above(ranked, i); above != nil {
					wanted = append(wanted, above.Name)
				}
			}
		}
		vels, err := s.estimate(ctx, wanted, win)
		if err != nil {
			return err
		}

		out = OvertakeReport{Timestamp: ts, Window: win}
		for _, name := range selected {
			i, ok := pos[name]
			if !ok {
				continue
			}
			above := analytics.Above(ranked, i)
			var targetVel *model.Velocity
			if above != nil {
				targetVel = vels[above.Name]
			}
			o := s.projection.Overtake(ranked[i], above, vels[name], targetVel)
			entry := OvertakeEntry{Overtake: o}
			if o.Outcome == model.OutcomeProjected {
				entry.ETA = eta(ts, o.Hours)
			}
			out.Entries = append(out.Entries, entry)
		}
		return nil
	})
	return out, err
}

// Milestone projects when every selected name present in the latest
// ranking reaches 0% of level. level <= 0 uses the configured level.
func (s *Service) Milestone(ctx context.Context, names []string, w Window, level int) (MilestoneReport, error) {
	var out MilestoneReport
	err := s.observe("milestone", func() error {
		if level <= 0 {
			level = s.milestoneLevel
		}
		target, err := s.projection.MilestoneTarget(level)
		if err != nil {
			return err
		}
		ts, ranked, err := s.latestRanked(ctx)
		if err != nil {
			return err
		}
		selected := names
		if len(selected) == 0 {
			selected = namesOf(analytics.Top(ranked, s.topN))
		}
		win, err := s.resolveWindow(ctx, w)
		if err != nil {
			return err
		}
		vels, err := s.estimate(ctx, selected, win)
		if err != nil {
			return err
		}

		byName := make(map[string]model.RankedEntity, len(ranked))
		for _, r := range ranked {
			byName[r.Name] = r
		}
		out = MilestoneReport{Timestamp: ts, Window: win, Level: level, TargetExp: target}
		for _, name := range selected {
			me, ok := byName[name]
			if !ok {
				continue
			}
			m := s.projection.Milestone(me, vels[name], target)
			entry := MilestoneEntry{Milestone: m}
			if m.Outcome == model.OutcomeProjected {
				entry.ETA = eta(ts, m.Hours)
			}
			out.Entries = append(out.Entries, entry)
		}
		return nil
	})
	return out, err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"roster":         len(s.roster),
		"runs":           s.runs,
		"topN":           s.topN,
		"window":         s.window.String(),
		"milestoneLevel": s.milestoneLevel,
	}

	rows := s.ledger.Len(ctx)
	stats["ledgerRows"] = rows
	metrics.UpdateLedgerRows(rows)

	if latest, ok, err := s.ledger.LatestTimestamp(ctx); err == nil && ok {
		stats["latestTimestamp"] = latest
	}
	if b := s.lastBatch; b != nil {
		stats["lastRun"] = map[string]interface{}{
			"runId":     b.RunID.String(),
			"timestamp": b.Timestamp,
			"attempted": b.Attempted,
			"snapshots": len(b.Snapshots),
			"failures":  len(b.Failures),
		}
	}
	return stats
}

// Close releases the ledger.
func (s *Service) Close() error {
	return s.ledger.Close()
}

// latestRanked ranks every snapshot at the latest ledger timestamp.
func (s *Service) latestRanked(ctx context.Context) (time.Time, []model.RankedEntity, error) {
	ts, ok, err := s.ledger.LatestTimestamp(ctx)
	if err != nil {
		return time.Time{}, nil, err
	}
	if !ok {
		return time.Time{}, nil, ErrNoData
	}
	snaps, err := s.ledger.ReadRange(ctx, ts, ts)
	if err != nil {
		return time.Time{}, nil, err
	}
	ranked, err := s.rank.Rank(snaps)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("rank %s: %w", ts.Format(time.RFC3339), err)
	}
	return ts, ranked, nil
}

// selection returns names, or the current top entities when names is empty.
func (s *Service) selection(ctx context.Context, names []string) ([]string, error) {
	if len(names) > 0 {
		return names, nil
	}
	_, ranked, err := s.latestRanked(ctx)
	if err != nil {
		return nil, err
	}
	return namesOf(analytics.Top(ranked, s.topN)), nil
}

func (s *Service) resolveWindow(ctx context.Context, w Window) (model.Window, error) {
	out := model.Window{From: w.From, To: w.To}
	if out.To.IsZero() {
		latest, ok, err := s.ledger.LatestTimestamp(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, ErrNoData
		}
		out.To = latest
	}
	if out.From.IsZero() {
		span := w.Span
		if span <= 0 {
			span = s.window
		}
		out.From = out.To.Add(-span)
	}
	return out, nil
}

func (s *Service) estimate(ctx context.Context, names []string, w model.Window) (map[string]*model.Velocity, error) {
	rows, err := s.ledger.ReadRange(ctx, w.From, w.To)
	if err != nil {
		return nil, err
	}
	vels, err := s.velocity.EstimateAll(names, w, rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.Velocity, len(vels))
	for name, v := range vels {
		out[name] = &v
	}
	return out, nil
}

func (s *Service) observe(query string, fn func() error) error {
	start := time.Now()
	err := fn()
	result := metrics.ResultSuccess
	if err != nil && !errors.Is(err, ErrNoData) {
		result = metrics.ResultFailure
		metrics.RecordErrorByComponent("service", query)
	}
	metrics.RecordAnalyticsQuery(query, result, time.Since(start))
	return err
}

func eta(from time.Time, hours float64) *time.Time {
	t := analytics.ETA(from, hours)
	if t.IsZero() {
		return nil
	}
	return &t
}

func namesOf(ranked []model.RankedEntity) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Name
	}
	return out
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}
