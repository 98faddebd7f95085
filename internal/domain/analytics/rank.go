package analytics

import (
	"sort"
	"time"

	"github.com/okian/expwatch/internal/domain/model"
)

// RankEngine orders the snapshots of one timestamp by total exp.
type RankEngine struct {
	norm *Normalizer
}

// NewRankEngine creates a RankEngine.
func NewRankEngine(norm *Normalizer) *RankEngine {
	return &RankEngine{norm: norm}
}

// Rank sorts snaps by total exp descending and assigns 1-based positional
// ranks. Equal totals keep their input order.
func (r *RankEngine) Rank(snaps []model.Snapshot) ([]model.RankedEntity, error) {
	normalized, err := r.norm.NormalizeAll(snaps)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].TotalExp > normalized[j].TotalExp
	})

	out := make([]model.RankedEntity, len(normalized))
	for i, n := range normalized {
		out[i] = model.RankedEntity{
			Rank:     i + 1,
			Name:     n.Name,
			World:    n.World,
			Level:    n.Level,
			Percent:  n.Percent,
			TotalExp: n.TotalExp,
		}
	}
	return out, nil
}

// LatestSnapshots returns the latest timestamp in all and the snapshots
// captured at it, in their original order. ok is false when all is empty.
func LatestSnapshots(all []model.Snapshot) (latest time.Time, snaps []model.Snapshot, ok bool) {
	if len(all) == 0 {
		return time.Time{}, nil, false
	}
	latest = all[0].Timestamp
	for _, s := range all[1:] {
		if s.Timestamp.After(latest) {
			latest = s.Timestamp
		}
	}
	for _, s := range all {
		if s.Timestamp.Equal(latest) {
			snaps = append(snaps, s)
		}
	}
	return latest, snaps, true
}

// Top returns the first n entries of ranked. n <= 0 returns all of them.
func Top(ranked []model.RankedEntity, n int) []model.RankedEntity {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// Above returns the entity ranked directly above the one at index i.
func Above(ranked []model.RankedEntity, i int) *model.RankedEntity {
	if i <= 0 || i >= len(ranked) {
		return nil
	}
	return &ranked[i-1]
}
