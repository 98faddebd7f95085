// Package analytics derives read-only progression views from ledger
// snapshots: cumulative totals, rankings, velocities and projections.
package analytics

import (
	"fmt"
	"time"

	"github.com/okian/expwatch/internal/domain/leveltable"
	"github.com/okian/expwatch/internal/domain/model"
)

const percentScale = 100

// Normalizer converts (level, in-level exp) into cumulative total exp.
type Normalizer struct {
	table *leveltable.Table
}

// NewNormalizer creates a Normalizer bound to table.
func NewNormalizer(table *leveltable.Table) *Normalizer {
	return &Normalizer{table: table}
}

// Normalize places s on the cumulative scale. Levels missing from the table
// fail with leveltable.ErrUnknownLevel; no value is guessed for them.
func (n *Normalizer) Normalize(s model.Snapshot) (model.Normalized, error) {
	e, err := n.table.Lookup(s.Level)
	if err != nil {
		return model.Normalized{}, fmt.Errorf("normalize %s at %s: %w", s.Name, s.Timestamp.Format(time.RFC3339), err)
	}
	return model.Normalized{
		Snapshot: s,
		TotalExp: e.BaseExp + s.Exp,
		Percent:  float64(s.Exp) / float64(e.RequiredExp) * percentScale,
	}, nil
}

// NormalizeAll normalizes every snapshot, stopping at the first failure.
func (n *Normalizer) NormalizeAll(snaps []model.Snapshot) ([]model.Normalized, error) {
	out := make([]model.Normalized, len(snaps))
	for i, s := range snaps {
		ns, err := n.Normalize(s)
		if err != nil {
			return nil, err
		}
		out[i] = ns
	}
	return out, nil
}
