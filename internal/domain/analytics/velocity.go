package analytics

import (
	"sort"

	"github.com/okian/expwatch/internal/domain/model"
)

// MinHours is the elapsed time used when both window endpoints share a
// timestamp: one second, in hours.
const MinHours = 1.0 / 3600

// VelocityEngine estimates exp per hour from the first and last snapshot
// of an entity inside a window. Intermediate samples are ignored.
type VelocityEngine struct {
	norm *Normalizer
}

// NewVelocityEngine creates a VelocityEngine.
func NewVelocityEngine(norm *Normalizer) *VelocityEngine {
	return &VelocityEngine{norm: norm}
}

// Estimate computes the velocity of name inside w. ok is false when fewer
// than two snapshots fall in the window.
func (v *VelocityEngine) Estimate(name string, w model.Window, snaps []model.Snapshot) (model.Velocity, bool, error) {
	var samples []model.Snapshot
	for _, s := range snaps {
		if s.Name == name && w.Contains(s.Timestamp) {
			samples = append(samples, s)
		}
	}
	return v.estimate(name, samples)
}

// EstimateAll estimates every name in one pass over snaps. Names without
// enough data are absent from the result.
func (v *VelocityEngine) EstimateAll(names []string, w model.Window, snaps []model.Snapshot) (map[string]model.Velocity, error) {
	wanted := make(map[string][]model.Snapshot, len(names))
	for _, n := range names {
		wanted[n] = nil
	}
	for _, s := range snaps {
		if _, ok := wanted[s.Name]; ok && w.Contains(s.Timestamp) {
			wanted[s.Name] = append(wanted[s.Name], s)
		}
	}

	out := make(map[string]model.Velocity, len(names))
	for name, samples := range wanted {
		vel, ok, err := v.estimate(name, samples)
		if err != nil {
			return nil, err
		}
		if ok {
			out[name] = vel
		}
	}
	return out, nil
}

func (v *VelocityEngine) estimate(name string, samples []model.Snapshot) (model.Velocity, bool, error) {
	if len(samples) < 2 {
		return model.Velocity{}, false, nil
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	first, err := v.norm.Normalize(samples[0])
	if err != nil {
		return model.Velocity{}, false, err
	}
	last, err := v.norm.Normalize(samples[len(samples)-1])
	if err != nil {
		return model.Velocity{}, false, err
	}

	hours := max(last.Timestamp.Sub(first.Timestamp).Hours(), MinHours)
	gained := last.TotalExp - first.TotalExp
	return model.Velocity{
		Name:    name,
		Start:   first,
		End:     last,
		Hours:   hours,
		Gained:  gained,
		PerHour: float64(gained) / hours,
	}, true, nil
}
