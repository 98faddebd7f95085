package analytics

import (
	"math"
	"time"

	"github.com/okian/expwatch/internal/domain/leveltable"
	"github.com/okian/expwatch/internal/domain/model"
)

// ProjectionEngine extrapolates current totals at constant velocity.
type ProjectionEngine struct {
	table *leveltable.Table
}

// NewProjectionEngine creates a ProjectionEngine bound to table.
func NewProjectionEngine(table *leveltable.Table) *ProjectionEngine {
	return &ProjectionEngine{table: table}
}

// Overtake projects when me catches target, the entity ranked directly
// above it. A nil target, or rank 1, yields OutcomeLeading. A missing
// velocity on either side yields OutcomeInsufficientData.
func (p *ProjectionEngine) Overtake(me model.RankedEntity, target *model.RankedEntity, meVel, targetVel *model.Velocity) model.Overtake {
	out := model.Overtake{Name: me.Name, Rank: me.Rank}
	if target == nil || me.Rank <= 1 {
		out.Outcome = model.OutcomeLeading
		return out
	}

	out.Target = target.Name
	out.Gap = target.TotalExp - me.TotalExp
	if out.Gap <= 0 {
		// rank and totals disagree; surface it instead of reconciling
		out.Outcome = model.OutcomeAlreadyAhead
		return out
	}
	if meVel == nil || targetVel == nil {
		out.Outcome = model.OutcomeInsufficientData
		return out
	}

	out.SpeedGap = meVel.PerHour - targetVel.PerHour
	if out.SpeedGap <= 0 {
		out.Outcome = model.OutcomeUnreachableSlower
		return out
	}
	out.Hours = float64(out.Gap) / out.SpeedGap
	out.Outcome = model.OutcomeProjected
	return out
}

// Milestone projects when me reaches targetExp total experience.
func (p *ProjectionEngine) Milestone(me model.RankedEntity, vel *model.Velocity, targetExp int64) model.Milestone {
	out := model.Milestone{Name: me.Name, TargetExp: targetExp}
	if me.TotalExp >= targetExp {
		out.Outcome = model.OutcomeAchieved
		return out
	}

	out.Remaining = targetExp - me.TotalExp
	switch {
	case vel == nil:
		out.Outcome = model.OutcomeInsufficientData
	case vel.PerHour <= 0:
		out.Outcome = model.OutcomeStalled
	default:
		out.Hours = float64(out.Remaining) / vel.PerHour
		out.Outcome = model.OutcomeProjected
	}
	return out
}

// MilestoneTarget returns the cumulative exp at 0% of level.
func (p *ProjectionEngine) MilestoneTarget(level int) (int64, error) {
	return p.table.BaseExp(level)
}

// ETA converts projected hours into a wall-clock instant after from.
// Negative, NaN or unrepresentably large hours return the zero time.
func ETA(from time.Time, hours float64) time.Time {
	if hours < 0 || math.IsNaN(hours) || hours*float64(time.Hour) > math.MaxInt64 {
		return time.Time{}
	}
	return from.Add(time.Duration(hours * float64(time.Hour)))
}
