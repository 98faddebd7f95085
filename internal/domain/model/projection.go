package model

// Outcome classifies a projection result.
type Outcome string

// Projection outcomes. OutcomeInsufficientData marks a missing velocity
// estimate and must not be confused with a computed non-positive speed.
const (
	OutcomeProjected         Outcome = "PROJECTED"
	OutcomeAlreadyAhead      Outcome = "ALREADY_AHEAD"
	OutcomeUnreachableSlower Outcome = "UNREACHABLE_SLOWER"
	OutcomeLeading           Outcome = "LEADING"
	OutcomeAchieved          Outcome = "ACHIEVED"
	OutcomeStalled           Outcome = "STALLED"
	OutcomeInsufficientData  Outcome = "INSUFFICIENT_DATA"
)

// Overtake projects when Name reaches the entity ranked directly above it.
// Hours is only meaningful when Outcome is OutcomeProjected.
type Overtake struct {
	Name     string  `json:"nickname"`
	Rank     int     `json:"rank"`
	Target   string  `json:"target,omitempty"`
	Gap      int64   `json:"gap"`
	SpeedGap float64 `json:"speed_gap"`
	Hours    float64 `json:"hours"`
	Outcome  Outcome `json:"outcome"`
}

// Milestone projects when Name reaches TargetExp total experience.
type Milestone struct {
	Name      string  `json:"nickname"`
	TargetExp int64   `json:"target_exp"`
	Remaining int64   `json:"remaining"`
	Hours     float64 `json:"hours"`
	Outcome   Outcome `json:"outcome"`
}
