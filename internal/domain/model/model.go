// Package model contains domain models passed between layers.
package model

import "time"

// Identifier is the opaque upstream id a character name resolves to.
type Identifier string

// Stats is the current progress of one character as reported upstream.
type Stats struct {
	World string
	Level int
	Exp   int64 // experience inside the current level
}

// Snapshot is one point-in-time measurement of a character. It is
// immutable once appended; identity is (Name, Timestamp).
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"nickname"`
	World     string    `json:"world"`
	Level     int       `json:"level"`
	Exp       int64     `json:"exp"`
}

// Normalized is a Snapshot placed on the cross-level cumulative scale.
type Normalized struct {
	Snapshot
	TotalExp int64   `json:"total_exp"`
	Percent  float64 `json:"percent"`
}

// RankedEntity is one row of a ranking computed at a single timestamp.
type RankedEntity struct {
	Rank     int     `json:"rank"`
	Name     string  `json:"nickname"`
	World    string  `json:"world"`
	Level    int     `json:"level"`
	Percent  float64 `json:"percent"`
	TotalExp int64   `json:"total_exp"`
}

// Window is an inclusive time range.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// Velocity is a two-point estimate of experience gained per hour.
type Velocity struct {
	Name    string     `json:"nickname"`
	Start   Normalized `json:"start"`
	End     Normalized `json:"end"`
	Hours   float64    `json:"hours"`
	Gained  int64      `json:"gained"`
	PerHour float64    `json:"per_hour"`
}
