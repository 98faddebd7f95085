// Package leveltable holds the static per-level experience table used to
// place (level, in-level exp) pairs on one cumulative scale.
package leveltable

import (
	"fmt"
	"sort"
)

// Entry describes one level. BaseExp is the cumulative total at 0% of the
// level and RequiredExp is the span of the level.
type Entry struct {
	Level       int   `koanf:"level"`
	BaseExp     int64 `koanf:"base_exp"`
	RequiredExp int64 `koanf:"required_exp"`
}

// Table is an immutable level lookup. Build it once at startup and share it.
type Table struct {
	entries map[int]Entry
	levels  []int // sorted ascending
}

// New builds a table from explicit entries. Levels must be unique and
// RequiredExp positive; cumulative consistency is checked by Validate.
func New(entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidTable)
	}
	t := &Table{
		entries: make(map[int]Entry, len(entries)),
		levels:  make([]int, 0, len(entries)),
	}
	for _, e := range entries {
		if _, dup := t.entries[e.Level]; dup {
			return nil, fmt.Errorf("%w: duplicate level %d", ErrInvalidTable, e.Level)
		}
		if e.RequiredExp <= 0 {
			return nil, fmt.Errorf("%w: level %d requires %d exp", ErrInvalidTable, e.Level, e.RequiredExp)
		}
		t.entries[e.Level] = e
		t.levels = append(t.levels, e.Level)
	}
	sort.Ints(t.levels)
	return t, nil
}

// FromRequirements builds a contiguous table starting at firstLevel whose
// base cumulative exp is firstBase. required[i] is the span of level
// firstLevel+i; each following base is the previous base plus its span.
func FromRequirements(firstLevel int, firstBase int64, required []int64) (*Table, error) {
	entries := make([]Entry, len(required))
	base := firstBase
	for i, req := range required {
		entries[i] = Entry{Level: firstLevel + i, BaseExp: base, RequiredExp: req}
		base += req
	}
	return New(entries)
}

// Lookup returns the entry for level.
func (t *Table) Lookup(level int) (Entry, error) {
	e, ok := t.entries[level]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", ErrUnknownLevel, level)
	}
	return e, nil
}

// BaseExp returns the cumulative exp at 0% of level.
func (t *Table) BaseExp(level int) (int64, error) {
	e, err := t.Lookup(level)
	if err != nil {
		return 0, err
	}
	return e.BaseExp, nil
}

// Levels returns the provisioned levels in ascending order.
func (t *Table) Levels() []int {
	out := make([]int, len(t.levels))
	copy(out, t.levels)
	return out
}

// Range returns the lowest and highest provisioned level.
func (t *Table) Range() (lo, hi int) {
	return t.levels[0], t.levels[len(t.levels)-1]
}

// Validate checks that for every pair of adjacent levels L-1, L the base of
// L is at least base(L-1)+required(L-1), so crossing a level boundary never
// lowers the cumulative total.
func (t *Table) Validate() error {
	for i := 1; i < len(t.levels); i++ {
		prev := t.entries[t.levels[i-1]]
		cur := t.entries[t.levels[i]]
		if cur.Level != prev.Level+1 {
			continue
		}
		if cur.BaseExp < prev.BaseExp+prev.RequiredExp {
			return fmt.Errorf("%w: level %d base %d < %d", ErrInconsistent, cur.Level, cur.BaseExp, prev.BaseExp+prev.RequiredExp)
		}
	}
	return nil
}
