package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/expwatch/internal/domain/model"
)

// Memory keeps snapshots in process. It backs tests and the memory driver,
// and serves reads for the CSV ledger.
type Memory struct {
	mu     sync.RWMutex
	rows   []model.Snapshot // ordered by timestamp, then insertion
	closed bool
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements Ledger.
func (m *Memory) Append(ctx context.Context, snaps []model.Snapshot) error {
	if err := validateAll(snaps); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.appendLocked(snaps)
	return nil
}

func (m *Memory) appendLocked(snaps []model.Snapshot) {
	if len(snaps) == 0 {
		return
	}
	inOrder := len(m.rows) == 0 || !snaps[0].Timestamp.Before(m.rows[len(m.rows)-1].Timestamp)
	for i := 1; inOrder && i < len(snaps); i++ {
		inOrder = !snaps[i].Timestamp.Before(snaps[i-1].Timestamp)
	}
	for _, s := range snaps {
		s.Timestamp = s.Timestamp.UTC()
		m.rows = append(m.rows, s)
	}
	if !inOrder {
		sort.SliceStable(m.rows, func(i, j int) bool {
			return m.rows[i].Timestamp.Before(m.rows[j].Timestamp)
		})
	}
}

// ReadAll implements Ledger.
func (m *Memory) ReadAll(ctx context.Context) ([]model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]model.Snapshot, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

// ReadRange implements Ledger.
func (m *Memory) ReadRange(ctx context.Context, from, to time.Time) ([]model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	lo := sort.Search(len(m.rows), func(i int) bool { return !m.rows[i].Timestamp.Before(from) })
	hi := sort.Search(len(m.rows), func(i int) bool { return m.rows[i].Timestamp.After(to) })
	if lo >= hi {
		return nil, nil
	}
	out := make([]model.Snapshot, hi-lo)
	copy(out, m.rows[lo:hi])
	return out, nil
}

// LatestTimestamp implements Ledger.
func (m *Memory) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return time.Time{}, false, ErrClosed
	}
	if len(m.rows) == 0 {
		return time.Time{}, false, nil
	}
	return m.rows[len(m.rows)-1].Timestamp, true, nil
}

// Len implements Ledger.
func (m *Memory) Len(ctx context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Close implements Ledger.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
