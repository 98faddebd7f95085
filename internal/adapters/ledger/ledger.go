// Package ledger stores snapshots in an append-only log. Appending is the
// only mutation; rows are never updated or removed.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/expwatch/internal/domain/model"
	"github.com/okian/expwatch/pkg/logger"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
)

// Ledger is an append-only snapshot log. Reads return rows ordered by
// timestamp, then insertion order, and are safe alongside a running Append.
type Ledger interface {
	// Append adds snaps as one batch. Appends are serialized.
	Append(ctx context.Context, snaps []model.Snapshot) error

	// ReadAll returns every stored snapshot.
	ReadAll(ctx context.Context) ([]model.Snapshot, error)

	// ReadRange returns the snapshots with from <= timestamp <= to.
	ReadRange(ctx context.Context, from, to time.Time) ([]model.Snapshot, error)

	// LatestTimestamp returns the newest timestamp. ok is false when empty.
	LatestTimestamp(ctx context.Context) (latest time.Time, ok bool, err error)

	// Len returns the number of stored snapshots.
	Len(ctx context.Context) int

	// Close releases resources. Later calls fail with ErrClosed.
	Close() error
}

// Option configures Open.
type Option func(*settings)

type settings struct {
	logger logger.Logger
}

// WithLogger sets the logger used by the opened ledger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open returns an instrumented ledger for driver. path is ignored by the
// memory driver.
func Open(ctx context.Context, driver, path string, opts ...Option) (Ledger, error) {
	s := settings{logger: logger.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	log := s.logger.Named("ledger")

	var (
		l   Ledger
		err error
	)
	switch driver {
	case DriverMemory:
		l = NewMemory()
	case DriverCSV:
		l, err = OpenCSV(path)
	case DriverSQLite:
		l, err = OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "ledger opened",
		logger.String("driver", driver),
		logger.String("path", path),
		logger.Int("rows", l.Len(ctx)),
	)
	return newInstrumented(l, log), nil
}

// Validate checks the shape of a snapshot before it is stored.
func Validate(s model.Snapshot) error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: empty nickname", ErrInvalidSnapshot)
	case s.Timestamp.IsZero():
		return fmt.Errorf("%w: %s: zero timestamp", ErrInvalidSnapshot, s.Name)
	case s.Level <= 0:
		return fmt.Errorf("%w: %s: level %d", ErrInvalidSnapshot, s.Name, s.Level)
	}
	return nil
}

func validateAll(snaps []model.Snapshot) error {
	for _, s := range snaps {
		if err := Validate(s); err != nil {
			return err
		}
	}
	return nil
}
