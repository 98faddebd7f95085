package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/expwatch/internal/domain/model"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Pragmas applied to every pooled connection.
const sqliteDSNParams = "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

const (
	insertSnapshotSQL = `INSERT INTO snapshots (ts, nickname, world, level, exp) VALUES (?, ?, ?, ?, ?)`
	selectColumns     = `SELECT ts, nickname, world, level, exp FROM snapshots`
	orderBy           = ` ORDER BY ts, seq`
	selectAllSQL      = selectColumns + orderBy
	selectRangeSQL    = selectColumns + ` WHERE ts BETWEEN ? AND ?` + orderBy
	selectLatestSQL   = `SELECT MAX(ts) FROM snapshots`
	countSQL          = `SELECT COUNT(*) FROM snapshots`
)

// SQLite is a database-backed ledger. Rows keep an autoincrement sequence
// so that insertion order survives equal timestamps.
type SQLite struct {
	mu sync.Mutex // serializes appends
	db *sql.DB

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite ledger: path is required")
	}
	db, err := sql.Open("sqlite", path+sqliteDSNParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}
	return newSQLite(db), nil
}

func newSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, closed: make(chan struct{})}
}

func (s *SQLite) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Append implements Ledger. The batch is written in one transaction.
func (s *SQLite) Append(ctx context.Context, snaps []model.Snapshot) (err error) {
	if err := validateAll(snaps); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertSnapshotSQL)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, snap := range snaps {
		if _, err := stmt.ExecContext(ctx, snap.Timestamp.UTC().UnixNano(), snap.Name, snap.World, snap.Level, snap.Exp); err != nil {
			return fmt.Errorf("append %s: %w", snap.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// ReadAll implements Ledger.
func (s *SQLite) ReadAll(ctx context.Context) ([]model.Snapshot, error) {
	return s.query(ctx, selectAllSQL)
}

// ReadRange implements Ledger.
func (s *SQLite) ReadRange(ctx context.Context, from, to time.Time) ([]model.Snapshot, error) {
	return s.query(ctx, selectRangeSQL, from.UTC().UnixNano(), to.UTC().UnixNano())
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]model.Snapshot, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Snapshot
	for rows.Next() {
		var (
			ts   int64
			snap model.Snapshot
		)
		if err := rows.Scan(&ts, &snap.Name, &snap.World, &snap.Level, &snap.Exp); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRow, err)
		}
		snap.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// LatestTimestamp implements Ledger.
func (s *SQLite) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	if s.isClosed() {
		return time.Time{}, false, ErrClosed
	}
	var ts sql.NullInt64
	if err := s.db.QueryRowContext(ctx, selectLatestSQL).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("latest timestamp: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(0, ts.Int64).UTC(), true, nil
}

// Len implements Ledger. It reports 0 when the count cannot be read.
func (s *SQLite) Len(ctx context.Context) int {
	if s.isClosed() {
		return 0
	}
	var n int
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close implements Ledger.
func (s *SQLite) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		close(s.closed)
		err = s.db.Close()
	})
	return err
}
