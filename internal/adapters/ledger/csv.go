package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/expwatch/internal/domain/model"
)

// header is the column layout of the CSV ledger.
var header = []string{"timestamp", "nickname", "world", "level", "exp"}

// legacyTimeLayout is accepted on read for rows written without a zone;
// such rows are taken as UTC.
const legacyTimeLayout = "2006-01-02 15:04:05"

const utf8BOM = "\ufeff"

// ledgerFile is the part of *os.File the CSV ledger writes through.
type ledgerFile interface {
	io.Writer
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// CSV is a file-backed ledger. Existing rows are loaded at open; new rows
// are appended to the file and mirrored in memory for reads.
type CSV struct {
	mu   sync.Mutex // serializes appends
	path string
	f    ledgerFile
	mem  *Memory
}

// OpenCSV opens or creates the ledger file at path. The header is written
// once, when the file is empty.
func OpenCSV(path string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv ledger: %w", err)
	}

	mem := NewMemory()
	empty, err := load(f, mem)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	c := &CSV{path: path, f: f, mem: mem}
	if empty {
		if err := c.writeRecords([][]string{header}); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return c, nil
}

// load reads every row of r into mem and reports whether r had no content.
func load(r io.Reader, mem *Memory) (bool, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: header: %w", ErrMalformedRow, err)
	}
	if err := checkHeader(first); err != nil {
		return false, err
	}

	var rows []model.Snapshot
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return false, fmt.Errorf("%w: line %d: %w", ErrMalformedRow, line, err)
		}
		s, err := parseRecord(rec)
		if err != nil {
			return false, fmt.Errorf("%w: line %d: %w", ErrMalformedRow, line, err)
		}
		rows = append(rows, s)
	}
	mem.appendLocked(rows)
	return false, nil
}

func checkHeader(rec []string) error {
	if len(rec) != len(header) {
		return fmt.Errorf("%w: header has %d columns, want %d", ErrMalformedRow, len(rec), len(header))
	}
	for i, col := range rec {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		if strings.TrimSpace(col) != header[i] {
			return fmt.Errorf("%w: header column %d is %q, want %q", ErrMalformedRow, i+1, col, header[i])
		}
	}
	return nil
}

func parseRecord(rec []string) (model.Snapshot, error) {
	if len(rec) != len(header) {
		return model.Snapshot{}, fmt.Errorf("%d columns, want %d", len(rec), len(header))
	}
	ts, err := parseTimestamp(strings.TrimSpace(rec[0]))
	if err != nil {
		return model.Snapshot{}, err
	}
	level, err := strconv.Atoi(strings.TrimSpace(rec[3]))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("level: %w", err)
	}
	exp, err := parseExp(strings.TrimSpace(rec[4]))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("exp: %w", err)
	}
	// Stored rows are taken as written. A level the table does not know
	// surfaces as ErrUnknownLevel when the row is ranked.
	if rec[1] == "" {
		return model.Snapshot{}, fmt.Errorf("%w: empty nickname", ErrInvalidSnapshot)
	}
	return model.Snapshot{Timestamp: ts, Name: rec[1], World: rec[2], Level: level, Exp: exp}, nil
}

func parseTimestamp(v string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(legacyTimeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: want RFC3339 or %q", v, legacyTimeLayout)
	}
	return ts, nil
}

// parseExp accepts integers and integral floats such as "1.5e+10".
func parseExp(v string) (int64, error) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%q is not integral", v)
	}
	return int64(f), nil
}

// writeRecords appends recs with a single write. On failure the file is
// truncated back to its previous size so no partial row is left behind.
func (c *CSV) writeRecords(recs [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(recs); err != nil {
		return fmt.Errorf("encode csv ledger: %w", err)
	}

	fi, err := c.f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv ledger: %w", err)
	}
	n, err := c.f.Write(buf.Bytes())
	if err == nil && n < buf.Len() {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = c.f.Sync()
	}
	if err != nil {
		if terr := c.f.Truncate(fi.Size()); terr != nil {
			return fmt.Errorf("write csv ledger: %w (rollback: %w)", err, terr)
		}
		return fmt.Errorf("write csv ledger: %w", err)
	}
	return nil
}

// Append implements Ledger. Rows become visible to readers only after they
// reached the file.
func (c *CSV) Append(ctx context.Context, snaps []model.Snapshot) error {
	if err := validateAll(snaps); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return ErrClosed
	}
	if len(snaps) == 0 {
		return nil
	}

	recs := make([][]string, len(snaps))
	for i, s := range snaps {
		recs[i] = []string{
			s.Timestamp.UTC().Format(time.RFC3339),
			s.Name,
			s.World,
			strconv.Itoa(s.Level),
			strconv.FormatInt(s.Exp, 10),
		}
	}
	if err := c.writeRecords(recs); err != nil {
		return err
	}
	return c.mem.Append(ctx, snaps)
}

// ReadAll implements Ledger.
func (c *CSV) ReadAll(ctx context.Context) ([]model.Snapshot, error) {
	return c.mem.ReadAll(ctx)
}

// ReadRange implements Ledger.
func (c *CSV) ReadRange(ctx context.Context, from, to time.Time) ([]model.Snapshot, error) {
	return c.mem.ReadRange(ctx, from, to)
}

// LatestTimestamp implements Ledger.
func (c *CSV) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	return c.mem.LatestTimestamp(ctx)
}

// Len implements Ledger.
func (c *CSV) Len(ctx context.Context) int {
	return c.mem.Len(ctx)
}

// Close implements Ledger.
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return nil
	}
	_ = c.mem.Close()
	err := c.f.Close()
	c.f = nil
	return err
}
