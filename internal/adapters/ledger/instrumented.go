package ledger

import (
	"context"
	"time"

	"github.com/okian/expwatch/internal/domain/model"
	"github.com/okian/expwatch/pkg/logger"
	"github.com/okian/expwatch/pkg/metrics"
)

// instrumented records metrics and logs around another Ledger.
type instrumented struct {
	next   Ledger
	logger logger.Logger
}

func newInstrumented(next Ledger, l logger.Logger) *instrumented {
	metrics.UpdateLedgerRows(next.Len(context.Background()))
	return &instrumented{next: next, logger: l}
}

func (i *instrumented) Append(ctx context.Context, snaps []model.Snapshot) error {
	start := time.Now()
	if err := i.next.Append(ctx, snaps); err != nil {
		metrics.RecordErrorByComponent("ledger", "append")
		i.logger.Error(ctx, "append failed", logger.Int("rows", len(snaps)), logger.Error(err))
		return err
	}
	metrics.RecordLedgerAppend(len(snaps), time.Since(start))
	metrics.UpdateLedgerRows(i.next.Len(ctx))
	return nil
}

func (i *instrumented) ReadAll(ctx context.Context) ([]model.Snapshot, error) {
	defer observeRead(time.Now())
	return i.next.ReadAll(ctx)
}

func (i *instrumented) ReadRange(ctx context.Context, from, to time.Time) ([]model.Snapshot, error) {
	defer observeRead(time.Now())
	return i.next.ReadRange(ctx, from, to)
}

func (i *instrumented) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	return i.next.LatestTimestamp(ctx)
}

func (i *instrumented) Len(ctx context.Context) int { return i.next.Len(ctx) }

func (i *instrumented) Close() error { return i.next.Close() }

func observeRead(start time.Time) {
	metrics.RecordLedgerRead(time.Since(start))
}
