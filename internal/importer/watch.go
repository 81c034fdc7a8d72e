package importer

import (
	"context"
	"fmt"
	"time"

	"tableimport/internal/table"
)

// Watch refreshes a table on a fixed interval until ctx is canceled.
//
// Each tick is independent: a failed tick (network error, schema mismatch)
// is logged and counted but does not cancel later ticks; the next tick is
// the retry. Watch blocks, so callers run it in its own goroutine.
//
// Errors:
//   - Immediately, when the source is not refreshable or interval is not
//     positive.
//   - ctx.Err() once the context is canceled.
func (imp *Importer) Watch(ctx context.Context, t *table.Table, interval time.Duration) error {
	if !t.Source.Refreshable() {
		return fmt.Errorf("watch: source type %q is not refreshable", t.Source.Type)
	}
	if interval <= 0 {
		return fmt.Errorf("watch: interval must be positive, got %s", interval)
	}

	ticker := imp.newTicker(interval)
	defer ticker.Stop()

	imp.log.Info("watch started", "table", t.ID, "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			imp.log.Info("watch stopped", "table", t.ID)
			return ctx.Err()
		case <-ticker.C:
			if err := imp.Refresh(ctx, t); err != nil {
				imp.log.Warn("watch tick failed", "table", t.ID, "err", err.Error())
			}
		}
	}
}
