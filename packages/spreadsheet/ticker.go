package spreadsheet

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultRefreshInterval is how often volatile cells refresh
const DefaultRefreshInterval = time.Second

// VolatileTicker periodically refreshes the volatile cells of a workbook.
// non-volatile formulas are never touched.
type VolatileTicker struct {
	wb        *Workbook
	interval  time.Duration
	logger    *zap.Logger
	onRefresh func(map[string][]CellAddress)
}

// NewVolatileTicker creates a ticker for wb. onRefresh may be nil and is
// called from the ticker goroutine whenever cells changed.
func NewVolatileTicker(wb *Workbook, interval time.Duration, logger *zap.Logger, onRefresh func(map[string][]CellAddress)) *VolatileTicker {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VolatileTicker{
		wb:        wb,
		interval:  interval,
		logger:    logger.Named("ticker"),
		onRefresh: onRefresh,
	}
}

// Run ticks until ctx is cancelled and returns ctx.Err()
func (t *VolatileTicker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Debug("volatile ticker started", zap.Duration("interval", t.interval))
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("volatile ticker stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			t.Tick()
		}
	}
}

// Tick refreshes once and returns what changed
func (t *VolatileTicker) Tick() map[string][]CellAddress {
	refreshed := t.wb.RefreshVolatile()
	if len(refreshed) == 0 {
		return refreshed
	}

	count := 0
	for _, cells := range refreshed {
		count += len(cells)
	}
	t.logger.Debug("refreshed volatile cells", zap.Int("sheets", len(refreshed)), zap.Int("cells", count))

	if t.onRefresh != nil {
		t.onRefresh(refreshed)
	}
	return refreshed
}
