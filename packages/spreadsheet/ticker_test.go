package spreadsheet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestVolatileTickerTick(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	wb := newTestWorkbook(t)
	require.NoError(t, wb.Submit("A1", "=RAND()"))
	require.NoError(t, wb.Submit("B1", "=A1+1"))
	require.NoError(t, wb.Submit("C1", "=2"))

	var calls int
	ticker := NewVolatileTicker(wb, time.Hour, zap.New(core), func(map[string][]CellAddress) { calls++ })

	refreshed := ticker.Tick()
	require.Len(t, refreshed, 1)
	assert.Equal(t, []CellAddress{MustParseAddress("A1"), MustParseAddress("B1")}, refreshed[wb.ActiveSheet().ID])
	assert.Equal(t, 1, calls)

	entries := logs.FilterMessage("refreshed volatile cells").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ticker", entries[0].LoggerName)
	assert.EqualValues(t, 2, entries[0].ContextMap()["cells"])

	require.NoError(t, wb.Submit("A1", "1"))
	assert.Empty(t, ticker.Tick())
	assert.Equal(t, 1, calls)
}

func TestVolatileTickerRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	wb := newTestWorkbook(t)
	require.NoError(t, wb.Submit("A1", "=NOW()"))

	var mu sync.Mutex
	ticks := 0
	done := make(chan struct{})
	ticker := NewVolatileTicker(wb, 5*time.Millisecond, nil, func(map[string][]CellAddress) {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		if ticks == 3 {
			close(done)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- ticker.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ticker did not refresh in time")
	}
	cancel()

	err := <-errCh
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestVolatileTickerDefaults(t *testing.T) {
	ticker := NewVolatileTicker(newTestWorkbook(t), 0, nil, nil)
	assert.Equal(t, DefaultRefreshInterval, ticker.interval)
	assert.Empty(t, ticker.Tick())
}
