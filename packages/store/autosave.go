package store

import (
	"context"
	"sync"
	"time"

	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"go.uber.org/zap"
)

// AutoSaver saves a workbook shortly after its last edit. rapid edits
// reset the timer.
type AutoSaver struct {
	mu     sync.Mutex
	saving sync.Mutex // held for the duration of a save
	timer  *time.Timer
	store  Store
	wb     *spreadsheet.Workbook
	delay  time.Duration
	logger *zap.Logger
	now    func() time.Time
	gen    int
	saves  int
}

// NewAutoSaver binds wb to store with the given debounce delay
func NewAutoSaver(store Store, wb *spreadsheet.Workbook, delay time.Duration, logger *zap.Logger) *AutoSaver {
	return &AutoSaver{
		store:  store,
		wb:     wb,
		delay:  delay,
		logger: logger.Named("autosave"),
		now:    time.Now,
	}
}

// Touch schedules a save after the delay unless auto-save is off
func (a *AutoSaver) Touch() {
	if !a.wb.AutoSave() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timer = time.AfterFunc(a.delay, func() {
		a.saving.Lock()
		defer a.saving.Unlock()

		// a newer Touch, Stop or Flush supersedes this save
		a.mu.Lock()
		if a.gen != gen {
			a.mu.Unlock()
			return
		}
		a.timer = nil
		a.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.save(ctx); err != nil {
			a.logger.Error("auto-save failed", zap.String("workbook", a.wb.ID()), zap.Error(err))
		}
	})
}

// Flush cancels any pending save and saves now
func (a *AutoSaver) Flush(ctx context.Context) error {
	a.cancel()
	a.saving.Lock()
	defer a.saving.Unlock()
	return a.save(ctx)
}

// Stop cancels the pending save and waits for one already running. no
// save starts after Stop returns until the next Touch.
func (a *AutoSaver) Stop() {
	a.cancel()
	a.saving.Lock()
	a.saving.Unlock()
}

func (a *AutoSaver) cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Pending reports whether a save is scheduled
func (a *AutoSaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

// Saves counts successful saves
func (a *AutoSaver) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

func (a *AutoSaver) save(ctx context.Context) error {
	snap := a.wb.Snapshot()
	snap.LastSaved = a.now()
	if err := a.store.Save(ctx, snap); err != nil {
		return err
	}
	a.wb.MarkSaved(snap.LastSaved)

	a.mu.Lock()
	a.saves++
	a.mu.Unlock()

	a.logger.Debug("workbook saved", zap.String("workbook", snap.ID), zap.Int("sheets", len(snap.Sheets)))
	return nil
}
