// Package store persists workbook snapshots. three backends share the Store
// interface: JSON files on disk, a SQLite table and redis keys.
package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vogtb/go-gridcalc/packages/config"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"go.uber.org/zap"
)

// Store saves and loads workbook snapshots by workbook id
type Store interface {
	// Save inserts or replaces the snapshot. a zero LastSaved is set to the
	// current time.
	Save(ctx context.Context, snap spreadsheet.WorkbookSnapshot) error
	Load(ctx context.Context, id string) (spreadsheet.WorkbookSnapshot, error)
	// List returns every stored workbook, newest first
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Summary describes a stored workbook without its cells
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SheetCount int       `json:"sheetCount"`
	SavedAt    time.Time `json:"savedAt"`
}

// Open builds the store selected by cfg.Driver
func Open(ctx context.Context, cfg config.Store, logger *zap.Logger) (Store, error) {
	logger = logger.Named("store").With(zap.String("driver", cfg.Driver))

	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case config.DriverFile:
		s, err = NewFileStore(cfg.Path, logger)
	case config.DriverSQLite:
		s, err = NewSQLiteStore(ctx, cfg.Path, logger)
	case config.DriverRedis:
		s, err = NewRedisStore(ctx, cfg.Redis, logger)
	default:
		return nil, spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, fmt.Sprintf("unknown store driver: %s", cfg.Driver))
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened")
	return s, nil
}

func validateID(id string) error {
	if err := uuid.Validate(id); err != nil {
		return spreadsheet.WrapApplicationError(spreadsheet.InvalidArgument, fmt.Sprintf("invalid workbook id %q", id), err)
	}
	return nil
}

// prepare validates snap and stamps LastSaved
func prepare(snap spreadsheet.WorkbookSnapshot) (spreadsheet.WorkbookSnapshot, error) {
	if err := validateID(snap.ID); err != nil {
		return snap, err
	}
	if len(snap.Sheets) == 0 {
		return snap, spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, fmt.Sprintf("workbook %s has no sheets", snap.ID))
	}
	if snap.LastSaved.IsZero() {
		snap.LastSaved = time.Now()
	}
	snap.LastSaved = snap.LastSaved.UTC()
	return snap, nil
}

func encode(snap spreadsheet.WorkbookSnapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, spreadsheet.WrapApplicationError(spreadsheet.Internal, "failed to encode workbook", err)
	}
	return data, nil
}

func decode(data []byte) (spreadsheet.WorkbookSnapshot, error) {
	var snap spreadsheet.WorkbookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return spreadsheet.WorkbookSnapshot{}, spreadsheet.WrapApplicationError(spreadsheet.Internal, "failed to decode workbook", err)
	}
	return snap, nil
}

func summarize(snap spreadsheet.WorkbookSnapshot) Summary {
	return Summary{
		ID:         snap.ID,
		Name:       snap.Name,
		SheetCount: len(snap.Sheets),
		SavedAt:    snap.LastSaved,
	}
}

// sortSummaries orders newest first, then by name and id
func sortSummaries(summaries []Summary) []Summary {
	slices.SortFunc(summaries, func(a, b Summary) int {
		if c := b.SavedAt.Compare(a.SavedAt); c != 0 {
			return c
		}
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return summaries
}

func notFound(id string) error {
	return spreadsheet.NewApplicationError(spreadsheet.NotFound, fmt.Sprintf("workbook not found: %s", id))
}
