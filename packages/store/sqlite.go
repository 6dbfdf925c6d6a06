package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DatabaseFile is the name of the SQLite database inside the store path
const DatabaseFile = "gridcalc.db"

// SQLiteStore keeps workbooks in a single SQLite table
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) dir/gridcalc.db
func NewSQLiteStore(ctx context.Context, dir string, logger *zap.Logger) (*SQLiteStore, error) {
	if dir == "" {
		return nil, spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, "sqlite store needs a directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to create directory", err)
	}

	path := filepath.Join(dir, DatabaseFile)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to open database", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, dbPath: path, logger: logger}
	if err := store.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS workbooks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sheet_count INTEGER NOT NULL,
		payload BLOB NOT NULL,
		saved_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workbooks_saved_at ON workbooks(saved_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to create workbooks table", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap spreadsheet.WorkbookSnapshot) error {
	snap, err := prepare(snap)
	if err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workbooks (id, name, sheet_count, payload, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			sheet_count = excluded.sheet_count,
			payload = excluded.payload,
			saved_at = excluded.saved_at`,
		snap.ID, snap.Name, len(snap.Sheets), data, snap.LastSaved.UnixNano(),
	)
	if err != nil {
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to save workbook", err)
	}
	s.logger.Debug("workbook saved", zap.String("id", snap.ID), zap.Int("bytes", len(data)))
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (spreadsheet.WorkbookSnapshot, error) {
	if err := validateID(id); err != nil {
		return spreadsheet.WorkbookSnapshot{}, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM workbooks WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return spreadsheet.WorkbookSnapshot{}, notFound(id)
	}
	if err != nil {
		return spreadsheet.WorkbookSnapshot{}, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to load workbook", err)
	}
	return decode(data)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, sheet_count, saved_at FROM workbooks")
	if err != nil {
		return nil, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to list workbooks", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var (
			summary Summary
			savedAt int64
		)
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.SheetCount, &savedAt); err != nil {
			return nil, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to scan workbook", err)
		}
		summary.SavedAt = time.Unix(0, savedAt).UTC()
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to list workbooks", err)
	}
	return sortSummaries(summaries), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM workbooks WHERE id = ?", id)
	if err != nil {
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, fmt.Sprintf("failed to delete workbook %s", id), err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	s.logger.Debug("workbook deleted", zap.String("id", id))
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
