package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"go.uber.org/zap"
)

// FileStore keeps one <id>.json file per workbook in a directory
type FileStore struct {
	mu     sync.RWMutex
	dir    string
	logger *zap.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, "file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to create store directory", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the snapshot to a temp file and renames it over the old one
func (s *FileStore) Save(ctx context.Context, snap spreadsheet.WorkbookSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := prepare(snap)
	if err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+snap.ID+"-*.tmp")
	if err != nil {
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to write workbook", err)
	}
	if err := tmp.Close(); err != nil {
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to write workbook", err)
	}
	if err := os.Rename(tmp.Name(), s.path(snap.ID)); err != nil {
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to replace workbook", err)
	}

	s.logger.Debug("workbook saved", zap.String("id", snap.ID), zap.Int("bytes", len(data)))
	return nil
}

func (s *FileStore) Load(ctx context.Context, id string) (spreadsheet.WorkbookSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return spreadsheet.WorkbookSnapshot{}, err
	}
	if err := validateID(id); err != nil {
		return spreadsheet.WorkbookSnapshot{}, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.path(id))
	s.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return spreadsheet.WorkbookSnapshot{}, notFound(id)
	}
	if err != nil {
		return spreadsheet.WorkbookSnapshot{}, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to read workbook", err)
	}
	return decode(data)
}

// List decodes every workbook file. unreadable files are logged and skipped.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to list workbooks", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable workbook", zap.String("file", name), zap.Error(err))
			continue
		}
		snap, err := decode(data)
		if err != nil {
			s.logger.Warn("skipping corrupt workbook", zap.String("file", name), zap.Error(err))
			continue
		}
		summaries = append(summaries, summarize(snap))
	}
	return sortSummaries(summaries), nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return notFound(id)
	}
	if err != nil {
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, fmt.Sprintf("failed to delete workbook %s", id), err)
	}
	s.logger.Debug("workbook deleted", zap.String("id", id))
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
