package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogtb/go-gridcalc/packages/config"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"go.uber.org/zap"
)

func newSnapshot(t *testing.T, name string, savedAt time.Time) spreadsheet.WorkbookSnapshot {
	t.Helper()
	wb := spreadsheet.NewWorkbook(name)
	require.NoError(t, wb.Submit("A1", "10"))
	require.NoError(t, wb.Submit("A2", "=A1*2"))
	_, err := wb.AddSheet("Notes")
	require.NoError(t, err)
	snap := wb.Snapshot()
	snap.LastSaved = savedAt
	return snap
}

// testStore runs the behaviour every backend shares
func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	older := newSnapshot(t, "Older", base)
	newer := newSnapshot(t, "Newer", base.Add(time.Hour))

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, older))
		require.NoError(t, s.Save(ctx, newer))

		loaded, err := s.Load(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, "Older", loaded.Name)
		require.Len(t, loaded.Sheets, 2)
		assert.True(t, base.Equal(loaded.LastSaved))

		wb, err := spreadsheet.FromSnapshot(loaded)
		require.NoError(t, err)
		value, err := wb.Value("A2")
		require.NoError(t, err)
		assert.Equal(t, 20.0, value)
	})

	t.Run("list newest first", func(t *testing.T) {
		summaries, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, newer.ID, summaries[0].ID)
		assert.Equal(t, older.ID, summaries[1].ID)
		assert.Equal(t, 2, summaries[0].SheetCount)
	})

	t.Run("save replaces", func(t *testing.T) {
		renamed := older
		renamed.Name = "Renamed"
		renamed.LastSaved = base.Add(2 * time.Hour)
		require.NoError(t, s.Save(ctx, renamed))

		summaries, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, "Renamed", summaries[0].Name)
	})

	t.Run("zero saved at is stamped", func(t *testing.T) {
		snap := newSnapshot(t, "Fresh", time.Time{})
		require.NoError(t, s.Save(ctx, snap))
		loaded, err := s.Load(ctx, snap.ID)
		require.NoError(t, err)
		assert.False(t, loaded.LastSaved.IsZero())
		require.NoError(t, s.Delete(ctx, snap.ID))
	})

	t.Run("missing", func(t *testing.T) {
		id := uuid.NewString()
		_, err := s.Load(ctx, id)
		assert.Equal(t, spreadsheet.NotFound, spreadsheet.CodeOf(err))
		assert.Equal(t, spreadsheet.NotFound, spreadsheet.CodeOf(s.Delete(ctx, id)))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := s.Load(ctx, "../etc/passwd")
		assert.Equal(t, spreadsheet.InvalidArgument, spreadsheet.CodeOf(err))

		empty := older
		empty.Sheets = nil
		assert.Equal(t, spreadsheet.InvalidArgument, spreadsheet.CodeOf(s.Save(ctx, empty)))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, older.ID))
		_, err := s.Load(ctx, older.ID)
		assert.Equal(t, spreadsheet.NotFound, spreadsheet.CodeOf(err))

		summaries, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, newer.ID, summaries[0].ID)
	})
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "workbooks"), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestFileStoreSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)

	snap := newSnapshot(t, "Good", time.Now())
	require.NoError(t, s.Save(context.Background(), snap))
	require.NoError(t, os.WriteFile(filepath.Join(dir, uuid.NewString()+".json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	summaries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Good", summaries[0].Name)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp")
	}
}

func TestSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(context.Background(), dir, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
	assert.FileExists(t, filepath.Join(dir, DatabaseFile))
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	snap := newSnapshot(t, "Persisted", time.Now())

	s, err := NewSQLiteStore(ctx, dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, snap))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, dir, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	loaded, err := s.Load(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", loaded.Name)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("GRIDCALC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("GRIDCALC_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	cfg := config.Default().Store.Redis
	cfg.URL = url
	cfg.TTL = time.Hour

	s, err := NewRedisStore(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	_ = s.rdb.Del(ctx, IndexKey).Err()

	testStore(t, s)

	summaries, err := s.List(ctx)
	require.NoError(t, err)
	for _, summary := range summaries {
		ttl, err := s.rdb.TTL(ctx, s.workbookKey(summary.ID)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		require.NoError(t, s.Delete(ctx, summary.ID))
	}
}

func TestRedisStoreBadURL(t *testing.T) {
	cfg := config.Default().Store.Redis
	cfg.URL = "ftp://localhost"
	_, err := NewRedisStore(context.Background(), cfg, zap.NewNop())
	assert.Equal(t, spreadsheet.InvalidArgument, spreadsheet.CodeOf(err))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.Store{Driver: config.DriverFile, Path: dir}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, config.Store{Driver: config.DriverSQLite, Path: dir}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.Store{Driver: "postgres"}, zap.NewNop())
	assert.Equal(t, spreadsheet.InvalidArgument, spreadsheet.CodeOf(err))
}
