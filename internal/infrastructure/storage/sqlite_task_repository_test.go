package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ecoregen/internal/domain/entity"
)

func newTestSQLiteRepo(t *testing.T) *SQLiteTaskRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&TaskRecord{}))

	repo, err := NewSQLiteTaskRepository(db)
	require.NoError(t, err)
	return repo
}

func TestSQLiteTaskRepository_ArtifactRoundTrip(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	task, err := entity.NewTask(1, "field", "north slope")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, task))
	require.NotZero(t, task.ID)

	got, err := repo.Get(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, entity.ArtifactAbsent, got.Ndvi.State())
	require.Equal(t, entity.ArtifactAbsent, got.Segmentation.State())

	_, err = repo.Update(ctx, task.ID, func(t *entity.Task) error {
		t.Ndvi = entity.ReadyArtifact("/static/ndvi/a.png", entity.NdviParams{Red: 0, Nir: 3})
		t.Segmentation = entity.FailedArtifact("secondary: no objects above threshold 0.90",
			entity.SegmentationParams{Method: entity.MethodPrimary, Confidence: 0.9})
		return nil
	})
	require.NoError(t, err)

	got, err = repo.Get(ctx, task.ID)
	require.NoError(t, err)

	ref, ok := got.Ndvi.Ref()
	require.True(t, ok)
	require.Equal(t, "/static/ndvi/a.png", ref)
	params, _ := got.Ndvi.Params()
	require.Equal(t, 3, params.Nir)

	diag, ok := got.Segmentation.Diagnostic()
	require.True(t, ok)
	require.Contains(t, diag, "no objects")
	segParams, _ := got.Segmentation.Params()
	require.Equal(t, entity.MethodPrimary, segParams.Method)
	require.InDelta(t, 0.9, segParams.Confidence, 1e-9)

	// неудача перезаписывает прошлый успех
	_, err = repo.Update(ctx, task.ID, func(t *entity.Task) error {
		t.Ndvi = entity.FailedArtifact("invalid band selection", entity.NdviParams{Red: 5, Nir: 3})
		return nil
	})
	require.NoError(t, err)

	got, err = repo.Get(ctx, task.ID)
	require.NoError(t, err)
	_, ok = got.Ndvi.Ref()
	require.False(t, ok)
	require.Equal(t, entity.ArtifactFailed, got.Ndvi.State())
}

func TestSQLiteTaskRepository_ListAndDelete(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	older := &entity.Task{Title: "older", OwnerID: 5, CreatedAt: time.Now().Add(-time.Minute)}
	newer := &entity.Task{Title: "newer", OwnerID: 5, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, &entity.Task{Title: "foreign", OwnerID: 6, CreatedAt: time.Now()}))

	list, err := repo.ListByOwner(ctx, 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "newer", list[0].Title)

	require.NoError(t, repo.Delete(ctx, older.ID))
	require.ErrorIs(t, repo.Delete(ctx, older.ID), entity.ErrTaskNotFound)

	_, err = repo.Get(ctx, older.ID)
	require.ErrorIs(t, err, entity.ErrTaskNotFound)

	_, err = repo.Update(ctx, older.ID, func(*entity.Task) error { return nil })
	require.ErrorIs(t, err, entity.ErrTaskNotFound)
}

func TestOpenSQLite_CreatesFile(t *testing.T) {
	path := t.TempDir() + "/nested/tasks.db"
	db, err := OpenSQLite(path)
	require.NoError(t, err)
	require.True(t, db.Migrator().HasTable(&TaskRecord{}))
}

func TestSQLiteTaskRepository_BandPaths(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	task := &entity.Task{Title: "multispectral", OwnerID: 1, PhotoPath: "rgb.png", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, task))

	_, err := repo.Update(ctx, task.ID, func(t *entity.Task) error {
		t.BandPaths = append(t.BandPaths, "nir.png", "swir.png")
		return nil
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"rgb.png", "nir.png", "swir.png"}, got.Layers())
}
