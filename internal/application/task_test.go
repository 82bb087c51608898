package app

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ecoregen/internal/domain/entity"
	apperrors "ecoregen/internal/errors"
	"ecoregen/internal/infrastructure/storage"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 3, 3))))
	return buf.Bytes()
}

func TestTaskService_CreateAndList(t *testing.T) {
	svc := NewTaskService(storage.NewMemoryTaskRepository(), t.TempDir(), t.TempDir())
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, "   ", "")
	require.ErrorIs(t, err, entity.ErrEmptyTitle)

	task, err := svc.Create(ctx, 1, "field A", "wheat")
	require.NoError(t, err)
	require.NotZero(t, task.ID)

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.Get(ctx, 2, task.ID)
	require.ErrorIs(t, err, entity.ErrForbidden)
}

func TestTaskService_AttachPhotoReplacesPrevious(t *testing.T) {
	uploads := t.TempDir()
	svc := NewTaskService(storage.NewMemoryTaskRepository(), uploads, t.TempDir())
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, "field", "")
	require.NoError(t, err)

	first, err := svc.AttachPhoto(ctx, 1, task.ID, pngBytes(t))
	require.NoError(t, err)
	require.Equal(t, ".png", filepath.Ext(first.PhotoPath))
	require.FileExists(t, first.PhotoPath)

	second, err := svc.AttachPhoto(ctx, 1, task.ID, pngBytes(t))
	require.NoError(t, err)
	require.NotEqual(t, first.PhotoPath, second.PhotoPath)
	require.NoFileExists(t, first.PhotoPath)
}

func TestTaskService_AttachRejectsNonImage(t *testing.T) {
	svc := NewTaskService(storage.NewMemoryTaskRepository(), t.TempDir(), t.TempDir())
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, "field", "")
	require.NoError(t, err)

	_, err = svc.AttachPhoto(ctx, 1, task.ID, []byte("%PDF-1.7"))
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))

	_, err = svc.AttachPhoto(ctx, 2, task.ID, pngBytes(t))
	require.ErrorIs(t, err, entity.ErrForbidden)
}

func TestTaskService_DeleteRemovesPhoto(t *testing.T) {
	uploads := t.TempDir()
	svc := NewTaskService(storage.NewMemoryTaskRepository(), uploads, t.TempDir())
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, "field", "")
	require.NoError(t, err)
	task, err = svc.AttachPhoto(ctx, 1, task.ID, pngBytes(t))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, 2, task.ID), entity.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, 1, task.ID))

	_, statErr := os.Stat(task.PhotoPath)
	require.True(t, os.IsNotExist(statErr))
	_, err = svc.Get(ctx, 1, task.ID)
	require.ErrorIs(t, err, entity.ErrTaskNotFound)
}

func grayBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestTaskService_AttachBand(t *testing.T) {
	uploads := t.TempDir()
	svc := NewTaskService(storage.NewMemoryTaskRepository(), uploads, t.TempDir())
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, "field", "")
	require.NoError(t, err)

	_, err = svc.AttachBand(ctx, 1, task.ID, grayBytes(t, 3, 3))
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))

	_, err = svc.AttachPhoto(ctx, 1, task.ID, pngBytes(t))
	require.NoError(t, err)

	withBand, err := svc.AttachBand(ctx, 1, task.ID, grayBytes(t, 3, 3))
	require.NoError(t, err)
	require.Len(t, withBand.BandPaths, 1)
	require.FileExists(t, withBand.BandPaths[0])
	require.Len(t, withBand.Layers(), 2)

	_, err = svc.AttachBand(ctx, 2, task.ID, grayBytes(t, 3, 3))
	require.ErrorIs(t, err, entity.ErrForbidden)

	// новое фото сбрасывает каналы старого снимка
	replaced, err := svc.AttachPhoto(ctx, 1, task.ID, pngBytes(t))
	require.NoError(t, err)
	require.Empty(t, replaced.BandPaths)
	require.NoFileExists(t, withBand.BandPaths[0])
}

func TestTaskService_AttachBandLimit(t *testing.T) {
	svc := NewTaskService(storage.NewMemoryTaskRepository(), t.TempDir(), t.TempDir())
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, "field", "")
	require.NoError(t, err)
	_, err = svc.AttachPhoto(ctx, 1, task.ID, pngBytes(t))
	require.NoError(t, err)

	for i := 0; i < entity.MaxBandLayers; i++ {
		_, err = svc.AttachBand(ctx, 1, task.ID, grayBytes(t, 3, 3))
		require.NoError(t, err)
	}
	_, err = svc.AttachBand(ctx, 1, task.ID, grayBytes(t, 3, 3))
	require.ErrorIs(t, err, entity.ErrTooManyLayers)
}

func TestTaskService_DeleteRemovesBandsAndOutputs(t *testing.T) {
	uploads := t.TempDir()
	outputs := t.TempDir()
	svc := NewTaskService(storage.NewMemoryTaskRepository(), uploads, outputs)
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, "field", "")
	require.NoError(t, err)
	_, err = svc.AttachPhoto(ctx, 1, task.ID, pngBytes(t))
	require.NoError(t, err)
	task, err = svc.AttachBand(ctx, 1, task.ID, grayBytes(t, 3, 3))
	require.NoError(t, err)

	result := filepath.Join(taskOutputDir(outputs, task.ID), "ndvi", "old.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(result), 0o755))
	require.NoError(t, os.WriteFile(result, []byte("png"), 0o644))

	require.NoError(t, svc.Delete(ctx, 1, task.ID))

	require.NoFileExists(t, task.PhotoPath)
	require.NoFileExists(t, task.BandPaths[0])
	require.NoDirExists(t, taskOutputDir(outputs, task.ID))
}

func TestWithin(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data", "uploads")

	require.True(t, within(root, filepath.Join(root, "a.png")))
	require.True(t, within(root, filepath.Join(root, "..a.png")))
	require.True(t, within(root, filepath.Join(root, "7", "ndvi", "b.png")))

	require.False(t, within(root, root))
	require.False(t, within(root, filepath.Join(root, "..", "a.png")))
	require.False(t, within(root, filepath.Join(string(filepath.Separator), "etc", "passwd")))
}
