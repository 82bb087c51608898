package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
	apperrors "ecoregen/internal/errors"
	"ecoregen/internal/infrastructure/imageio"
	"ecoregen/internal/logger"
)

// TaskService управляет задачами, загруженными фото и каналами.
type TaskService struct {
	repo       port.TaskRepository
	uploadsDir string
	outputsDir string
}

// NewTaskService создаёт сервис задач; фото сохраняются в uploadsDir,
// результаты анализов задачи лежат в своём подкаталоге outputsDir.
func NewTaskService(repo port.TaskRepository, uploadsDir, outputsDir string) *TaskService {
	return &TaskService{repo: repo, uploadsDir: uploadsDir, outputsDir: outputsDir}
}

// Create создаёт задачу пользователя.
func (s *TaskService) Create(ctx context.Context, ownerID int64, title, description string) (*entity.Task, error) {
	task, err := entity.NewTask(ownerID, title, description)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// List возвращает задачи пользователя, новые первыми.
func (s *TaskService) List(ctx context.Context, ownerID int64) ([]*entity.Task, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Get возвращает задачу, если она принадлежит пользователю.
func (s *TaskService) Get(ctx context.Context, ownerID, taskID int64) (*entity.Task, error) {
	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.OwnedBy(ownerID) {
		return nil, entity.ErrForbidden
	}
	return task, nil
}

// AttachPhoto сохраняет фото и привязывает его к задаче, заменяя прежнее.
// Приложенные ранее каналы относятся к старому снимку и удаляются.
func (s *TaskService) AttachPhoto(ctx context.Context, ownerID, taskID int64, data []byte) (*entity.Task, error) {
	if _, err := s.Get(ctx, ownerID, taskID); err != nil {
		return nil, err
	}

	path, err := s.saveUpload(data)
	if err != nil {
		return nil, err
	}

	var stale []string
	task, err := s.repo.Update(ctx, taskID, func(t *entity.Task) error {
		stale = append(stale, t.PhotoPath)
		stale = append(stale, t.BandPaths...)
		t.PhotoPath = path
		t.BandPaths = nil
		return nil
	})
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	for _, p := range stale {
		removeWithin(s.uploadsDir, p)
	}
	return task, nil
}

// AttachBand добавляет к фото задачи ещё один файл с каналами (например, NIR),
// который при расчёте NDVI встаёт после каналов фото.
func (s *TaskService) AttachBand(ctx context.Context, ownerID, taskID int64, data []byte) (*entity.Task, error) {
	task, err := s.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if !task.HasPhoto() {
		return nil, apperrors.NewInvalidInputError("attach a photo before band layers", nil)
	}
	if len(task.BandPaths) >= entity.MaxBandLayers {
		return nil, apperrors.NewInvalidInputError("band layer limit reached", entity.ErrTooManyLayers)
	}

	path, err := s.saveUpload(data)
	if err != nil {
		return nil, err
	}

	task, err = s.repo.Update(ctx, taskID, func(t *entity.Task) error {
		if !t.HasPhoto() {
			return apperrors.NewInvalidInputError("attach a photo before band layers", nil)
		}
		if len(t.BandPaths) >= entity.MaxBandLayers {
			return apperrors.NewInvalidInputError("band layer limit reached", entity.ErrTooManyLayers)
		}
		t.BandPaths = append(t.BandPaths, path)
		return nil
	})
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return task, nil
}

// Delete удаляет задачу владельца вместе с загрузками и результатами анализов.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID int64) error {
	task, err := s.Get(ctx, ownerID, taskID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, taskID); err != nil {
		return err
	}

	removeWithin(s.uploadsDir, task.PhotoPath)
	for _, p := range task.BandPaths {
		removeWithin(s.uploadsDir, p)
	}
	if err := os.RemoveAll(taskOutputDir(s.outputsDir, taskID)); err != nil {
		logger.WithError(err).WithField("task_id", taskID).Warn("failed to remove task outputs")
	}
	return nil
}

// saveUpload проверяет, что данные являются изображением, и кладёт их в каталог загрузок.
func (s *TaskService) saveUpload(data []byte) (string, error) {
	ext, err := imageio.DetectFormat(data)
	if errors.Is(err, imageio.ErrTooLarge) {
		return "", apperrors.NewInvalidInputError("image is too large", err)
	}
	if err != nil {
		return "", apperrors.NewInvalidInputError("file is not an image", err)
	}

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return "", apperrors.NewIoFailureError("create uploads dir", err)
	}
	path := filepath.Join(s.uploadsDir, uuid.New().String()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperrors.NewIoFailureError("save upload", err)
	}
	return path, nil
}

// within сообщает, что path лежит внутри каталога root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// removeWithin удаляет файл, только если он лежит внутри root.
func removeWithin(root, path string) {
	if path == "" || !within(root, path) {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).WithField("path", path).Warn("failed to remove file")
	}
}
