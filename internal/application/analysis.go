package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
	apperrors "ecoregen/internal/errors"
	"ecoregen/internal/logger"
)

// AnalysisService запускает анализы над фото задачи и хранит последний результат каждого вида.
type AnalysisService struct {
	tasks        port.TaskRepository
	ndvi         *NdviEngine
	segmentation *SegmentationEngine
	publisher    port.ArtifactPublisher
	outputsDir   string
}

// AnalysisOutcome итог одного запуска.
// Err заполнен, если анализ не удался; неудача уже записана в задачу.
type AnalysisOutcome struct {
	Task      *entity.Task
	LocalPath string        // файл результата, пусто при неудаче
	Ref       string        // опубликованная ссылка на результат
	Backend   entity.Method // только для сегментации
	FellBack  bool          // сегментацию выполнил запасной бэкенд
	Err       error
}

// NewAnalysisService создаёт оркестратор анализов.
func NewAnalysisService(tasks port.TaskRepository, ndvi *NdviEngine, segmentation *SegmentationEngine, publisher port.ArtifactPublisher, outputsDir string) *AnalysisService {
	return &AnalysisService{
		tasks:        tasks,
		ndvi:         ndvi,
		segmentation: segmentation,
		publisher:    publisher,
		outputsDir:   outputsDir,
	}
}

// RunNdvi считает NDVI по фото задачи (и приложенным каналам) и записывает результат в задачу.
func (s *AnalysisService) RunNdvi(ctx context.Context, userID, taskID int64, bands entity.BandSelection) (*AnalysisOutcome, error) {
	task, err := s.photoTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	out := s.outputPath(taskID, kindNdvi)
	params := entity.NdviParams{Red: bands.Red, Nir: bands.Nir}

	runErr := s.ndvi.ComputeNdviLayers(task.Layers(), out, bands)
	ref, runErr := s.publish(ctx, out, runErr)

	updated, err := s.store(ctx, taskID, kindNdvi, out, runErr, func(t *entity.Task) string {
		previous, _ := t.Ndvi.Ref()
		if runErr != nil {
			t.Ndvi = entity.FailedArtifact(apperrors.Diagnostic(runErr), params)
		} else {
			t.Ndvi = entity.ReadyArtifact(ref, params)
		}
		return previous
	})
	if err != nil {
		return nil, err
	}

	outcome := &AnalysisOutcome{Task: updated, Err: runErr}
	if runErr == nil {
		outcome.LocalPath = out
		outcome.Ref = ref
	}
	return outcome, nil
}

// RunSegmentation выполняет сегментацию фото задачи и записывает результат в задачу.
func (s *AnalysisService) RunSegmentation(ctx context.Context, userID, taskID int64, method entity.Method, confidence float64) (*AnalysisOutcome, error) {
	task, err := s.photoTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	out := s.outputPath(taskID, kindSegmentation)
	params := entity.SegmentationParams{Method: method, Confidence: confidence}

	res, runErr := s.segmentation.Run(ctx, task.PhotoPath, out, method, confidence)
	if runErr == nil {
		params.Backend = res.Backend
	}
	ref, runErr := s.publish(ctx, out, runErr)

	updated, err := s.store(ctx, taskID, kindSegmentation, out, runErr, func(t *entity.Task) string {
		previous, _ := t.Segmentation.Ref()
		if runErr != nil {
			t.Segmentation = entity.FailedArtifact(apperrors.Diagnostic(runErr), params)
		} else {
			t.Segmentation = entity.ReadyArtifact(ref, params)
		}
		return previous
	})
	if err != nil {
		return nil, err
	}

	outcome := &AnalysisOutcome{Task: updated, Err: runErr}
	if runErr == nil {
		outcome.LocalPath = out
		outcome.Ref = ref
		outcome.Backend = res.Backend
		outcome.FellBack = res.FellBack()
	}
	return outcome, nil
}

// photoTask загружает задачу пользователя и проверяет, что к ней приложено фото.
func (s *AnalysisService) photoTask(ctx context.Context, userID, taskID int64) (*entity.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.OwnedBy(userID) {
		return nil, entity.ErrForbidden
	}
	if !task.HasPhoto() {
		return nil, apperrors.NewInvalidInputError("task has no photo", nil)
	}
	return task, nil
}

const (
	kindNdvi         = "ndvi"
	kindSegmentation = "segmentation"
)

// taskOutputDir каталог результатов одной задачи; удаляется вместе с задачей.
func taskOutputDir(outputsDir string, taskID int64) string {
	return filepath.Join(outputsDir, strconv.FormatInt(taskID, 10))
}

func (s *AnalysisService) outputPath(taskID int64, kind string) string {
	return filepath.Join(taskOutputDir(s.outputsDir, taskID), kind, uuid.NewString()+".png")
}

// publish превращает локальный файл в ссылку; ошибка анализа пропускается как есть.
func (s *AnalysisService) publish(ctx context.Context, localPath string, runErr error) (string, error) {
	if runErr != nil {
		return "", runErr
	}
	ref, err := s.publisher.Publish(ctx, localPath)
	if err != nil {
		return "", apperrors.NewIoFailureError("publish result", err)
	}
	return ref, nil
}

// store записывает итог в задачу через apply, которая возвращает ссылку на прежний результат.
// После записи на диске остаётся только файл, на который ссылается задача:
// новый файл удаляется при неудаче, прежний снимается с публикации и удаляется.
func (s *AnalysisService) store(ctx context.Context, taskID int64, kind, out string, runErr error, apply func(t *entity.Task) string) (*entity.Task, error) {
	var previous string
	updated, err := s.tasks.Update(ctx, taskID, func(t *entity.Task) error {
		previous = apply(t)
		return nil
	})
	if err != nil || runErr != nil {
		s.discard(ctx, out)
	}
	if err != nil {
		return nil, fmt.Errorf("save %s result: %w", kind, err)
	}

	if previous != "" {
		s.discard(ctx, filepath.Join(filepath.Dir(out), path.Base(previous)))
	}
	s.log(taskID, kind, runErr)
	return updated, nil
}

// discard снимает файл результата с публикации и удаляет его с диска.
func (s *AnalysisService) discard(ctx context.Context, localPath string) {
	if !within(s.outputsDir, localPath) {
		return
	}
	if _, err := os.Stat(localPath); errors.Is(err, os.ErrNotExist) {
		return
	}
	if err := s.publisher.Retract(ctx, localPath); err != nil {
		logger.WithError(err).WithField("path", localPath).Warn("failed to retract result")
	}
	removeWithin(s.outputsDir, localPath)
}

func (s *AnalysisService) log(taskID int64, kind string, runErr error) {
	entry := logger.WithFields(logrus.Fields{"task_id": taskID, "analysis": kind})
	if runErr != nil {
		entry.WithField("error_type", apperrors.TypeOf(runErr)).WithError(runErr).Warn("analysis failed")
		return
	}
	entry.Info("analysis stored")
}
