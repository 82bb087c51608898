package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
	apperrors "ecoregen/internal/errors"
	"ecoregen/internal/infrastructure/imageio"
	"ecoregen/internal/infrastructure/vision"
	"ecoregen/internal/logger"
)

// SegmentationEngine запускает детекцию и рисует результат поверх фото.
// Если не справился основной метод, и запрошен был именно он, пробует запасной.
// Запрошенный напрямую запасной метод к основному не откатывается.
type SegmentationEngine struct {
	models port.DetectorProvider
	colors vision.ColorSource
}

// NewSegmentationEngine создаёт движок поверх провайдера моделей.
func NewSegmentationEngine(models port.DetectorProvider) *SegmentationEngine {
	return &SegmentationEngine{models: models, colors: vision.RandomColor}
}

// WithColorSource подменяет генератор цветов экземпляров.
func (e *SegmentationEngine) WithColorSource(colors vision.ColorSource) *SegmentationEngine {
	e.colors = colors
	return e
}

// Run выполняет сегментацию inputPath и сохраняет PNG в outputPath.
func (e *SegmentationEngine) Run(ctx context.Context, inputPath, outputPath string, method entity.Method, confidence float64) (res *entity.SegmentationResult, err error) {
	log := logger.WithFields(logrus.Fields{
		"input":      inputPath,
		"method":     method,
		"confidence": confidence,
	})
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = apperrors.NewInternalError("segmentation crashed", fmt.Errorf("panic: %v", r))
		}
	}()

	if !method.Valid() {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unknown segmentation method %q", method), nil)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("confidence %v is outside [0, 1]", confidence), nil)
	}

	img, err := imageio.Open(inputPath)
	if err != nil {
		return nil, classifyReadError(err)
	}

	res, err = e.attempt(ctx, method, img, outputPath, confidence)
	if err == nil {
		res.Requested = method
		log.WithField("detections", len(res.Detections)).Info("segmentation done")
		return res, nil
	}
	if method != entity.MethodPrimary {
		log.WithError(err).Warn("segmentation failed")
		return nil, err
	}

	log.WithError(err).Warn("primary backend failed, falling back to secondary")
	primaryDiag := apperrors.Diagnostic(err)

	res, err = e.attempt(ctx, entity.MethodSecondary, img, outputPath, confidence)
	if err != nil {
		log.WithError(err).Warn("secondary backend failed")
		return nil, withPrimaryDetails(err, primaryDiag)
	}

	res.Requested = method
	log.WithField("detections", len(res.Detections)).Info("segmentation done by fallback")
	return res, nil
}

// attempt одна попытка одного бэкенда: модель, инференс, фильтр, отрисовка, запись.
func (e *SegmentationEngine) attempt(ctx context.Context, method entity.Method, img image.Image, outputPath string, confidence float64) (res *entity.SegmentationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = apperrors.NewBackendUnavailableError(fmt.Sprintf("%s backend crashed", method), fmt.Errorf("panic: %v", r))
		}
	}()

	detector, err := e.models.Detector(ctx, method)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeBackendUnavailable) {
			return nil, err
		}
		return nil, apperrors.NewBackendUnavailableError(fmt.Sprintf("load %s model", method), err)
	}

	dets, err := detector.Detect(ctx, img, confidence)
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError(fmt.Sprintf("%s inference failed", method), err)
	}

	dets = entity.FilterByConfidence(dets, confidence)
	if len(dets) == 0 {
		return nil, apperrors.NewNoDetectionsError(fmt.Sprintf("%s backend found no objects above threshold %.2f", method, confidence))
	}

	var overlay *image.NRGBA
	if method == entity.MethodPrimary {
		overlay = vision.RenderBoxes(img, dets, e.colors)
	} else {
		overlay = vision.BlendMasks(img, dets, e.colors)
	}

	if err := imageio.SavePNG(overlay, outputPath); err != nil {
		return nil, apperrors.NewIoFailureError(fmt.Sprintf("write %s overlay", method), err)
	}

	return &entity.SegmentationResult{
		Backend:    method,
		Detections: dets,
		OutputPath: outputPath,
	}, nil
}

// withPrimaryDetails копирует ошибку запасного бэкенда и дописывает причину отказа основного.
// Сообщения обоих бэкендов уже содержат имя метода.
// Исходное значение может разделяться между горутинами, поэтому не меняется.
func withPrimaryDetails(err error, primaryDiag string) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return apperrors.NewInternalError("segmentation failed", err).WithDetails("%s", primaryDiag)
	}
	cp := *appErr
	return cp.WithDetails("%s", primaryDiag)
}
