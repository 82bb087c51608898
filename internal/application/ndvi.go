package app

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/sirupsen/logrus"

	"ecoregen/internal/domain/entity"
	apperrors "ecoregen/internal/errors"
	"ecoregen/internal/infrastructure/imageio"
	"ecoregen/internal/infrastructure/vision"
	"ecoregen/internal/logger"
)

// NdviEngine строит карту NDVI по паре каналов изображения.
type NdviEngine struct{}

// NewNdviEngine создаёт движок NDVI.
func NewNdviEngine() *NdviEngine {
	return &NdviEngine{}
}

// ComputeNdvi читает inputPath, считает индекс и сохраняет PNG в outputPath.
// Возвращает nil при успехе или *apperrors.AppError; паники не выходят наружу.
func (e *NdviEngine) ComputeNdvi(inputPath, outputPath string, bands entity.BandSelection) error {
	return e.ComputeNdviLayers([]string{inputPath}, outputPath, bands)
}

// ComputeNdviLayers собирает многоканальный растр из нескольких файлов одного
// размера (каналы идут в порядке файлов) и считает по нему NDVI.
// Так снимок с отдельными файлами каналов NIR, SWIR и т.п. даёт больше четырёх каналов.
func (e *NdviEngine) ComputeNdviLayers(inputPaths []string, outputPath string, bands entity.BandSelection) (err error) {
	log := logger.WithFields(logrus.Fields{
		"inputs": inputPaths,
		"red":    bands.Red,
		"nir":    bands.Nir,
	})
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewInternalError("ndvi computation crashed", fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			log.WithError(err).Warn("ndvi failed")
		}
	}()

	if len(inputPaths) == 0 {
		return apperrors.NewInvalidInputError("no input image", nil)
	}
	if bands.Red < 0 || bands.Nir < 0 {
		return apperrors.NewInvalidInputError("band indices must be non-negative", nil)
	}

	layers := make([]*entity.Raster, 0, len(inputPaths))
	for _, path := range inputPaths {
		layer, err := imageio.ReadRaster(path)
		if err != nil {
			return classifyReadError(err)
		}
		layers = append(layers, layer)
	}

	raster := layers[0]
	if len(layers) > 1 {
		if raster, err = entity.StackRasters(layers...); err != nil {
			return apperrors.NewInvalidInputError("band layers do not match", err)
		}
	}

	if err := bands.Validate(raster.Channels); err != nil {
		return apperrors.NewInvalidInputError("invalid band selection", err)
	}

	out := vision.RenderNdvi(raster, bands)
	if err := imageio.SavePNG(out, outputPath); err != nil {
		return apperrors.NewIoFailureError("write ndvi image", err)
	}

	log.WithFields(logrus.Fields{
		"output":   outputPath,
		"width":    raster.Width,
		"height":   raster.Height,
		"channels": raster.Channels,
	}).Info("ndvi computed")
	return nil
}

// classifyReadError отличает недоступный файл от файла, который не удалось декодировать.
func classifyReadError(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return apperrors.NewIoFailureError("read input image", err)
	}
	return apperrors.NewInvalidInputError("decode input image", err)
}
