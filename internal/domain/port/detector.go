package port

import (
	"context"
	"image"

	"ecoregen/internal/domain/entity"
)

// Detector загруженная модель детекции/сегментации
type Detector interface {
	// Detect возвращает объекты с уверенностью не ниже confidence
	Detect(ctx context.Context, img image.Image, confidence float64) ([]entity.Detection, error)
}

// DetectorBackend способ загрузить модель одного метода
type DetectorBackend interface {
	// Method возвращает метод, который обслуживает бэкенд
	Method() entity.Method

	// Load инициализирует модель; может быть долгим
	Load(ctx context.Context) (Detector, error)
}

// DetectorProvider выдаёт загруженные модели по методу
type DetectorProvider interface {
	Detector(ctx context.Context, method entity.Method) (Detector, error)
}
