//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
)

// MaskRCNNBackend заглушка тяжёлого бэкенда для сборки без OpenCV.
type MaskRCNNBackend struct {
	ModelPath  string
	ConfigPath string
}

// NewMaskRCNNBackend создаёт бэкенд-заглушку (без OpenCV).
func NewMaskRCNNBackend(modelPath, configPath string) *MaskRCNNBackend {
	return &MaskRCNNBackend{ModelPath: modelPath, ConfigPath: configPath}
}

func (b *MaskRCNNBackend) Method() entity.Method {
	return entity.MethodSecondary
}

// Load возвращает ошибку, если сборка без тега gocv.
func (b *MaskRCNNBackend) Load(ctx context.Context) (port.Detector, error) {
	_ = ctx
	return nil, errors.New("gocv build tag is not enabled")
}

var _ port.DetectorBackend = (*MaskRCNNBackend)(nil)
