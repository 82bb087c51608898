//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
)

const (
	maskRCNNBoxesLayer = "detection_out_final"
	maskRCNNMasksLayer = "detection_masks"
)

// MaskRCNNBackend тяжёлый бэкенд: Mask R-CNN через OpenCV DNN.
type MaskRCNNBackend struct {
	ModelPath  string
	ConfigPath string
}

// NewMaskRCNNBackend создаёт бэкенд по путям к весам и конфигурации TensorFlow.
func NewMaskRCNNBackend(modelPath, configPath string) *MaskRCNNBackend {
	return &MaskRCNNBackend{ModelPath: modelPath, ConfigPath: configPath}
}

func (b *MaskRCNNBackend) Method() entity.Method {
	return entity.MethodSecondary
}

// Load читает сеть с диска.
func (b *MaskRCNNBackend) Load(ctx context.Context) (port.Detector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	net := gocv.ReadNet(b.ModelPath, b.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read mask r-cnn network from %s", b.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set dnn backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set dnn target: %w", err)
	}
	return &maskRCNNDetector{net: net}, nil
}

// maskRCNNDetector сеть OpenCV не потокобезопасна, поэтому вызовы сериализуются.
type maskRCNNDetector struct {
	mu  sync.Mutex
	net gocv.Net
}

func (d *maskRCNNDetector) Detect(ctx context.Context, img image.Image, confidence float64) ([]entity.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image to mat: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("empty image")
	}

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(mat.Cols(), mat.Rows()), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	outs := d.net.ForwardLayers([]string{maskRCNNBoxesLayer, maskRCNNMasksLayer})
	d.mu.Unlock()
	for i := range outs {
		defer outs[i].Close()
	}
	if len(outs) != 2 {
		return nil, fmt.Errorf("unexpected network outputs: %d", len(outs))
	}

	return decodeMaskRCNN(outs[0], outs[1], img.Bounds(), confidence)
}

// decodeMaskRCNN разбирает выходы сети: рамки [1,1,N,7] и маски [N,classes,mh,mw].
func decodeMaskRCNN(boxes, masks gocv.Mat, bounds image.Rectangle, confidence float64) ([]entity.Detection, error) {
	boxData, err := boxes.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read boxes: %w", err)
	}
	maskData, err := masks.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read masks: %w", err)
	}

	dims := masks.Size()
	if len(dims) != 4 {
		return nil, fmt.Errorf("unexpected mask shape %v", dims)
	}
	numClasses, mh, mw := dims[1], dims[2], dims[3]

	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	n := len(boxData) / 7
	dets := make([]entity.Detection, 0, n)
	for i := 0; i < n; i++ {
		row := boxData[i*7 : i*7+7]
		score := float64(row[2])
		if score < confidence {
			continue
		}
		classID := int(row[1])

		box := image.Rect(
			bounds.Min.X+int(clamp01(float64(row[3]))*w),
			bounds.Min.Y+int(clamp01(float64(row[4]))*h),
			bounds.Min.X+int(clamp01(float64(row[5]))*w),
			bounds.Min.Y+int(clamp01(float64(row[6]))*h),
		)
		if box.Empty() {
			continue
		}

		det := entity.Detection{Label: cocoLabel(classID), Score: score, Box: box}
		start := (i*numClasses + classID) * mh * mw
		if classID >= 0 && classID < numClasses && i < dims[0] && start+mh*mw <= len(maskData) {
			values := make([]float32, mh*mw)
			copy(values, maskData[start:start+mh*mw])
			det.Mask = &entity.Mask{Width: mw, Height: mh, Values: values}
		}
		dets = append(dets, det)
	}
	return dets, nil
}

var _ port.DetectorBackend = (*MaskRCNNBackend)(nil)
