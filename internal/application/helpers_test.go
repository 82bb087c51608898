package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
	apperrors "ecoregen/internal/errors"
)

// fakeDetector отдаёт заранее заданные детекции или ошибку.
type fakeDetector struct {
	detections []entity.Detection
	err        error
	panicMsg   string
}

func (d *fakeDetector) Detect(ctx context.Context, img image.Image, confidence float64) ([]entity.Detection, error) {
	if d.panicMsg != "" {
		panic(d.panicMsg)
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.detections, nil
}

// fakeProvider считает обращения к каждому методу.
type fakeProvider struct {
	mu        sync.Mutex
	detectors map[entity.Method]port.Detector
	loadErr   map[entity.Method]error
	calls     map[entity.Method]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		detectors: make(map[entity.Method]port.Detector),
		loadErr:   make(map[entity.Method]error),
		calls:     make(map[entity.Method]int),
	}
}

func (p *fakeProvider) Detector(ctx context.Context, method entity.Method) (port.Detector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[method]++
	if err := p.loadErr[method]; err != nil {
		return nil, err
	}
	d, ok := p.detectors[method]
	if !ok {
		return nil, apperrors.NewBackendUnavailableError("not configured", errors.New("missing"))
	}
	return d, nil
}

func (p *fakeProvider) callCount(method entity.Method) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// writePNG сохраняет NRGBA-изображение, заполненное цветом c.
func writePNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func fullMaskDetection(box image.Rectangle, score float64) entity.Detection {
	return entity.Detection{
		Label: "plant",
		Score: score,
		Box:   box,
		Mask:  &entity.Mask{Width: 1, Height: 1, Values: []float32{1}},
	}
}
