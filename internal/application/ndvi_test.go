package app

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ecoregen/internal/domain/entity"
	apperrors "ecoregen/internal/errors"
)

func TestNdviEngine_SameSizeAndCreatesParents(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "deep", "nested", "out.png")
	writePNG(t, in, 7, 5, color.NRGBA{R: 40, G: 90, B: 10, A: 200})

	err := NewNdviEngine().ComputeNdvi(in, out, entity.DefaultBandSelection())
	require.NoError(t, err)

	img := readPNG(t, out)
	require.Equal(t, image.Rect(0, 0, 7, 5), img.Bounds())
}

func TestNdviEngine_GrayRegionIsMidRamp(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "gray.png")
	out := filepath.Join(dir, "out.png")
	writePNG(t, in, 4, 4, color.NRGBA{R: 128, G: 128, B: 128, A: 128})

	require.NoError(t, NewNdviEngine().ComputeNdvi(in, out, entity.BandSelection{Red: 0, Nir: 3}))

	r, g, b, _ := readPNG(t, out).At(2, 2).RGBA()
	require.Equal(t, uint32(127), r>>8)
	require.Equal(t, uint32(127), g>>8)
	require.Zero(t, b)
}

func TestNdviEngine_BlackPixelsAreFinite(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "black.png")
	out := filepath.Join(dir, "out.png")
	writePNG(t, in, 2, 2, color.NRGBA{A: 0})

	require.NoError(t, NewNdviEngine().ComputeNdvi(in, out, entity.BandSelection{Red: 0, Nir: 3}))

	r, g, _, _ := readPNG(t, out).At(0, 0).RGBA()
	require.Equal(t, uint32(127), r>>8)
	require.Equal(t, uint32(127), g>>8)
}

func TestNdviEngine_BandOutOfRange(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "rgb.jpg")
	out := filepath.Join(dir, "out.png")

	// непрозрачный PNG декодируется как трёхканальный
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(in, buf.Bytes(), 0o644))

	err := NewNdviEngine().ComputeNdvi(in, out, entity.BandSelection{Red: 5, Nir: 1})
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))

	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}

func TestNdviEngine_SingleBandRejected(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "gray.png")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	require.NoError(t, os.WriteFile(in, buf.Bytes(), 0o644))

	err := NewNdviEngine().ComputeNdvi(in, filepath.Join(dir, "out.png"), entity.BandSelection{Red: 0, Nir: 0})
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
}

func TestNdviEngine_MissingInputIsIoFailure(t *testing.T) {
	dir := t.TempDir()
	err := NewNdviEngine().ComputeNdvi(filepath.Join(dir, "missing.png"), filepath.Join(dir, "out.png"), entity.DefaultBandSelection())
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeIoFailure))
}

func TestNdviEngine_UndecodableInputIsInvalid(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(in, []byte("definitely not pixels"), 0o644))

	err := NewNdviEngine().ComputeNdvi(in, filepath.Join(dir, "out.png"), entity.DefaultBandSelection())
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
}

func TestNdviEngine_UnwritableOutputIsIoFailure(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writePNG(t, in, 2, 2, color.NRGBA{R: 1, A: 2})

	// родитель выхода существует как обычный файл
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewNdviEngine().ComputeNdvi(in, filepath.Join(blocker, "out.png"), entity.DefaultBandSelection())
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeIoFailure))
}

func TestNdviEngine_Idempotent(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writePNG(t, in, 5, 5, color.NRGBA{R: 30, G: 60, B: 90, A: 180})

	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	engine := NewNdviEngine()
	require.NoError(t, engine.ComputeNdvi(in, a, entity.DefaultBandSelection()))
	require.NoError(t, engine.ComputeNdvi(in, b, entity.DefaultBandSelection()))

	first, err := os.ReadFile(a)
	require.NoError(t, err)
	second, err := os.ReadFile(b)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// encodePNGFile сохраняет img как есть, сохраняя его цветовую модель.
func encodePNGFile(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestNdviEngine_StackedLayersBeyondFourChannels(t *testing.T) {
	dir := t.TempDir()

	rgb := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := 0; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i], rgb.Pix[i+3] = 50, 0xff
	}
	photo := filepath.Join(dir, "rgb.png")
	encodePNGFile(t, photo, rgb)

	nir := filepath.Join(dir, "nir.png")
	encodePNGFile(t, nir, uniformGray(3, 2, 10))
	swir := filepath.Join(dir, "swir.png")
	encodePNGFile(t, swir, uniformGray(3, 2, 150))

	out := filepath.Join(dir, "out.png")
	// каналы: R G B (фото), 3 (nir.png), 4 (swir.png)
	err := NewNdviEngine().ComputeNdviLayers([]string{photo, nir, swir}, out, entity.BandSelection{Red: 0, Nir: 4})
	require.NoError(t, err)

	// (150-50)/(150+50) = 0.5, норма 0.75
	r, g, b, _ := readPNG(t, out).At(1, 1).RGBA()
	require.Equal(t, uint32(63), r>>8)
	require.Equal(t, uint32(191), g>>8)
	require.Zero(t, b)

	err = NewNdviEngine().ComputeNdviLayers([]string{photo, nir}, out, entity.BandSelection{Red: 0, Nir: 4})
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
}

func TestNdviEngine_MismatchedLayersRejected(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "rgb.png")
	writePNG(t, photo, 4, 4, color.NRGBA{R: 10, A: 255})
	nir := filepath.Join(dir, "nir.png")
	encodePNGFile(t, nir, uniformGray(2, 2, 100))

	err := NewNdviEngine().ComputeNdviLayers([]string{photo, nir}, filepath.Join(dir, "out.png"), entity.BandSelection{Red: 0, Nir: 4})
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
	require.Contains(t, apperrors.Diagnostic(err), "band layers do not match")
}
