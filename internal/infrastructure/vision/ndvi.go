package vision

import (
	"image"
	"image/color"
	"math"

	"ecoregen/internal/domain/entity"
)

// ndviEpsilon заменяет нулевой знаменатель, чтобы чёрные пиксели давали индекс 0.
const ndviEpsilon = 1e-6

// NdviIndex считает (nir-red)/(nir+red) и ограничивает результат отрезком [-1, 1].
func NdviIndex(red, nir float64) float64 {
	denom := nir + red
	if denom == 0 {
		denom = ndviEpsilon
	}
	return math.Max(-1, math.Min(1, (nir-red)/denom))
}

// RampColor переводит индекс в цвет двухцветной шкалы: красный для низкой
// растительности, зелёный для высокой. Синий канал всегда 0.
func RampColor(index float64) color.NRGBA {
	norm := (index + 1) / 2
	return color.NRGBA{
		R: uint8((1 - norm) * 255),
		G: uint8(norm * 255),
		B: 0,
		A: 0xff,
	}
}

// RenderNdvi строит цветную карту NDVI того же размера, что и растр.
// Индексы каналов должны быть проверены заранее.
func RenderNdvi(r *entity.Raster, bands entity.BandSelection) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			idx := NdviIndex(r.At(x, y, bands.Red), r.At(x, y, bands.Nir))
			out.SetNRGBA(x, y, RampColor(idx))
		}
	}
	return out
}
