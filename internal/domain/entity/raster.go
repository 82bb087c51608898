package entity

import (
	"errors"
	"fmt"
)

// Raster декодированное многоканальное изображение.
// Значения хранятся построчно, каналы одного пикселя идут подряд.
// Диапазон значений совпадает с целочисленным диапазоном источника
// (0..255 для 8 бит, 0..65535 для 16 бит).
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []float64
}

// NewRaster создаёт пустой растр заданного размера.
func NewRaster(width, height, channels int) *Raster {
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float64, width*height*channels),
	}
}

func (r *Raster) offset(x, y, c int) int {
	return (y*r.Width+x)*r.Channels + c
}

// At возвращает значение канала c в пикселе (x, y).
func (r *Raster) At(x, y, c int) float64 {
	return r.Pix[r.offset(x, y, c)]
}

// Set записывает значение канала c в пиксель (x, y).
func (r *Raster) Set(x, y, c int, v float64) {
	r.Pix[r.offset(x, y, c)] = v
}

// StackRasters склеивает растры одного размера в один многоканальный.
// Порядок каналов повторяет порядок аргументов.
func StackRasters(layers ...*Raster) (*Raster, error) {
	if len(layers) == 0 {
		return nil, errors.New("no rasters to stack")
	}

	w, h := layers[0].Width, layers[0].Height
	total := 0
	for i, l := range layers {
		if l.Width != w || l.Height != h {
			return nil, fmt.Errorf("raster %d is %dx%d, want %dx%d", i, l.Width, l.Height, w, h)
		}
		total += l.Channels
	}

	out := NewRaster(w, h, total)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := 0
			for _, l := range layers {
				for c := 0; c < l.Channels; c++ {
					out.Set(x, y, base+c, l.At(x, y, c))
				}
				base += l.Channels
			}
		}
	}
	return out, nil
}
