package vision

import (
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/disintegration/imaging"

	"ecoregen/internal/domain/entity"
)

// MaskAlpha доля цвета экземпляра при наложении маски.
const MaskAlpha = 0.5

// ColorSource выдаёт цвет очередного экземпляра.
type ColorSource func() color.NRGBA

// RandomColor случайный непрозрачный цвет.
func RandomColor() color.NRGBA {
	return color.NRGBA{
		R: uint8(rand.IntN(256)),
		G: uint8(rand.IntN(256)),
		B: uint8(rand.IntN(256)),
		A: 0xff,
	}
}

var boxColor = color.NRGBA{G: 255, A: 255}

// RenderBoxes рисует рамки детекций поверх копии изображения.
// Маски, если они есть, накладываются перед рамками.
func RenderBoxes(img image.Image, detections []entity.Detection, colors ColorSource) *image.NRGBA {
	out := BlendMasks(img, detections, colors)
	for _, d := range detections {
		drawBox(out, d.Box, boxColor, 2)
	}
	return out
}

// BlendMasks накладывает на копию изображения маску каждого экземпляра своим цветом.
// Пиксель окрашивается, если вероятность маски не ниже entity.MaskThreshold.
func BlendMasks(img image.Image, detections []entity.Detection, colors ColorSource) *image.NRGBA {
	out := opaqueClone(img)
	if colors == nil {
		colors = RandomColor
	}

	bounds := out.Bounds()
	for _, d := range detections {
		if d.Mask == nil {
			continue
		}
		c := colors()
		box := d.Box.Intersect(bounds)
		w, h := float64(d.Box.Dx()), float64(d.Box.Dy())
		if box.Empty() || w == 0 || h == 0 {
			continue
		}

		for y := box.Min.Y; y < box.Max.Y; y++ {
			v := (float64(y-d.Box.Min.Y) + 0.5) / h
			for x := box.Min.X; x < box.Max.X; x++ {
				u := (float64(x-d.Box.Min.X) + 0.5) / w
				if d.Mask.Sample(u, v) < entity.MaskThreshold {
					continue
				}
				i := out.PixOffset(x, y)
				out.Pix[i+0] = blend(out.Pix[i+0], c.R)
				out.Pix[i+1] = blend(out.Pix[i+1], c.G)
				out.Pix[i+2] = blend(out.Pix[i+2], c.B)
			}
		}
	}
	return out
}

func blend(src, dst uint8) uint8 {
	return uint8(float64(src)*(1-MaskAlpha) + float64(dst)*MaskAlpha)
}

// opaqueClone копирует изображение в NRGBA с началом в (0,0) и делает его непрозрачным.
func opaqueClone(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for i := 0; i < stroke; i++ {
		drawHLine(img, r.Min.Y+i, r.Min.X, r.Max.X-1, c)
		drawHLine(img, r.Max.Y-1-i, r.Min.X, r.Max.X-1, c)
		drawVLine(img, r.Min.X+i, r.Min.Y, r.Max.Y-1, c)
		drawVLine(img, r.Max.X-1-i, r.Min.Y, r.Max.Y-1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	x0 = max(x0, b.Min.X)
	x1 = min(x1, b.Max.X-1)
	for x := x0; x <= x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	y0 = max(y0, b.Min.Y)
	y1 = min(y1, b.Max.Y-1)
	for y := y0; y <= y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
