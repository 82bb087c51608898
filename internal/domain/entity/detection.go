package entity

import (
	"image"
	"math"
)

// MaskThreshold порог вероятности маски, начиная с которого пиксель принадлежит объекту.
const MaskThreshold = 0.5

// Mask сетка вероятностей, растянутая на рамку объекта.
type Mask struct {
	Width  int
	Height int
	Values []float32
}

// Sample возвращает вероятность в относительной точке (u, v) рамки, u и v в [0, 1].
// Значение интерполируется билинейно между узлами сетки.
func (m *Mask) Sample(u, v float64) float64 {
	if m == nil || m.Width == 0 || m.Height == 0 {
		return 0
	}

	fx := clampUnit(u)*float64(m.Width) - 0.5
	fy := clampUnit(v)*float64(m.Height) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	top := lerp(m.at(x0, y0), m.at(x0+1, y0), dx)
	bottom := lerp(m.at(x0, y0+1), m.at(x0+1, y0+1), dx)
	return lerp(top, bottom, dy)
}

func (m *Mask) at(x, y int) float64 {
	x = min(max(x, 0), m.Width-1)
	y = min(max(y, 0), m.Height-1)
	return float64(m.Values[y*m.Width+x])
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clampUnit(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// Detection найденный объект
type Detection struct {
	Label string          // класс объекта
	Score float64         // уверенность модели в [0, 1]
	Box   image.Rectangle // рамка в пикселях исходного изображения
	Mask  *Mask           // маска экземпляра, nil если бэкенд её не даёт
}

// FilterByConfidence оставляет детекции с уверенностью не ниже порога.
func FilterByConfidence(detections []Detection, confidence float64) []Detection {
	kept := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Score >= confidence {
			kept = append(kept, d)
		}
	}
	return kept
}
