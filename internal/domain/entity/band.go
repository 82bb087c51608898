package entity

import "fmt"

// MinNdviChannels минимальное число каналов для расчёта NDVI.
const MinNdviChannels = 3

// BandSelection пара индексов каналов (с нуля) для NDVI.
type BandSelection struct {
	Red int `json:"red"`
	Nir int `json:"nir"`
}

// DefaultBandSelection красный канал 0, ближний ИК канал 3 (R,G,B,NIR).
func DefaultBandSelection() BandSelection {
	return BandSelection{Red: 0, Nir: 3}
}

// Validate проверяет, что оба индекса попадают в [0, channels).
func (b BandSelection) Validate(channels int) error {
	if channels < MinNdviChannels {
		return fmt.Errorf("image has %d channel(s), at least %d required", channels, MinNdviChannels)
	}
	if b.Red < 0 || b.Red >= channels {
		return fmt.Errorf("red band index %d out of range [0, %d)", b.Red, channels)
	}
	if b.Nir < 0 || b.Nir >= channels {
		return fmt.Errorf("nir band index %d out of range [0, %d)", b.Nir, channels)
	}
	return nil
}
