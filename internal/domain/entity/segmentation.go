package entity

import (
	"fmt"
	"strings"
)

// Method бэкенд сегментации
type Method string

const (
	MethodPrimary   Method = "primary"   // быстрый бэкенд по умолчанию
	MethodSecondary Method = "secondary" // тяжёлый запасной бэкенд
)

// DefaultConfidence порог уверенности по умолчанию.
const DefaultConfidence = 0.25

// ParseMethod разбирает название метода; пустая строка даёт primary.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodPrimary:
		return MethodPrimary, nil
	case MethodSecondary:
		return MethodSecondary, nil
	default:
		return "", fmt.Errorf("unknown segmentation method %q", s)
	}
}

// Valid сообщает, известен ли метод.
func (m Method) Valid() bool {
	return m == MethodPrimary || m == MethodSecondary
}

// SegmentationResult итог сегментации.
type SegmentationResult struct {
	Requested  Method      // запрошенный метод
	Backend    Method      // метод, который реально построил изображение
	Detections []Detection // детекции после фильтрации
	OutputPath string
}

// FellBack сообщает, что результат получен запасным бэкендом вместо запрошенного.
func (r *SegmentationResult) FellBack() bool {
	return r.Backend != r.Requested
}
