package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ecoregen/internal/domain/entity"
)

// parseBands разбирает аргументы /ndvi: пусто или два индекса каналов
func parseBands(args []string) (entity.BandSelection, error) {
	switch len(args) {
	case 0:
		return entity.DefaultBandSelection(), nil
	case 2:
		red, err := strconv.Atoi(args[0])
		if err != nil {
			return entity.BandSelection{}, fmt.Errorf("Индекс red должен быть числом: %q", args[0])
		}
		nir, err := strconv.Atoi(args[1])
		if err != nil {
			return entity.BandSelection{}, fmt.Errorf("Индекс nir должен быть числом: %q", args[1])
		}
		return entity.BandSelection{Red: red, Nir: nir}, nil
	default:
		return entity.BandSelection{}, errors.New("Пример: /ndvi 0 3")
	}
}

// parseSegmentation разбирает аргументы /segment в любом порядке: метод и порог
func parseSegmentation(args []string) (entity.Method, float64, error) {
	method := entity.MethodPrimary
	confidence := entity.DefaultConfidence
	if len(args) > 2 {
		return "", 0, errors.New("Пример: /segment primary 0.25")
	}

	for _, a := range args {
		if v, err := strconv.ParseFloat(strings.Replace(a, ",", ".", 1), 64); err == nil {
			if v < 0 || v > 1 {
				return "", 0, fmt.Errorf("Порог должен быть от 0 до 1, получено %v", v)
			}
			confidence = v
			continue
		}
		m, err := entity.ParseMethod(a)
		if err != nil {
			return "", 0, fmt.Errorf("Неизвестный метод %q, доступны primary и secondary", a)
		}
		method = m
	}
	return method, confidence, nil
}

// isBandCaption сообщает, что файл прислан как дополнительный канал
func isBandCaption(caption string) bool {
	c := strings.TrimPrefix(strings.TrimSpace(caption), "/")
	return strings.EqualFold(c, "band")
}
