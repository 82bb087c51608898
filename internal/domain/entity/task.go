package entity

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// MaxBandLayers сколько отдельных файлов-каналов можно приложить к фото.
const MaxBandLayers = 8

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrForbidden     = errors.New("task belongs to another user")
	ErrEmptyTitle    = errors.New("task title is empty")
	ErrTooManyLayers = errors.New("too many band layers")
)

// NdviParams параметры расчёта NDVI
type NdviParams struct {
	Red int `json:"red"`
	Nir int `json:"nir"`
}

// SegmentationParams параметры сегментации
type SegmentationParams struct {
	Method     Method  `json:"method"`
	Confidence float64 `json:"confidence"`
	Backend    Method  `json:"backend,omitempty"` // заполнен только при успехе
}

// Task задача пользователя с фото и результатами анализа
type Task struct {
	ID           int64
	Title        string
	Description  string
	PhotoPath    string   // локальный путь к загруженному фото
	BandPaths    []string // дополнительные каналы, идут после каналов фото
	OwnerID      int64
	CreatedAt    time.Time
	Ndvi         Artifact[NdviParams]
	Segmentation Artifact[SegmentationParams]
}

// NewTask создаёт задачу без фото и результатов.
func NewTask(ownerID int64, title, description string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	return &Task{
		Title:       title,
		Description: strings.TrimSpace(description),
		OwnerID:     ownerID,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// HasPhoto сообщает, прикреплено ли фото.
func (t *Task) HasPhoto() bool {
	return t.PhotoPath != ""
}

// Layers возвращает файлы, из которых собирается многоканальный растр: фото и каналы по порядку.
func (t *Task) Layers() []string {
	if !t.HasPhoto() {
		return nil
	}
	return append([]string{t.PhotoPath}, t.BandPaths...)
}

// Clone возвращает копию задачи, не делящую срезы с оригиналом.
func (t Task) Clone() Task {
	t.BandPaths = slices.Clone(t.BandPaths)
	return t
}

// OwnedBy проверяет владельца задачи.
func (t *Task) OwnedBy(userID int64) bool {
	return t.OwnerID == userID
}
