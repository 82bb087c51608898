package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
)

// TaskRecord строка таблицы tasks.
// У каждого вида анализа три колонки: путь при успехе, текст ошибки при неудаче
// и параметры попытки. Путь и ошибка не заполняются одновременно.
type TaskRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"size:200;not null"`
	Description string `gorm:"type:text"`
	PhotoPath   string `gorm:"size:500"`
	BandPaths   datatypes.JSON
	OwnerID     int64 `gorm:"index;not null"`
	CreatedAt   time.Time

	NdviPath   *string `gorm:"size:500"`
	NdviParams datatypes.JSON
	NdviError  *string `gorm:"type:text"`

	SegmentationPath   *string `gorm:"size:500"`
	SegmentationParams datatypes.JSON
	SegmentationError  *string `gorm:"type:text"`
}

func (TaskRecord) TableName() string {
	return "tasks"
}

// OpenSQLite открывает базу по пути (создавая каталог) и мигрирует схему.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&TaskRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

// SQLiteTaskRepository хранилище задач на gorm + SQLite
type SQLiteTaskRepository struct {
	db *gorm.DB
}

// NewSQLiteTaskRepository создаёт хранилище поверх открытой базы
func NewSQLiteTaskRepository(db *gorm.DB) (*SQLiteTaskRepository, error) {
	if db == nil {
		return nil, errors.New("sqlite task repository requires database handle")
	}
	return &SQLiteTaskRepository{db: db}, nil
}

func (r *SQLiteTaskRepository) Create(ctx context.Context, task *entity.Task) error {
	rec, err := toRecord(task)
	if err != nil {
		return err
	}
	rec.ID = 0
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	task.ID = rec.ID
	return nil
}

func (r *SQLiteTaskRepository) Get(ctx context.Context, id int64) (*entity.Task, error) {
	var rec TaskRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err)
	}
	return fromRecord(&rec)
}

func (r *SQLiteTaskRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*entity.Task, error) {
	var recs []TaskRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]*entity.Task, 0, len(recs))
	for i := range recs {
		t, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Update читает и перезаписывает задачу в одной транзакции
func (r *SQLiteTaskRepository) Update(ctx context.Context, id int64, fn func(task *entity.Task) error) (*entity.Task, error) {
	var updated *entity.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec TaskRecord
		if err := tx.First(&rec, id).Error; err != nil {
			return notFound(err)
		}
		task, err := fromRecord(&rec)
		if err != nil {
			return err
		}
		if err := fn(task); err != nil {
			return err
		}
		task.ID = id

		next, err := toRecord(task)
		if err != nil {
			return err
		}
		if err := tx.Save(next).Error; err != nil {
			return fmt.Errorf("save task: %w", err)
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *SQLiteTaskRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&TaskRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return entity.ErrTaskNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.ErrTaskNotFound
	}
	return fmt.Errorf("get task: %w", err)
}

func toRecord(t *entity.Task) (*TaskRecord, error) {
	rec := &TaskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		PhotoPath:   t.PhotoPath,
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt,
	}

	if len(t.BandPaths) > 0 {
		raw, err := json.Marshal(t.BandPaths)
		if err != nil {
			return nil, fmt.Errorf("marshal band paths: %w", err)
		}
		rec.BandPaths = datatypes.JSON(raw)
	}

	var err error
	if rec.NdviPath, rec.NdviError, rec.NdviParams, err = artifactColumns(t.Ndvi); err != nil {
		return nil, err
	}
	if rec.SegmentationPath, rec.SegmentationError, rec.SegmentationParams, err = artifactColumns(t.Segmentation); err != nil {
		return nil, err
	}
	return rec, nil
}

func fromRecord(rec *TaskRecord) (*entity.Task, error) {
	t := &entity.Task{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		PhotoPath:   rec.PhotoPath,
		OwnerID:     rec.OwnerID,
		CreatedAt:   rec.CreatedAt,
	}

	if len(rec.BandPaths) > 0 {
		if err := json.Unmarshal(rec.BandPaths, &t.BandPaths); err != nil {
			return nil, fmt.Errorf("unmarshal band paths: %w", err)
		}
	}

	var err error
	if t.Ndvi, err = artifactFromColumns[entity.NdviParams](rec.NdviPath, rec.NdviError, rec.NdviParams); err != nil {
		return nil, err
	}
	if t.Segmentation, err = artifactFromColumns[entity.SegmentationParams](rec.SegmentationPath, rec.SegmentationError, rec.SegmentationParams); err != nil {
		return nil, err
	}
	return t, nil
}

func artifactColumns[P any](a entity.Artifact[P]) (path, diag *string, params datatypes.JSON, err error) {
	p, ok := a.Params()
	if !ok {
		return nil, nil, nil, nil
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal params: %w", err)
	}
	params = datatypes.JSON(raw)

	if ref, ok := a.Ref(); ok {
		return &ref, nil, params, nil
	}
	d, _ := a.Diagnostic()
	return nil, &d, params, nil
}

func artifactFromColumns[P any](path, diag *string, params datatypes.JSON) (entity.Artifact[P], error) {
	var p P
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return entity.Artifact[P]{}, fmt.Errorf("unmarshal params: %w", err)
		}
	}

	switch {
	case path != nil:
		return entity.ReadyArtifact(*path, p), nil
	case diag != nil:
		return entity.FailedArtifact(*diag, p), nil
	default:
		return entity.Artifact[P]{}, nil
	}
}

var _ port.TaskRepository = (*SQLiteTaskRepository)(nil)
