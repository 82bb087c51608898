package port

import (
	"context"

	"ecoregen/internal/domain/entity"
)

// TaskRepository интерфейс хранилища задач
type TaskRepository interface {
	// Create сохраняет новую задачу и выставляет её ID
	Create(ctx context.Context, task *entity.Task) error

	// Get возвращает задачу или entity.ErrTaskNotFound
	Get(ctx context.Context, id int64) (*entity.Task, error)

	// ListByOwner возвращает задачи пользователя, новые первыми
	ListByOwner(ctx context.Context, ownerID int64) ([]*entity.Task, error)

	// Update читает задачу, применяет fn и сохраняет результат атомарно для этой задачи
	Update(ctx context.Context, id int64, fn func(task *entity.Task) error) (*entity.Task, error)

	// Delete удаляет задачу
	Delete(ctx context.Context, id int64) error
}
