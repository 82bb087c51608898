package storage

import (
	"context"
	"sort"
	"sync"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
)

// MemoryTaskRepository in-memory хранилище задач для тестов и запуска без базы
type MemoryTaskRepository struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]entity.Task
}

// NewMemoryTaskRepository создаёт пустое хранилище задач
func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[int64]entity.Task)}
}

func (r *MemoryTaskRepository) Create(ctx context.Context, task *entity.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	task.ID = r.nextID
	r.tasks[task.ID] = task.Clone()
	return nil
}

func (r *MemoryTaskRepository) Get(ctx context.Context, id int64) (*entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, entity.ErrTaskNotFound
	}
	t = t.Clone()
	return &t, nil
}

func (r *MemoryTaskRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*entity.Task, 0)
	for _, t := range r.tasks {
		if t.OwnerID == ownerID {
			t := t.Clone()
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update применяет fn к копии задачи и сохраняет её, только если fn не вернула ошибку
func (r *MemoryTaskRepository) Update(ctx context.Context, id int64, fn func(task *entity.Task) error) (*entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tasks[id]
	if !ok {
		return nil, entity.ErrTaskNotFound
	}
	t := stored.Clone()
	if err := fn(&t); err != nil {
		return nil, err
	}
	t.ID = id
	r.tasks[id] = t
	out := t.Clone()
	return &out, nil
}

func (r *MemoryTaskRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return entity.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

var _ port.TaskRepository = (*MemoryTaskRepository)(nil)
