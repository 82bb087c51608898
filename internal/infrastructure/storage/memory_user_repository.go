package storage

import (
	"context"
	"sync"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
)

// MemoryUserRepository in-memory хранилище пользователей.
// Наружу отдаются копии, чтобы обработчики в разных горутинах не делили одно значение.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[int64]entity.User
}

// NewMemoryUserRepository создаёт новое in-memory хранилище
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]entity.User),
	}
}

// Get возвращает пользователя по ID, создаёт нового если не найден
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.getLocked(userID, chatID)
	return &u, nil
}

// Save сохраняет пользователя целиком
func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	r.users[user.ID] = *user
	r.mu.Unlock()

	return nil
}

// Modify применяет fn к пользователю под блокировкой
func (r *MemoryUserRepository) Modify(ctx context.Context, userID, chatID int64, fn func(user *entity.User)) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.getLocked(userID, chatID)
	fn(&u)
	r.users[userID] = u
	return &u, nil
}

func (r *MemoryUserRepository) getLocked(userID, chatID int64) entity.User {
	if u, ok := r.users[userID]; ok {
		return u
	}
	u := *entity.NewUser(userID, chatID)
	r.users[userID] = u
	return u
}

// Проверка реализации интерфейса
var _ port.UserRepository = (*MemoryUserRepository)(nil)
