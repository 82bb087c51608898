package port

import (
	"context"

	"ecoregen/internal/domain/entity"
)

// UserRepository интерфейс хранилища пользователей бота
type UserRepository interface {
	// Get возвращает пользователя по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет пользователя целиком
	Save(ctx context.Context, user *entity.User) error

	// Modify применяет fn к пользователю под блокировкой и возвращает копию результата
	Modify(ctx context.Context, userID, chatID int64, fn func(user *entity.User)) (*entity.User, error)
}
