package port

import "context"

// ArtifactPublisher делает готовое изображение доступным и возвращает ссылку на него
type ArtifactPublisher interface {
	Publish(ctx context.Context, localPath string) (string, error)

	// Retract снимает с публикации результат, на который задача больше не ссылается.
	// Локальный файл удаляет вызывающая сторона.
	Retract(ctx context.Context, localPath string) error
}
