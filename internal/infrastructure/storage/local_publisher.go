package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"ecoregen/internal/domain/port"
)

// LocalPublisher отдаёт результаты с диска: ссылка строится от базового URL,
// под которым раздаётся каталог root.
type LocalPublisher struct {
	root    string
	baseURL string
}

// NewLocalPublisher создаёт публикатор для каталога root
func NewLocalPublisher(root, baseURL string) *LocalPublisher {
	return &LocalPublisher{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *LocalPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	rel, err := relativeTo(p.root, localPath)
	if err != nil {
		return "", err
	}
	return p.baseURL + "/" + rel, nil
}

// Retract ничего не делает: ссылка перестаёт работать вместе с удалением файла.
func (p *LocalPublisher) Retract(ctx context.Context, localPath string) error {
	return nil
}

// relativeTo возвращает путь относительно root в виде с прямыми слешами.
func relativeTo(root, localPath string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	absPath, err := filepath.Abs(localPath)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside of %s", localPath, root)
	}
	return filepath.ToSlash(rel), nil
}

var _ port.ArtifactPublisher = (*LocalPublisher)(nil)
