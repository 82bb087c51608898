package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"ecoregen/internal/domain/port"
)

// AzurePublisher загружает результаты в контейнер Azure Blob Storage.
// Имя блоба повторяет путь файла относительно root.
type AzurePublisher struct {
	client    *azblob.Client
	container string
	root      string
}

// NewAzurePublisher создаёт публикатор с авторизацией по ключу аккаунта
func NewAzurePublisher(accountName, accountKey, container, root string) (*AzurePublisher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &AzurePublisher{client: client, container: container, root: root}, nil
}

func (p *AzurePublisher) Publish(ctx context.Context, localPath string) (string, error) {
	name, err := relativeTo(p.root, localPath)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	if _, err := p.client.UploadFile(ctx, p.container, name, f, nil); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return p.blobURL(name), nil
}

// Retract удаляет блоб результата; отсутствующий блоб не считается ошибкой.
func (p *AzurePublisher) Retract(ctx context.Context, localPath string) error {
	name, err := relativeTo(p.root, localPath)
	if err != nil {
		return err
	}
	if _, err := p.client.DeleteBlob(ctx, p.container, name, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (p *AzurePublisher) blobURL(name string) string {
	return strings.TrimRight(p.client.URL(), "/") + "/" + p.container + "/" + name
}

var _ port.ArtifactPublisher = (*AzurePublisher)(nil)
