package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/jittakal/kafeventsink/internal/errors"
	pkgstorage "github.com/jittakal/kafeventsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.Uploader = (*AzureUploader)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// AzureUploader uploads published files as block blobs.
type AzureUploader struct {
	client        *azblob.Client
	containerName string
	logger        *slog.Logger
}

// NewAzureUploader creates an uploader from shared key credentials.
func NewAzureUploader(cfg AzureConfig, logger *slog.Logger) (*AzureUploader, error) {
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure container name is required")
	}

	client, err := azblob.NewClientFromConnectionString(azureConnectionString(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure uploader created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
	)

	return &AzureUploader{
		client:        client,
		containerName: cfg.ContainerName,
		logger:        logger,
	}, nil
}

// azureConnectionString points at cfg.Endpoint when set (Azurite, sovereign clouds).
func azureConnectionString(cfg AzureConfig) string {
	if cfg.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		cfg.AccountName, cfg.AccountKey)
}

// Upload stores localPath as blob key in the configured container.
func (u *AzureUploader) Upload(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return &errors.StorageError{Operation: "open", Path: localPath, Err: err}
	}
	defer file.Close()

	ct := contentType(key)
	_, err = u.client.UploadFile(ctx, u.containerName, key, file, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		return &errors.StorageError{Operation: "upload", Path: u.containerName + "/" + key, Err: err}
	}

	u.logger.Debug("uploaded file to Azure Blob",
		"container", u.containerName,
		"blob", key,
	)
	return nil
}

// Backend returns "azure".
func (u *AzureUploader) Backend() string { return BackendAzure }

// Close is a no-op.
func (u *AzureUploader) Close() error { return nil }
