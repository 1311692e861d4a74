package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/kafeventsink/internal/errors"
	pkgstorage "github.com/jittakal/kafeventsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.Uploader = (*GCSUploader)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// GCSUploader uploads published files to a GCS bucket.
type GCSUploader struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// NewGCSUploader creates a GCS uploader. Credentials are taken from JSON, a
// file, or the default chain, in that order.
func NewGCSUploader(cfg GCSConfig, logger *slog.Logger) (*GCSUploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	client, err := storage.NewClient(context.Background(), gcsClientOptions(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS uploader created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
	)

	return &GCSUploader{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func gcsClientOptions(cfg GCSConfig, logger *slog.Logger) []option.ClientOption {
	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		logger.Info("using default GCP credentials")
	case cfg.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", "file", cfg.CredentialsFile)
	default:
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}
	return clientOpts
}

// Upload streams localPath to gs://bucket/key.
func (u *GCSUploader) Upload(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return &errors.StorageError{Operation: "open", Path: localPath, Err: err}
	}
	defer file.Close()

	target := "gs://" + u.bucket + "/" + key
	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(key)

	written, err := io.Copy(w, file)
	if err != nil {
		w.Close()
		return &errors.StorageError{Operation: "upload", Path: target, Err: err}
	}
	if err := w.Close(); err != nil {
		return &errors.StorageError{Operation: "upload", Path: target, Err: err}
	}

	u.logger.Debug("uploaded file to GCS",
		"bucket", u.bucket,
		"object", key,
		"bytes_written", written,
	)
	return nil
}

// Backend returns "gcs".
func (u *GCSUploader) Backend() string { return BackendGCS }

// Close closes the GCS client.
func (u *GCSUploader) Close() error {
	if u.client != nil {
		return u.client.Close()
	}
	return nil
}
