// Package storage archives published sink files to a second location.
//
// A Shipper receives final file paths from the writer cache and uploads each one
// through an Uploader. Uploads run on a small worker pool and never block or fail
// the sink; failures are logged and counted.
package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	pkgstorage "github.com/jittakal/kafeventsink/pkg/storage"
)

// Supported archive backends.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendAzure = "azure"
)

// MetricsCollector defines metrics operations for archiving.
type MetricsCollector interface {
	IncArchiveUploads(backend string, status string)
	ObserveArchiveUploadDuration(backend string, duration float64)
	SetArchiveQueueDepth(n int)
}

// Config selects and configures the archive backend.
type Config struct {
	Backend           string
	Prefix            string
	DeleteAfterUpload bool
	Workers           int
	QueueSize         int
	UploadTimeout     time.Duration
	File              FileConfig
	S3                S3Config
	GCS               GCSConfig
	Azure             AzureConfig
}

// Enabled reports whether published files should be shipped at all.
func (c Config) Enabled() bool {
	return c.Backend != "" && c.Backend != BackendNone
}

// NewUploader builds the uploader for cfg.Backend.
func NewUploader(cfg Config, logger *slog.Logger) (pkgstorage.Uploader, error) {
	switch cfg.Backend {
	case BackendFile:
		return NewFileUploader(cfg.File, logger)
	case BackendS3:
		return NewS3Uploader(cfg.S3, logger)
	case BackendGCS:
		return NewGCSUploader(cfg.GCS, logger)
	case BackendAzure:
		return NewAzureUploader(cfg.Azure, logger)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %q", cfg.Backend)
	}
}

// contentType maps a published file name to the MIME type stored with the object.
func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return "application/gzip"
	case ".zst":
		return "application/zstd"
	case ".sz":
		return "application/x-snappy-framed"
	default:
		return "text/plain; charset=utf-8"
	}
}
