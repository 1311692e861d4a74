// Package storage defines interfaces for archiving published files.
//
// Published files can be copied to another directory or uploaded to
// object storage (S3, Azure Blob, GCS) once they are final.
package storage

import "context"

// Uploader copies a local file to a storage backend.
type Uploader interface {
	// Upload stores the file at localPath under key.
	Upload(ctx context.Context, localPath, key string) error

	// Backend returns the backend name used in logs and metrics.
	Backend() string

	// Close releases client resources.
	Close() error
}
