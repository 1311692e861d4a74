package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/kafeventsink/internal/errors"
	pkgstorage "github.com/jittakal/kafeventsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.Uploader = (*S3Uploader)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// s3Uploader is the part of manager.Uploader used here.
type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Uploader uploads published files to an S3 bucket with multipart support
// and optional server-side encryption.
type S3Uploader struct {
	uploader    s3Uploader
	bucket      string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *slog.Logger
}

// NewS3Uploader creates an uploader using the default AWS credential chain.
func NewS3Uploader(cfg S3Config, logger *slog.Logger) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	// Load AWS config
	ctx := context.Background()
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 5
	})

	logger.Info("S3 uploader created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"sse_enabled", cfg.SSEEnabled,
	)

	return newS3Uploader(uploader, cfg, logger), nil
}

func newS3Uploader(uploader s3Uploader, cfg S3Config, logger *slog.Logger) *S3Uploader {
	return &S3Uploader{
		uploader:    uploader,
		bucket:      cfg.Bucket,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
	}
}

// Upload streams localPath to s3://bucket/key.
func (u *S3Uploader) Upload(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return &errors.StorageError{Operation: "open", Path: localPath, Err: err}
	}
	defer file.Close()

	input := u.putObjectInput(key)
	input.Body = file

	result, err := u.uploader.Upload(ctx, input)
	if err != nil {
		return &errors.StorageError{Operation: "upload", Path: "s3://" + u.bucket + "/" + key, Err: err}
	}

	u.logger.Debug("uploaded file to S3",
		"bucket", u.bucket,
		"key", key,
		"location", result.Location,
	)
	return nil
}

func (u *S3Uploader) putObjectInput(key string) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType(key)),
	}

	if u.sseEnabled {
		if u.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(u.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}
	return input
}

// Backend returns "s3".
func (u *S3Uploader) Backend() string { return BackendS3 }

// Close is a no-op.
func (u *S3Uploader) Close() error { return nil }
