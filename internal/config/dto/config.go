// Package dto holds the configuration structures decoded by the config loader.
package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Sink          SinkConfig          `mapstructure:"sink"`
	Compression   CompressionConfig   `mapstructure:"compression"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	AWSRegion        string         `mapstructure:"aws_region"`
	TLSSkipVerify    bool           `mapstructure:"tls_skip_verify"`
	Consumer         ConsumerConfig `mapstructure:"consumer"`
	DLQ              DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
	BatchMaxBytes       int64    `mapstructure:"batch_max_bytes"`
	RetryBackoffMS      int      `mapstructure:"retry_backoff_ms"`
}

// RetryBackoff returns the pause before rejoining the group after a failed batch.
func (c ConsumerConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

// SinkConfig configures the file sink.
type SinkConfig struct {
	Directory      string `mapstructure:"directory"`
	KeyHeader      string `mapstructure:"key_header"`
	BatchSize      int    `mapstructure:"batch_size"`
	BatchTimeoutMS int    `mapstructure:"batch_timeout_ms"`
	Separator      string `mapstructure:"separator"`
	IdleTimeoutMS  int64  `mapstructure:"idle_timeout_ms"`
	FlushTimeoutMS int64  `mapstructure:"flush_timeout_ms"`
	CheckPeriodMS  int64  `mapstructure:"check_period_ms"`
	BufferSize     int    `mapstructure:"buffer_size"`
	MaxRecordBytes int    `mapstructure:"max_record_bytes"`
}

// BatchTimeout returns how long the consumer waits before delivering a partial batch.
func (c SinkConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutMS) * time.Millisecond
}

// IdleTimeout returns the inactivity period after which a file is published.
func (c SinkConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMS) * time.Millisecond
}

// FlushTimeout returns the inactivity period after which a file is flushed.
func (c SinkConfig) FlushTimeout() time.Duration {
	return time.Duration(c.FlushTimeoutMS) * time.Millisecond
}

// CheckPeriod returns the sweep interval.
func (c SinkConfig) CheckPeriod() time.Duration {
	return time.Duration(c.CheckPeriodMS) * time.Millisecond
}

// Validate validates sink configuration.
func (c *SinkConfig) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("sink directory is required")
	}
	if c.KeyHeader == "" {
		return fmt.Errorf("sink key header is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("sink batch size must be positive, got %d", c.BatchSize)
	}
	if c.BatchTimeoutMS <= 0 {
		return fmt.Errorf("sink batch timeout must be positive, got %d", c.BatchTimeoutMS)
	}
	if c.IdleTimeoutMS <= 0 {
		return fmt.Errorf("sink idle timeout must be positive, got %d", c.IdleTimeoutMS)
	}
	if c.FlushTimeoutMS <= 0 {
		return fmt.Errorf("sink flush timeout must be positive, got %d", c.FlushTimeoutMS)
	}
	if c.CheckPeriodMS <= 0 {
		return fmt.Errorf("sink check period must be positive, got %d", c.CheckPeriodMS)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("sink buffer size must not be negative, got %d", c.BufferSize)
	}
	if c.MaxRecordBytes < 0 {
		return fmt.Errorf("sink max record bytes must not be negative, got %d", c.MaxRecordBytes)
	}
	return nil
}

// CompressionConfig selects the codec wrapped around every output file.
type CompressionConfig struct {
	Type       string `mapstructure:"type"`
	Extension  string `mapstructure:"extension"`
	BufferSize int    `mapstructure:"buffer_size"`
	SyncFlush  bool   `mapstructure:"sync_flush"`
	Level      int    `mapstructure:"level"`
}

// ArchiveConfig configures shipping of published files.
type ArchiveConfig struct {
	Backend              string      `mapstructure:"backend"`
	Prefix               string      `mapstructure:"prefix"`
	DeleteAfterUpload    bool        `mapstructure:"delete_after_upload"`
	Workers              int         `mapstructure:"workers"`
	QueueSize            int         `mapstructure:"queue_size"`
	UploadTimeoutSeconds int         `mapstructure:"upload_timeout_seconds"`
	S3                   S3Config    `mapstructure:"s3"`
	Azure                AzureConfig `mapstructure:"azure"`
	GCS                  GCSConfig   `mapstructure:"gcs"`
	File                 FileConfig  `mapstructure:"file"`
}

// UploadTimeout bounds a single upload. Zero means no limit.
func (c ArchiveConfig) UploadTimeout() time.Duration {
	return time.Duration(c.UploadTimeoutSeconds) * time.Second
}

// Validate checks the settings of the selected backend.
func (c *ArchiveConfig) Validate() error {
	switch c.Backend {
	case "", "none":
		return nil
	case "s3":
		return c.S3.Validate()
	case "azure":
		return c.Azure.Validate()
	case "gcs":
		return c.GCS.Validate()
	case "file":
		return c.File.Validate()
	default:
		return fmt.Errorf("unsupported archive backend: %s", c.Backend)
	}
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	Endpoint             string `mapstructure:"endpoint"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings. Output is stdout, stderr or a file path.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// GracePeriod bounds how long the HTTP servers get to drain.
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.Kafka.Consumer.GroupID == "" {
		return fmt.Errorf("kafka consumer group ID is required")
	}
	if err := c.Sink.Validate(); err != nil {
		return err
	}
	return c.Archive.Validate()
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}
