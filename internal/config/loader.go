// Package config loads the sink configuration from YAML and APP_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/kafeventsink/internal/config/dto"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables.
// A missing file is not an error; defaults and environment apply.
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand environment variables in config values
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "kafka-event-sink")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.tls_skip_verify", false)
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.consumer.batch_max_bytes", 0)
	l.v.SetDefault("kafka.consumer.retry_backoff_ms", 5000)
	l.v.SetDefault("kafka.dlq.enabled", false)
	l.v.SetDefault("kafka.dlq.topic_suffix", "-dlq")
	l.v.SetDefault("kafka.dlq.max_retries", 3)

	// Sink defaults. The empty directory only registers the key for APP_SINK_DIRECTORY;
	// Validate still requires a value.
	l.v.SetDefault("sink.directory", "")
	l.v.SetDefault("sink.key_header", "file")
	l.v.SetDefault("sink.batch_size", 1000)
	l.v.SetDefault("sink.batch_timeout_ms", 1000)
	l.v.SetDefault("sink.separator", "\n")
	l.v.SetDefault("sink.idle_timeout_ms", 3600000)
	l.v.SetDefault("sink.flush_timeout_ms", 60000)
	l.v.SetDefault("sink.check_period_ms", 60000)
	l.v.SetDefault("sink.buffer_size", 64*1024)
	l.v.SetDefault("sink.max_record_bytes", 0)

	// Compression defaults
	l.v.SetDefault("compression.type", "")
	l.v.SetDefault("compression.extension", ".log")
	l.v.SetDefault("compression.buffer_size", 512)
	l.v.SetDefault("compression.sync_flush", false)
	l.v.SetDefault("compression.level", 0)

	// Archive defaults
	l.v.SetDefault("archive.backend", "none")
	l.v.SetDefault("archive.delete_after_upload", false)
	l.v.SetDefault("archive.workers", 2)
	l.v.SetDefault("archive.queue_size", 1024)
	l.v.SetDefault("archive.upload_timeout_seconds", 300)
	l.v.SetDefault("archive.s3.use_path_style", false)
	l.v.SetDefault("archive.s3.sse_enabled", true)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.logging.max_size_mb", 100)
	l.v.SetDefault("observability.logging.max_backups", 5)
	l.v.SetDefault("observability.logging.max_age_days", 30)
	l.v.SetDefault("observability.logging.compress", true)
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	// Kafka validation
	if len(config.Kafka.BootstrapServers) == 0 {
		return errors.New("kafka.bootstrap_servers is required")
	}
	if len(config.Kafka.Consumer.Topics) == 0 {
		return errors.New("kafka.consumer.topics is required")
	}
	if config.Kafka.Consumer.GroupID == "" {
		return errors.New("kafka.consumer.group_id is required")
	}
	if config.Kafka.Consumer.RetryBackoffMS < 0 {
		return fmt.Errorf("invalid kafka.consumer.retry_backoff_ms: %d", config.Kafka.Consumer.RetryBackoffMS)
	}

	// Sink validation
	if config.Sink.Directory == "" {
		return errors.New("sink.directory is required")
	}
	if err := config.Sink.Validate(); err != nil {
		return err
	}

	// Archive validation
	switch config.Archive.Backend {
	case "", "none":
	case "s3":
		if config.Archive.S3.Bucket == "" {
			return errors.New("archive.s3.bucket is required for S3 backend")
		}
		if config.Archive.S3.Region == "" {
			return errors.New("archive.s3.region is required for S3 backend")
		}
	case "azure":
		if config.Archive.Azure.AccountName == "" {
			return errors.New("archive.azure.account_name is required for Azure backend")
		}
		if config.Archive.Azure.Container == "" {
			return errors.New("archive.azure.container is required for Azure backend")
		}
	case "gcs":
		if config.Archive.GCS.Bucket == "" {
			return errors.New("archive.gcs.bucket is required for GCS backend")
		}
	case "file":
		if config.Archive.File.BasePath == "" {
			return errors.New("archive.file.base_path is required for file backend")
		}
	default:
		return fmt.Errorf("unsupported archive backend: %s", config.Archive.Backend)
	}

	// Port validation
	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}

	return nil
}
