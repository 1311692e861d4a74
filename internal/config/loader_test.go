package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jittakal/kafeventsink/internal/config/dto"
)

const minimalConfig = `
kafka:
  bootstrap_servers:
    - localhost:9092
  consumer:
    group_id: sink-group
    topics:
      - logs
sink:
  directory: /var/lib/sink
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "application.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("expected non-nil loader")
	}
	if loader.v == nil {
		t.Fatal("expected non-nil viper instance")
	}
}

func TestLoader_LoadDefaults(t *testing.T) {
	config, err := NewLoader().Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sink := config.Sink
	if sink.Directory != "/var/lib/sink" {
		t.Errorf("Sink.Directory = %q", sink.Directory)
	}
	if sink.KeyHeader != "file" {
		t.Errorf("Sink.KeyHeader = %q, want file", sink.KeyHeader)
	}
	if sink.BatchSize != 1000 {
		t.Errorf("Sink.BatchSize = %d, want 1000", sink.BatchSize)
	}
	if sink.Separator != "\n" {
		t.Errorf("Sink.Separator = %q, want newline", sink.Separator)
	}
	if sink.IdleTimeout() != time.Hour {
		t.Errorf("IdleTimeout() = %v, want 1h", sink.IdleTimeout())
	}
	if sink.FlushTimeout() != time.Minute {
		t.Errorf("FlushTimeout() = %v, want 1m", sink.FlushTimeout())
	}
	if sink.CheckPeriod() != time.Minute {
		t.Errorf("CheckPeriod() = %v, want 1m", sink.CheckPeriod())
	}
	if sink.BufferSize != 64*1024 {
		t.Errorf("Sink.BufferSize = %d, want 65536", sink.BufferSize)
	}
	if config.Compression.Type != "" || config.Compression.Extension != ".log" || config.Compression.BufferSize != 512 {
		t.Errorf("Compression = %+v", config.Compression)
	}
	if config.Archive.Backend != "none" {
		t.Errorf("Archive.Backend = %q, want none", config.Archive.Backend)
	}
	if config.Observability.Logging.Output != "stdout" {
		t.Errorf("Logging.Output = %q, want stdout", config.Observability.Logging.Output)
	}
	if config.Shutdown.GracePeriod() != 30*time.Second {
		t.Errorf("GracePeriod() = %v, want 30s", config.Shutdown.GracePeriod())
	}
}

func TestLoader_LoadOverrides(t *testing.T) {
	content := minimalConfig + `
  separator: ""
  idle_timeout_ms: 100
  flush_timeout_ms: 10
  check_period_ms: 20
compression:
  type: gz
  extension: txt
  sync_flush: true
archive:
  backend: file
  prefix: raw
  file:
    base_path: /mnt/archive
`
	config, err := NewLoader().Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Sink.Separator != "" {
		t.Errorf("Sink.Separator = %q, want empty", config.Sink.Separator)
	}
	if config.Sink.IdleTimeout() != 100*time.Millisecond || config.Sink.FlushTimeout() != 10*time.Millisecond {
		t.Errorf("timeouts = %v/%v", config.Sink.IdleTimeout(), config.Sink.FlushTimeout())
	}
	if config.Compression.Type != "gz" || config.Compression.Extension != "txt" || !config.Compression.SyncFlush {
		t.Errorf("Compression = %+v", config.Compression)
	}
	if config.Archive.Backend != "file" || config.Archive.File.BasePath != "/mnt/archive" || config.Archive.Prefix != "raw" {
		t.Errorf("Archive = %+v", config.Archive)
	}
}

func TestLoader_EnvironmentExpansion(t *testing.T) {
	t.Setenv("SINK_TEST_ROOT", "/data/out")
	content := strings.Replace(minimalConfig, "/var/lib/sink", "${SINK_TEST_ROOT}/logs", 1)

	config, err := NewLoader().Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Sink.Directory != "/data/out/logs" {
		t.Errorf("Sink.Directory = %q, want /data/out/logs", config.Sink.Directory)
	}
}

func TestLoader_EnvironmentOverride(t *testing.T) {
	t.Setenv("APP_SINK_DIRECTORY", "/from/env")
	t.Setenv("APP_SINK_KEY_HEADER", "path")

	config, err := NewLoader().Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Sink.Directory != "/from/env" {
		t.Errorf("Sink.Directory = %q, want /from/env", config.Sink.Directory)
	}
	if config.Sink.KeyHeader != "path" {
		t.Errorf("Sink.KeyHeader = %q, want path", config.Sink.KeyHeader)
	}
}

func TestLoader_MissingDirectoryIsFatal(t *testing.T) {
	content := strings.Replace(minimalConfig, "  directory: /var/lib/sink\n", "  key_header: file\n", 1)

	_, err := NewLoader().Load(writeConfig(t, content))
	if err == nil || !strings.Contains(err.Error(), "sink.directory") {
		t.Fatalf("Load() error = %v, want sink.directory error", err)
	}
}

func TestLoader_LoadWithMissingFile(t *testing.T) {
	// Defaults alone lack brokers, topics and directory.
	if _, err := NewLoader().Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() expected validation error without required settings")
	}
}

func TestLoader_LoadWithInvalidYAML(t *testing.T) {
	if _, err := NewLoader().Load(writeConfig(t, "kafka: [unterminated")); err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func validConfig() *dto.ApplicationConfig {
	return &dto.ApplicationConfig{
		Application: dto.ApplicationInfo{Name: "sink"},
		Kafka: dto.KafkaConfig{
			BootstrapServers: []string{"localhost:9092"},
			Consumer: dto.ConsumerConfig{
				GroupID: "g",
				Topics:  []string{"logs"},
			},
		},
		Sink: dto.SinkConfig{
			Directory:      "/tmp/sink",
			KeyHeader:      "file",
			BatchSize:      1000,
			BatchTimeoutMS: 1000,
			Separator:      "\n",
			IdleTimeoutMS:  3600000,
			FlushTimeoutMS: 60000,
			CheckPeriodMS:  60000,
		},
		Archive: dto.ArchiveConfig{Backend: "none"},
		Observability: dto.ObservabilityConfig{
			Metrics: dto.MetricsConfig{Port: 9090},
			Health:  dto.HealthConfig{Port: 8080},
		},
	}
}

func TestLoader_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*dto.ApplicationConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*dto.ApplicationConfig) {}},
		{name: "no brokers", mutate: func(c *dto.ApplicationConfig) { c.Kafka.BootstrapServers = nil }, wantErr: "bootstrap_servers"},
		{name: "no topics", mutate: func(c *dto.ApplicationConfig) { c.Kafka.Consumer.Topics = nil }, wantErr: "topics"},
		{name: "no group", mutate: func(c *dto.ApplicationConfig) { c.Kafka.Consumer.GroupID = "" }, wantErr: "group_id"},
		{name: "no directory", mutate: func(c *dto.ApplicationConfig) { c.Sink.Directory = "" }, wantErr: "sink.directory"},
		{name: "zero idle timeout", mutate: func(c *dto.ApplicationConfig) { c.Sink.IdleTimeoutMS = 0 }, wantErr: "idle timeout"},
		{name: "negative flush timeout", mutate: func(c *dto.ApplicationConfig) { c.Sink.FlushTimeoutMS = -1 }, wantErr: "flush timeout"},
		{name: "zero check period", mutate: func(c *dto.ApplicationConfig) { c.Sink.CheckPeriodMS = 0 }, wantErr: "check period"},
		{name: "flush above idle is allowed", mutate: func(c *dto.ApplicationConfig) { c.Sink.FlushTimeoutMS = c.Sink.IdleTimeoutMS * 2 }},
		{name: "s3 without bucket", mutate: func(c *dto.ApplicationConfig) { c.Archive.Backend = "s3" }, wantErr: "archive.s3.bucket"},
		{name: "s3 without region", mutate: func(c *dto.ApplicationConfig) {
			c.Archive.Backend = "s3"
			c.Archive.S3.Bucket = "b"
		}, wantErr: "archive.s3.region"},
		{name: "azure without container", mutate: func(c *dto.ApplicationConfig) {
			c.Archive.Backend = "azure"
			c.Archive.Azure.AccountName = "acct"
		}, wantErr: "archive.azure.container"},
		{name: "gcs without bucket", mutate: func(c *dto.ApplicationConfig) { c.Archive.Backend = "gcs" }, wantErr: "archive.gcs.bucket"},
		{name: "file without base path", mutate: func(c *dto.ApplicationConfig) { c.Archive.Backend = "file" }, wantErr: "archive.file.base_path"},
		{name: "unknown backend", mutate: func(c *dto.ApplicationConfig) { c.Archive.Backend = "ftp" }, wantErr: "unsupported archive backend"},
		{name: "bad metrics port", mutate: func(c *dto.ApplicationConfig) { c.Observability.Metrics.Port = 0 }, wantErr: "metrics port"},
		{name: "bad health port", mutate: func(c *dto.ApplicationConfig) { c.Observability.Health.Port = 70000 }, wantErr: "health port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := NewLoader().Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
