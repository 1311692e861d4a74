package main

import (
	"github.com/jittakal/kafeventsink/internal/compress"
	"github.com/jittakal/kafeventsink/internal/config/dto"
	"github.com/jittakal/kafeventsink/internal/kafka"
	"github.com/jittakal/kafeventsink/internal/observability"
	"github.com/jittakal/kafeventsink/internal/server"
	"github.com/jittakal/kafeventsink/internal/storage"
	"github.com/jittakal/kafeventsink/internal/writer"
)

func loggingConfig(cfg *dto.ApplicationConfig) observability.LoggingConfig {
	l := cfg.Observability.Logging
	return observability.LoggingConfig{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

func compressOptions(cfg *dto.ApplicationConfig) compress.Options {
	return compress.Options{
		Extension:  cfg.Compression.Extension,
		BufferSize: cfg.Compression.BufferSize,
		SyncFlush:  cfg.Compression.SyncFlush,
		Level:      cfg.Compression.Level,
	}
}

func cacheConfig(cfg *dto.ApplicationConfig) writer.Config {
	return writer.Config{
		Root:         cfg.Sink.Directory,
		Separator:    []byte(cfg.Sink.Separator),
		IdleTimeout:  cfg.Sink.IdleTimeout(),
		FlushTimeout: cfg.Sink.FlushTimeout(),
		CheckPeriod:  cfg.Sink.CheckPeriod(),
		BufferSize:   cfg.Sink.BufferSize,
	}
}

func consumerConfig(cfg *dto.ApplicationConfig) kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		SecurityProtocol:    cfg.Kafka.SecurityProtocol,
		SASLMechanism:       cfg.Kafka.SASLMechanism,
		SASLUsername:        cfg.Kafka.SASLUsername,
		SASLPassword:        cfg.Kafka.SASLPassword,
		AWSRegion:           cfg.Kafka.AWSRegion,
		TLSSkipVerify:       cfg.Kafka.TLSSkipVerify,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
		KeyHeader:           cfg.Sink.KeyHeader,
		BatchSize:           cfg.Sink.BatchSize,
		BatchMaxBytes:       cfg.Kafka.Consumer.BatchMaxBytes,
		BatchTimeout:        cfg.Sink.BatchTimeout(),
		RetryBackoff:        cfg.Kafka.Consumer.RetryBackoff(),
	}
}

func dlqConfig(cfg *dto.ApplicationConfig) kafka.DLQConfig {
	return kafka.DLQConfig{
		Enabled:     cfg.Kafka.DLQ.Enabled,
		TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
		MaxRetries:  cfg.Kafka.DLQ.MaxRetries,
	}
}

func archiveConfig(cfg *dto.ApplicationConfig) storage.Config {
	a := cfg.Archive
	return storage.Config{
		Backend:           a.Backend,
		Prefix:            a.Prefix,
		DeleteAfterUpload: a.DeleteAfterUpload,
		Workers:           a.Workers,
		QueueSize:         a.QueueSize,
		UploadTimeout:     a.UploadTimeout(),
		File:              storage.FileConfig{BasePath: a.File.BasePath},
		S3: storage.S3Config{
			Bucket:       a.S3.Bucket,
			Region:       a.S3.Region,
			Endpoint:     a.S3.Endpoint,
			UsePathStyle: a.S3.UsePathStyle,
			SSEEnabled:   a.S3.SSEEnabled,
			SSEKMSKeyID:  a.S3.SSEKMSKeyID,
		},
		GCS: storage.GCSConfig{
			Bucket:               a.GCS.Bucket,
			ProjectID:            a.GCS.ProjectID,
			Endpoint:             a.GCS.Endpoint,
			CredentialsFile:      a.GCS.CredentialsFile,
			CredentialsJSON:      a.GCS.CredentialsJSON,
			UseDefaultCredential: a.GCS.UseDefaultCredential,
		},
		Azure: storage.AzureConfig{
			AccountName:   a.Azure.AccountName,
			AccountKey:    a.Azure.AccountKey,
			ContainerName: a.Azure.Container,
			Endpoint:      a.Azure.Endpoint,
		},
	}
}

func serverConfig(cfg *dto.ApplicationConfig) server.Config {
	o := cfg.Observability
	return server.Config{
		HealthPort:     o.Health.Port,
		LivenessPath:   o.Health.LivenessPath,
		ReadinessPath:  o.Health.ReadinessPath,
		MetricsEnabled: o.Metrics.Enabled,
		MetricsPort:    o.Metrics.Port,
		MetricsPath:    o.Metrics.Path,
	}
}
