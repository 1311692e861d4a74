package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jittakal/kafeventsink/internal/compress"
	"github.com/jittakal/kafeventsink/internal/config"
	"github.com/jittakal/kafeventsink/internal/kafka"
	"github.com/jittakal/kafeventsink/internal/observability"
	"github.com/jittakal/kafeventsink/internal/server"
	"github.com/jittakal/kafeventsink/internal/sink"
	"github.com/jittakal/kafeventsink/internal/storage"
	"github.com/jittakal/kafeventsink/internal/validator"
	"github.com/jittakal/kafeventsink/internal/writer"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume Kafka topics into files until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSink(cmd.Context(), resolveConfigPath(configFlag))
	},
}

func runSink(parent context.Context, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.NewLoader().Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(loggingConfig(cfg))
	processorID := fmt.Sprintf("%s-%s", cfg.Application.Name, uuid.NewString())
	logger.Info("starting kafka event sink",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"processor_id", processorID,
		"config", cfgPath,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Cleanup runs in reverse registration order.
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, func() error {
			if err := fn(); err != nil {
				logger.Error("cleanup failed", "component", name, "error", err)
				return fmt.Errorf("%s: %w", name, err)
			}
			logger.Debug("cleanup done", "component", name)
			return nil
		})
	}
	runCleanup := func() error {
		var errs []error
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			errs = append(errs, cleanupFuncs[i]())
		}
		return errors.Join(errs...)
	}

	strategy := compress.Resolve(cfg.Compression.Type, compressOptions(cfg), logger)

	var cacheOpts []writer.Option
	if archive := archiveConfig(cfg); archive.Enabled() {
		uploader, err := storage.NewUploader(archive, logger)
		if err != nil {
			return fmt.Errorf("failed to create archive uploader: %w", err)
		}
		shipper, err := storage.NewShipper(archive, cfg.Sink.Directory, uploader, logger, metrics)
		if err != nil {
			_ = uploader.Close()
			return fmt.Errorf("failed to create archive shipper: %w", err)
		}
		// Registered before the cache so it closes after the cache published everything.
		addCleanup("archive-shipper", shipper.Close)
		cacheOpts = append(cacheOpts, writer.WithPublishHook(shipper.Enqueue))
	}

	cache, err := writer.NewCache(cacheConfig(cfg), strategy, logger, metrics, cacheOpts...)
	if err != nil {
		_ = runCleanup()
		return fmt.Errorf("failed to create writer cache: %w", err)
	}

	kafkaConfig := consumerConfig(cfg)
	dlq, err := kafka.NewDLQPublisher(kafkaConfig, dlqConfig(cfg), logger, metrics, processorID)
	if err != nil {
		_ = cache.Shutdown()
		_ = runCleanup()
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", dlq.Close)

	fileSink := sink.New(cache, logger, metrics,
		sink.WithValidator(validator.NewRecordValidator(cfg.Sink.KeyHeader, cfg.Sink.MaxRecordBytes)),
		sink.WithRejecter(dlq),
		sink.WithBatchSize(cfg.Sink.BatchSize),
	)
	addCleanup("file-sink", fileSink.Stop)

	consumer, err := kafka.NewSaramaConsumer(kafkaConfig, logger, metrics)
	if err != nil {
		_ = runCleanup()
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	addCleanup("kafka-consumer", consumer.Close)

	health := server.NewSinkHealth(fileSink)
	httpServer := server.NewServer(serverConfig(cfg), health, registry, logger)
	if err := httpServer.Start(); err != nil {
		_ = runCleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumeErr := make(chan error, 1)
	health.SetConsuming(true)
	go func() {
		consumeErr <- consumer.Run(ctx, cfg.Kafka.Consumer.Topics, fileSink)
	}()

	logger.Info("application started successfully",
		"topics", cfg.Kafka.Consumer.Topics,
		"directory", cfg.Sink.Directory,
		"compression", strategy.Name(),
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received termination signal")
		stop()
		runErr = <-consumeErr
	case runErr = <-consumeErr:
	}
	health.SetConsuming(false)
	if runErr != nil {
		health.MarkFailed()
		logger.Error("consumer stopped with error", "error", runErr)
	}

	// The consumer has returned, so no batch is in flight while files are published.
	logger.Info("initiating graceful shutdown")
	cleanupErr := runCleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		cleanupErr = errors.Join(cleanupErr, fmt.Errorf("http-server: %w", err))
	}
	logShutdown(logger, cleanupErr)

	return errors.Join(runErr, cleanupErr)
}

func logShutdown(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application stopped with errors", "error", err)
		return
	}
	logger.Info("application stopped successfully")
}
