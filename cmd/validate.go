package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jittakal/kafeventsink/internal/compress"
	"github.com/jittakal/kafeventsink/internal/config"
	"github.com/jittakal/kafeventsink/internal/config/dto"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configuration and print the effective sink settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveConfigPath(configFlag)
		cfg, err := config.NewLoader().Load(path)
		if err != nil {
			return fmt.Errorf("invalid configuration %s: %w", path, err)
		}
		printSettings(cmd.OutOrStdout(), path, cfg)
		return nil
	},
}

func printSettings(out io.Writer, path string, cfg *dto.ApplicationConfig) {
	// Fallback warnings from Resolve are not interesting here.
	strategy := compress.Resolve(cfg.Compression.Type, compressOptions(cfg), slog.New(slog.DiscardHandler))

	backend := cfg.Archive.Backend
	if backend == "" {
		backend = "none"
	}

	fmt.Fprintf(out, "config:          %s\n", path)
	fmt.Fprintf(out, "topics:          %v\n", cfg.Kafka.Consumer.Topics)
	fmt.Fprintf(out, "group:           %s\n", cfg.Kafka.Consumer.GroupID)
	fmt.Fprintf(out, "directory:       %s\n", cfg.Sink.Directory)
	fmt.Fprintf(out, "key header:      %s\n", cfg.Sink.KeyHeader)
	fmt.Fprintf(out, "separator:       %q\n", cfg.Sink.Separator)
	fmt.Fprintf(out, "batch:           %d records / %s\n", cfg.Sink.BatchSize, cfg.Sink.BatchTimeout())
	fmt.Fprintf(out, "idle timeout:    %s\n", cfg.Sink.IdleTimeout())
	fmt.Fprintf(out, "flush timeout:   %s\n", cfg.Sink.FlushTimeout())
	fmt.Fprintf(out, "check period:    %s\n", cfg.Sink.CheckPeriod())
	fmt.Fprintf(out, "compression:     %s (%s)\n", strategy.Name(), strategy.Extension())
	fmt.Fprintf(out, "archive:         %s\n", backend)
	fmt.Fprintf(out, "dlq:             %t\n", cfg.Kafka.DLQ.Enabled)
}
