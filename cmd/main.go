package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/application.yaml"

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "kafeventsink",
	Short: "Route Kafka records into per-key files",
	Long: `kafeventsink consumes Kafka topics and appends each record body to the file
named by its routing header. Idle files are flushed, then published under
their final name and optionally shipped to object storage.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSink(cmd.Context(), resolveConfigPath(configFlag))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"path to configuration file (default: $CONFIG_PATH or "+defaultConfigPath+")")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath applies the priority flag > CONFIG_PATH > default path.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return defaultConfigPath
}
