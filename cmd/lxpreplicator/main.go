// cmd/lxpreplicator/main.go
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tamzrod/lxp-replicator/internal/config"
	"github.com/tamzrod/lxp-replicator/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func main() {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "lxpreplicator",
		Short: "LuxPower inverter dongle poller and register replicator",
		Long: `lxpreplicator polls LuxPower inverters through their wifi dongles and
mirrors the input and hold registers into Modbus or ingest register memories.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "config.yaml", "Path to the YAML config")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level from the config")

	rootCmd.AddCommand(newRunCmd(flags))
	rootCmd.AddCommand(newPollCmd(flags))
	rootCmd.AddCommand(newWriteCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads, validates and normalizes the config, then builds the logger.
func loadConfig(flags *rootFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	log, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}
