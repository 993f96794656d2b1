package main

import (
	"fmt"
	"os"

	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/logger"
	"github.com/spf13/cobra"

	// Import all modules to trigger their registration
	_ "github.com/mantonx/streamgate/internal/modules/credentialmodule"
	_ "github.com/mantonx/streamgate/internal/modules/sourcemodule"
	_ "github.com/mantonx/streamgate/internal/modules/streammodule"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "streamgate",
		Short:         "Media gateway that hides the origin credential from browsers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $STREAMGATE_CONFIG or ./streamgate.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	root.AddCommand(newServeCmd(), newResolveCmd(), newFetchCmd(), newVersionCmd())
	return root
}

func loadConfig() error {
	path := configPath
	if path == "" {
		path = os.Getenv("STREAMGATE_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("streamgate.yaml"); err == nil {
			path = "streamgate.yaml"
		}
	}

	if err := config.Load(path); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	cfg := config.Get()
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.Configure(level, cfg.Logging.Format)
	if path != "" {
		logger.Debug("configuration loaded from %s", path)
	}
	return nil
}
