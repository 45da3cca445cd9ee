package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/config"
	logpkg "github.com/v0idness/archipanion-ve/internal/logger"
	"github.com/v0idness/archipanion-ve/internal/metrics"
	"github.com/v0idness/archipanion-ve/internal/version"
)

var flagEnv string

var rootCmd = &cobra.Command{
	Use:          "archipanion",
	Short:        "Multimedia retrieval engine",
	SilenceUsage: true,
	Version:      version.Get().String(),
	Long: `archipanion ingests media into configured schemas and answers
information needs against them, over HTTP or from the command line.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", config.GetEnv(), "config environment (reads config/<env>.yaml)")
}

func main() {
	metrics.RegisterProviderMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterCacheMetrics()
	metrics.RegisterHTTPMetrics()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the config and logger for the selected environment.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flagEnv)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.New(flagEnv, logpkg.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: []zap.Field{zap.String("version", version.Version)},
	})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

// withApp builds the application, runs fn and tears everything down.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
