// Package cmd provides CLI commands for the fairbayes application.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openaudit/fairbayes/core/config"
	"github.com/openaudit/fairbayes/core/registry"
	"github.com/openaudit/fairbayes/core/storage"
	"github.com/spf13/cobra"
)

var (
	rootLogLevel string
	rootDBPath   string
)

var rootCmd = &cobra.Command{
	Use:   "fairbayes",
	Short: "Fairbayes - exact Bayesian inference and fairness auditing",
	Long: `Fairbayes trains naive Bayes classifiers from CSV datasets, answers
exact probabilistic queries over them, and audits their predictions for
disparities between demographic groups.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootDBPath, "db", "", "Path to the model registry database")
}

// setupLogging installs the default logger before any command runs.
func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := parseLogLevel(rootLogLevel)
	if err != nil {
		return err
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", s)
	}
}

// loadConfig resolves user directories and loads layered configuration.
func loadConfig() (*config.Config, error) {
	dirs, err := storage.ResolveDirs()
	if err != nil {
		return nil, fmt.Errorf("resolve directories: %w", err)
	}

	manager := config.NewManager(dirs)
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	return manager.Get(), nil
}

// openRegistry opens the model registry, honoring the --db override.
func openRegistry() (*registry.Registry, error) {
	return registry.NewRegistry(registry.Config{DBPath: rootDBPath})
}
