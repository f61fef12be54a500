// Package root contains the root command for the application
package root

import (
	"context"
	"fmt"
	"io"

	"fjacquet/aqi-bulletin/internal/config"
	"fjacquet/aqi-bulletin/internal/container"
	"fjacquet/aqi-bulletin/internal/logging"

	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
	Input      string
	Output     string
}

var (
	// Log is the shared logger instance for commands
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// AppConfig is the configuration loaded for the current invocation.
	AppConfig *config.Config

	// AppContainer holds the wired dependencies for the current invocation.
	AppContainer *container.Container

	// Common flags accessible to all commands
	SharedFlags = CommonFlags{}

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "aqi-bulletin",
		Short: "Ingest the daily national AQI bulletin into CSV records.",
		Long: `aqi-bulletin downloads the daily Air Quality Index bulletin PDF,
extracts its city table and writes one normalized CSV record per day.

A bulletin that is simply not out yet (before the evening publication
cutoff) is reported as a benign outcome, distinct from genuine failures.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the command tree and releases the container afterwards,
// including when the command failed. Cobra skips post-run hooks on error,
// and failed runs still have to export their metrics.
func Execute(ctx context.Context) error {
	defer Close()
	return Cmd.ExecuteContext(ctx)
}

// Close releases the container, if any. Safe to call more than once.
func Close() {
	if AppContainer == nil {
		return
	}
	if err := AppContainer.Close(); err != nil {
		Log.WithError(err).Warn("Failed to release resources")
	}
	AppContainer = nil
}

// LoadEnv loads the .env file ahead of configuration. A file that exists but
// cannot be read or parsed is reported on w; a missing file is not.
func LoadEnv(w io.Writer) {
	path, err := config.LoadEnv()
	if err != nil {
		_, _ = fmt.Fprintf(w, "warning: failed to load %s: %v\n", path, err)
	}
}

// Init initializes the root command and all flags
func Init() {
	flags := Cmd.PersistentFlags()
	flags.StringVar(&SharedFlags.ConfigFile, "config", "", "Config file (default: config.yaml in $HOME/.aqi-bulletin, .aqi-bulletin or .)")
	flags.StringVar(&SharedFlags.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&SharedFlags.LogFormat, "log-format", "", "Log format (text, json)")
	flags.StringVarP(&SharedFlags.Input, "input", "i", "", "Input bulletin PDF (convert only)")
	flags.StringVarP(&SharedFlags.Output, "output", "o", "", "Output directory for daily records")
}

// setup loads configuration, applies command-line overrides and wires the
// container. A container injected beforehand is left untouched.
func setup(cmd *cobra.Command, args []string) error {
	if AppContainer != nil {
		AppConfig = AppContainer.GetConfig()
		Log = AppContainer.GetLogger()
		return nil
	}

	cfg, err := config.Load(SharedFlags.ConfigFile)
	if err != nil {
		return err
	}
	ApplyOverrides(cfg, SharedFlags)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := container.NewContainer(cfg)
	if err != nil {
		return err
	}
	AppConfig = cfg
	AppContainer = c
	Log = c.GetLogger()
	Log.Debug("Configuration loaded", logging.F(logging.FieldOutputFile, cfg.Output.Directory))
	return nil
}

// ApplyOverrides copies non-empty command-line values over cfg.
func ApplyOverrides(cfg *config.Config, flags CommonFlags) {
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		cfg.Log.Format = flags.LogFormat
	}
	if flags.Output != "" {
		cfg.Output.Directory = flags.Output
	}
}

// GetContainer returns the application container, or nil before setup.
func GetContainer() *container.Container {
	return AppContainer
}

// GetConfig returns the loaded configuration, or nil before setup.
func GetConfig() *config.Config {
	return AppConfig
}

// GetLogger returns the shared command logger.
func GetLogger() logging.Logger {
	return Log
}
