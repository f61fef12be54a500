// Package config provides Viper-based hierarchical configuration management
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/aqi-bulletin/internal/dateutils"
	"fjacquet/aqi-bulletin/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "AQI"

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Source struct {
		BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
		Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
		UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	} `mapstructure:"source" yaml:"source"`

	Schedule struct {
		UTCOffset     string `mapstructure:"utc_offset" yaml:"utc_offset"`
		PublishCutoff string `mapstructure:"publish_cutoff" yaml:"publish_cutoff"`
	} `mapstructure:"schedule" yaml:"schedule"`

	Output struct {
		Directory string `mapstructure:"directory" yaml:"directory"`
	} `mapstructure:"output" yaml:"output"`

	Normalize struct {
		DedupePollutants bool `mapstructure:"dedupe_pollutants" yaml:"dedupe_pollutants"`
	} `mapstructure:"normalize" yaml:"normalize"`

	Archive struct {
		Directory string `mapstructure:"directory" yaml:"directory"`
	} `mapstructure:"archive" yaml:"archive"`

	Debug struct {
		RawDirectory string `mapstructure:"raw_directory" yaml:"raw_directory"`
	} `mapstructure:"debug" yaml:"debug"`

	Metrics struct {
		Textfile string `mapstructure:"textfile" yaml:"textfile"`
	} `mapstructure:"metrics" yaml:"metrics"`

	Kafka struct {
		Brokers []string `mapstructure:"brokers" yaml:"brokers"`
		Topic   string   `mapstructure:"topic" yaml:"topic"`
	} `mapstructure:"kafka" yaml:"kafka"`

	Backfill struct {
		Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	} `mapstructure:"backfill" yaml:"backfill"`
}

// Load initializes configuration with hierarchical loading: defaults, then
// the config file, then AQI_* environment variables. An explicit configFile
// must exist; otherwise config.yaml is searched in the usual locations.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.aqi-bulletin")
		v.AddConfigPath(".aqi-bulletin")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless explicitly given)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Kafka.Brokers = splitList(config.Kafka.Brokers)

	// 5. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Source defaults
	v.SetDefault("source.base_url", "https://cpcb.nic.in/upload/Downloads")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.user_agent", "aqi-bulletin/1.0")

	// Schedule defaults
	v.SetDefault("schedule.utc_offset", "+05:30")
	v.SetDefault("schedule.publish_cutoff", "17:00")

	// Output defaults
	v.SetDefault("output.directory", "data")
	v.SetDefault("normalize.dedupe_pollutants", false)

	// Optional sinks are off by default
	v.SetDefault("archive.directory", "")
	v.SetDefault("debug.raw_directory", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")

	// Backfill defaults
	v.SetDefault("backfill.interval", "2s")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	// Validate log level
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	// Validate log format, case-insensitively like the logger itself
	if format := strings.ToLower(config.Log.Format); format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if strings.TrimSpace(config.Source.BaseURL) == "" {
		return fmt.Errorf("source.base_url must not be empty")
	}
	if config.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive, got: %s", config.Source.Timeout)
	}

	if _, err := config.Location(); err != nil {
		return fmt.Errorf("schedule.utc_offset: %w", err)
	}
	if _, err := config.Cutoff(); err != nil {
		return fmt.Errorf("schedule.publish_cutoff: %w", err)
	}

	if strings.TrimSpace(config.Output.Directory) == "" {
		return fmt.Errorf("output.directory must not be empty")
	}

	if config.Kafka.Topic != "" && len(config.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka.topic is set")
	}
	if config.Kafka.Topic == "" && len(config.Kafka.Brokers) > 0 {
		return fmt.Errorf("kafka.topic required when kafka.brokers is set")
	}

	if config.Backfill.Interval < 0 {
		return fmt.Errorf("backfill.interval must not be negative, got: %s", config.Backfill.Interval)
	}

	return nil
}

// Validate re-checks the configuration, typically after command-line
// overrides have been applied.
func (c *Config) Validate() error {
	return validateConfig(c)
}

// Location returns the fixed civil offset the bulletin is published in.
func (c *Config) Location() (*time.Location, error) {
	return dateutils.ParseUTCOffset(c.Schedule.UTCOffset)
}

// Cutoff returns the publish cutoff as a duration since local midnight.
func (c *Config) Cutoff() (time.Duration, error) {
	return dateutils.ParseClockTime(c.Schedule.PublishCutoff)
}

// KafkaEnabled reports whether rows should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return c.Kafka.Topic != "" && len(c.Kafka.Brokers) > 0
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}

// NewLogger configures logging based on the Config struct
func NewLogger(config *Config) logging.Logger {
	return logging.NewLogrusAdapter(config.Log.Level, config.Log.Format)
}

// splitList flattens comma-separated entries, as produced by a single
// environment variable, and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
