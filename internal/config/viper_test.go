package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fjacquet/aqi-bulletin/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoad_Defaults(t *testing.T) {
	clearTestEnvVars(t)
	t.Chdir(t.TempDir())

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, "https://cpcb.nic.in/upload/Downloads", config.Source.BaseURL)
	assert.Equal(t, 30*time.Second, config.Source.Timeout)
	assert.Equal(t, "+05:30", config.Schedule.UTCOffset)
	assert.Equal(t, "17:00", config.Schedule.PublishCutoff)
	assert.Equal(t, "data", config.Output.Directory)
	assert.False(t, config.Normalize.DedupePollutants)
	assert.Equal(t, 2*time.Second, config.Backfill.Interval)
	assert.Empty(t, config.Archive.Directory)
	assert.Empty(t, config.Kafka.Brokers)
	assert.False(t, config.KafkaEnabled())

	cutoff, err := config.Cutoff()
	require.NoError(t, err)
	assert.Equal(t, 17*time.Hour, cutoff)

	loc, err := config.Location()
	require.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 5*3600+1800, offset)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearTestEnvVars(t)
	t.Chdir(t.TempDir())

	testEnvVars := map[string]string{
		"AQI_LOG_LEVEL":                   "debug",
		"AQI_LOG_FORMAT":                  "json",
		"AQI_SOURCE_TIMEOUT":              "5s",
		"AQI_SCHEDULE_PUBLISH_CUTOFF":     "18:30",
		"AQI_OUTPUT_DIRECTORY":            "/var/lib/aqi",
		"AQI_NORMALIZE_DEDUPE_POLLUTANTS": "true",
		"AQI_KAFKA_BROKERS":               "k1:9092,k2:9092",
		"AQI_KAFKA_TOPIC":                 "aqi.bulletins",
	}
	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, 5*time.Second, config.Source.Timeout)
	assert.Equal(t, "18:30", config.Schedule.PublishCutoff)
	assert.Equal(t, "/var/lib/aqi", config.Output.Directory)
	assert.True(t, config.Normalize.DedupePollutants)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, config.Kafka.Brokers)
	assert.True(t, config.KafkaEnabled())
}

func TestLoad_ConfigFile(t *testing.T) {
	clearTestEnvVars(t)

	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")
	configContent := `
log:
  level: "warn"
source:
  base_url: "https://mirror.test/bulletins/"
  timeout: "45s"
schedule:
  utc_offset: "+05:45"
archive:
  directory: "/tmp/pdf"
kafka:
  brokers: ["localhost:9092"]
  topic: "aqi"
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	config, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "warn", config.Log.Level)
	assert.Equal(t, "https://mirror.test/bulletins/", config.Source.BaseURL)
	assert.Equal(t, 45*time.Second, config.Source.Timeout)
	assert.Equal(t, "+05:45", config.Schedule.UTCOffset)
	assert.Equal(t, "/tmp/pdf", config.Archive.Directory)
	assert.Equal(t, []string{"localhost:9092"}, config.Kafka.Brokers)
}

func TestLoad_SearchPathAndPrecedence(t *testing.T) {
	clearTestEnvVars(t)
	tempDir := t.TempDir()
	configContent := `
log:
  level: "warn"
output:
  directory: "from-file"
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0644))
	t.Chdir(tempDir)
	t.Setenv("AQI_LOG_LEVEL", "error")

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", config.Log.Level)
	assert.Equal(t, "from-file", config.Output.Directory)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearTestEnvVars(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name         string
		modifyConfig func(*Config)
		wantErr      string
	}{
		{"invalid log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"invalid log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"empty base url", func(c *Config) { c.Source.BaseURL = " " }, "source.base_url"},
		{"zero timeout", func(c *Config) { c.Source.Timeout = 0 }, "source.timeout"},
		{"bad offset", func(c *Config) { c.Schedule.UTCOffset = "IST" }, "schedule.utc_offset"},
		{"bad cutoff", func(c *Config) { c.Schedule.PublishCutoff = "5pm" }, "schedule.publish_cutoff"},
		{"empty output dir", func(c *Config) { c.Output.Directory = "" }, "output.directory"},
		{"topic without brokers", func(c *Config) { c.Kafka.Topic = "aqi" }, "kafka.brokers"},
		{"brokers without topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"} }, "kafka.topic"},
		{"negative backfill interval", func(c *Config) { c.Backfill.Interval = -time.Second }, "backfill.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.modifyConfig(config)

			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, validateConfig(validConfig()))
}

func TestConfig_YAML(t *testing.T) {
	config := validConfig()
	out, err := config.YAML()
	require.NoError(t, err)

	var decoded map[string]map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "+05:30", decoded["schedule"]["utc_offset"])
	assert.Equal(t, "data", decoded["output"]["directory"])
}

func TestNewLogger(t *testing.T) {
	config := validConfig()
	config.Log.Level = "debug"
	config.Log.Format = "json"

	logger := NewLogger(config)
	_, ok := logger.(*logging.LogrusAdapter)
	assert.True(t, ok)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", "", "c"}))
	assert.Nil(t, splitList(nil))
}

func TestValidateConfig_LogSettingsCaseInsensitive(t *testing.T) {
	for _, format := range []string{"JSON", "Text", "json"} {
		c := validConfig()
		c.Log.Format = format
		c.Log.Level = "DEBUG"
		assert.NoError(t, c.Validate(), format)
	}
}

func validConfig() *Config {
	c := &Config{}
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Source.BaseURL = "https://cpcb.nic.in/upload/Downloads"
	c.Source.Timeout = 30 * time.Second
	c.Schedule.UTCOffset = "+05:30"
	c.Schedule.PublishCutoff = "17:00"
	c.Output.Directory = "data"
	return c
}

// clearTestEnvVars unsets every AQI_* variable for the duration of the test.
func clearTestEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key := kv[:i]
				if len(key) > len(EnvPrefix) && key[:len(EnvPrefix)+1] == EnvPrefix+"_" {
					t.Setenv(key, "")
					require.NoError(t, os.Unsetenv(key))
				}
				break
			}
		}
	}
}
