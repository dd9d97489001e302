package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// RecorderConfig holds recorder-specific configurations.
type RecorderConfig struct {
	Dir              string `yaml:"dir" env:"SBR_RECORDER_DIR"`
	FileNameFormat   string `yaml:"file_name_format" env:"SBR_FILE_NAME_FORMAT"`
	FlushInterval    string `yaml:"flush_interval" env:"SBR_FLUSH_INTERVAL"`
	MinFreeDiskBytes uint64 `yaml:"min_free_disk_bytes" env:"SBR_MIN_FREE_DISK_BYTES"`
	LockFile         bool   `yaml:"lock_file" env:"SBR_LOCK_FILE"`
	LockTimeout      string `yaml:"lock_timeout" env:"SBR_LOCK_TIMEOUT"`
}

// PlaybackConfig holds playback-specific configurations.
type PlaybackConfig struct {
	Looping bool    `yaml:"looping" env:"SBR_PLAYBACK_LOOPING"`
	Speed   float64 `yaml:"speed" env:"SBR_PLAYBACK_SPEED"`
}

// ExportConfig holds converter configurations.
type ExportConfig struct {
	Format          string `yaml:"format" env:"SBR_EXPORT_FORMAT"`
	TimeWindow      int64  `yaml:"time_window" env:"SBR_EXPORT_TIME_WINDOW"` // milliseconds
	ConvertMetadata bool   `yaml:"convert_metadata" env:"SBR_EXPORT_CONVERT_METADATA"`
	Concurrency     int    `yaml:"concurrency" env:"SBR_EXPORT_CONCURRENCY"`
}

// ArchiveConfig holds archive configurations.
type ArchiveConfig struct {
	Compression string `yaml:"compression" env:"SBR_ARCHIVE_COMPRESSION"` // "none", "snappy", "lz4", "zstd"
}

// MarkersConfig holds marker generator configurations.
type MarkersConfig struct {
	EventsPrefix string `yaml:"events_prefix" env:"SBR_MARKERS_EVENTS_PREFIX"`
}

// AlertsConfig holds the thresholds of the alerting listeners.
type AlertsConfig struct {
	CardinalityLimit int            `yaml:"cardinality_limit" env:"SBR_ALERTS_CARDINALITY_LIMIT"`
	Outliers         []OutlierRange `yaml:"outliers"`
}

// OutlierRange bounds the numeric values of one source.
type OutlierRange struct {
	SourceID string  `yaml:"source_id"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"SBR_LOG_LEVEL"`   // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output" env:"SBR_LOG_OUTPUT"` // e.g., "stdout", "stderr", "file", "none"
	File   string `yaml:"file" env:"SBR_LOG_FILE"`     // Path to the log file, used if output is "file"
	Format string `yaml:"format" env:"SBR_LOG_FORMAT"` // "text" or "json"
}

// DebugConfig holds debugging-related configurations.
type DebugConfig struct {
	Enabled          bool   `yaml:"enabled" env:"SBR_DEBUG_ENABLED"`
	ListenAddress    string `yaml:"listen_address" env:"SBR_DEBUG_LISTEN_ADDRESS"`
	PProfEnabled     bool   `yaml:"pprof_enabled"`
	MetricsEnabled   bool   `yaml:"metrics_enabled"`
	MonitorUIEnabled bool   `yaml:"monitor_ui_enabled"`
	SystemInterval   string `yaml:"system_interval"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" env:"SBR_TRACING_ENABLED"`
	Endpoint string `yaml:"endpoint" env:"SBR_TRACING_ENDPOINT"` // e.g., "localhost:4317" for gRPC OTLP collector
	Protocol string `yaml:"protocol" env:"SBR_TRACING_PROTOCOL"` // "grpc" or "http"
}

// Config is the top-level configuration struct.
type Config struct {
	Recorder RecorderConfig `yaml:"recorder"`
	Playback PlaybackConfig `yaml:"playback"`
	Export   ExportConfig   `yaml:"export"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Markers  MarkersConfig  `yaml:"markers"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Logging  LoggingConfig  `yaml:"logging"`
	Debug    DebugConfig    `yaml:"debug"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ParseDuration parses a duration string. Returns the default duration if the string is empty or invalid.
// Logs a warning if the string is invalid but not empty.
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Recorder: RecorderConfig{
			Dir:            "recordings",
			FileNameFormat: "recording-${time}",
			FlushInterval:  "2s",
			LockFile:       true,
			LockTimeout:    "1s",
		},
		Playback: PlaybackConfig{
			Looping: true,
			Speed:   1,
		},
		Export: ExportConfig{
			Format:      "csv",
			TimeWindow:  7,
			Concurrency: 4,
		},
		Archive: ArchiveConfig{
			Compression: "zstd",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			File:   "sbr.log",
			Format: "text",
		},
		Debug: DebugConfig{
			Enabled:          false,
			ListenAddress:    "127.0.0.1:6060",
			PProfEnabled:     true,
			MetricsEnabled:   true,
			MonitorUIEnabled: true,
			SystemInterval:   "15s",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
	}
}

// Load reads configuration from an io.Reader, then applies SBR_* environment
// overrides. A nil or empty reader yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()

	if r != nil {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read config data: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// If file doesn't exist, return default config by calling Load with a nil reader.
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}
