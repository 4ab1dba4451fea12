package logger

import (
	"fmt"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// LogSource distinguishes daemon housekeeping from alarm delivery
type LogSource string

const (
	LogSourceInternal LogSource = "adhan_internal" // Daemon/reconciliation logs
	LogSourceAlarm    LogSource = "adhan_alarm"    // Fired alarm deliveries
)

// Component identifies which part of the system generated the log
type Component string

const (
	ComponentAPI        Component = "api"
	ComponentReconciler Component = "reconciler"
	ComponentDriver     Component = "driver"
	ComponentDispatcher Component = "dispatcher"
	ComponentStorage    Component = "storage"
	ComponentTimetable  Component = "timetable"
	ComponentScheduler  Component = "scheduler"
	ComponentLogger     Component = "logger"
)

// Config holds the logging configuration for all tiers
type Config struct {
	Level  LogLevel  `json:"level" yaml:"level"`
	Format LogFormat `json:"format" yaml:"format"`

	// Tier 1: Console
	Console ConsoleConfig `json:"console" yaml:"console"`

	// Tier 2: File (optional)
	File FileConfig `json:"file" yaml:"file"`
}

// ConsoleConfig configures console/terminal logging (Tier 1)
type ConsoleConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	Color         bool          `json:"color" yaml:"color"`                   // text mode only
	BufferSize    int           `json:"buffer_size" yaml:"buffer_size"`       // bytes
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"` // default: 100ms
}

// FileConfig configures file-based logging (Tier 2)
type FileConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`

	BufferSize    int           `json:"buffer_size" yaml:"buffer_size"`       // Channel buffer size (default: 1000)
	BatchSize     int           `json:"batch_size" yaml:"batch_size"`         // Batch write size (default: 50)
	BatchInterval time.Duration `json:"batch_interval" yaml:"batch_interval"` // Batch flush interval (default: 200ms)
}

// DefaultConfig returns a default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: FormatText,
		Console: ConsoleConfig{
			Enabled:       true,
			Color:         true,
			BufferSize:    16384,
			FlushInterval: 100 * time.Millisecond,
		},
		File: FileConfig{
			Enabled:       false,
			Path:          "/var/log/adhan/alarmd.log",
			MaxSizeMB:     20,
			MaxBackups:    3,
			MaxAgeDays:    14,
			Compress:      true,
			BufferSize:    1000,
			BatchSize:     50,
			BatchInterval: 200 * time.Millisecond,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}

	switch c.Format {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}

	if c.File.Enabled {
		if c.File.Path == "" {
			return fmt.Errorf("file logging enabled but path is empty")
		}
		if c.File.MaxSizeMB <= 0 {
			return fmt.Errorf("file max size must be > 0")
		}
		if c.File.BatchSize <= 0 {
			return fmt.Errorf("file batch size must be > 0")
		}
	}

	return nil
}
