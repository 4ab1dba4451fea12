package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/prayer"
	"github.com/muaviaUsmani/adhan/internal/serialization"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the alarm daemon and API
type Config struct {
	// RedisURL is the connection URL for Redis
	RedisURL string
	// KeyPrefix namespaces every Redis key the daemon owns
	KeyPrefix string
	// APIPort is the port the API server listens on
	APIPort string
	// MetricsPort is the port the daemon serves /metrics on. Empty disables it.
	MetricsPort string
	// Location is the coordinate event times are computed for
	Location prayer.Location
	// Timezone is the IANA zone of the wall clock (midnight rollover, timetable dates)
	Timezone string
	// CalcMethod is the timetable calculation method id
	CalcMethod int
	// TimetableURL is the base URL of the timetable service
	TimetableURL string
	// TimetableTimeout bounds one timetable request
	TimetableTimeout time.Duration
	// MidnightCron fires the midnight rollover pass
	MidnightCron string
	// RefreshCron fires the periodic refresh pass. Empty disables it.
	RefreshCron string
	// TriggerTick is how often the cron scheduler checks for due schedules
	TriggerTick time.Duration
	// DispatchInterval is how often due alarms are popped and delivered
	DispatchInterval time.Duration
	// PassLockTTL bounds how long a crashed pass can hold the cross-process lock
	PassLockTTL time.Duration
	// AlarmDriverEnabled turns the Redis alarm driver on. When off every pass is skipped.
	AlarmDriverEnabled bool
	// PayloadFormat is the encoding of stored alarm records
	PayloadFormat serialization.PayloadFormat
	// ResultTTLSuccess is how long completed and skipped pass results are kept
	ResultTTLSuccess time.Duration
	// ResultTTLFailure is how long failed pass results are kept
	ResultTTLFailure time.Duration
	// Logging configuration
	Logging *logger.Config
}

// fileConfig is the optional YAML overlay. Its values replace the built-in
// defaults; environment variables still win over both.
type fileConfig struct {
	Location  *prayer.Location `yaml:"location"`
	Timezone  string           `yaml:"timezone"`
	Method    *int             `yaml:"method"`
	Timetable string           `yaml:"timetable_url"`
	Schedules struct {
		Midnight string  `yaml:"midnight"`
		Refresh  *string `yaml:"refresh"`
	} `yaml:"schedules"`
}

// defaults holds the values env lookups fall back to
type defaults struct {
	location     prayer.Location
	timezone     string
	method       int
	timetableURL string
	midnightCron string
	refreshCron  string
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first if present.
func LoadConfig() (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	base, err := loadDefaults(getEnv("ADHAN_CONFIG_FILE", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		KeyPrefix:          getEnv("KEY_PREFIX", "adhan:"),
		APIPort:            getEnv("API_PORT", "8080"),
		MetricsPort:        getEnvAllowEmpty("METRICS_PORT", "9090"),
		Timezone:           getEnv("TIMEZONE", base.timezone),
		CalcMethod:         getEnvAsInt("CALC_METHOD", base.method),
		TimetableURL:       getEnv("TIMETABLE_URL", base.timetableURL),
		TimetableTimeout:   getEnvAsDuration("TIMETABLE_TIMEOUT", 15*time.Second),
		MidnightCron:       getEnv("MIDNIGHT_CRON", base.midnightCron),
		RefreshCron:        getEnvAllowEmpty("REFRESH_CRON", base.refreshCron),
		TriggerTick:        getEnvAsDuration("TRIGGER_TICK", 1*time.Second),
		DispatchInterval:   getEnvAsDuration("DISPATCH_INTERVAL", 1*time.Second),
		PassLockTTL:        getEnvAsDuration("PASS_LOCK_TTL", 2*time.Minute),
		AlarmDriverEnabled: getEnvAsBool("ALARM_DRIVER_ENABLED", true),
		ResultTTLSuccess:   getEnvAsDuration("RESULT_BACKEND_TTL_SUCCESS", 24*time.Hour),
		ResultTTLFailure:   getEnvAsDuration("RESULT_BACKEND_TTL_FAILURE", 7*24*time.Hour),
		Logging:            loadLoggingConfig(),
	}
	cfg.Location.Latitude = getEnvAsFloat("LATITUDE", base.location.Latitude)
	cfg.Location.Longitude = getEnvAsFloat("LONGITUDE", base.location.Longitude)

	format, err := serialization.ParseFormat(getEnv("ALARM_PAYLOAD_FORMAT", "json"))
	if err != nil {
		return nil, fmt.Errorf("ALARM_PAYLOAD_FORMAT: %w", err)
	}
	cfg.PayloadFormat = format

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL cannot be empty")
	}
	if c.APIPort == "" {
		return fmt.Errorf("API_PORT cannot be empty")
	}
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		return fmt.Errorf("LATITUDE must be between -90 and 90, got %v", c.Location.Latitude)
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		return fmt.Errorf("LONGITUDE must be between -180 and 180, got %v", c.Location.Longitude)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.CalcMethod < 0 {
		return fmt.Errorf("CALC_METHOD cannot be negative")
	}
	if c.TimetableURL == "" {
		return fmt.Errorf("TIMETABLE_URL cannot be empty")
	}
	if _, err := cron.ParseStandard(c.MidnightCron); err != nil {
		return fmt.Errorf("invalid MIDNIGHT_CRON %q: %w", c.MidnightCron, err)
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("invalid REFRESH_CRON %q: %w", c.RefreshCron, err)
		}
	}
	if c.TriggerTick < 100*time.Millisecond {
		return fmt.Errorf("TRIGGER_TICK must be at least 100ms")
	}
	if c.DispatchInterval < 100*time.Millisecond {
		return fmt.Errorf("DISPATCH_INTERVAL must be at least 100ms")
	}
	if c.PassLockTTL < time.Second {
		return fmt.Errorf("PASS_LOCK_TTL must be at least 1s")
	}
	if c.ResultTTLSuccess <= 0 || c.ResultTTLFailure <= 0 {
		return fmt.Errorf("RESULT_BACKEND_TTL_SUCCESS and RESULT_BACKEND_TTL_FAILURE must be positive")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	return nil
}

// TimeLocation returns the configured timezone
func (c *Config) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// loadDefaults returns the built-in defaults, overlaid with the YAML file at path if set
func loadDefaults(path string) (defaults, error) {
	d := defaults{
		location:     prayer.Location{Latitude: 21.4225, Longitude: 39.8262},
		timezone:     "UTC",
		method:       4,
		timetableURL: "https://api.aladhan.com/v1",
		midnightCron: "0 0 * * *",
		refreshCron:  "*/30 * * * *",
	}
	if path == "" {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return d, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Location != nil {
		d.location = *fc.Location
	}
	if fc.Timezone != "" {
		d.timezone = fc.Timezone
	}
	if fc.Method != nil {
		d.method = *fc.Method
	}
	if fc.Timetable != "" {
		d.timetableURL = fc.Timetable
	}
	if fc.Schedules.Midnight != "" {
		d.midnightCron = fc.Schedules.Midnight
	}
	if fc.Schedules.Refresh != nil {
		d.refreshCron = *fc.Schedules.Refresh
	}
	return d, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty is getEnv, except a variable set to "" overrides the default
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// loadLoggingConfig loads logging configuration from environment variables
func loadLoggingConfig() *logger.Config {
	cfg := logger.DefaultConfig()

	// Global settings
	if level := getEnv("LOG_LEVEL", ""); level != "" {
		cfg.Level = logger.LogLevel(level)
	}
	if format := getEnv("LOG_FORMAT", ""); format != "" {
		cfg.Format = logger.LogFormat(format)
	}

	// Tier 1: Console
	cfg.Console.Enabled = getEnvAsBool("LOG_CONSOLE_ENABLED", true)
	cfg.Console.Color = getEnvAsBool("LOG_COLOR", true)
	cfg.Console.BufferSize = getEnvAsInt("LOG_CONSOLE_BUFFER_SIZE", 65536)
	cfg.Console.FlushInterval = getEnvAsDuration("LOG_CONSOLE_FLUSH_INTERVAL", 100*time.Millisecond)

	// Tier 2: File
	cfg.File.Enabled = getEnvAsBool("LOG_FILE_ENABLED", false)
	cfg.File.Path = getEnv("LOG_FILE_PATH", "/var/log/adhan/alarmd.log")
	cfg.File.MaxSizeMB = getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100)
	cfg.File.MaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5)
	cfg.File.MaxAgeDays = getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 30)
	cfg.File.Compress = getEnvAsBool("LOG_FILE_COMPRESS", true)
	cfg.File.BufferSize = getEnvAsInt("LOG_FILE_BUFFER_SIZE", 10000)
	cfg.File.BatchSize = getEnvAsInt("LOG_FILE_BATCH_SIZE", 100)
	cfg.File.BatchInterval = getEnvAsDuration("LOG_FILE_BATCH_INTERVAL", 100*time.Millisecond)

	return cfg
}
