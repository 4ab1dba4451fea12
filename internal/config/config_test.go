package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muaviaUsmani/adhan/internal/serialization"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adhan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.KeyPrefix != "adhan:" {
		t.Errorf("KeyPrefix = %q, want adhan:", cfg.KeyPrefix)
	}
	if cfg.MidnightCron != "0 0 * * *" {
		t.Errorf("MidnightCron = %q, want 0 0 * * *", cfg.MidnightCron)
	}
	if cfg.RefreshCron != "*/30 * * * *" {
		t.Errorf("RefreshCron = %q, want */30 * * * *", cfg.RefreshCron)
	}
	if cfg.PayloadFormat != serialization.FormatJSON {
		t.Errorf("PayloadFormat = %v, want json", cfg.PayloadFormat)
	}
	if !cfg.AlarmDriverEnabled {
		t.Error("AlarmDriverEnabled = false, want true")
	}
	if cfg.ResultTTLSuccess != 24*time.Hour || cfg.ResultTTLFailure != 7*24*time.Hour {
		t.Errorf("result TTLs = %v/%v, want 24h/168h", cfg.ResultTTLSuccess, cfg.ResultTTLFailure)
	}
	if cfg.Logging == nil {
		t.Fatal("Logging config is nil")
	}
	if cfg.TimeLocation() != time.UTC {
		t.Errorf("TimeLocation() = %v, want UTC", cfg.TimeLocation())
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LATITUDE", "33.6844")
	t.Setenv("LONGITUDE", "73.0479")
	t.Setenv("TIMEZONE", "Asia/Karachi")
	t.Setenv("CALC_METHOD", "1")
	t.Setenv("PASS_LOCK_TTL", "30s")
	t.Setenv("ALARM_DRIVER_ENABLED", "false")
	t.Setenv("ALARM_PAYLOAD_FORMAT", "protobuf")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Location.Latitude != 33.6844 || cfg.Location.Longitude != 73.0479 {
		t.Errorf("Location = %+v", cfg.Location)
	}
	if cfg.Timezone != "Asia/Karachi" {
		t.Errorf("Timezone = %q, want Asia/Karachi", cfg.Timezone)
	}
	if cfg.CalcMethod != 1 {
		t.Errorf("CalcMethod = %d, want 1", cfg.CalcMethod)
	}
	if cfg.PassLockTTL != 30*time.Second {
		t.Errorf("PassLockTTL = %v, want 30s", cfg.PassLockTTL)
	}
	if cfg.AlarmDriverEnabled {
		t.Error("AlarmDriverEnabled = true, want false")
	}
	if cfg.PayloadFormat != serialization.FormatProtobuf {
		t.Errorf("PayloadFormat = %v, want protobuf", cfg.PayloadFormat)
	}
}

func TestLoadConfig_FileOverlay(t *testing.T) {
	path := writeConfigFile(t, `
location:
  latitude: 51.5074
  longitude: -0.1278
timezone: Europe/London
method: 3
schedules:
  midnight: "5 0 * * *"
  refresh: ""
`)
	t.Setenv("ADHAN_CONFIG_FILE", path)
	// Environment still wins over the file
	t.Setenv("CALC_METHOD", "2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Location.Latitude != 51.5074 || cfg.Location.Longitude != -0.1278 {
		t.Errorf("Location = %+v", cfg.Location)
	}
	if cfg.Timezone != "Europe/London" {
		t.Errorf("Timezone = %q, want Europe/London", cfg.Timezone)
	}
	if cfg.CalcMethod != 2 {
		t.Errorf("CalcMethod = %d, want 2", cfg.CalcMethod)
	}
	if cfg.MidnightCron != "5 0 * * *" {
		t.Errorf("MidnightCron = %q, want 5 0 * * *", cfg.MidnightCron)
	}
	if cfg.RefreshCron != "" {
		t.Errorf("RefreshCron = %q, want disabled", cfg.RefreshCron)
	}
}

func TestLoadConfig_FileErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		t.Setenv("ADHAN_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := LoadConfig(); err == nil {
			t.Error("Expected error for missing config file, got nil")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		t.Setenv("ADHAN_CONFIG_FILE", writeConfigFile(t, "location: [not, a, map"))
		if _, err := LoadConfig(); err == nil {
			t.Error("Expected error for malformed config file, got nil")
		}
	})
}

func TestLoadConfig_RefreshDisabledByEnv(t *testing.T) {
	t.Setenv("REFRESH_CRON", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.RefreshCron != "" {
		t.Errorf("RefreshCron = %q, want disabled", cfg.RefreshCron)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"latitude", "LATITUDE", "91", "LATITUDE"},
		{"longitude", "LONGITUDE", "-181", "LONGITUDE"},
		{"timezone", "TIMEZONE", "Mars/Olympus", "TIMEZONE"},
		{"midnight cron", "MIDNIGHT_CRON", "at midnight", "MIDNIGHT_CRON"},
		{"refresh cron", "REFRESH_CRON", "61 * * * *", "REFRESH_CRON"},
		{"trigger tick", "TRIGGER_TICK", "10ms", "TRIGGER_TICK"},
		{"lock ttl", "PASS_LOCK_TTL", "100ms", "PASS_LOCK_TTL"},
		{"result ttl", "RESULT_BACKEND_TTL_FAILURE", "-1h", "RESULT_BACKEND_TTL_FAILURE"},
		{"payload format", "ALARM_PAYLOAD_FORMAT", "xml", "ALARM_PAYLOAD_FORMAT"},
		{"log level", "LOG_LEVEL", "loud", "logging"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("Expected error for %s=%q, got nil", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %s", err, tt.want)
			}
		})
	}
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("ADHAN_TEST_INT", "many")
	t.Setenv("ADHAN_TEST_FLOAT", "north")
	t.Setenv("ADHAN_TEST_DURATION", "forever")
	t.Setenv("ADHAN_TEST_BOOL", "perhaps")

	if got := getEnvAsInt("ADHAN_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt() = %d, want 7", got)
	}
	if got := getEnvAsFloat("ADHAN_TEST_FLOAT", 1.5); got != 1.5 {
		t.Errorf("getEnvAsFloat() = %v, want 1.5", got)
	}
	if got := getEnvAsDuration("ADHAN_TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvAsDuration() = %v, want 1s", got)
	}
	if got := getEnvAsBool("ADHAN_TEST_BOOL", true); !got {
		t.Error("getEnvAsBool() = false, want true")
	}
}
