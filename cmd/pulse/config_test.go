package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
)

func TestLoadConfig_Defaults(t *testing.T) {
	resetPulseEnv(t)

	cfg, err := loadConfig(writeTempConfig(t, "log-level: debug"))
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.APIAddr != "0.0.0.0:8080" {
		t.Fatalf("APIAddr = %q, want 0.0.0.0:8080", cfg.APIAddr)
	}
	if cfg.AdminAddr != "127.0.0.1:8081" {
		t.Fatalf("AdminAddr = %q, want 127.0.0.1:8081", cfg.AdminAddr)
	}
	if cfg.ThrottleWindow != model.DefaultThrottleWindow {
		t.Fatalf("ThrottleWindow = %s, want %s", cfg.ThrottleWindow, model.DefaultThrottleWindow)
	}
	if cfg.ThrottleSize != model.DefaultThrottleSize {
		t.Fatalf("ThrottleSize = %d", cfg.ThrottleSize)
	}
	if cfg.CacheSize != model.DefaultCacheSize {
		t.Fatalf("CacheSize = %d", cfg.CacheSize)
	}
	if cfg.RetentionDays != 0 {
		t.Fatalf("RetentionDays = %d, want 0", cfg.RetentionDays)
	}
	if !cfg.JournalEnabled || cfg.JournalPath == "" {
		t.Fatalf("journal should default on with a path, got %v %q", cfg.JournalEnabled, cfg.JournalPath)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.ConfigPath == "" {
		t.Fatal("ConfigPath should record the file used")
	}
}

func TestLoadConfig_AddressResolution(t *testing.T) {
	resetPulseEnv(t)

	tests := []struct {
		name       string
		configYAML string
		want       string
	}{
		{"port only", "api-port: 3100", "0.0.0.0:3100"},
		{"explicit address wins", "api-port: 3100\napi-addr: 127.0.0.1:9999", "127.0.0.1:9999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeTempConfig(t, tt.configYAML))
			if err != nil {
				t.Fatalf("loadConfig returned error: %v", err)
			}
			if cfg.APIAddr != tt.want {
				t.Fatalf("APIAddr = %q, want %q", cfg.APIAddr, tt.want)
			}
		})
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	resetPulseEnv(t)
	t.Setenv("PULSE_THROTTLE_SIZE", "5")
	t.Setenv("PULSE_INSERT_FLUSH_INTERVAL", "250ms")

	cfg, err := loadConfig(writeTempConfig(t, "throttle-size: 50"))
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.ThrottleSize != 5 {
		t.Fatalf("ThrottleSize = %d, want 5", cfg.ThrottleSize)
	}
	if cfg.InsertFlushInterval != 250*time.Millisecond {
		t.Fatalf("InsertFlushInterval = %s", cfg.InsertFlushInterval)
	}
}

func TestLoadConfig_ExpandsHome(t *testing.T) {
	resetPulseEnv(t)
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	cfg, err := loadConfig(writeTempConfig(t, "db-path: ~/data/pulse.duckdb\npalette-file: ~/palette.yml"))
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.DBPath != filepath.Join(home, "data", "pulse.duckdb") {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.PaletteFile != filepath.Join(home, "palette.yml") {
		t.Fatalf("PaletteFile = %q", cfg.PaletteFile)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	resetPulseEnv(t)

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.ConfigPath != "" {
		t.Fatalf("ConfigPath = %q, want empty", cfg.ConfigPath)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	resetPulseEnv(t)

	tests := []struct {
		name         string
		configYAML   string
		errSubstring string
	}{
		{"port too large", "api-port: 70000", "invalid api-port"},
		{"public admin address", "admin-addr: 0.0.0.0:8081", "invalid admin-addr"},
		{"zero port", "api-port: 0", "invalid api-port"},
		{"zero query timeout", "query-timeout: 0s", "invalid query-timeout"},
		{"negative throttle window", "throttle-window: -1s", "invalid throttle-window"},
		{"zero throttle size", "throttle-size: 0", "invalid throttle-size"},
		{"zero cache size", "cache-size: 0", "invalid cache-size"},
		{"negative retention", "retention-days: -3", "invalid retention-days"},
		{"journal without path", "journal-path: ' '", "journal-path is required"},
		{"backup interval", "backup-enabled: true\nbackup-interval: 0s", "invalid backup-interval"},
		{"backup keep-last", "backup-enabled: true\nbackup-keep-last: -1", "invalid backup-keep-last"},
		{"bucket without credentials", "backup-enabled: true\nbackup-bucket-url: s3://bucket/pulse", "backup-s3-access-key and backup-s3-secret-key are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeTempConfig(t, tt.configYAML))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errSubstring) {
				t.Fatalf("error = %q, want substring %q", err.Error(), tt.errSubstring)
			}
		})
	}
}

func TestLoadConfig_BackupSettings(t *testing.T) {
	resetPulseEnv(t)

	cfg, err := loadConfig(writeTempConfig(t, `
backup-enabled: true
backup-interval: 1h
backup-local-dir: /tmp/pulse-backups
backup-keep-last: 10
backup-bucket-url: s3://my-bucket/pulse
backup-s3-region: us-east-1
backup-s3-access-key: key
backup-s3-secret-key: secret
`))
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if !cfg.BackupEnabled || cfg.BackupInterval != time.Hour || cfg.BackupKeepLast != 10 {
		t.Fatalf("unexpected backup config: %+v", cfg)
	}
	if cfg.BackupBucketURL != "s3://my-bucket/pulse" || cfg.BackupS3Region != "us-east-1" {
		t.Fatalf("unexpected s3 config: %q %q", cfg.BackupBucketURL, cfg.BackupS3Region)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func resetPulseEnv(t *testing.T) {
	t.Helper()

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix+"_") {
			continue
		}
		// t.Setenv restores the original value on cleanup.
		t.Setenv(key, value)
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}
