package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/pulse/internal/duckdb"
	"github.com/tinytelemetry/pulse/internal/httpserver"
	"github.com/tinytelemetry/pulse/internal/ingest"
	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/socketrpc"
)

const (
	envPrefix                  = "PULSE"
	defaultBindHost            = "0.0.0.0"
	defaultAPIPort             = 8080
	defaultQueryTimeout        = duckdb.DefaultQueryTimeout
	defaultMaxConcurrentReads  = 8
	defaultInsertBatchSize     = duckdb.DefaultBatchSize
	defaultInsertFlushInterval = duckdb.DefaultFlushInterval
	defaultInsertFlushQueue    = duckdb.DefaultFlushQueueSize
	defaultRetentionDays       = 0 // keep forever
	defaultBackupInterval      = 6 * time.Hour
	defaultBackupKeepLast      = 24
	defaultGeoRatePerMinute    = 45
)

// appConfig is the runtime configuration of the server binary.
type appConfig struct {
	APIAddr              string        `mapstructure:"api-addr"`
	APIPort              int           `mapstructure:"api-port"`
	AdminAddr            string        `mapstructure:"admin-addr"`
	DBPath               string        `mapstructure:"db-path"`
	QueryTimeout         time.Duration `mapstructure:"query-timeout"`
	MaxConcurrentQueries int           `mapstructure:"max-concurrent-queries"`
	InsertBatchSize      int           `mapstructure:"insert-batch-size"`
	InsertFlushInterval  time.Duration `mapstructure:"insert-flush-interval"`
	InsertFlushQueue     int           `mapstructure:"insert-flush-queue-size"`
	JournalEnabled       bool          `mapstructure:"journal-enabled"`
	JournalPath          string        `mapstructure:"journal-path"`
	RetentionDays        int           `mapstructure:"retention-days"`

	BackupEnabled        bool          `mapstructure:"backup-enabled"`
	BackupInterval       time.Duration `mapstructure:"backup-interval"`
	BackupLocalDir       string        `mapstructure:"backup-local-dir"`
	BackupKeepLast       int           `mapstructure:"backup-keep-last"`
	BackupBucketURL      string        `mapstructure:"backup-bucket-url"`
	BackupS3Endpoint     string        `mapstructure:"backup-s3-endpoint"`
	BackupS3Region       string        `mapstructure:"backup-s3-region"`
	BackupS3AccessKey    string        `mapstructure:"backup-s3-access-key"`
	BackupS3SecretKey    string        `mapstructure:"backup-s3-secret-key"`
	BackupS3SessionToken string        `mapstructure:"backup-s3-session-token"`
	BackupS3UseSSL       bool          `mapstructure:"backup-s3-use-ssl"`

	SocketPath       string        `mapstructure:"socket-path"`
	ThrottleWindow   time.Duration `mapstructure:"throttle-window"`
	ThrottleSize     int           `mapstructure:"throttle-size"`
	GeoEnabled       bool          `mapstructure:"geo-enabled"`
	GeoBaseURL       string        `mapstructure:"geo-base-url"`
	GeoRatePerMinute int           `mapstructure:"geo-rate-per-minute"`
	PaletteFile      string        `mapstructure:"palette-file"`
	CacheSize        int           `mapstructure:"cache-size"`
	SeedDemoData     bool          `mapstructure:"seed-demo-data"`
	LogLevel         string        `mapstructure:"log-level"`
	LogFormat        string        `mapstructure:"log-format"`

	ConfigPath string `mapstructure:"-"`
}

// loadConfig layers defaults, the config file, and PULSE_* environment
// variables, in increasing priority.
func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".local", "share", "pulse")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("api-addr", "")
	v.SetDefault("admin-addr", httpserver.DefaultAdminAddr)
	v.SetDefault("db-path", filepath.Join(dataDir, "pulse.duckdb"))
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("max-concurrent-queries", defaultMaxConcurrentReads)
	v.SetDefault("insert-batch-size", defaultInsertBatchSize)
	v.SetDefault("insert-flush-interval", defaultInsertFlushInterval)
	v.SetDefault("insert-flush-queue-size", defaultInsertFlushQueue)
	v.SetDefault("journal-enabled", true)
	v.SetDefault("journal-path", filepath.Join(dataDir, "ingest.journal"))
	v.SetDefault("retention-days", defaultRetentionDays)
	v.SetDefault("backup-enabled", false)
	v.SetDefault("backup-interval", defaultBackupInterval)
	v.SetDefault("backup-local-dir", filepath.Join(dataDir, "backups"))
	v.SetDefault("backup-keep-last", defaultBackupKeepLast)
	v.SetDefault("backup-bucket-url", "")
	v.SetDefault("backup-s3-endpoint", "")
	v.SetDefault("backup-s3-region", "")
	v.SetDefault("backup-s3-access-key", "")
	v.SetDefault("backup-s3-secret-key", "")
	v.SetDefault("backup-s3-session-token", "")
	v.SetDefault("backup-s3-use-ssl", true)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("throttle-window", model.DefaultThrottleWindow)
	v.SetDefault("throttle-size", model.DefaultThrottleSize)
	v.SetDefault("geo-enabled", true)
	v.SetDefault("geo-base-url", ingest.DefaultIPAPIBaseURL)
	v.SetDefault("geo-rate-per-minute", defaultGeoRatePerMinute)
	v.SetDefault("palette-file", "")
	v.SetDefault("cache-size", model.DefaultCacheSize)
	v.SetDefault("seed-demo-data", false)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "pulse", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	} else {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	configPathUsed := cfg.ConfigPath
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = configPathUsed

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	for _, p := range []*string{&cfg.DBPath, &cfg.JournalPath, &cfg.BackupLocalDir, &cfg.SocketPath, &cfg.PaletteFile} {
		*p = expandHome(*p, home)
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}
	return cfg, nil
}

func (c appConfig) validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid api-port: %d", c.APIPort)
	}
	if c.AdminAddr != "" {
		if err := httpserver.CheckLoopback(c.AdminAddr); err != nil {
			return fmt.Errorf("invalid admin-addr: %w", err)
		}
	}
	durations := []struct {
		key string
		d   time.Duration
	}{
		{"query-timeout", c.QueryTimeout},
		{"insert-flush-interval", c.InsertFlushInterval},
		{"throttle-window", c.ThrottleWindow},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("invalid %s: %s", d.key, d.d)
		}
	}
	if c.BackupEnabled {
		if c.BackupInterval <= 0 {
			return fmt.Errorf("invalid backup-interval: %s", c.BackupInterval)
		}
		if c.BackupKeepLast < 0 {
			return fmt.Errorf("invalid backup-keep-last: %d", c.BackupKeepLast)
		}
		if c.BackupBucketURL != "" && (c.BackupS3AccessKey == "" || c.BackupS3SecretKey == "") {
			return errors.New("backup-s3-access-key and backup-s3-secret-key are required with backup-bucket-url")
		}
	}
	if c.ThrottleSize <= 0 {
		return fmt.Errorf("invalid throttle-size: %d", c.ThrottleSize)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("invalid cache-size: %d", c.CacheSize)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("invalid retention-days: %d", c.RetentionDays)
	}
	if c.JournalEnabled && strings.TrimSpace(c.JournalPath) == "" {
		return errors.New("journal-path is required when journal-enabled is set")
	}
	return nil
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
