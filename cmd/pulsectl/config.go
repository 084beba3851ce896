package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/pulse/internal/socketrpc"
)

const (
	defaultChartWidth  = 72
	defaultChartHeight = 12
)

// cliConfig holds only client-relevant configuration. It shares the server
// config file so socket-path agrees by default.
type cliConfig struct {
	SocketPath  string `mapstructure:"socket-path"`
	ChartWidth  int    `mapstructure:"chart-width"`
	ChartHeight int    `mapstructure:"chart-height"`
}

func loadCLIConfig(configPath string) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("chart-width", defaultChartWidth)
	v.SetDefault("chart-height", defaultChartHeight)

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
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if cfg.ChartWidth <= 0 {
		cfg.ChartWidth = defaultChartWidth
	}
	if cfg.ChartHeight <= 0 {
		cfg.ChartHeight = defaultChartHeight
	}
	if strings.HasPrefix(cfg.SocketPath, "~/") {
		cfg.SocketPath = filepath.Join(home, cfg.SocketPath[2:])
	}
	return cfg, nil
}
