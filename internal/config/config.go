package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alucardeht/ghview-bridge/internal/logger"
)

const (
	DefaultAppName       = "ghview"
	DefaultCapturePrefix = "ghview-screenshot"
)

type Config struct {
	AppName        string        `toml:"app_name"`
	SocketPath     string        `toml:"socket_path"`
	WindowMatch    []string      `toml:"window_match"`
	CapturePrefix  string        `toml:"capture_prefix"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	ConnTimeout    time.Duration `toml:"conn_timeout"`
	WaitForHost    time.Duration `toml:"wait_for_host"`
	HistoryPath    string        `toml:"history_path"`
	Log            LogConfig     `toml:"log"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// DefaultSocketPath is the well-known endpoint shared by the host and the tool
// server. Windows uses a named pipe.
func DefaultSocketPath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\ghview`
	}
	return "/tmp/ghview.sock"
}

func Dir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".ghview")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

func Default() *Config {
	return &Config{
		AppName:        DefaultAppName,
		SocketPath:     DefaultSocketPath(),
		CapturePrefix:  DefaultCapturePrefix,
		RequestTimeout: 30 * time.Second,
		ConnTimeout:    60 * time.Second,
		WaitForHost:    0,
		HistoryPath:    filepath.Join(Dir(), "history.db"),
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path (or the
// default location when path is empty and the file exists) and GHVIEW_*
// environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if len(cfg.WindowMatch) == 0 {
		cfg.WindowMatch = []string{cfg.AppName}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.SocketPath = getEnv("GHVIEW_SOCKET", c.SocketPath)
	c.AppName = getEnv("GHVIEW_APP_NAME", c.AppName)
	c.HistoryPath = getEnv("GHVIEW_HISTORY", c.HistoryPath)
	c.Log.Level = getEnv("GHVIEW_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("GHVIEW_LOG_FILE", c.Log.File)

	if v := os.Getenv("GHVIEW_WINDOW_MATCH"); v != "" {
		c.WindowMatch = strings.Split(v, ",")
	}

	var err error
	if c.RequestTimeout, err = getEnvAsDuration("GHVIEW_REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.ConnTimeout, err = getEnvAsDuration("GHVIEW_CONN_TIMEOUT", c.ConnTimeout); err != nil {
		return err
	}
	if c.WaitForHost, err = getEnvAsDuration("GHVIEW_WAIT_FOR_HOST", c.WaitForHost); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, errors.New("socket_path cannot be empty"))
	}
	if c.AppName == "" {
		errs = append(errs, errors.New("app_name cannot be empty"))
	}
	if c.CapturePrefix == "" || strings.ContainsAny(c.CapturePrefix, `/\`) {
		errs = append(errs, fmt.Errorf("invalid capture_prefix %q", c.CapturePrefix))
	}
	if c.RequestTimeout < 0 || c.ConnTimeout < 0 || c.WaitForHost < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q (must be 'text' or 'json')", c.Log.Format))
	}

	return errors.Join(errs...)
}

func (c *Config) LogSettings() logger.Settings {
	return logger.Settings{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}

func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(Dir(), 0700)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected duration, e.g., '30s', '5m')", key, value)
	}
	return d, nil
}
