// Package config loads the client configuration from a YAML file and
// the environment, and builds the application logger.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v2"
)

// Config is everything needed to mount one remote file system.
type Config struct {
	// URI is the remote endpoint, such as "sftp://user@host:22/home/user"
	// or "mem://scratch/home".
	URI string `yaml:"uri"`
	// User overrides the user info of the URI.
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// KeyFile is the PEM private key for public key auth.
	KeyFile       string `yaml:"key_file"`
	KeyPassphrase string `yaml:"key_passphrase"`
	// KnownHostsFile verifies the server host key. When empty and
	// InsecureSkipHostKey is unset, dialing fails.
	KnownHostsFile      string `yaml:"known_hosts_file"`
	InsecureSkipHostKey bool   `yaml:"insecure_skip_host_key"`
	// Home overrides the home directory of the URI path.
	Home string `yaml:"home"`
	// PoolSize bounds concurrent sessions per file system.
	PoolSize int `yaml:"pool_size"`
	// TimeoutSeconds bounds the TCP dial of each session.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	LogLevel string `yaml:"log_level"`
	// HTTPAddr serves the HTTP gateway when set.
	HTTPAddr string `yaml:"http_addr"`
	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when nothing is specified.
func Default() *Config {
	return &Config{
		PoolSize:       4,
		TimeoutSeconds: 30,
		LogLevel:       "INFO",
	}
}

// Timeout returns the dial timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads a YAML config file and overlays the environment on it.
// file may be empty to run on environment and defaults alone.
func Load(file string) (*Config, error) {
	cfg := Default()
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", file, err)
		}
	}
	cfg.fromEnv()
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 1
	}
	return cfg, nil
}

// fromEnv overlays SFTPFS_* variables over the file values.
func (c *Config) fromEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.URI, "SFTPFS_URI")
	setString(&c.User, "SFTPFS_USER")
	setString(&c.Password, "SFTPFS_PASSWORD")
	setString(&c.KeyFile, "SFTPFS_KEY_FILE")
	setString(&c.KeyPassphrase, "SFTPFS_KEY_PASSPHRASE")
	setString(&c.KnownHostsFile, "SFTPFS_KNOWN_HOSTS")
	setString(&c.Home, "SFTPFS_HOME")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.HTTPAddr, "SFTPFS_HTTP_ADDR")
	setString(&c.MetricsAddr, "SFTPFS_METRICS_ADDR")
	if v := os.Getenv("SFTPFS_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PoolSize = n
		}
	}
	if v := os.Getenv("SFTPFS_INSECURE_SKIP_HOST_KEY"); v != "" {
		c.InsecureSkipHostKey, _ = strconv.ParseBool(v)
	}
}

// Logger builds the application logger at the configured level.
func (c *Config) Logger() *slog.Logger {
	logLevel := slog.LevelInfo
	AddSource := false
	switch c.LogLevel {
	case "DEBUG":
		logLevel = slog.LevelDebug
		AddSource = true
	case "INFO":
		logLevel = slog.LevelInfo
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	}

	handlerOptions := &tint.Options{
		AddSource:   AddSource,
		Level:       logLevel,
		ReplaceAttr: nil,
	}

	handler := tint.NewHandler(os.Stdout, handlerOptions)

	return slog.New(handler).With("app", "sftpfs")
}
