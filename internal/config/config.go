package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default job timings
const (
	DefaultWriteTick         = 2 * time.Second
	DefaultSettleDelay       = 2 * time.Second
	DefaultDescriptorTimeout = time.Second
)

// Config holds all application configuration
type Config struct {
	// Control channel
	ListenAddr string `mapstructure:"listen-addr"`

	// Database paths
	SQLitePath string `mapstructure:"sqlite-path"`
	FSMDBPath  string `mapstructure:"fsm-db-path"`

	// Remote images
	ImageCacheDir string `mapstructure:"image-cache-dir"`
	S3Region      string `mapstructure:"s3-region"`
	S3AccessKey   string `mapstructure:"s3-access-key"`
	S3SecretKey   string `mapstructure:"s3-secret-key"`

	// Job timing
	WriteTick         time.Duration `mapstructure:"write-tick"`
	SettleDelay       time.Duration `mapstructure:"settle-delay"`
	DescriptorTimeout time.Duration `mapstructure:"descriptor-timeout"`

	// Safety
	RecheckBeforeFormat bool `mapstructure:"recheck-before-format"`

	LogLevel string `mapstructure:"log-level"`
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen-addr", "127.0.0.1:8080")
	v.SetDefault("sqlite-path", ".artifacts/jobs.db")
	v.SetDefault("fsm-db-path", ".artifacts/fsm")
	v.SetDefault("image-cache-dir", ".artifacts/images")
	v.SetDefault("s3-region", "us-east-1")
	v.SetDefault("s3-access-key", "")
	v.SetDefault("s3-secret-key", "")
	v.SetDefault("write-tick", DefaultWriteTick)
	v.SetDefault("settle-delay", DefaultSettleDelay)
	v.SetDefault("descriptor-timeout", DefaultDescriptorTimeout)
	v.SetDefault("recheck-before-format", true)
	v.SetDefault("log-level", "info")
}

// Load reads configuration from .env, environment, config file, and defaults
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against a specific viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	// A missing .env is normal
	if err := godotenv.Load(); err == nil {
		slog.Debug("dotenv_loaded")
	}

	SetDefaults(v)

	// Environment variables (will be WEBBBOOT_LISTEN_ADDR, etc.)
	v.SetEnvPrefix("WEBBBOOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.webbboot")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen-addr cannot be empty")
	}
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path cannot be empty")
	}
	if c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty")
	}
	if c.ImageCacheDir == "" {
		return fmt.Errorf("image-cache-dir cannot be empty")
	}
	if c.WriteTick <= 0 {
		return fmt.Errorf("write-tick must be positive")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle-delay must be non-negative")
	}
	if c.DescriptorTimeout <= 0 {
		return fmt.Errorf("descriptor-timeout must be positive")
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return fmt.Errorf("s3-access-key and s3-secret-key must be set together")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log-level %q", c.LogLevel)
	}
	return level, nil
}
