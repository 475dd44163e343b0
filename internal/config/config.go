// Package config provides YAML-based configuration loading for the
// seriallink tool.
package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	Serial SerialConfig `mapstructure:"serial"`
	Log    LogConfig    `mapstructure:"log"`
}

// SerialConfig describes the port and how its byte stream is split into items.
type SerialConfig struct {
	Port     string `mapstructure:"port"`
	BaudRate int    `mapstructure:"baud_rate"`
	// Driver: tty, portable or tarm; empty picks the platform default
	Driver string `mapstructure:"driver"`

	// ItemSize is the item width in bytes: 1, 2, 4 or 8
	ItemSize int `mapstructure:"item_size"`
	// ByteOrder: little or big
	ByteOrder string `mapstructure:"byte_order"`

	BufferSize   int           `mapstructure:"buffer_size"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr or file paths
	Outputs []string `mapstructure:"outputs"`

	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a Config populated with defaults. Logs go to stderr since
// stdout carries received data.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate:     115200,
			ItemSize:     1,
			ByteOrder:    "little",
			BufferSize:   512,
			ChunkSize:    128,
			PollInterval: 10 * time.Millisecond,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path (if non-empty), otherwise it searches
// common locations. Environment variables use the prefix SERIALLINK and `.`
// is replaced with `_`, e.g. SERIALLINK_SERIAL_BAUD_RATE=9600.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads the configuration like Load and calls onChange with the new
// configuration each time the file is rewritten. Invalid revisions are
// skipped.
func Watch(path string, onChange func(*Config)) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			return
		}
		onChange(next)
	})
	v.WatchConfig()
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	def := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SERIALLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("serial.port", def.Serial.Port)
	v.SetDefault("serial.baud_rate", def.Serial.BaudRate)
	v.SetDefault("serial.driver", def.Serial.Driver)
	v.SetDefault("serial.item_size", def.Serial.ItemSize)
	v.SetDefault("serial.byte_order", def.Serial.ByteOrder)
	v.SetDefault("serial.buffer_size", def.Serial.BufferSize)
	v.SetDefault("serial.chunk_size", def.Serial.ChunkSize)
	v.SetDefault("serial.poll_interval", def.Serial.PollInterval)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.outputs", def.Log.Outputs)
	v.SetDefault("log.rotation.enable", def.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", def.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", def.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", def.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", def.Log.Rotation.Compress)

	if path == "" {
		path = os.Getenv("SERIALLINK_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("seriallink")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".seriallink"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks and normalizes the configuration.
func (c *Config) Validate() error {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	switch c.Serial.ItemSize {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("invalid serial.item_size: %d", c.Serial.ItemSize)
	}
	c.Serial.ByteOrder = strings.ToLower(strings.TrimSpace(c.Serial.ByteOrder))
	switch c.Serial.ByteOrder {
	case "little", "big":
	default:
		return fmt.Errorf("invalid serial.byte_order: %q", c.Serial.ByteOrder)
	}
	if c.Serial.PollInterval <= 0 {
		return fmt.Errorf("invalid serial.poll_interval: %s", c.Serial.PollInterval)
	}
	return nil
}

// Order returns the binary byte order named by ByteOrder.
func (s SerialConfig) Order() binary.ByteOrder {
	if s.ByteOrder == "big" {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
