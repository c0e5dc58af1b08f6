package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/wirebot/internal/backend"
)

var (
	ErrMissingURL  = errors.New("adapter.url is required")
	ErrMissingUser = errors.New("adapter.user is required")
)

// Config holds bot configuration values.
type Config struct {
	LogLevel        string                `mapstructure:"log_level" yaml:"log_level"`
	Adapter         AdapterConfig         `mapstructure:"adapter" yaml:"adapter"`
	Reconnect       backend.BackoffConfig `mapstructure:"reconnect" yaml:"reconnect"`
	HistorySize     int                   `mapstructure:"history_size" yaml:"history_size"`
	StatusAddr      string                `mapstructure:"status_addr" yaml:"status_addr"`
	DatabasePath    string                `mapstructure:"database_path" yaml:"database_path"`
	ShutdownTimeout time.Duration         `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// AdapterConfig describes the chat server connection.
type AdapterConfig struct {
	URL         string        `mapstructure:"url" yaml:"url"`
	User        string        `mapstructure:"user" yaml:"user"`
	Rooms       []string      `mapstructure:"rooms" yaml:"rooms"`
	Token       TokenConfig   `mapstructure:"token" yaml:"token"`
	SendRate    float64       `mapstructure:"send_rate" yaml:"send_rate"`
	SendBurst   int           `mapstructure:"send_burst" yaml:"send_burst"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// TokenConfig signs the hello token. Leave Secret empty for anonymous hellos.
type TokenConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Adapter: AdapterConfig{
			URL:   "ws://localhost:8080/ws",
			User:  "wirebot",
			Rooms: []string{"general"},
			Token: TokenConfig{
				Issuer: "wirechat-server",
				TTL:    time.Hour,
			},
			SendRate:    5,
			SendBurst:   10,
			DialTimeout: 10 * time.Second,
		},
		Reconnect:       backend.DefaultBackoffConfig(),
		HistorySize:     10,
		StatusAddr:      ":8081",
		DatabasePath:    "wirebot.db",
		ShutdownTimeout: 5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero top level values from other into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.StatusAddr != "" {
		c.StatusAddr = other.StatusAddr
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.HistorySize != 0 {
		c.HistorySize = other.HistorySize
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}

// Validate reports the first setting the bot cannot start without.
func (c Config) Validate() error {
	if c.Adapter.URL == "" {
		return ErrMissingURL
	}
	if c.Adapter.User == "" {
		return ErrMissingUser
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("history_size must be positive, got %d", c.HistorySize)
	}
	if c.Adapter.SendRate < 0 {
		return fmt.Errorf("adapter.send_rate must not be negative, got %v", c.Adapter.SendRate)
	}
	return nil
}
