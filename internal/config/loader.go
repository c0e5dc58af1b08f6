package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "WIREBOT_CONFIG_DEFAULT_PATH"
	envPrefix            = "WIREBOT"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides (UpdateFrom).
// A missing file is created from Default.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	return load(logger, explicitPath, true)
}

// Read resolves configuration like Load but never writes to disk; a
// missing file leaves defaults and env vars in effect.
func Read(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	return load(logger, explicitPath, false)
}

func load(logger *zerolog.Logger, explicitPath string, writeMissing bool) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if !writeMissing {
				if logger != nil {
					logger.Debug().Str("path", configPath).Msg("config file not found, using defaults")
				}
			} else {
				if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
					logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
				} else if logger != nil {
					logger.Info().Str("path", configPath).Msg("created default config")
				}
				// try reading again in case it was just written
				if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
					logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
				}
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so AutomaticEnv can resolve nested
// settings such as WIREBOT_ADAPTER_URL.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("log_level", cfg.LogLevel)

	v.SetDefault("adapter.url", cfg.Adapter.URL)
	v.SetDefault("adapter.user", cfg.Adapter.User)
	v.SetDefault("adapter.rooms", cfg.Adapter.Rooms)
	v.SetDefault("adapter.token.secret", cfg.Adapter.Token.Secret)
	v.SetDefault("adapter.token.issuer", cfg.Adapter.Token.Issuer)
	v.SetDefault("adapter.token.audience", cfg.Adapter.Token.Audience)
	v.SetDefault("adapter.token.ttl", cfg.Adapter.Token.TTL)
	v.SetDefault("adapter.send_rate", cfg.Adapter.SendRate)
	v.SetDefault("adapter.send_burst", cfg.Adapter.SendBurst)
	v.SetDefault("adapter.dial_timeout", cfg.Adapter.DialTimeout)

	v.SetDefault("reconnect.initial_delay", cfg.Reconnect.InitialDelay)
	v.SetDefault("reconnect.max_delay", cfg.Reconnect.MaxDelay)
	v.SetDefault("reconnect.multiplier", cfg.Reconnect.Multiplier)
	v.SetDefault("reconnect.max_jitter", cfg.Reconnect.MaxJitter)

	v.SetDefault("history_size", cfg.HistorySize)
	v.SetDefault("status_addr", cfg.StatusAddr)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
