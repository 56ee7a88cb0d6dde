// Package config loads service configuration from file, environment and
// flags through viper.
//
// Precedence (highest first): bound CLI flags, FRONTDESK_* environment
// variables, the YAML config file, built-in defaults. Nested keys map to
// environment variables with "." replaced by "_", so database.path is
// FRONTDESK_DATABASE_PATH.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/warp/frontdesk/cashdesk"
)

const EnvPrefix = "FRONTDESK"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Desk     DeskConfig     `mapstructure:"desk"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	// DemoScenarios exposes /api/scenarios, which wipes the database.
	DemoScenarios bool `mapstructure:"demo_scenarios"`
}

type DatabaseConfig struct {
	// Path to the SQLite file, or ":memory:".
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

type DeskConfig struct {
	// DrawerChannels are counted into a shift's expected cash.
	DrawerChannels []string `mapstructure:"drawer_channels"`
}

type MonitorConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	PendingAfter time.Duration `mapstructure:"pending_after"`
	OpenAfter    time.Duration `mapstructure:"open_after"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.demo_scenarios", false)

	v.SetDefault("database.path", "frontdesk.db")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "frontdesk")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("desk.drawer_channels", []string{string(cashdesk.ChannelCash)})

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", 15*time.Minute)
	v.SetDefault("monitor.pending_after", 24*time.Hour)
	v.SetDefault("monitor.open_after", 16*time.Hour)
}

// New returns a viper instance with defaults and environment binding.
// If file is non-empty it is used as the config file; otherwise
// ./frontdesk.yaml is read when present.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("frontdesk")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (a missing default file is fine) and decodes v.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}
	if _, err := c.Desk.Channels(); err != nil {
		return err
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("invalid monitor.interval: %s", c.Monitor.Interval)
	}
	return nil
}

// RequireSecret fails when no JWT secret is configured.
func (c *Config) RequireSecret() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required (set FRONTDESK_AUTH_JWT_SECRET)")
	}
	return nil
}

// Channels parses DrawerChannels. Bank is never a drawer channel.
func (d DeskConfig) Channels() ([]cashdesk.Channel, error) {
	out := make([]cashdesk.Channel, 0, len(d.DrawerChannels))
	for _, raw := range d.DrawerChannels {
		ch := cashdesk.Channel(strings.ToLower(strings.TrimSpace(raw)))
		if !ch.InWallet() {
			return nil, fmt.Errorf("invalid desk.drawer_channels entry: %q", raw)
		}
		out = append(out, ch)
	}
	return out, nil
}
