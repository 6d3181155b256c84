// Package config loads server settings from an optional YAML file and
// SOCIALSTYLES_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "SOCIALSTYLES"
	// DevSecret signs tokens in development; production must override it.
	DevSecret = "socialstyles-dev-secret"
)

type SMTP struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type Config struct {
	Env            string        `mapstructure:"env"`
	Addr           string        `mapstructure:"addr"`
	DBPath         string        `mapstructure:"db_path"`
	MigrationsDir  string        `mapstructure:"migrations_dir"`
	Secret         string        `mapstructure:"secret"`
	BaseURL        string        `mapstructure:"base_url"`
	InviteTTL      time.Duration `mapstructure:"invite_ttl"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	LogLevel       string        `mapstructure:"log_level"`
	ValkeyAddr     string        `mapstructure:"valkey_addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	SMTP           SMTP          `mapstructure:"smtp"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "data/socialstyles.db")
	v.SetDefault("migrations_dir", "")
	v.SetDefault("secret", DevSecret)
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("invite_ttl", 7*24*time.Hour)
	v.SetDefault("token_ttl", 30*24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("valkey_addr", "")
	v.SetDefault("allowed_origins", []string{"*"})
	// smtp keys need defaults so AutomaticEnv can see them on Unmarshal.
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
}

// Load reads path when it is not empty, overlays the environment and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.InviteTTL <= 0 {
		errs = append(errs, errors.New("invite_ttl must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if strings.TrimSpace(c.Secret) == "" {
		errs = append(errs, errors.New("secret is required"))
	} else if c.IsProduction() && c.Secret == DevSecret {
		errs = append(errs, errors.New("secret must be set in production"))
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = append(errs, errors.New("smtp.from is required when smtp.host is set"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps debug/info/warn/error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
