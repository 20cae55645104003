// Package config provides configuration management for tenantly.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Realtime    RealtimeConfig    `mapstructure:"realtime"`
	Triage      TriageConfig      `mapstructure:"triage"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	SiteURL         string        `mapstructure:"site_url"`
}

// DatabaseConfig selects the relational store behind the gateway.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	LogLevel string `mapstructure:"log_level"`
}

// AuthConfig holds token signing and OAuth provider settings.
type AuthConfig struct {
	JWTSecret  string                         `mapstructure:"jwt_secret"`
	SessionTTL time.Duration                  `mapstructure:"session_ttl"`
	OAuth      map[string]OAuthProviderConfig `mapstructure:"oauth"`
}

type OAuthProviderConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
}

// StorageConfig selects the object store. Backend is "memory" or "gridfs".
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// RealtimeConfig selects the change feed broker. Backend is "memory" or "redis".
type RealtimeConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// TriageConfig enables AI triage of maintenance requests.
type TriageConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads .env, an optional config file and TENANTLY_* environment
// variables, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tenantly")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tenantly/")
	}

	v.SetEnvPrefix("TENANTLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// DATABASE_URL is the variable the migration tooling has always read.
	_ = v.BindEnv("database.url", "TENANTLY_DATABASE_URL", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.session_ttl", "24h")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.site_url", "http://localhost:8100")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", "168h")

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.mongo_database", "tenantly")
	v.SetDefault("storage.public_base_url", "http://localhost:8080/storage")

	v.SetDefault("realtime.backend", "memory")
	v.SetDefault("realtime.redis_addr", "localhost:6379")
	v.SetDefault("realtime.channel_prefix", "tenantly:realtime:")

	v.SetDefault("triage.enabled", false)
	v.SetDefault("triage.model", "anthropic:claude-3-5-haiku-latest")
	v.SetDefault("triage.timeout", "20s")

	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 100.0)
	v.SetDefault("rate_limiter.burst_size", 50)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	switch c.Storage.Backend {
	case "memory":
	case "gridfs":
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for the gridfs backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %q", c.Storage.Backend)
	}

	switch c.Realtime.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported realtime backend: %q", c.Realtime.Backend)
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth session ttl must be positive")
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Triage.Enabled && c.Triage.APIKey == "" {
		return fmt.Errorf("triage.api_key is required when triage is enabled")
	}

	return nil
}
