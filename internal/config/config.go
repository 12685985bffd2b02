package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulsehq/comms-gateway/pkg/logger"
)

// Duration wraps time.Duration so yaml values can use "10s" / "5m" syntax
type Duration time.Duration

// UnmarshalYAML parses a duration string
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a standard time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config top-level gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Poll     PollConfig     `yaml:"poll"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig HTTP listener settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Env  string `yaml:"env"`
}

// UpstreamConfig Pulse backend (message store + employee directory)
type UpstreamConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// PollConfig snapshot refresh behavior
type PollConfig struct {
	Interval   Duration `yaml:"interval"`    // inbox/sent refresh cadence
	SessionTTL Duration `yaml:"session_ttl"` // idle session eviction
	PageLimit  int      `yaml:"page_limit"`  // upstream fetch page size
}

// RedisConfig cache settings
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// JWTConfig token verification settings
type JWTConfig struct {
	Secret    string   `yaml:"secret"`
	ExpiresIn Duration `yaml:"expires_in"`
}

// CORSConfig allowed origins (comma-separated)
type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"`
}

// Load reads a yaml config file and applies env-var overrides
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.Upstream.BaseURL == "" {
		return nil, fmt.Errorf("upstream.base_url is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8084,
			Env:  "local",
		},
		Upstream: UpstreamConfig{
			Timeout: Duration(10 * time.Second),
		},
		Poll: PollConfig{
			Interval:   Duration(10 * time.Second),
			SessionTTL: Duration(5 * time.Minute),
			PageLimit:  100,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			DB:       0,
			PoolSize: 10,
		},
		JWT: JWTConfig{
			ExpiresIn: Duration(24 * time.Hour),
		},
	}
}

// applyEnvOverrides lets deployment env vars win over yaml values
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Server.Env = v
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = p
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		cfg.CORS.AllowOrigins = v
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Poll.Interval = Duration(d)
		}
	}
}

// IsDevelopment reports whether the gateway runs in a development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "local" || c.Server.Env == "development" || c.Server.Env == "dev"
}

// LogResolved prints the effective configuration (secrets masked)
func LogResolved(c *Config) {
	logger.Info("server: %s:%d (env=%s)", c.Server.Host, c.Server.Port, c.Server.Env)
	logger.Info("upstream: %s (timeout=%v)", c.Upstream.BaseURL, c.Upstream.Timeout.Std())
	logger.Info("poll: interval=%v session_ttl=%v page_limit=%d",
		c.Poll.Interval.Std(), c.Poll.SessionTTL.Std(), c.Poll.PageLimit)
	logger.Info("redis: %s:%d db=%d", c.Redis.Host, c.Redis.Port, c.Redis.DB)
	logger.Info("jwt: secret=%s expires_in=%v", mask(c.JWT.Secret), c.JWT.ExpiresIn.Std())
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
