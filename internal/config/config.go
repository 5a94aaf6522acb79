package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Auth       AuthConfig       `json:"auth"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Quota      QuotaConfig      `json:"quota"`
	Parcel     ParcelConfig     `json:"parcel"`
	Places     PlacesConfig     `json:"places"`
	RequestLog RequestLogConfig `json:"request_log"`
	Health     HealthConfig     `json:"health"`
}

type ServerConfig struct {
	Port         string   `json:"port" envconfig:"PORT" validate:"required,numeric"`
	Environment  string   `json:"environment" envconfig:"ENV" validate:"required,oneof=development staging production test"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
	CORSOrigins  []string `json:"cors_origins" envconfig:"CORS_ORIGINS"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn" envconfig:"DATABASE_URL" validate:"required"`
}

type RedisConfig struct {
	Host     string `json:"host" envconfig:"REDIS_HOST"`
	Port     string `json:"port" envconfig:"REDIS_PORT"`
	Password string `json:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `json:"db" envconfig:"REDIS_DB"`
}

func (r RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" envconfig:"AUTH_JWT_SECRET" validate:"required,min=16"`
	Issuer    string `json:"issuer" envconfig:"AUTH_ISSUER"`
	// Role claim value that unlocks the /admin routes
	AdminRole string `json:"admin_role" envconfig:"AUTH_ADMIN_ROLE"`
}

type RateLimitConfig struct {
	Backend       string   `json:"backend" envconfig:"RATE_LIMIT_BACKEND" validate:"oneof=memory redis"`
	SweepInterval Duration `json:"sweep_interval"`
}

type QuotaConfig struct {
	Backend      string   `json:"backend" envconfig:"QUOTA_BACKEND" validate:"oneof=postgres redis memory"`
	FreeLimit    int64    `json:"free_limit" envconfig:"QUOTA_FREE_LIMIT" validate:"gt=0"`
	StoreTimeout Duration `json:"store_timeout"`
}

type ParcelConfig struct {
	BaseURL string        `json:"base_url" envconfig:"PARCEL_BASE_URL" validate:"required,url"`
	APIKey  string        `json:"api_key" envconfig:"PARCEL_API_KEY"`
	Timeout Duration      `json:"timeout"`
	Breaker BreakerConfig `json:"breaker"`
}

type BreakerConfig struct {
	MaxFailures int      `json:"max_failures"`
	Timeout     Duration `json:"timeout"`
}

type PlacesConfig struct {
	BaseURL  string   `json:"base_url" envconfig:"PLACES_BASE_URL" validate:"required,url"`
	APIKey   string   `json:"api_key" envconfig:"PLACES_API_KEY"`
	CacheTTL Duration `json:"cache_ttl"`
}

type RequestLogConfig struct {
	Enabled       bool     `json:"enabled" envconfig:"REQUEST_LOG_ENABLED"`
	BufferSize    int      `json:"buffer_size"`
	FlushInterval Duration `json:"flush_interval"`
}

type HealthConfig struct {
	Interval    Duration `json:"interval"`
	Timeout     Duration `json:"timeout"`
	MaxFailures int      `json:"max_failures" envconfig:"HEALTH_MAX_FAILURES"`
}

// Duration accepts "30s" style strings in the JSON file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Decode lets envconfig parse the same format.
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Load reads the JSON file at path (a missing file is allowed), overlays
// environment variables, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Server.ReadTimeout.Duration <= 0 {
		c.Server.ReadTimeout.Duration = 15 * time.Second
	}
	if c.Server.WriteTimeout.Duration <= 0 {
		c.Server.WriteTimeout.Duration = 15 * time.Second
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == "" {
		c.Redis.Port = "6379"
	}
	if c.Auth.AdminRole == "" {
		c.Auth.AdminRole = "admin"
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.SweepInterval.Duration <= 0 {
		c.RateLimit.SweepInterval.Duration = time.Minute
	}
	if c.Quota.Backend == "" {
		c.Quota.Backend = "postgres"
	}
	if c.Quota.FreeLimit == 0 {
		c.Quota.FreeLimit = 10
	}
	if c.Quota.StoreTimeout.Duration <= 0 {
		c.Quota.StoreTimeout.Duration = 5 * time.Second
	}
	if c.Parcel.Timeout.Duration <= 0 {
		c.Parcel.Timeout.Duration = 10 * time.Second
	}
	if c.Parcel.Breaker.MaxFailures <= 0 {
		c.Parcel.Breaker.MaxFailures = 5
	}
	if c.Parcel.Breaker.Timeout.Duration <= 0 {
		c.Parcel.Breaker.Timeout.Duration = 30 * time.Second
	}
	if c.Places.CacheTTL.Duration <= 0 {
		c.Places.CacheTTL.Duration = 10 * time.Minute
	}
	if c.RequestLog.BufferSize <= 0 {
		c.RequestLog.BufferSize = 1000
	}
	if c.RequestLog.FlushInterval.Duration <= 0 {
		c.RequestLog.FlushInterval.Duration = 5 * time.Second
	}
	if c.Health.Interval.Duration <= 0 {
		c.Health.Interval.Duration = 10 * time.Second
	}
	if c.Health.Timeout.Duration <= 0 {
		c.Health.Timeout.Duration = 2 * time.Second
	}
	if c.Health.MaxFailures <= 0 {
		c.Health.MaxFailures = 3
	}
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.UsesRedis() && c.Redis.Host == "" {
		return errors.New("invalid config: redis.host is required for the redis backends")
	}

	return nil
}

// UsesRedis reports whether any component is configured against Redis.
func (c *Config) UsesRedis() bool {
	return c.RateLimit.Backend == "redis" || c.Quota.Backend == "redis"
}
