// Package config defines the server configuration and loads it from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/iwvelando/loan-support/internal/simulate"
	"github.com/iwvelando/loan-support/pkg/constants"
	"github.com/spf13/viper"
)

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Audit backends
const (
	AuditNone     = "none"
	AuditMemory   = "memory"
	AuditPostgres = "postgres"
)

// Configuration holds all configuration for the loan-support server.
type Configuration struct {
	Address        string
	MaxRequestSize string
	Logging        LoggingConfig
	CORS           CORSConfig
	Auth           AuthConfig
	RateLimit      RateLimitConfig
	Cache          CacheConfig
	Audit          AuditConfig
	Mock           MockConfig

	maxRequestBytes int64
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// AuthConfig controls bearer token inspection. Tokens are never enforced; with
// a secret set, the subject of a valid HS256 token is added to request logs.
type AuthConfig struct {
	JWTSecret string
}

// RateLimitConfig allows Requests per client IP per Window on POST routes.
// Requests <= 0 disables limiting.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// CacheConfig selects where eligibility results are cached. MaxEntries bounds
// the memory backend.
type CacheConfig struct {
	Backend    string
	TTL        time.Duration
	MaxEntries int
	Redis      RedisConfig
}

// RedisConfig holds the Redis connection parameters.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// AuditConfig selects where calculations are audited.
type AuditConfig struct {
	Backend  string
	DSN      string
	Capacity int
}

// MockConfig tunes the placeholder services.
type MockConfig struct {
	Seed             uint64
	DocumentsPath    string
	IngestDelay      simulate.Delay
	AskDelay         simulate.Delay
	EligibilityDelay simulate.Delay
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", constants.DefaultServerAddress)
	v.SetDefault("maxRequestSize", fmt.Sprintf("%d", constants.DefaultMaxRequestSizeBytes))
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("cors.allowedOrigins", []string{"*"})
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("rateLimit.requests", 0)
	v.SetDefault("rateLimit.window", time.Minute)
	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.maxEntries", constants.DefaultCacheMaxEntries)
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "loan-support:")
	v.SetDefault("audit.backend", AuditMemory)
	v.SetDefault("audit.dsn", "")
	v.SetDefault("audit.capacity", 1000)
	v.SetDefault("mock.seed", 0)
	v.SetDefault("mock.documentsPath", constants.DefaultDocumentsPath)
	v.SetDefault("mock.ingestDelay.min", time.Second)
	v.SetDefault("mock.ingestDelay.max", time.Second)
	v.SetDefault("mock.askDelay.min", 500*time.Millisecond)
	v.SetDefault("mock.askDelay.max", 1500*time.Millisecond)
	v.SetDefault("mock.eligibilityDelay.min", 500*time.Millisecond)
	v.SetDefault("mock.eligibilityDelay.max", 1500*time.Millisecond)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfiguration loads the YAML configuration at configPath. A missing file
// yields the defaults; LOAN_SUPPORT_* environment variables override either.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file, %s", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	if err := configuration.normalize(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// MaxRequestBytes returns the configured request body limit in bytes.
func (c *Configuration) MaxRequestBytes() int64 {
	return c.maxRequestBytes
}

func (c *Configuration) normalize() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = constants.DefaultServerAddress
	}

	size, err := ParseSize(c.MaxRequestSize)
	if err != nil {
		return err
	}
	if size <= 0 {
		size = constants.DefaultMaxRequestSizeBytes
	}
	c.maxRequestBytes = size

	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = CacheNone
	case CacheNone:
	case CacheMemory:
		if c.Cache.MaxEntries <= 0 {
			c.Cache.MaxEntries = constants.DefaultCacheMaxEntries
		}
	case CacheRedis:
		if c.Cache.Redis.Address == "" {
			return fmt.Errorf("cache.redis.address is required for the %s cache", CacheRedis)
		}
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}

	c.Audit.Backend = strings.ToLower(strings.TrimSpace(c.Audit.Backend))
	switch c.Audit.Backend {
	case "":
		c.Audit.Backend = AuditNone
	case AuditNone, AuditMemory:
	case AuditPostgres:
		if c.Audit.DSN == "" {
			return fmt.Errorf("audit.dsn is required for the %s audit log", AuditPostgres)
		}
	default:
		return fmt.Errorf("unsupported audit backend %q", c.Audit.Backend)
	}

	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("rateLimit.window must be positive, got %s", c.RateLimit.Window)
	}

	for name, d := range map[string]simulate.Delay{
		"mock.ingestDelay":      c.Mock.IngestDelay,
		"mock.askDelay":         c.Mock.AskDelay,
		"mock.eligibilityDelay": c.Mock.EligibilityDelay,
	} {
		if d.Min < 0 || d.Max < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
		if d.Max != 0 && d.Max < d.Min {
			return fmt.Errorf("%s max %s is below min %s", name, d.Max, d.Min)
		}
	}

	if strings.TrimSpace(c.Mock.DocumentsPath) == "" {
		c.Mock.DocumentsPath = constants.DefaultDocumentsPath
	}
	return nil
}
