package iamport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/apikr/siot-iamport/cache"
)

// DefaultTokenCacheKey is the cache key used for the access token when none is configured.
const DefaultTokenCacheKey = "iamport.access_token"

// Cache stores the gateway access token between requests.
// Implementations must drop entries once their TTL has elapsed;
// the client never checks token freshness on its own.
type Cache interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Config holds the gateway credentials and the token cache.
type Config struct {
	// Host is the gateway base URL, e.g. https://api.iamport.kr.
	Host string `env:"IAMPORT_HOST" envDefault:"https://api.iamport.kr"`
	// ImpKey is the REST API key.
	ImpKey string `env:"IAMPORT_KEY,required"`
	// ImpSecret is the REST API secret.
	ImpSecret string `env:"IAMPORT_SECRET,required"`
	// TokenCacheKey names the cache entry holding the access token.
	TokenCacheKey string `env:"IAMPORT_TOKEN_CACHE_KEY" envDefault:"iamport.access_token"`
	// RedisURL, when set, makes LoadConfig share the token through Redis.
	RedisURL string `env:"IAMPORT_REDIS_URL"`

	// Cache is optional. A nil Cache gives every client its own in-memory cache.
	Cache Cache
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("IAMPORT_HOST is required"))
	}
	if c.ImpKey == "" {
		errs = append(errs, errors.New("IAMPORT_KEY is required"))
	}
	if c.ImpSecret == "" {
		errs = append(errs, errors.New("IAMPORT_SECRET is required"))
	}
	if c.TokenCacheKey == "" {
		errs = append(errs, errors.New("IAMPORT_TOKEN_CACHE_KEY is required"))
	}

	return errors.Join(errs...)
}

// LoadConfig reads the configuration from the environment.
// The given dotenv files are loaded first; variables already set in the
// environment take precedence over them.
func LoadConfig(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("load env files: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return Config{}, fmt.Errorf("invalid IAMPORT_REDIS_URL: %w", err)
		}
		cfg.Cache = cache.NewRedis(redis.NewClient(opt))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
