package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (OFFERS_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (OFFERS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis URL of the offer cache, caching is disabled when empty (OFFERS_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	OfferCache  OfferCacheConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// OfferCacheConfig controls the Redis cache of offer candidates.
type OfferCacheConfig struct {
	TTL time.Duration `default:"30s" usage:"Lifetime of a cached retailer offer list" flag:"offer-cache-ttl"`
}

// RateLimitConfig controls the per-retailer sliding window limit of quote
// requests.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max quote requests per retailer per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string      `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool          `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
	MaxAge           time.Duration `default:"24h" usage:"How long browsers may cache preflight responses" flag:"cors-max-age"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from flags, environment variables and YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "OFFERS"
	if base.Files == nil {
		base.Files = []string{"config.yaml", "/etc/offers/config.yaml"}
	}
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set OFFERS_DATABASE_URL or DATABASE_URL")
	}
	if cfg.RateLimit.Max <= 0 || cfg.RateLimit.Window <= 0 {
		return nil, errors.Errorf("invalid rate limit %d per %s", cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL, REDIS_URL and PORT to the application's
// OFFERS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
