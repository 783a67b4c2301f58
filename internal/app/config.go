package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/domain/coupon"
)

// Storage backends for the anonymous cart snapshot.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Coupon rule sources for the checkout summary.
const (
	CouponsNone     = "none"
	CouponsStatic   = "static"
	CouponsPostgres = "postgres"
)

const defaultAddr = "127.0.0.1:8090"

// Config holds the cart agent configuration, loadable from environment
// variables (CART_ prefix), flags, or YAML config files.
type Config struct {
	Addr               string `default:"127.0.0.1:8090" usage:"Agent API listen address"`
	SerializeMutations bool   `default:"false" usage:"Run signed in cart mutations one at a time" flag:"serialize-mutations"`
	Gateway            GatewayConfig
	Storage            StorageConfig
	Session            SessionConfig
	Coupons            CouponsConfig
	Auth               AuthConfig
	RateLimit          RateLimitConfig
	CORS               CORSConfig
	Graceful           GracefulConfig
}

// GatewayConfig points the agent at the order service cart API.
type GatewayConfig struct {
	BaseURL string        `usage:"Order service cart API root" flag:"gateway-url"`
	Timeout time.Duration `default:"10s" usage:"Order service request timeout" flag:"gateway-timeout"`
}

// StorageConfig selects where the anonymous cart is kept.
type StorageConfig struct {
	Backend     string        `default:"file" usage:"Snapshot backend: memory, file, redis or postgres"`
	Key         string        `default:"cart" usage:"Key the snapshot is stored under"`
	Dir         string        `default:".cart" usage:"Data directory of the file backend"`
	RedisAddr   string        `usage:"Redis address or redis:// URL" flag:"redis-addr"`
	RedisTTL    time.Duration `default:"0s" usage:"Expiry of redis snapshots, zero keeps them" flag:"redis-ttl"`
	DatabaseURL string        `usage:"PostgreSQL connection URL, falls back to DATABASE_URL" flag:"database-url"`
}

// SessionConfig is the optional identity the agent starts with.
type SessionConfig struct {
	UserID   string `usage:"Signed in user id, empty starts anonymous" flag:"user-id"`
	UserType string `default:"customer" usage:"Signed in user type" flag:"user-type"`
	Token    string `usage:"Bearer token for the order service" flag:"user-token"`
}

// CouponsConfig selects where coupon rules for the checkout summary come from.
type CouponsConfig struct {
	Source string `default:"none" usage:"Coupon rules source: none, static or postgres" flag:"coupons"`
	// Rules are the static rules as CODE:TYPE:VALUE[:MIN_ITEMS].
	Rules []string `usage:"Static coupon rules, CODE:TYPE:VALUE[:MIN_ITEMS]" flag:"coupon-rules"`
}

// AuthConfig guards the agent API with API keys. No hashes disables it.
type AuthConfig struct {
	APIKeyHashes []string `usage:"Hex HMAC-SHA256 hashes of accepted API keys" flag:"api-key-hashes"`
	Pepper       string   `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
}

// RateLimitConfig controls the per-client sliding window limiter on cart
// mutations.
type RateLimitConfig struct {
	Max    int           `default:"120" usage:"Max cart mutations per window, zero disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"1s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"10s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CART",
		Files:     []string{"config.yaml", "/etc/cart-agent/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the standard DATABASE_URL and PORT variables
// onto the CART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports configuration that cannot start an agent.
func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return errors.New("gateway base URL is required")
	}

	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.Dir == "" {
			return errors.New("file storage needs a data directory")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("redis storage needs an address")
		}
	case BackendPostgres:
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	c.Coupons.Source = strings.ToLower(c.Coupons.Source)
	switch c.Coupons.Source {
	case "", CouponsNone, CouponsPostgres:
	case CouponsStatic:
		if _, err := coupon.ParseRules(c.Coupons.Rules); err != nil {
			return errors.Wrap(err, "static coupons")
		}
	default:
		return errors.Errorf("unknown coupon source %q", c.Coupons.Source)
	}

	if c.needsDatabase() && c.Storage.DatabaseURL == "" {
		return errors.New("database URL is required: set it in storage config or DATABASE_URL")
	}
	if len(c.Auth.APIKeyHashes) > 0 && c.Auth.Pepper == "" {
		return errors.New("API key hashes need a pepper")
	}
	return nil
}

func (c *Config) needsDatabase() bool {
	return c.Storage.Backend == BackendPostgres || c.Coupons.Source == CouponsPostgres
}

// Identity returns the configured starting identity, nil for anonymous.
func (c *Config) Identity() *cart.Identity {
	if c.Session.UserID == "" {
		return nil
	}
	return &cart.Identity{
		UserID:   c.Session.UserID,
		UserType: c.Session.UserType,
		Token:    c.Session.Token,
	}
}
