package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	JWT       JWTConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Demo      DemoConfig
	Federated FederatedConfig
}

type JWTConfig struct {
	Secret string        `env:"JWT_SECRET, required"`
	TTL    time.Duration `env:"JWT_TTL,    default=24h"`
	Issuer string        `env:"JWT_ISSUER, default=grafeo"`
}

type MongoConfig struct {
	URI          string `env:"MONGO_URI,          default=mongodb://localhost:27017"`
	Database     string `env:"MONGO_DB,           default=grafeo"`
	Transactions bool   `env:"MONGO_TRANSACTIONS, default=false"`
}

// RedisConfig is optional; an empty REDIS_ADDR disables the sweep lock.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type DemoConfig struct {
	TTL              time.Duration `env:"DEMO_TTL,               default=10m"`
	SweepInterval    time.Duration `env:"DEMO_SWEEP_INTERVAL,    default=30s"`
	PurgeConcurrency int           `env:"DEMO_PURGE_CONCURRENCY, default=4"`
	ProvisionTimeout time.Duration `env:"DEMO_PROVISION_TIMEOUT, default=1m"`
	EmailDomain      string        `env:"DEMO_EMAIL_DOMAIN,      default=demo.grafeo.app"`
}

type FederatedConfig struct {
	Provider  string        `env:"FEDERATED_PROVIDER,   default=facebook"`
	Timeout   time.Duration `env:"FEDERATED_TIMEOUT,    default=5s"`
	CacheSize int           `env:"FEDERATED_CACHE_SIZE, default=1024"`
	CacheTTL  time.Duration `env:"FEDERATED_CACHE_TTL,  default=5m"`

	FacebookAppID     string `env:"FACEBOOK_APP_ID"`
	FacebookAppSecret string `env:"FACEBOOK_APP_SECRET"`
	FacebookGraphURL  string `env:"FACEBOOK_GRAPH_URL, default=https://graph.facebook.com"`

	OIDCJWKSURL  string `env:"OIDC_JWKS_URL"`
	OIDCIssuer   string `env:"OIDC_ISSUER"`
	OIDCAudience string `env:"OIDC_AUDIENCE"`
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "test"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	switch c.Federated.Provider {
	case "facebook":
	case "oidc":
		if c.Federated.OIDCJWKSURL == "" {
			return fmt.Errorf("OIDC_JWKS_URL is required when FEDERATED_PROVIDER=oidc")
		}
	default:
		return fmt.Errorf("unknown FEDERATED_PROVIDER %q", c.Federated.Provider)
	}
	if c.Demo.TTL <= 0 || c.Demo.SweepInterval <= 0 {
		return fmt.Errorf("DEMO_TTL and DEMO_SWEEP_INTERVAL must be positive")
	}
	return nil
}
