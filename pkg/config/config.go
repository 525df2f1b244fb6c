package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `env:", prefix=SERVER_"`
	Capital  CapitalConfig  `env:", prefix=CAPITAL_"`
	Proxy    ProxyConfig    `env:", prefix=PROXY_"`
	Cache    CacheConfig    `env:", prefix=CACHE_"`
	Redis    RedisConfig    `env:", prefix=REDIS_"`
	NATS     NATSConfig     `env:", prefix=NATS_"`
	Security SecurityConfig `env:", prefix=SECURITY_"`
	Logging  LoggingConfig  `env:", prefix=LOG_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=60s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// CapitalConfig holds the upstream market-data provider configuration
type CapitalConfig struct {
	APIBase      string        `env:"API_BASE, default=https://api-capital.backend-capital.com"`
	APIKey       string        `env:"API_KEY"`
	Identifier   string        `env:"IDENTIFIER"`
	Password     string        `env:"PASSWORD"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT, default=30s"`
	SessionTTL   time.Duration `env:"SESSION_TTL, default=9m"` // upstream sessions live 10m
	ExchangeName string        `env:"EXCHANGE_NAME, default=Capital.com"`
	Currency     string        `env:"CURRENCY, default=USD"`
}

// ProxyConfig holds request pipeline settings
type ProxyConfig struct {
	FetchTimeout      time.Duration `env:"FETCH_TIMEOUT, default=45s"`
	DefaultResolution string        `env:"DEFAULT_RESOLUTION, default=DAY"`
}

// CacheConfig selects the backend used for resolved symbol lookups
type CacheConfig struct {
	Backend     string        `env:"BACKEND, default=memory"` // memory, redis or none
	ResolverTTL time.Duration `env:"RESOLVER_TTL, default=1h"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS, default=2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=false"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	SubjectPrefix string        `env:"SUBJECT_PREFIX, default=chart.fetch"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=Content-Type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	return LoadWithLookuper(envconfig.OsLookuper())
}

// LoadWithLookuper loads configuration from an arbitrary variable source
func LoadWithLookuper(l envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.Capital.APIBase = strings.TrimRight(cfg.Capital.APIBase, "/")
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Capital.APIBase == "" {
		return fmt.Errorf("capital API base URL is required")
	}

	if c.Capital.SessionTTL <= 0 {
		return fmt.Errorf("invalid session TTL: %s", c.Capital.SessionTTL)
	}

	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown cache backend: %q", c.Cache.Backend)
	}

	if c.Cache.Backend == "redis" && c.Redis.Host == "" {
		return fmt.Errorf("Redis host is required")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}

	return nil
}

// ValidateCredentials checks that upstream credentials are present. Only the
// commands that talk to the provider need them.
func (c *CapitalConfig) ValidateCredentials() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "CAPITAL_API_KEY")
	}
	if c.Identifier == "" {
		missing = append(missing, "CAPITAL_IDENTIFIER")
	}
	if c.Password == "" {
		missing = append(missing, "CAPITAL_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing upstream credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
