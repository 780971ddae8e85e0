package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// MinSessionIdleTimeout bounds the idle sweep, which ticks at half the timeout.
const MinSessionIdleTimeout = time.Second

// Config is the server configuration, read from STOREFRONT_* environment variables.
type Config struct {
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051"`

	Backend    string `env:"BACKEND" envDefault:"sqlite"`
	MySQLDSN   string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/storefront?parseTime=true"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"storefront.db"`

	// RedisAddr empty means sessions and the product cache live in process memory.
	RedisAddr string `env:"REDIS_ADDR"`

	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	ProductCacheTTL    time.Duration `env:"PRODUCT_CACHE_TTL" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STOREFRONT_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite path is required"))
		}
	case BackendMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("mysql dsn is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.SessionIdleTimeout < MinSessionIdleTimeout {
		errs = append(errs, fmt.Errorf("session idle timeout must be at least %s", MinSessionIdleTimeout))
	}
	return errors.Join(errs...)
}
