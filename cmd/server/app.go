package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/platform/config"
	"github.com/rl1809/storefront/internal/platform/logger"
	"github.com/rl1809/storefront/internal/port"
)

// keyValueStore is what Redis or the in-process fallback provide.
type keyValueStore interface {
	port.SessionStore
	port.ProductCache
	port.Pinger
}

// app holds the opened backends shared by every command.
type app struct {
	cfg   config.Config
	log   *logrus.Logger
	db    *sql.DB
	store *storage.SQLAdapter
	rdb   *redis.Client
	kv    keyValueStore
}

func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	switch cfg.Backend {
	case config.BackendMySQL:
		a.db, err = storage.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		a.store = storage.NewMySQLAdapter(a.db)
	default:
		a.db, err = storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.store = storage.NewSQLiteAdapter(a.db)
	}
	log.WithField("backend", a.store.Dialect()).Info("connected to database")

	if cfg.RedisAddr == "" {
		a.kv = storage.NewMemoryStore(cfg.ProductCacheTTL)
		log.Info("no redis address, using in-process session store")
		return a, nil
	}

	a.rdb = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		a.close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.kv = storage.NewRedisAdapter(a.rdb, cfg.ProductCacheTTL)
	log.WithField("addr", cfg.RedisAddr).Info("connected to redis")

	return a, nil
}

func (a *app) close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
