package factory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/harshite737-crypto/haste/internal/config"
	storepkg "github.com/harshite737-crypto/haste/internal/store"
	"github.com/harshite737-crypto/haste/internal/store/memstore"
	storepg "github.com/harshite737-crypto/haste/internal/store/postgres"
	"github.com/harshite737-crypto/haste/internal/store/redisstore"
	storesqlite "github.com/harshite737-crypto/haste/internal/store/sqlite"
)

// NewStore returns the store.Store selected by cfg.StoreDriver and a close func.
// Network-backed drivers retry the initial connection with exponential backoff
// for up to BootstrapTimeoutSeconds.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case "memory":
		return memstore.New(), noop, nil

	case "sqlite":
		db, err := storesqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return storesqlite.NewWithDB(db), db.Close, nil

	case "postgres":
		var db *sql.DB
		err := connectWithRetry(ctx, cfg, log, func() error {
			var err error
			db, err = storepg.Open(cfg.PostgresDSN)
			return err
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout(cfg))
		defer cancel()
		if err := storepg.Bootstrap(bootstrapCtx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return storepg.NewWithDB(db), db.Close, nil

	case "redis":
		var st storepkg.Store
		var closeFn func() error
		err := connectWithRetry(ctx, cfg, log, func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			rdb, err := redisstore.Open(pingCtx, redisstore.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
			if err != nil {
				return err
			}
			st = redisstore.NewWithClient(rdb, "haste")
			closeFn = rdb.Close
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis: %w", err)
		}
		return st, closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_DRIVER: %s", cfg.StoreDriver)
}

func bootstrapTimeout(cfg *config.Config) time.Duration {
	if cfg.BootstrapTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
}

func connectWithRetry(ctx context.Context, cfg *config.Config, log zerolog.Logger, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = bootstrapTimeout(cfg)
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.Warn().Err(err).Str("driver", cfg.StoreDriver).Dur("retry_in", next).Msg("store connection failed; retrying")
	})
}
