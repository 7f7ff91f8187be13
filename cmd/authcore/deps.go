package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/config"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/pgstore"
	"github.com/MrEthical07/authcore/store/redisstore"
)

const (
	retryBase = 250 * time.Millisecond
	retryCap  = 5 * time.Second
)

// app holds everything a command needs, built from one config load.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	engine   *authcore.Engine
	watcher  *config.Watcher
	registry *prometheus.Registry
	closers  []func()
}

func newApp(ctx context.Context, loader config.Loader) (*app, error) {
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, closeStore, err := connectStore(ctx, cfg.Store, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: password: %w", authcore.ErrConfiguration, err)
	}

	a.watcher = config.NewWatcher(loader, cfg, log.Named("config"))

	engine, err := authcore.New().
		WithConfig(cfg.Engine).
		WithStore(store).
		WithSigningConfig(a.watcher).
		WithPasswordVerifier(hasher).
		WithNotifier(authcore.LogNotifier{Log: log.Named("notify")}).
		WithLogger(log).
		WithMetricsRegisterer(a.registry).
		Build()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	if a.watcher != nil {
		_ = a.watcher.Stop()
	}
	a.engine.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}

func connectStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (authcore.CredentialStore, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		s := memory.New()
		for _, acct := range cfg.Seed {
			s.Put(acct.Account())
		}
		log.Info("using in-memory credential store", zap.Int("seeded", len(cfg.Seed)))
		return s, func() {}, nil

	case config.DriverRedis:
		client, err := connectWithRetry(ctx, cfg, log, func(ctx context.Context) (*redis.Client, error) {
			return redisstore.Connect(ctx, cfg.RedisURL)
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to redis credential store", zap.String("prefix", cfg.Redis.Prefix))
		return redisstore.New(client, cfg.Redis), func() { _ = client.Close() }, nil

	case config.DriverPostgres:
		pool, err := connectWithRetry(ctx, cfg, log, func(ctx context.Context) (*pgxpool.Pool, error) {
			return pgstore.Connect(ctx, cfg.PostgresDSN)
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to postgres credential store")
		return pgstore.New(pool), pool.Close, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown store driver %q", authcore.ErrConfiguration, cfg.Driver)
}

// connectWithRetry dials with capped exponential backoff until the store's
// connect timeout elapses.
func connectWithRetry[T any](ctx context.Context, cfg config.StoreConfig, log *zap.Logger, dial func(context.Context) (T, error)) (T, error) {
	b := retry.NewExponential(retryBase)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(retryCap, b)
	b = retry.WithMaxDuration(cfg.ConnectTimeout, b)

	var (
		out     T
		attempt int
	)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		v, err := dial(ctx)
		if err != nil {
			log.Warn("credential store connect failed",
				zap.String("driver", cfg.Driver),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, oops.
			In("store").
			Code("STORE_UNAVAILABLE").
			With("driver", cfg.Driver).
			With("attempts", attempt).
			Wrap(fmt.Errorf("%w: %w", authcore.ErrStoreUnavailable, err))
	}
	return out, nil
}
