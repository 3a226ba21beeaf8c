package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"life-reality/internal/cache"
	"life-reality/internal/config"
	"life-reality/internal/metrics"
	"life-reality/internal/notify"
	"life-reality/internal/store"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "lifereality",
		Short:         "life-reality - a small blog with an admin API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./lifereality.yaml)")
	pf.String("backend", config.BackendFile, "Storage backend: file, memory or badger")
	pf.String("data", "db.json", "Path to the JSON document (file backend)")
	pf.String("badger", "", "Path to BadgerDB data directory (badger backend, empty for in-memory)")
	pf.String("redis", "", "Address of Redis server (enables cache, pub/sub and the optimize queue)")
	pf.String("log-format", "console", "Log format: console or json")

	root.AddCommand(
		newServerCmd(a),
		newImportCmd(a),
		newAdminCmd(a),
		newHashPasswordCmd(a),
		newCategoryCmd(a),
		newArticleCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	if cfg.Log.Format == "json" {
		a.logger, err = zap.NewProduction()
	} else {
		a.logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger.Debug("Configuration loaded",
		zap.String("backend", cfg.Backend),
		zap.String("data", cfg.Data.Path),
		zap.String("redis", cfg.Redis.Addr))
	return nil
}

// openBackend builds the configured persistence backend. The badger backend is
// also returned on its own so the caller can schedule GC.
func (a *app) openBackend() (store.Backend, *store.BadgerBackend, error) {
	switch a.cfg.Backend {
	case config.BackendMemory:
		a.logger.Warn("Using the memory backend; nothing will be persisted")
		return store.NewMemoryBackend(nil), nil, nil
	case config.BackendBadger:
		bb, err := store.OpenBadger(a.cfg.Badger.Path, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return bb, bb, nil
	default:
		fb, err := store.NewFileBackend(a.cfg.Data.Path, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return fb, nil, nil
	}
}

// connectRedis returns nil when no address is configured.
func (a *app) connectRedis(ctx context.Context) (*redis.Client, error) {
	if a.cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.Redis.Addr, err)
	}
	return rdb, nil
}

// invalidator fans store signals out to the shared response cache and to
// other processes.
func (a *app) invalidator(rdb *redis.Client, rc *cache.ResponseCache, m *metrics.Metrics) notify.Invalidator {
	if rdb == nil {
		return notify.Nop{}
	}
	inv := notify.Multi{rc, notify.NewRedisPublisher(rdb, notify.DefaultChannel)}
	if m == nil {
		return inv
	}
	return m.Invalidator(inv)
}

// openStore is the store used by the one-shot management commands.
func (a *app) openStore(ctx context.Context) (*store.ArticleStore, func(), error) {
	backend, _, err := a.openBackend()
	if err != nil {
		return nil, nil, err
	}
	rdb, err := a.connectRedis(ctx)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}

	var rc *cache.ResponseCache
	if rdb != nil {
		rc = cache.New(rdb, a.cfg.Cache.TTL, a.logger)
	}
	st := store.New(backend,
		store.WithLogger(a.logger),
		store.WithInvalidator(a.invalidator(rdb, rc, nil)))

	cleanup := func() {
		if err := st.Close(); err != nil {
			a.logger.Warn("Closing store failed", zap.Error(err))
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	}
	return st, cleanup, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
