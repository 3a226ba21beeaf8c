package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"life-reality/internal/auth"
	"life-reality/internal/cache"
	"life-reality/internal/metrics"
	"life-reality/internal/notify"
	"life-reality/internal/optimize"
	"life-reality/internal/server"
	"life-reality/internal/store"
	"life-reality/internal/worker"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// gcSchedule is how often the badger value log is compacted.
	gcSchedule = "@every 5m"

	optimizeJobTimeout = 2 * time.Minute
)

func newServerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the API server and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger
	m := metrics.New()

	backend, bb, err := a.openBackend()
	if err != nil {
		return err
	}
	rdb, err := a.connectRedis(ctx)
	if err != nil {
		_ = backend.Close()
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var rc *cache.ResponseCache
	if rdb != nil {
		rc = cache.New(rdb, a.cfg.Cache.TTL, logger.Named("cache"))
	}
	st := store.New(backend,
		store.WithLogger(logger.Named("store")),
		store.WithInvalidator(a.invalidator(rdb, rc, m)))
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("Closing store failed", zap.Error(err))
		}
	}()

	secret := a.cfg.Auth.Secret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("auth.secret not set; using a random secret, tokens will not survive a restart")
	}
	authn, err := auth.New(st, secret, a.cfg.Auth.TTL, logger.Named("auth"))
	if err != nil {
		return err
	}

	opts := []server.Option{server.WithMetrics(m)}
	if rc != nil {
		opts = append(opts, server.WithCache(rc))
	}

	var optimizer optimize.Optimizer
	if a.cfg.AI.APIKey != "" {
		gemini := optimize.NewGemini(optimize.GeminiConfig{
			APIKey:  a.cfg.AI.APIKey,
			Model:   a.cfg.AI.Model,
			BaseURL: a.cfg.AI.BaseURL,
		})
		optimizer = optimize.NewGuarded(gemini, optimize.DefaultBreakerConfig(), logger.Named("optimize"))
	} else {
		logger.Info("ai.api_key not set; content optimization disabled")
	}

	var queue *worker.Queue
	switch {
	case optimizer != nil && rdb != nil:
		queue = worker.NewQueue(rdb, worker.DefaultJobTTL)
		opts = append(opts, server.WithQueue(queue))
	case optimizer != nil:
		opts = append(opts, server.WithOptimizer(optimizer))
	}

	srv := server.NewServer(st, authn, logger.Named("http"), opts...)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(ctx, a.cfg.HTTP.Addr)
	})

	g.Go(func() error {
		return st.Watch(ctx)
	})

	if queue != nil {
		w := worker.NewWorker(queue, optimizer, logger.Named("worker"),
			worker.WithJobTimeout(optimizeJobTimeout),
			worker.WithObserver(func(s worker.Status) { m.RecordJob(string(s)) }))
		g.Go(func() error {
			return w.Start(ctx)
		})
	}

	if rdb != nil {
		sub := notify.NewSubscriber(rdb, notify.DefaultChannel, rc, logger.Named("subscriber"))
		g.Go(func() error {
			return sub.Run(ctx, nil)
		})
	}

	if bb != nil {
		c := cron.New()
		if _, err := c.AddFunc(gcSchedule, func() {
			if err := bb.RunGC(); err != nil {
				logger.Error("Badger GC failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule badger gc: %w", err)
		}
		c.Start()
		g.Go(func() error {
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}

	logger.Info("Server running.", zap.String("addr", a.cfg.HTTP.Addr), zap.String("backend", a.cfg.Backend))
	err = g.Wait()
	logger.Info("Goodbye!")
	return err
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
