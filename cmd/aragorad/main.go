// Command aragorad runs the Aragora debate service: HTTP API, WebSocket
// Hub, and the Orchestrator, wired together from environment
// configuration (spec §6).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/an0mium/aragora/internal/config"
	"github.com/an0mium/aragora/internal/events"
	"github.com/an0mium/aragora/internal/httpapi"
	"github.com/an0mium/aragora/internal/invoker"
	"github.com/an0mium/aragora/internal/metrics"
	"github.com/an0mium/aragora/internal/middleware"
	"github.com/an0mium/aragora/internal/orchestrator"
	"github.com/an0mium/aragora/internal/provider"
	"github.com/an0mium/aragora/internal/ranking"
	"github.com/an0mium/aragora/internal/storage"
	"github.com/an0mium/aragora/internal/wshub"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("aragorad exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.MigrateAll(context.Background()); err != nil {
		return err
	}

	bus := events.New(store, events.DefaultConfig())
	defer bus.Close()

	reg := provider.NewRegistry()
	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		switch name {
		case "anthropic":
			reg.Register(provider.NewAnthropicClient(pc.APIKey, pc.BaseURL, pc.Model))
		default:
			reg.Register(provider.NewOpenAICompatibleClient(name, pc.APIKey, pc.BaseURL, pc.Model))
		}
	}

	inv := invoker.New(reg, bus)
	embedder := ranking.NewHashingEmbedder(256)
	flips := ranking.New(embedder)
	orch := orchestrator.New(store, bus, inv, flips, embedder)

	hub := wshub.New(bus, wshub.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageSize:  int64(cfg.Server.WSMaxFrame),
		QueueSize:       256,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}, log, nil)

	collector, promReg := metrics.NewCollector()

	rl := middleware.NewRateLimiter(
		middleware.BucketConfig{Capacity: cfg.RateLimit.PerMinutePerToken, RefillPerMinute: cfg.RateLimit.PerMinutePerToken, BurstMultiplier: 1},
		middleware.BucketConfig{Capacity: cfg.RateLimit.PerMinutePerIP, RefillPerMinute: cfg.RateLimit.PerMinutePerIP, BurstMultiplier: 1},
	)

	router := httpapi.NewRouter(&httpapi.Deps{
		Store:        store,
		Bus:          bus,
		Orchestrator: orch,
		Hub:          hub,
		RateLimiter:  rl,
		Metrics:      collector,
		Registry:     promReg,
		Log:          log,
		HMACKey:      cfg.Auth.HMACKey,
		AuthOn:       cfg.Auth.Enabled,
		Origins:      cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Server.BindAddr + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
