package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"livedom/core/dlog"
	"livedom/dom/push"
	"livedom/dom/scheduling"
	"livedom/dom/view"
	"livedom/internal/config"
	delivery "livedom/internal/delivery/http"
	"livedom/internal/delivery/sse"
	"livedom/internal/delivery/websocket"
	"livedom/internal/demo"
)

func main() {
	envFile := flag.String("env", ".env", "Path to .env file")
	addr := flag.String("addr", "", "HTTP listen address (overrides LISTEN_ADDR)")
	logLevel := flag.String("log-level", "", "Log level (overrides LOG_LEVEL)")
	tick := flag.Duration("tick", time.Second, "Tick interval of the demo views")
	startViews := flag.String("start", "", "Comma separated demo views to start at boot")
	flag.Parse()

	if err := run(*envFile, *addr, *logLevel, *tick, *startViews); err != nil {
		fmt.Fprintf(os.Stderr, "livedom: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile, addr, logLevel string, tick time.Duration, startViews string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := dlog.SetLogger(cfg.LogCaller, cfg.LogLevel); err != nil {
		return err
	}
	defer func() { _ = dlog.Sync() }()
	logger := dlog.GetLogger()

	sopts := cfg.SchedulerOptions()
	sopts.Logger = dlog.Named("scheduler")
	scheduler, err := scheduling.NewScheduler(sopts)
	if err != nil {
		return err
	}
	scheduler.Start()

	pubsub, err := newPubSub(cfg)
	if err != nil {
		scheduler.Stop(false)
		return err
	}

	vopts := view.NewOptions()
	vopts.TopicPrefix = cfg.PushTopicPrefix
	vopts.Format = cfg.PushFormat
	vopts.Zone = cfg.DefaultThreadZone
	vopts.Logger = dlog.Named("view")
	registry := view.NewRegistry(scheduler, pubsub, vopts)

	catalog := demo.Catalog(tick)
	for _, name := range strings.Split(startViews, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		handler, ok := catalog[name]
		if !ok {
			logger.Warn("Unknown demo view", zap.String("name", name))
			continue
		}
		if _, err := registry.Start(name, handler); err != nil {
			logger.Error("Failed to start demo view", zap.String("name", name), zap.Error(err))
		}
	}

	deliveryLogger := dlog.Named("delivery")
	sseOpts := sse.NewOptions()
	sseOpts.Heartbeat = cfg.SSEHeartbeat
	sseOpts.Logger = deliveryLogger
	router := delivery.NewRouter(
		delivery.NewHandler(registry, scheduler, catalog, deliveryLogger),
		sse.NewRouter(registry, pubsub, sseOpts),
		websocket.NewHandler(registry, pubsub, deliveryLogger),
		deliveryLogger,
	)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router.Setup(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// views first, so open streams see their end and return
	if err := registry.StopAll(ctx); err != nil {
		logger.Warn("Views did not stop in time", zap.Error(err))
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("Server shutdown failed", zap.Error(err))
	}
	scheduler.Stop(true)
	if err := pubsub.Close(); err != nil {
		logger.Warn("Failed to close pubsub", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}

func newPubSub(cfg *config.Config) (push.PubSub, error) {
	opts := push.NewOptions()
	opts.DefaultFormat = cfg.PushFormat
	opts.Logger = dlog.Named("push")

	if cfg.RedisAddr == "" {
		return push.NewMemoryPubSub(opts), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return push.NewRedisPubSub(client, opts)
}
