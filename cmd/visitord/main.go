package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"

	"visitor-approval-backend/config"
	"visitor-approval-backend/internal/api"
	"visitor-approval-backend/internal/db"
	"visitor-approval-backend/internal/events"
	"visitor-approval-backend/internal/notification"
	"visitor-approval-backend/internal/store"
	"visitor-approval-backend/internal/sweeper"
	"visitor-approval-backend/internal/visitor"
)

func main() {
	logger := log.New(os.Stdout, "visitor-backend ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	opts, err := visitor.OptionsFromConfig(cfg.Visitor)
	if err != nil {
		logger.Fatalf("invalid visitor configuration: %v", err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.NATSURL != "" {
		bus, err := events.NewNATSEventBus(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			logger.Fatalf("failed to connect event bus: %v", err)
		}
		publisher = bus
		logger.Printf("publishing lifecycle events to %s under %q", cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
	} else {
		logger.Println("events.nats_url is empty; lifecycle events are not published")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Printf("event bus close: %v", err)
		}
	}()

	var (
		notifier       visitor.Notifier
		webpushOptions *webpush.Options
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		notifier = pool
	} else {
		logger.Println("VAPID keys are not configured; push notifications are disabled")
	}

	svc := visitor.NewService(appStore, opts, notifier, publisher)
	logger.Printf("visitor service ready: scope=%s timezone=%s entry_policy=%s", opts.Scope, opts.Location, opts.EntryPolicy)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	responseCache := cache.New(cacheTTL, 2*cacheTTL)

	sweep := sweeper.NewService(cfg.Sweeper, svc, func(int) { responseCache.Flush() })
	go sweep.Run(ctx)

	router := api.NewRouter(cfg.Server, svc, appStore, webpushOptions, responseCache)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownGraceSeconds)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
