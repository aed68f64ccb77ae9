package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cellar-api/internal/cache"
	"cellar-api/internal/config"
	"cellar-api/internal/events"
	"cellar-api/internal/handler"
	"cellar-api/internal/ledger"
	"cellar-api/internal/middleware"
	"cellar-api/internal/repository"
	"cellar-api/internal/router"
	"cellar-api/internal/service"
	"cellar-api/internal/settings"
	"cellar-api/pkg/logger"
	"cellar-api/pkg/uid"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.App.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Infow("Starting cellar API", "version", cfg.App.Version, "environment", cfg.App.Environment)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize store based on config
	store, err := openStore(cfg.Store)
	if err != nil {
		log.Fatalw("Failed to initialize store", "type", cfg.Store.Kind(), "error", err)
	}
	defer store.Close()
	log.Infow("Store initialized", "type", cfg.Store.Kind())

	bus := events.NewBus(uid.New(), log)

	// Initialize cache; redis also relays change events between instances
	var (
		responseCache cache.Cache
		redisClient   *redis.Client
		cacheType     = "none"
	)
	switch cfg.Cache.Type {
	case "redis":
		redisClient, err = cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Warnw("Redis unavailable, falling back to memory cache", "addr", cfg.Cache.RedisAddress(), "error", err)
			break
		}
		defer redisClient.Close()

		responseCache = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix)
		cacheType = "redis"
		bus.AddSink(events.NewRedisSink(redisClient, cfg.Cache.Channel))
		go func() {
			if err := events.Listen(ctx, redisClient, cfg.Cache.Channel, bus, log); err != nil && ctx.Err() == nil {
				log.Errorw("Event relay stopped", "error", err)
			}
		}()
		log.Infow("Redis cache and event relay initialized", "addr", cfg.Cache.RedisAddress())
	}
	if responseCache == nil && cfg.Cache.Type != "none" {
		memoryCache := cache.NewMemoryCache()
		defer memoryCache.Close()
		responseCache = memoryCache
		cacheType = "memory"
	}
	if responseCache != nil {
		unsubscribe := cache.InvalidateOn(bus, responseCache, log)
		defer unsubscribe()
	}

	prefs, err := settings.Load(ctx, store, settings.Defaults{
		Currency:           cfg.Settings.Currency,
		BottleSizeUnit:     cfg.Settings.BottleSizeUnit,
		ImportWithQuantity: cfg.Settings.ImportWithQuantity,
	}, bus, log)
	if err != nil {
		log.Fatalw("Failed to load settings", "error", err)
	}

	history := ledger.New(store, store,
		ledger.WithMode(ledger.ParseTotalsMode(cfg.Ledger.TotalsMode)),
		ledger.WithBus(bus),
		ledger.WithLogger(log),
	)
	if cfg.Ledger.BackfillOnStart {
		n, err := history.BackfillRunningTotals(ctx)
		if err != nil {
			log.Warnw("Running totals backfill failed", "error", err)
		} else if n > 0 {
			log.Infow("Running totals backfilled", "events", n)
		}
	}

	// Initialize services
	loc := cfg.Settings.Location()
	inventoryService := service.NewInventoryService(store, history, prefs, bus, log)
	transferService := service.NewTransferService(store, prefs, bus, service.DefaultExporter, log)
	printService := service.NewPrintService(inventoryService, loc)
	historyService := service.NewHistoryService(history, loc)
	if responseCache != nil {
		inventoryService.SetCache(responseCache, cfg.Cache.TTL)
		historyService.SetCache(responseCache, cfg.Cache.TTL)
	}

	// Initialize handlers
	checks := map[string]handler.Pinger{"database": store}
	if redisClient != nil {
		checks["redis"] = redisPinger{redisClient}
	}

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		APIKeys: cfg.App.APIKeys,
		Public:  []string{"/api/v1/health", "/api/v1/ready"},
	})
	if len(cfg.App.APIKeys) == 0 {
		log.Warnw("No API keys configured, authentication disabled")
	}

	r := router.New(router.Config{
		Logger:          log,
		Handler:         handler.New(cfg.App.Name, cfg.App.Version, checks),
		ItemHandler:     handler.NewItemHandler(inventoryService),
		HistoryHandler:  handler.NewHistoryHandler(historyService),
		SettingsHandler: handler.NewSettingsHandler(prefs),
		TransferHandler: handler.NewTransferHandler(transferService, printService),
		AdminHandler:    handler.NewAdminHandler(store, cfg.Store.Kind(), cacheType),
		AuthMiddleware:  authMiddleware,
		AllowedOrigins:  cfg.App.AllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infow("Server listening", "addr", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server shutdown error", "error", err)
	}
	stop()

	log.Infow("Server stopped")
}

// openStore opens the configured backend.
func openStore(cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Kind() {
	case "postgres":
		return repository.NewPostgresStore(cfg.DSN())
	case "mysql":
		return repository.NewMySQLStore(cfg.DSN())
	case "memory":
		return repository.NewMemoryStore(), nil
	default:
		return repository.NewSQLiteStore(cfg.DSN())
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
