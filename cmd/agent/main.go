package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parcelhub-sync-agent/internal/auth"
	"parcelhub-sync-agent/internal/cache"
	"parcelhub-sync-agent/internal/config"
	"parcelhub-sync-agent/internal/fetch"
	"parcelhub-sync-agent/internal/handler"
	"parcelhub-sync-agent/internal/middleware"
	"parcelhub-sync-agent/internal/model"
	"parcelhub-sync-agent/internal/netmon"
	"parcelhub-sync-agent/internal/refdata"
	"parcelhub-sync-agent/internal/router"
	"parcelhub-sync-agent/internal/service"
	"parcelhub-sync-agent/internal/store"
	"parcelhub-sync-agent/internal/syncqueue"
	"parcelhub-sync-agent/internal/worker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting ParcelHub sync agent...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.Agent.Environment)

	// Initialize persistent store based on config
	var st store.Store
	switch cfg.Store.Driver {
	case "mysql":
		mysqlStore, err := store.NewMySQLStore(cfg.Store.DSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL store: %v", err)
		}
		st = mysqlStore
		log.Println("MySQL store initialized")
	default: // sqlite
		sqliteStore, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite store: %v", err)
		}
		st = sqliteStore
		log.Println("SQLite store initialized")
	}
	defer st.Close()

	// Initialize request cache
	var reqCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, using memory cache: %v", err)
			reqCache = cache.NewMemoryCache()
		} else {
			reqCache = redisCache
			log.Println("Redis request cache initialized")
		}
	default:
		reqCache = cache.NewMemoryCache()
		log.Println("Memory request cache initialized")
	}

	// Network status monitor
	probeURL := cfg.Probe.URL
	if probeURL == "" && cfg.Backend.BaseURL != "" {
		probeURL = cfg.Backend.BaseURL + "/api/v1/health"
	}
	monitor := netmon.New(netmon.Config{
		ProbeURL: probeURL,
		Interval: cfg.Probe.Interval,
		Timeout:  cfg.Probe.Timeout,
	})
	monitor.Start()
	defer monitor.Stop()

	// Fetch strategy layer
	fetchClient := fetch.New(fetch.Config{
		Store:      st,
		Requests:   reqCache,
		TTL:        cfg.Cache.TTL,
		RequestTTL: cfg.Cache.RequestTTL,
	})

	// Reference data
	refMgr := refdata.New(st, nil)

	// Backend credentials: token endpoint when configured, static otherwise
	var tokens syncqueue.TokenProvider
	if cfg.Backend.TokenURL != "" {
		tokens = auth.NewEndpointTokenSource(cfg.Backend.TokenURL, cfg.Backend.DeviceKey, nil)
		log.Println("Endpoint token source initialized")
	} else {
		tokens = auth.NewStaticTokenSource(cfg.Backend.StaticToken)
		log.Println("Static token source initialized")
	}

	// Shipment service and sync queue wire into each other: the queue
	// notifies the service when an item lands so it can mark the paired
	// offline entity synced.
	var shipmentSvc *service.ShipmentService
	queue := syncqueue.New(syncqueue.Config{
		Store:              st,
		Connectivity:       monitor,
		Tokens:             tokens,
		BaseURL:            cfg.Backend.BaseURL,
		RequestTimeout:     cfg.Backend.RequestTimeout,
		DefaultMaxAttempts: cfg.Backend.MaxAttempts,
		OnItemSynced: func(item model.SyncQueueItem) {
			if shipmentSvc != nil {
				shipmentSvc.MarkSynced(item)
			}
		},
	})

	shipmentSvc = service.NewShipmentService(service.ShipmentConfig{
		Store:          st,
		Queue:          queue,
		Monitor:        monitor,
		BaseURL:        cfg.Backend.BaseURL,
		Endpoint:       cfg.Backend.ShipmentEndpoint,
		CompanyName:    cfg.Agent.CompanyName,
		OfficeName:     cfg.Agent.OfficeName,
		RequestTimeout: cfg.Backend.RequestTimeout,
	})

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Reconnect edge -> drain
	go queue.Run(rootCtx, monitor.Reconnected())

	// Prune scheduler for synced offline entities
	pruner := service.NewPruneScheduler(st, service.PruneConfig{
		Retention: cfg.Prune.Retention,
		Interval:  cfg.Prune.Interval,
	})
	pruner.Start()
	defer pruner.Stop()

	// Background worker realm + agent-side message loop
	bus := worker.NewBus()
	bgWorker := worker.New(worker.Config{
		Bus:          bus,
		Fetch:        fetchClient,
		SyncInterval: cfg.Worker.SyncInterval,
	})
	go bgWorker.Run(rootCtx)
	go func() {
		for {
			select {
			case <-rootCtx.Done():
				return
			case msg := <-bus.AgentMessages():
				if msg.Kind == worker.MsgSyncRequired {
					queue.ForceDrain(rootCtx)
				}
			}
		}
	}()
	if len(cfg.Worker.PrewarmURLs) > 0 {
		bus.PostToWorker(worker.Message{Kind: worker.MsgCacheURLs, URLs: cfg.Worker.PrewarmURLs})
	}

	// Warm reference data in the background on startup
	go refMgr.RefreshAll(rootCtx, func(typ model.ReferenceType) string {
		return cfg.Backend.ReferenceURL(string(typ))
	})

	// Handlers
	healthHandler := handler.New(monitor, queue, cfg.Agent.Version)
	shipmentHandler := handler.NewShipmentHandler(shipmentSvc)
	refDataHandler := handler.NewRefDataHandler(refMgr, func(typ model.ReferenceType) string {
		return cfg.Backend.ReferenceURL(string(typ))
	})
	syncHandler := handler.NewSyncHandler(queue)

	// Create router
	r := router.New(router.Config{
		Handler:         healthHandler,
		ShipmentHandler: shipmentHandler,
		RefDataHandler:  refDataHandler,
		SyncHandler:     syncHandler,
		AuthMiddleware:  middleware.NewAgentKeyAuth(cfg.Agent.Key),
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
		log.Printf("Agent listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down agent...")

	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Give an in-flight drain a moment to settle before the store closes.
	deadline := time.Now().Add(5 * time.Second)
	for queue.IsSyncing() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}

	log.Println("Agent stopped")
	fmt.Println("Goodbye!")
}
