// Package main is the entry point for the gazette search API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cetsp/diario-scraper/internal/api"
	"github.com/cetsp/diario-scraper/internal/api/handlers"
	"github.com/cetsp/diario-scraper/internal/api/middleware"
	"github.com/cetsp/diario-scraper/internal/config"
	"github.com/cetsp/diario-scraper/internal/crawler"
	"github.com/cetsp/diario-scraper/internal/realtime"
	"github.com/cetsp/diario-scraper/internal/storage"
	"github.com/cetsp/diario-scraper/pkg/logger"
	"github.com/cetsp/diario-scraper/pkg/shutdown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})
	log.SetDefault()

	log.Info("starting diario-scraper server",
		"version", handlers.Version,
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
	)

	shutdownHandler := shutdown.New(log, time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	readyChecks := map[string]handlers.HealthChecker{
		"cache":          nil,
		"archive":        nil,
		"events":         nil,
		"object_storage": nil,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ============================
	// Diagnostics sink
	// ============================
	var diagnostics crawler.DiagnosticsSink = storage.NewLocalSink(cfg.Scraper.DiagnosticsDir)
	var objectStorage *storage.MinIOStorage
	if cfg.Scraper.DiagnosticsSink == "minio" {
		objectStorage, err = storage.NewMinIOStorage(storage.MinIOConfig{
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			BucketName:      cfg.Storage.BucketName,
			UseSSL:          cfg.Storage.UseSSL,
			Region:          cfg.Storage.Region,
		})
		if err != nil {
			log.WithError(err).Warn("failed to create object storage client, keeping diagnostics on disk")
			objectStorage = nil
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := objectStorage.InitBucket(ctx); err != nil {
				log.WithError(err).Warn("failed to initialize storage bucket")
			}
			cancel()

			diagnostics = objectStorage
			readyChecks["object_storage"] = objectStorage
			log.Info("diagnostics go to object storage",
				"endpoint", cfg.Storage.Endpoint,
				"bucket", cfg.Storage.BucketName,
			)
		}
	}

	// ============================
	// Redis: detail cache and rate limits
	// ============================
	var rateLimitStore middleware.RateLimitStore
	scraperOpts := []crawler.Option{
		crawler.WithDiagnostics(diagnostics),
		crawler.WithMetrics(crawler.NewMetrics(registry)),
	}
	if cfg.Redis.Enabled {
		redisClient, err := storage.NewRedisClient(storage.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.WithError(err).Warn("failed to connect to Redis, detail cache disabled")
		} else {
			cacheCfg := storage.DefaultCacheConfig()
			cacheCfg.TTL = cfg.Redis.TTL
			cache := storage.NewDetailCache(redisClient, log, cacheCfg)

			scraperOpts = append(scraperOpts, crawler.WithCache(cache))
			rateLimitStore = middleware.NewRedisRateLimitStore(redisClient, "diario:ratelimit", log)
			readyChecks["cache"] = handlers.HealthFunc(redisClient.Ping)

			shutdownHandler.RegisterNamed("redis", func(ctx context.Context) error {
				stats := cache.Stats()
				log.Info("detail cache stats", "hits", stats.Hits, "misses", stats.Misses, "errors", stats.Errors)
				return cache.Close()
			})
		}
	}
	if rateLimitStore == nil {
		memoryStore := middleware.NewMemoryRateLimitStore()
		rateLimitStore = memoryStore
		shutdownHandler.Register(func(ctx context.Context) error {
			memoryStore.Close()
			return nil
		})
	}

	scraper := crawler.New(crawler.ConfigFrom(cfg.Scraper), crawler.NewChromeLauncher(cfg.Scraper), log, scraperOpts...)

	// ============================
	// Archive and events
	// ============================
	var runnerOpts []realtime.RunnerOption
	var archive handlers.PublicationArchive
	if cfg.Database.Enabled {
		db, err := storage.NewPostgres(storage.PostgresConfig{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			Database:     cfg.Database.Database,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			log.WithError(err).Warn("failed to connect to database, archive disabled")
		} else {
			store := storage.NewArchive(db, log)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := store.Migrate(ctx)
			cancel()
			if err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to migrate archive: %w", err)
			}

			runnerOpts = append(runnerOpts, realtime.WithStore(store))
			archive = store
			readyChecks["archive"] = store
			log.Info("record archive enabled", "host", cfg.Database.Host, "database", cfg.Database.Database)

			shutdownHandler.RegisterNamed("database", func(ctx context.Context) error {
				return db.Close()
			})
		}
	}

	if cfg.NATS.Enabled {
		natsCfg := realtime.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Name = cfg.NATS.Name

		natsClient, err := realtime.NewNATSClient(natsCfg, log)
		if err != nil {
			log.WithError(err).Warn("failed to connect to NATS, search events disabled")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := natsClient.SetupStreams(ctx); err != nil {
				log.WithError(err).Warn("failed to setup NATS streams")
			}
			cancel()

			runnerOpts = append(runnerOpts, realtime.WithEvents(natsClient))
			readyChecks["events"] = natsClient
			shutdownHandler.RegisterNamed("nats", func(ctx context.Context) error {
				return natsClient.Close()
			})
		}
	}

	runner := realtime.NewRunner(scraper, log, runnerOpts...)

	wsCfg := realtime.DefaultWSConfig()
	wsCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	socket := realtime.NewSearchSocket(runner, wsCfg, log)

	// ============================
	// HTTP API
	// ============================
	deps := api.Dependencies{
		Logger:         log,
		Runner:         runner,
		Archive:        archive,
		Diagnostics:    diagnosticsLister(objectStorage),
		SearchSocket:   socket,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		RateLimitStore: rateLimitStore,
		ReadyChecks:    readyChecks,
	}

	routerConfig := api.DefaultRouterConfig()
	routerConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	routerConfig.SearchTimeout = cfg.Server.SearchTimeout
	routerConfig.RateLimitConfig.Registerer = registry

	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = cfg.Server.Port
	serverConfig.ShutdownTimeout = time.Duration(cfg.Server.ShutdownTimeout) * time.Second

	server := api.NewServer(api.NewRouter(deps, routerConfig), serverConfig, log)

	shutdownHandler.RegisterNamed("http-server", func(ctx context.Context) error {
		log.Info("websocket stats at shutdown", "stats", socket.Stats())
		return server.Shutdown(ctx)
	})

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server error")
			os.Exit(1)
		}
	}()

	shutdownHandler.Wait()

	log.Info("server stopped")
	return nil
}

// diagnosticsLister avoids handing the router a typed nil.
func diagnosticsLister(s *storage.MinIOStorage) handlers.DiagnosticsLister {
	if s == nil {
		return nil
	}
	return s
}
