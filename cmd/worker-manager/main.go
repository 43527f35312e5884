// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/common/camunda"
	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/database"
	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/common/observability"
	"invoice-workers/internal/polling"
	"invoice-workers/internal/registry"

	aer "invoice-workers/internal/workers/invoice/await-extraction-result"
	eer "invoice-workers/internal/workers/invoice/enrich-extraction-result"
	exr "invoice-workers/internal/workers/invoice/export-results"
	eif "invoice-workers/internal/workers/invoice/extract-invoice-fields"
	ms "invoice-workers/internal/workers/invoice/match-supplier"
	nsr "invoice-workers/internal/workers/invoice/notify-supplier-review"
)

// worker is what main needs from every handler.
type worker interface {
	camunda.JobHandler
	IsEnabled() bool
	WorkerOptions() camunda.WorkerOptions
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Object storage ---
	store, err := aws.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		zapLog.Fatal("s3 client failed", zap.Error(err))
	}
	zapLog.Info("S3 client ready", zap.String("bucket", store.Bucket()))

	// --- Supplier registry ---
	var source registry.Source
	switch cfg.Registry.Source {
	case config.RegistrySourcePostgres:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		source, err = registry.NewPostgresSource(pg.DB, cfg.Registry.Table)
		if err != nil {
			zapLog.Fatal("postgres supplier source failed", zap.Error(err))
		}
		zapLog.Info("Supplier registry reads from PostgreSQL", zap.String("table", cfg.Registry.Table))
	default:
		source = registry.NewS3Source(store, cfg.Registry.Key)
		zapLog.Info("Supplier registry reads from S3", zap.String("key", cfg.Registry.Key))
	}
	suppliers := registry.New(source, config.GetDuration(cfg.Registry.RefreshInterval), log)
	if _, err := suppliers.Snapshot(ctx); err != nil {
		// Jobs fail with a registry error until the list is uploaded.
		zapLog.Warn("supplier registry not loaded at startup", zap.Error(err))
	}

	// --- Enrichment cache ---
	var cache redis.Cmdable
	if cfg.Matching.CacheEnabled {
		rdb := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		cache = rdb.Client
		zapLog.Info("Redis connected successfully")
	}

	// --- Search index ---
	var indexer eer.Indexer
	if cfg.Search.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = esClient
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Search.Index))
	}

	// --- Review notifications ---
	var publisher nsr.Publisher
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		publisher = snsClient
	}
	var mailer nsr.Mailer
	if cfg.Notifications.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		mailer = sesClient
	}

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, cfg.Camunda)
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully", zap.String("gateway", cfg.Camunda.BrokerAddress))

	// --- Workers ---
	tracker := polling.NewTracker()

	extractHandler, err := eif.NewHandler(eif.HandlerOptions{AppConfig: cfg, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create extract-invoice-fields handler", zap.Error(err))
	}
	matchHandler, err := ms.NewHandler(ms.HandlerOptions{AppConfig: cfg, Registry: suppliers, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create match-supplier handler", zap.Error(err))
	}
	enrichHandler, err := eer.NewHandler(eer.HandlerOptions{
		AppConfig:     cfg,
		Store:         store,
		Registry:      suppliers,
		Cache:         cache,
		Indexer:       indexer,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("failed to create enrich-extraction-result handler", zap.Error(err))
	}
	awaitHandler, err := aer.NewHandler(aer.HandlerOptions{AppConfig: cfg, Lister: store, Tracker: tracker, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create await-extraction-result handler", zap.Error(err))
	}
	exportHandler, err := exr.NewHandler(exr.HandlerOptions{AppConfig: cfg, Store: store, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create export-results handler", zap.Error(err))
	}
	notifyHandler, err := nsr.NewHandler(nsr.HandlerOptions{AppConfig: cfg, Publisher: publisher, Mailer: mailer, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create notify-supplier-review handler", zap.Error(err))
	}

	manager := camunda.NewManager(zeebe.GetClient(), log)
	for _, w := range []worker{extractHandler, matchHandler, enrichHandler, awaitHandler, exportHandler, notifyHandler} {
		if !w.IsEnabled() {
			zapLog.Info("worker disabled", zap.String("taskType", w.GetTaskType()))
			continue
		}
		if err := manager.Register(w, w.WorkerOptions()); err != nil {
			zapLog.Fatal("failed to register worker", zap.String("taskType", w.GetTaskType()), zap.Error(err))
		}
	}
	zapLog.Info("Workers registered", zap.Strings("taskTypes", manager.TaskTypes()))

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr: cfg.Metrics.Address,
		Handler: newStatusMux(statusDeps{
			Broker:        zeebe,
			Registry:      registryStatus(cfg, store, suppliers),
			PollingStatus: awaitHandler.PollingStatus,
			TaskTypes:     manager.TaskTypes,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	manager.Close(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// registryStatus checks the stored supplier list for the S3 source and the
// loaded snapshot for any other source.
func registryStatus(cfg *config.Config, store registry.ObjectStore, suppliers *registry.Registry) func(context.Context) registry.Status {
	if cfg.Registry.Source != config.RegistrySourcePostgres {
		return func(ctx context.Context) registry.Status {
			return registry.CheckStatus(ctx, store, cfg.Registry.Key)
		}
	}
	return func(ctx context.Context) registry.Status {
		snap, err := suppliers.Snapshot(ctx)
		if err != nil {
			return registry.Status{Error: err.Error()}
		}
		return registry.Status{Exists: true, IsValid: true, RecordCount: snap.Len(), LastModified: snap.LoadedAt}
	}
}
