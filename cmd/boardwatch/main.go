// Package main wires together the boardwatch service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/boardwatch/boardwatch/internal/adapters"
	"github.com/boardwatch/boardwatch/internal/api"
	"github.com/boardwatch/boardwatch/internal/clock/system"
	"github.com/boardwatch/boardwatch/internal/config"
	"github.com/boardwatch/boardwatch/internal/dispatcher"
	"github.com/boardwatch/boardwatch/internal/extract"
	collyfetcher "github.com/boardwatch/boardwatch/internal/fetcher/colly"
	headlessfetcher "github.com/boardwatch/boardwatch/internal/fetcher/headless"
	"github.com/boardwatch/boardwatch/internal/headless/detector"
	"github.com/boardwatch/boardwatch/internal/health"
	"github.com/boardwatch/boardwatch/internal/id/uuid"
	"github.com/boardwatch/boardwatch/internal/logging"
	"github.com/boardwatch/boardwatch/internal/metrics"
	"github.com/boardwatch/boardwatch/internal/normalize"
	pubsubpublisher "github.com/boardwatch/boardwatch/internal/publisher/pubsub"
	"github.com/boardwatch/boardwatch/internal/scrape"
	"github.com/boardwatch/boardwatch/internal/storage/gcs"
	"github.com/boardwatch/boardwatch/internal/storage/local"
	"github.com/boardwatch/boardwatch/internal/storage/memory"
	"github.com/boardwatch/boardwatch/internal/storage/postgres"
	"github.com/boardwatch/boardwatch/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	runOnce := flag.Bool("once", false, "Run every source once and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	blobStore := buildBlobStore(ctx, cfg, logger)
	publisher := buildPublisher(ctx, cfg, logger)

	clock := system.Clock{}
	tracker := health.NewTracker(store, clock, health.Config{
		CloseAfterMisses: cfg.Health.CloseAfterMisses,
		BrokenAfter:      cfg.Health.BrokenAfter,
		StaleAfter:       time.Duration(cfg.Health.StaleAfterHours) * time.Hour,
	}, logger.Named("health"))

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MaxBody:   cfg.HTTP.MaxBodyBytes,
	}, clock)

	var renderer scrape.Renderer
	if cfg.Headless.Enabled {
		chromeRenderer, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Scrape.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			WaitSelector:      cfg.Headless.WaitSelector,
		})
		if err != nil {
			logger.Warn("headless renderer init failed", zap.Error(err))
		} else {
			renderer = chromeRenderer
		}
	}

	detect := detector.NewHeuristic(detector.Config{
		MinVisibleText: cfg.Detector.MinVisibleText,
		MinBodyBytes:   cfg.Detector.MinBodyBytes,
		ScriptCoverage: cfg.Detector.ScriptCoverage,
	})
	pipeline := extract.New(extract.Config{
		MinPostings:      cfg.Extract.MinPostings,
		MinBlockSiblings: cfg.Extract.MinBlockSiblings,
	})

	w := worker.New(
		fetcher,
		renderer,
		detect,
		pipeline,
		adapters.NewRegistry(),
		normalize.New(),
		tracker,
		blobStore,
		publisher,
		scrape.NewRetryPolicy(
			cfg.HTTP.MaxRetries,
			time.Duration(cfg.HTTP.BackoffInitialMs)*time.Millisecond,
			time.Duration(cfg.HTTP.BackoffMaxMs)*time.Millisecond,
		),
		clock,
		uuid.Generator{},
		worker.Config{
			MaxPages:       cfg.Scrape.MaxPages,
			SourceBudget:   cfg.SourceBudget(),
			SnapshotPrefix: cfg.Storage.Prefix,
			ContentType:    cfg.Storage.ContentType,
			Topic:          cfg.PubSub.TopicName,
		},
		logger.Named("worker"),
	)
	dispatch := dispatcher.New(w, cfg.Scrape.Concurrency, logger.Named("dispatcher"))

	apiServer := api.NewServer(store, api.Config{
		Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		AuthAPIKey: authKey(cfg),
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go runScrapeLoop(ctx, dispatch, cfg, *runOnce, stop, logger)

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}

// runScrapeLoop runs all sources immediately, then on the configured
// interval until the context finishes.
func runScrapeLoop(ctx context.Context, dispatch *dispatcher.Dispatcher, cfg config.Config, once bool, stop func(), logger *zap.Logger) {
	sources := cfg.PageSources()
	if len(sources) == 0 {
		logger.Warn("no sources configured")
	}

	run := func() {
		reports := dispatch.Run(ctx, sources)
		logger.Info("scrape cycle finished", zap.Int("sources", len(reports)))
	}

	run()
	if once {
		stop()
		return
	}

	interval := time.Duration(cfg.Scrape.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func buildStore(ctx context.Context, cfg config.Config) (scrape.Store, func(), error) {
	if cfg.DB.DSN == "" {
		return memory.New(), func() {}, nil
	}
	pg, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) scrape.BlobStore {
	if cfg.Storage.GCSBucket != "" {
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			logger.Warn("gcs client init failed, snapshots disabled", zap.Error(err))
			return nil
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			logger.Warn("gcs blob store init failed, snapshots disabled", zap.Error(err))
			return nil
		}
		return store
	}
	if cfg.Storage.LocalDir != "" {
		store, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			logger.Warn("local blob store init failed, snapshots disabled", zap.Error(err))
			return nil
		}
		return store
	}
	return nil
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) scrape.Publisher {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return nil
	}
	client, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Warn("pubsub client init failed, run reports disabled", zap.Error(err))
		return nil
	}
	return pubsubpublisher.New(client)
}

func authKey(cfg config.Config) string {
	if !cfg.Auth.Enabled {
		return ""
	}
	return cfg.Auth.APIKey
}
