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

	"github.com/adpulse-ai/platform/pkg/adsapi"
	"github.com/adpulse-ai/platform/pkg/cache"
	"github.com/adpulse-ai/platform/pkg/catalog"
	"github.com/adpulse-ai/platform/pkg/common/config"
	"github.com/adpulse-ai/platform/pkg/common/database"
	"github.com/adpulse-ai/platform/pkg/common/kafka"
	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/adpulse-ai/platform/pkg/common/middleware"
	"github.com/adpulse-ai/platform/pkg/entity"
	"github.com/adpulse-ai/platform/pkg/jobs"
	"github.com/adpulse-ai/platform/pkg/observability/metrics"
	"github.com/adpulse-ai/platform/pkg/reports"
	"github.com/adpulse-ai/platform/pkg/statistics"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger.InitService("report-service")
	cfg := config.Load()

	conn, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer conn.Close()

	catalogRepo := catalog.NewRepository(conn)
	lookup := entity.NewGormLookup(conn)
	profiles := adsapi.NewProfileRepository(conn)
	requests := reports.NewRepository(conn)
	store := statistics.NewGormStore(conn, cfg.ReportUpsertChunk)

	migrations := []struct {
		name string
		run  func() error
	}{
		{"catalog", catalogRepo.AutoMigrate},
		{"entity", lookup.AutoMigrate},
		{"ads profile", profiles.AutoMigrate},
		{"report request", requests.AutoMigrate},
		{"statistics", func() error { return store.AutoMigrate(context.Background()) }},
	}
	for _, m := range migrations {
		if err := m.run(); err != nil {
			logger.Log.WithError(err).Fatalf("failed to migrate %s tables", m.name)
		}
	}

	redisClient := database.GetRedis(cfg)
	defer database.CloseRedis()

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.JobsTopic)
	defer producer.Close()

	var dlq jobs.Publisher
	if cfg.JobsDLQTopic != "" {
		dlqProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.JobsDLQTopic)
		defer dlqProducer.Close()
		dlq = dlqProducer
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.JobsTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	queue := jobs.NewQueue(redisClient, producer, jobs.DefaultDelayedKey)
	worker := jobs.NewWorker(queue, dlq, jobs.Options{
		Timeout:     cfg.JobTimeout,
		MaxAttempts: cfg.JobMaxAttempts,
		RetryDelay:  cfg.JobRetryDelay,
	})

	client := adsapi.NewClient(adsapi.Config{
		BaseURL:       cfg.AdsAPIBaseURL,
		TokenURL:      cfg.AdsTokenURL,
		ClientID:      cfg.AdsClientID,
		ClientSecret:  cfg.AdsClientSecret,
		Timeout:       cfg.AdsRequestTimeout,
		RetryAttempts: cfg.AdsRetryAttempts,
	}, profiles)

	normalizer := statistics.NewNormalizer(
		entity.NewResolver(lookup),
		catalogRepo,
		store,
		cache.NewRedisInvalidator(redisClient),
		cfg.ReportBatchSize,
	)

	manager := reports.NewManager(requests, client, normalizer, queue, reports.ManagerOptions{
		PollDelay:         cfg.ReportPollDelay,
		GenerationWorkers: cfg.ReportGenerateWorkers,
		Ceiling:           cfg.ReportAttemptCeiling,
	})
	scheduler := reports.NewScheduler(requests, queue, reports.Policy{
		Ceiling:  cfg.ReportAttemptCeiling,
		Cooldown: cfg.ReportCooldown,
	})
	reports.NewHandlers(manager, jobs.NewRedisMutex(redisClient, "lock"), cfg.JobTimeout).Register(worker)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := conn.Ready(ctx); err != nil {
			http.Error(w, `{"status":"postgres unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, `{"status":"redis unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RateLimit(cfg.APIRateLimit, cfg.APIRateBurst))
	reports.NewHTTPHandler(reports.NewValidator(0), queue, requests, cfg.MaxRequestBody).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return queue.RunPromoter(gctx, cfg.PromoterInterval) })
	g.Go(func() error { return scheduler.Run(gctx, cfg.SchedulerInterval) })
	g.Go(func() error { return consumer.Consume(gctx, worker.Handle) })

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Report Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-gctx.Done():
		logger.Log.Error("background worker stopped unexpectedly")
	}

	logger.Log.Info("Shutting down Report Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.WithError(err).Error("background worker failed")
	}

	logger.Log.Info("Report Service stopped")
}
