package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyans/todo-app-sub000/internal/config"
	"github.com/cyans/todo-app-sub000/internal/database"
	"github.com/cyans/todo-app-sub000/internal/handlers"
	"github.com/cyans/todo-app-sub000/internal/logger"
	"github.com/cyans/todo-app-sub000/internal/metrics"
	"github.com/cyans/todo-app-sub000/internal/middleware"
	"github.com/cyans/todo-app-sub000/internal/queue"
	"github.com/cyans/todo-app-sub000/internal/services/search"
	"github.com/cyans/todo-app-sub000/internal/services/workflow"
	"github.com/cyans/todo-app-sub000/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(cfg.LogFormat, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("storage_driver", cfg.StorageDriver),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracing := false
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint, cfg.OTELSampleRatio)
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracing = true
			zapLogger.Info("otel_tracer_initialized",
				zap.String("endpoint", cfg.OTELEndpoint),
				zap.Float64("sample_ratio", cfg.OTELSampleRatio),
			)
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	store, closeStore, err := openStore(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_open_store", zap.Error(err))
	}
	defer closeStore()

	healthOpts := []handlers.HealthOption{}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = middleware.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		healthOpts = append(healthOpts, handlers.WithRedis(redisClient))
		zapLogger.Info("connected_to_redis")
	}

	rateLimitMW, err := middleware.RateLimit(cfg.RateLimit, redisClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	workflowOpts := []workflow.Option{}
	if cfg.RabbitMQURL != "" {
		jobQueue, err := connectQueue(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		if cfg.AutoArchiveAfter > 0 {
			workflowOpts = append(workflowOpts, workflow.WithArchiveScheduler(jobQueue, cfg.AutoArchiveAfter))
		}
		healthOpts = append(healthOpts, handlers.WithCheck("queue", handlers.PingFunc(jobQueue.HealthCheck)))
	} else {
		zapLogger.Info("job_queue_disabled_auto_archive_off")
	}

	recorder, err := metrics.New()
	if err != nil {
		zapLogger.Fatal("failed_to_create_metrics_recorder", zap.Error(err))
	}
	defer func() {
		if err := recorder.Shutdown(context.Background()); err != nil {
			zapLogger.Warn("failed_to_shutdown_metrics_recorder", zap.Error(err))
		}
	}()

	workflowService := workflow.NewService(store, zapLogger, workflowOpts...)
	searchService := search.NewService(store,
		search.NewCache(cfg.SearchCacheTTL, cfg.SearchCacheSize),
		zapLogger,
		search.WithCacheObserver(recorder),
	)

	r := newRouter(routerConfig{
		Logger:         zapLogger,
		Workflow:       workflowService,
		Search:         searchService,
		Health:         handlers.NewHealthChecker(store, healthOpts...),
		Metrics:        recorder,
		RateLimit:      rateLimitMW,
		AllowedOrigins: middleware.ParseOrigins(cfg.FrontendURL),
		EnableHSTS:     cfg.EnableHSTS,
		RequestTimeout: cfg.RequestTimeout,
		OpenAPIPath:    cfg.OpenAPIPath,
		Tracing:        tracing,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// openStore returns the configured todo store and a function releasing it
func openStore(cfg *config.Config, zapLogger *zap.Logger) (database.TodoStore, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		zapLogger.Warn("using_in_memory_store_data_is_not_persisted")
		return database.NewMemoryTodoStore(), func() {}, nil
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	zapLogger.Info("connected_to_database")

	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		zapLogger.Info("database_schema_applied")
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}
	return database.NewPostgresTodoStore(db), closeDB, nil
}

// connectQueue dials RabbitMQ, retrying with exponential backoff while the
// broker starts up
func connectQueue(amqpURL string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second
	const maxDelay = 30 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(amqpURL, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > maxDelay {
			delay = maxDelay
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}
