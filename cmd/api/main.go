package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/downoff/lucius-backend/internal/ai"
	"github.com/downoff/lucius-backend/internal/analysis"
	"github.com/downoff/lucius-backend/internal/config"
	httpserver "github.com/downoff/lucius-backend/internal/http"
	"github.com/downoff/lucius-backend/internal/http/handlers"
	"github.com/downoff/lucius-backend/internal/ingest"
	"github.com/downoff/lucius-backend/internal/logger"
	"github.com/downoff/lucius-backend/internal/queue"
	"github.com/downoff/lucius-backend/internal/repository"
	"github.com/downoff/lucius-backend/internal/scoring"
	"github.com/downoff/lucius-backend/internal/service"
	"github.com/downoff/lucius-backend/internal/worker"
)

func main() {
	log, err := logger.New(os.Getenv("LOG_JSON") == "true", os.Getenv("LOG_DEBUG") == "true")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		log.Warn("failed loading .env files", zap.Error(err))
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobsRepo, tendersRepo, repoCloser := setupRepositories(ctx, cfg, log)
	defer repoCloser()

	generator := ai.NewOpenAIClient(ai.OpenAIClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Timeout:    time.Duration(cfg.OpenAITimeoutMS) * time.Millisecond,
		MaxRetries: cfg.OpenAIRetries,
	})
	engine := analysis.NewEngine(analysis.EngineConfig{
		Generator: generator,
		Model:     cfg.OpenAIModel,
		DemoMode:  cfg.AIDemoMode,
		Logger:    log.Named("analysis"),
	})

	var scorer scoring.Scorer
	if cfg.ScorerMode == "llm" {
		scorer = scoring.NewLLMScorer(generator, cfg.OpenAIModel, log.Named("scoring"))
	} else {
		scorer = scoring.NewHeuristicScorer()
	}

	notifier, wake, queueCloser := setupNotifier(ctx, cfg, log)
	defer queueCloser()

	jobsService := service.NewJobsService(service.JobsServiceConfig{
		Repo:           jobsRepo,
		Notifier:       notifier,
		Analyzer:       engine,
		InlineAnalysis: cfg.InlineAnalysisEnabled,
		Logger:         log.Named("jobs"),
	})

	var ingestor *ingest.Ingestor
	if len(cfg.FeedURLs) > 0 {
		feeds := make([]ingest.Feed, 0, len(cfg.FeedURLs))
		for _, url := range cfg.FeedURLs {
			feeds = append(feeds, ingest.Feed{Name: "feed", URL: url})
		}
		ingestor = ingest.New(ingest.Config{
			Feeds:   feeds,
			Tenders: tendersRepo,
			Scorer:  scorer,
			Logger:  log.Named("ingest"),
		})
	}

	if cfg.WorkerEnabled {
		jobWorker := worker.New(worker.Config{
			Repo:       jobsRepo,
			Engine:     engine,
			Interval:   time.Duration(cfg.WorkerPollMS) * time.Millisecond,
			StaleAfter: time.Duration(cfg.JobStaleAfterMS) * time.Millisecond,
			Wake:       wake,
			Logger:     log.Named("worker"),
		})
		go jobWorker.Start(ctx)
	} else {
		log.Info("worker disabled by configuration")
	}

	if ingestor != nil && cfg.IngestIntervalS > 0 {
		go runIngestLoop(ctx, ingestor, time.Duration(cfg.IngestIntervalS)*time.Second)
	}

	api := handlers.NewAPI(handlers.APIConfig{
		Jobs:           jobsService,
		Tenders:        tendersRepo,
		Scorer:         scorer,
		Ingestor:       ingestor,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log.Named("api"),
	})
	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         log.Named("http"),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("port", cfg.Port))
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func setupRepositories(
	ctx context.Context,
	cfg config.Config,
	log *zap.Logger,
) (repository.JobsRepository, repository.TendersRepository, func()) {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not configured, using in-memory repositories")
		return repository.NewMemoryJobsRepository(), repository.NewMemoryTendersRepository(), func() {}
	}

	pool, err := repository.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn("failed to initialize postgres, falling back to memory", zap.Error(err))
		return repository.NewMemoryJobsRepository(), repository.NewMemoryTendersRepository(), func() {}
	}
	log.Info("postgres repositories initialized")
	return repository.NewPostgresJobsRepository(pool),
		repository.NewPostgresTendersRepository(pool),
		pool.Close
}

func setupNotifier(
	ctx context.Context,
	cfg config.Config,
	log *zap.Logger,
) (queue.Notifier, <-chan struct{}, func()) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not configured, worker relies on polling alone")
		return queue.NopNotifier{}, nil, func() {}
	}

	streams, err := queue.NewStreamsNotifier(ctx, queue.StreamsConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Stream:   cfg.RedisStream,
		Group:    cfg.RedisGroup,
		Consumer: cfg.RedisConsumer,
		Logger:   log.Named("queue"),
	})
	if err != nil {
		log.Warn("failed to initialize redis notifier, worker relies on polling alone", zap.Error(err))
		return queue.NopNotifier{}, nil, func() {}
	}
	go streams.Run(ctx)
	log.Info("redis streams notifier initialized")
	return streams, streams.Wake(), func() { _ = streams.Close() }
}

func runIngestLoop(ctx context.Context, ingestor *ingest.Ingestor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ingestor.Ingest(ctx)
		}
	}
}
