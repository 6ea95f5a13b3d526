package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"trendforge/importer/internal/ai"
	"trendforge/importer/internal/blob"
	"trendforge/importer/internal/config"
	"trendforge/importer/internal/database"
	"trendforge/importer/internal/extract"
	"trendforge/importer/internal/fetch"
	"trendforge/importer/internal/ingest"
	"trendforge/importer/internal/media"
	"trendforge/importer/internal/models"
	"trendforge/importer/internal/process"
	"trendforge/importer/internal/queue"
	"trendforge/importer/internal/server"
	"trendforge/importer/internal/server/api"
	"trendforge/importer/internal/server/storage"
	"trendforge/importer/internal/store"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	db       *database.DB
	queue    queue.Queue
	ingestor *ingest.Ingestor
	repo     storage.TrendRepository
}

// newApp opens the database and queue and builds the ingestor.
func newApp(cfg *config.Config) (*app, error) {
	db, err := database.NewDB(database.NewConfig(cfg.DBDriver, cfg.DBDSN))
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.DBDriver).Msg("Failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	q, err := queue.New(queue.Config{
		Backend:       cfg.QueueBackend,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		RedisKey:      cfg.RedisQueueKey,
	}, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	trends := store.NewTrendStore(db)
	ingestor := ingest.NewIngestor(trends, q, newHTTPClient(cfg), ingest.Options{
		FeedURL:       cfg.FeedURL,
		ImportEnabled: cfg.ImportEnabled,
		MinTraffic:    cfg.MinTraffic,
		MaxTrends:     cfg.MaxTrends,
		DenyList:      ingest.ParseDenyList(cfg.TLDDenyList),
	})

	return &app{
		cfg:      cfg,
		db:       db,
		queue:    q,
		ingestor: ingestor,
		repo:     storage.NewRepository(db),
	}, nil
}

func (a *app) Close() {
	if c, ok := a.queue.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close queue")
		}
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}

func newHTTPClient(cfg *config.Config) *fetch.Client {
	return fetch.NewClient(fetch.Options{
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.ScrapeConcurrency,
	})
}

// newWorker builds the processing pipeline and the queue worker around it.
func (a *app) newWorker() (*process.Worker, error) {
	cfg := a.cfg

	blobs, err := blob.New(blob.Config{
		Backend:    cfg.BlobBackend,
		Dir:        cfg.BlobDir,
		S3Bucket:   cfg.S3Bucket,
		S3Region:   cfg.S3Region,
		S3Endpoint: cfg.S3Endpoint,
		S3Prefix:   cfg.S3Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	settings := cfg.ProviderSettings()
	aiClient := fetch.NewClient(fetch.Options{Timeout: cfg.AITimeout})
	provider, err := ai.NewProvider(settings, aiClient, ai.Options{
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ai provider: %w", err)
	}
	if !provider.Available() {
		log.Warn().Str("provider", settings.Name).Msg("AI provider has no API key, trends will be skipped")
	}

	httpClient := newHTTPClient(cfg)
	extractor := extract.NewExtractor()

	processor := process.NewProcessor(process.Deps{
		Trends:      store.NewTrendStore(a.db),
		Articles:    store.NewArticleStore(a.db),
		Tags:        store.NewTagStore(a.db),
		Synthesizer: ai.NewSynthesizer(provider, nil, cfg.MaxSourceChars),
		Media:       media.NewPipeline(httpClient, extractor, media.Options{Concurrency: cfg.ScrapeConcurrency}),
		Blobs:       blobs,
		Client:      httpClient,
		Extractor:   extractor,
	}, process.Options{
		Prompt: settings.Prompt,
		Content: models.ContentTypeConfig{
			ContentType: cfg.ContentType,
			BodyFormat:  cfg.BodyFormat,
			ImageField:  cfg.ImageField,
			TagsField:   cfg.TagsField,
			Vocabulary:  cfg.TagVocabulary,
			Published:   cfg.PublishArticles,
			DomainID:    cfg.DomainID,
		},
		MaxImages:         cfg.MaxImages,
		ScrapeConcurrency: cfg.ScrapeConcurrency,
	})

	return process.NewWorker(processor, a.queue, process.WorkerOptions{
		WorkerCount:  cfg.WorkerCount,
		Lease:        cfg.LeaseDuration,
		RetryDelay:   cfg.RetryDelay,
		MaxAttempts:  cfg.MaxAttempts,
		PollInterval: cfg.PollInterval,
	}), nil
}

func (a *app) overview() api.Overview {
	settings := a.cfg.ProviderSettings()
	return api.Overview{
		Provider:      settings.Name,
		Model:         settings.Model,
		MaxTrends:     a.cfg.MaxTrends,
		MinTraffic:    a.cfg.MinTraffic,
		ImportEnabled: a.cfg.ImportEnabled,
		CronEnabled:   a.cfg.CronEnabled,
		CronSchedule:  a.cfg.CronSchedule,
		DomainID:      a.cfg.DomainID,
	}
}

// runServer serves the admin API until ctx is cancelled.
func (a *app) runServer(ctx context.Context) error {
	h := server.NewHandler(server.Deps{
		Repo:     a.repo,
		Importer: a.ingestor,
		Queue:    a.queue,
		Overview: a.overview(),
	}, log.Logger, a.cfg.APIKey)
	return server.RunServer(ctx, h, a.cfg.ListenAddr(), log.Logger)
}

// stats returns the same payload as GET /v1/stats.
func (a *app) stats(ctx context.Context) (*api.StatsResponse, error) {
	s, err := a.repo.Stats(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	n, err := a.queue.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue length: %w", err)
	}
	return &api.StatsResponse{Stats: s, QueueLength: n, Config: a.overview()}, nil
}
