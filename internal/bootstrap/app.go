package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"gopherai-slides/internal/ai"
	"gopherai-slides/internal/app"
	"gopherai-slides/internal/assets"
	"gopherai-slides/internal/cache"
	"gopherai-slides/internal/config"
	"gopherai-slides/internal/logger"
	mysqlClient "gopherai-slides/internal/platform/mysql"
	rabbitmqClient "gopherai-slides/internal/platform/rabbitmq"
	redisClient "gopherai-slides/internal/platform/redis"
	sqliteClient "gopherai-slides/internal/platform/sqlite"
	"gopherai-slides/internal/repository"
	"gopherai-slides/internal/scrape"
	"gopherai-slides/internal/source"
	"gopherai-slides/internal/textsplit"
	"gopherai-slides/internal/vectorindex"
	"gopherai-slides/internal/worker"
)

type App struct {
	Config *config.Config
	Log    *logger.Logger
	DB     *gorm.DB
	// Redis and MQConn are nil when their addresses are not configured.
	Redis  *redis.Client
	MQConn *amqp.Connection

	Scraper *scrape.HTTPScraper
	Assets  assets.Store
	// AssetsDir is set when images are served from local disk.
	AssetsDir string

	Presentations    *app.PresentationService
	QA               *app.QAService
	GenerationWorker *worker.GenerationWorker

	StartedAt time.Time
	gcs       *assets.GCSStore
}

type options struct {
	startWorker bool
	configure   func(*config.Config)
}

type Option func(*options)

// WithoutWorker skips consuming the generation queue (used by the CLI).
func WithoutWorker() Option {
	return func(o *options) { o.startWorker = false }
}

// WithConfig adjusts the loaded configuration before anything is built.
func WithConfig(fn func(*config.Config)) Option {
	return func(o *options) { o.configure = fn }
}

func New(ctx context.Context, opts ...Option) (*App, error) {
	o := options{startWorker: true}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if o.configure != nil {
		o.configure(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, StartedAt: time.Now()}
	if err := a.init(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, o options) error {
	cfg := a.Config

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	a.DB = db
	if err := repository.AutoMigrate(db); err != nil {
		return err
	}

	if cfg.Redis.Addr != "" {
		if a.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			return err
		}
	}
	if cfg.RabbitMQ.URL != "" {
		if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
			return err
		}
	}

	settings := aiSettings(cfg)
	generator, err := ai.NewGenerator(ctx, settings)
	if err != nil {
		return fmt.Errorf("create generator failed: %w", err)
	}
	embedder, err := ai.NewEmbedder(ctx, settings)
	if err != nil {
		return fmt.Errorf("create embedder failed: %w", err)
	}

	index, err := vectorindex.New(vectorindex.Options{
		Type: cfg.VectorStore.Type,
		Qdrant: vectorindex.QdrantConfig{
			URL:       cfg.VectorStore.QdrantURL,
			APIKey:    cfg.VectorStore.QdrantAPIKey,
			Dimension: cfg.VectorStore.Dimension,
			Timeout:   cfg.LLMTimeout(),
		},
		Redis: vectorindex.RedisConfig{
			Prefix:    cfg.VectorStore.RedisPrefix,
			Dimension: cfg.VectorStore.Dimension,
		},
		RedisClient: a.Redis,
	})
	if err != nil {
		return fmt.Errorf("create vector index failed: %w", err)
	}

	if err := a.openAssets(ctx); err != nil {
		return err
	}

	a.Scraper = scrape.NewHTTPScraper(cfg.ScrapeTimeout())
	splitter := textsplit.New(
		textsplit.WithChunkSize(cfg.Pipeline.ChunkSize),
		textsplit.WithOverlap(cfg.Pipeline.ChunkOverlap),
	)
	normalizer := source.NewNormalizer(a.Scraper, splitter, a.Log,
		source.WithConcurrency(cfg.Pipeline.ScrapeConcurrency),
		source.WithTimeout(cfg.ScrapeTimeout()),
	)

	deps := app.PresentationDeps{
		Store:      repository.NewPresentationRepository(db),
		Normalizer: normalizer,
		Generator:  generator,
		Embedder:   embedder,
		Images:     ai.NewImageGenerator(settings),
		Index:      index,
		Assets:     a.Assets,
		Log:        a.Log,
	}
	var answers app.AnswerCache
	if a.Redis != nil {
		answerCache := cache.NewAnswerCache(a.Redis, cfg.AnswerTTL())
		deps.Cache = answerCache
		answers = answerCache
	}
	if a.MQConn != nil {
		deps.Publisher = rabbitmqClient.NewGenerationJobPublisher(a.MQConn, cfg.RabbitMQ.GenerationQueue)
	}

	a.Presentations = app.NewPresentationService(deps, app.PipelineOptions{
		ChunkSize:        cfg.Pipeline.ChunkSize,
		ChunkOverlap:     cfg.Pipeline.ChunkOverlap,
		ImageConcurrency: cfg.Pipeline.ImageConcurrency,
		ImageTimeout:     cfg.ImageTimeout(),
		MaxImages:        cfg.Pipeline.MaxImages,
	})
	a.QA = app.NewQAService(generator, embedder, index, answers, cfg.Pipeline.TopK, a.Log).
		WithRebuilder(a.Presentations)

	if o.startWorker && a.MQConn != nil {
		a.GenerationWorker = worker.NewGenerationWorker(a.MQConn, a.Presentations.HandleJob,
			cfg.RabbitMQ.GenerationQueue, cfg.RabbitMQ.Prefetch, a.Log)
		if err := a.GenerationWorker.Start(ctx); err != nil {
			return fmt.Errorf("start generation worker failed: %w", err)
		}
	}

	a.Log.Info("app initialized",
		"db", cfg.Database.Driver,
		"llm", cfg.LLM.Provider,
		"embedding", cfg.LLM.EmbeddingProvider,
		"vector_store", cfg.VectorStore.Type,
		"assets", cfg.Assets.Type,
		"async", a.MQConn != nil,
	)
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Driver == "sqlite" {
		return sqliteClient.New(ctx, cfg.Database.SQLitePath)
	}
	return mysqlClient.New(ctx, cfg.MySQLDSN())
}

func (a *App) openAssets(ctx context.Context) error {
	cfg := a.Config.Assets
	if cfg.Type == "gcs" {
		store, err := assets.NewGCSStore(ctx, assets.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
		if err != nil {
			return err
		}
		a.gcs = store
		a.Assets = store
		return nil
	}

	store, err := assets.NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	if err != nil {
		return err
	}
	a.Assets = store
	a.AssetsDir = store.Dir()
	return nil
}

func aiSettings(cfg *config.Config) ai.Settings {
	return ai.Settings{
		Provider: cfg.LLM.Provider,
		Chat: ai.ChatConfig{
			BaseURL:   cfg.LLM.BaseURL,
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
		},
		EmbeddingProvider: cfg.LLM.EmbeddingProvider,
		Embedding: ai.EmbeddingConfig{
			BaseURL:   cfg.LLM.EmbeddingBaseURL,
			APIKey:    cfg.LLM.EmbeddingAPIKey,
			Model:     cfg.LLM.EmbeddingModel,
			BatchSize: cfg.LLM.EmbeddingBatchSize,
		},
		Image: ai.ImageConfig{
			BaseURL:           cfg.LLM.ImageBaseURL,
			APIKey:            cfg.LLM.ImageAPIKey,
			Model:             cfg.LLM.ImageModel,
			Size:              cfg.LLM.ImageSize,
			RequestsPerSecond: cfg.LLM.ImagesPerSecond,
		},
		Timeout:      cfg.LLMTimeout(),
		ImageTimeout: cfg.ImageTimeout(),
	}
}

// HealthChecks pings every configured dependency.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"database": func(ctx context.Context) error { return mysqlClient.Ping(ctx, a.DB, 2*time.Second) },
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx, a.Redis, 2*time.Second) }
	}
	if a.MQConn != nil {
		checks["rabbitmq"] = func(ctx context.Context) error { return rabbitmqClient.Ping(ctx, a.MQConn, 2*time.Second) }
	}
	return checks
}

func (a *App) Close() error {
	var errs []error
	if a.GenerationWorker != nil {
		a.GenerationWorker.Close()
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		errs = append(errs, a.MQConn.Close())
	}
	if a.gcs != nil {
		errs = append(errs, a.gcs.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
