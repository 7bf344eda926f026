package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobmail/internal/config"
	"jobmail/internal/extractor"
	"jobmail/internal/gmail"
	"jobmail/internal/pipeline"
	"jobmail/internal/repository"
	"jobmail/internal/scorer"
	"jobmail/internal/service"
	"jobmail/pkg/db"
	"jobmail/pkg/outbox"
	redisclient "jobmail/pkg/redis"
	"jobmail/pkg/util"
)

// App 进程共享的依赖图，cmd/api 和 cmd/jobmailctl 共用
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *pgxpool.Pool
	Redis *redis.Client

	Users    *repository.UserRepository
	Apps     *repository.ApplicationRepository
	Stats    *repository.StatisticsRepository
	Failures *repository.FailedMessageRepository
	Outbox   *outbox.Repository

	Gmail    *gmail.Client
	Pipeline *pipeline.Pipeline

	Auth     *service.AuthService
	Ingest   *service.IngestService
	StatsSvc *service.StatsService
	Export   *service.ExportService
}

type options struct {
	extraction bool
}

type Option func(*options)

// WithoutExtraction 不构建 LLM provider 和流水线，用于不需要抽取的命令
func WithoutExtraction() Option {
	return func(o *options) { o.extraction = false }
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := options{extraction: true}
	for _, opt := range opts {
		opt(&o)
	}

	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		DB:     dbConn,
		Redis:  redisclient.NewRedisClient(cfg.Redis),
	}

	a.Outbox = outbox.NewRepository(dbConn)
	a.Users = repository.NewUserRepository(dbConn)
	a.Apps = repository.NewApplicationRepository(dbConn, a.Outbox)
	a.Stats = repository.NewStatisticsRepository(dbConn)
	a.Failures = repository.NewFailedMessageRepository(dbConn)

	a.Gmail = gmail.NewClient(cfg.Gmail, logger)

	if o.extraction {
		p, err := a.buildPipeline(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Pipeline = p
	}

	var ingester service.Ingester
	if a.Pipeline != nil {
		ingester = a.Pipeline
	}

	a.Auth = service.NewAuthService(a.Gmail, a.Users, cfg.JWT.Secret, cfg.JWT.TTL, logger)
	a.Ingest = service.NewIngestService(a.Gmail, a.Users, ingester, a.Apps, logger)
	a.StatsSvc = service.NewStatsService(a.Apps, a.Stats)
	a.Export = service.NewExportService(a.Users, a.Apps)

	return a, nil
}

func (a *App) buildPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	cfg := a.Config

	provider, err := extractor.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	var exOpts []extractor.Option
	if cfg.LLM.Timeout > 0 {
		exOpts = append(exOpts, extractor.WithTimeout(cfg.LLM.Timeout))
	}
	ex := extractor.New(provider, a.Logger, exOpts...)

	sc := scorer.New(cfg.Scorer.ApplicationWords, cfg.Scorer.NonRelevantWords)

	a.Logger.Info("Ingestion pipeline ready",
		zap.String("provider", provider.Name()),
		zap.Int("concurrency", cfg.Pipeline.Concurrency),
	)

	return pipeline.New(sc, ex, a.Apps, a.Logger,
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithDeduper(util.NewDeduper(a.Redis, cfg.Pipeline.DedupTTL, a.Logger)),
		pipeline.WithFailureRecorder(a.Failures),
	), nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
