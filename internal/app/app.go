// Package app 负责应用组件的装配
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"ai-credit-gateway/internal/application/billing"
	"ai-credit-gateway/internal/application/gateway"
	"ai-credit-gateway/internal/application/identity"
	"ai-credit-gateway/internal/application/jobs"
	"ai-credit-gateway/internal/config"
	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/infrastructure/llm"
	"ai-credit-gateway/internal/infrastructure/messaging"
	"ai-credit-gateway/internal/infrastructure/persistence/postgres"
	infraredis "ai-credit-gateway/internal/infrastructure/persistence/redis"
	"ai-credit-gateway/internal/infrastructure/storage"
	"ai-credit-gateway/internal/interfaces/http/handler"
	"ai-credit-gateway/internal/interfaces/http/router"
	"ai-credit-gateway/pkg/logger"
)

// App 装配完成的应用
type App struct {
	cfg       *config.Config
	pg        *postgres.Client
	redis     *infraredis.Client
	router    *router.Router
	scheduler *jobs.Scheduler
	processor *jobs.Processor
}

// New 装配应用组件
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// 持久化
	pg, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}
	if err := pg.AutoMigrate(); err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient, err := infraredis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	txManager := postgres.NewTxManager(pg)
	userRepo := postgres.NewUserRepository(pg)
	ledgerRepo := postgres.NewLedgerRepository(pg)
	usageRepo := postgres.NewUsageRepository(pg)
	jobRepo := postgres.NewJobRepository(pg)

	cache := infraredis.NewCache(redisClient)
	limiter := infraredis.NewRateLimiter(redisClient)
	producer := messaging.NewProducer(redisClient.Redis(),
		int64(cfg.Messaging.RedisStream.MaxLen), cfg.Messaging.RedisStream.Stream)

	// 对象存储可选，未启用时任务结果只存内联载荷
	var store storage.ArtifactStore
	if cfg.Storage.R2.Enabled {
		r2, err := storage.NewR2Store(ctx, &cfg.Storage.R2)
		if err != nil {
			pg.Close()
			redisClient.Close()
			return nil, fmt.Errorf("failed to init r2 store: %w", err)
		}
		store = r2
	}

	// LLM 路由
	factory := llm.NewEinoFactory(cfg)
	llmRouter := llm.NewRouter(cfg, factory)

	// 应用服务
	identitySvc := identity.NewService(userRepo, cache)
	meter := billing.NewMeter(&cfg.Billing)
	billingSvc := billing.NewService(userRepo, ledgerRepo, usageRepo, txManager, meter, producer, &cfg.Billing)
	skills := gateway.NewSkillRegistry()
	gatewaySvc := gateway.NewService(llmRouter, billingSvc, skills)

	processor := jobs.NewProcessor(jobRepo, store)
	processor.RegisterHandler(entity.JobTypeCompletion, jobs.NewCompletionHandler(gatewaySvc))
	processor.RegisterHandler(entity.JobTypeSkill, jobs.NewSkillHandler(gatewaySvc))
	scheduler := jobs.NewScheduler(processor, jobRepo, &cfg.Jobs)
	jobSvc := jobs.NewService(jobRepo, store, scheduler)

	// HTTP 层
	handlers := &router.Handlers{
		Health:   handler.NewHealthHandler(pg, redisClient),
		Gateway:  handler.NewGatewayHandler(gatewaySvc),
		Billing:  handler.NewBillingHandler(billingSvc, identitySvc),
		Job:      handler.NewJobHandler(jobSvc, processor),
		Resolver: identitySvc,
		Limiter:  limiter,
	}

	return &App{
		cfg:       cfg,
		pg:        pg,
		redis:     redisClient,
		router:    router.New(cfg, handlers),
		scheduler: scheduler,
		processor: processor,
	}, nil
}

// Engine 返回 HTTP 引擎
func (a *App) Engine() *gin.Engine {
	return a.router.Engine()
}

// Scheduler 返回任务调度器
func (a *App) Scheduler() *jobs.Scheduler {
	return a.scheduler
}

// Close 关闭底层连接
func (a *App) Close(ctx context.Context) {
	if err := a.redis.Close(); err != nil {
		logger.Warn(ctx, "failed to close redis", "error", err.Error())
	}
	if err := a.pg.Close(); err != nil {
		logger.Warn(ctx, "failed to close postgres", "error", err.Error())
	}
}
