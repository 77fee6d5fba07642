package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	authHandlers "promptlib/api/handlers/auth"
	notificationHandlers "promptlib/api/handlers/notifications"
	promptHandlers "promptlib/api/handlers/prompts"
	"promptlib/internal/auth"
	"promptlib/internal/cache"
	"promptlib/internal/config"
	"promptlib/internal/infra/queue"
	"promptlib/internal/logger"
	middlewarepkg "promptlib/internal/middleware"
	"promptlib/internal/notification"
	"promptlib/internal/prompt"
	"promptlib/internal/saveflow"
	"promptlib/internal/worker"
	workerHandlers "promptlib/internal/worker/handlers"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppContainer 应用依赖容器
//
// Redis 为可选项：未启用时缓存只有本地层，离线通知存内存，
// 令牌注销与快照补建队列不可用。
type AppContainer struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  redis.UniversalClient

	JWTService   *auth.JWTService
	Cache        *cache.PromptCache
	Hub          *notification.WebSocketHub
	Orchestrator *saveflow.Orchestrator
	Sessions     *saveflow.Registry
	RateLimiter  *middlewarepkg.RateLimiter
	Queue        *queue.Client
	Worker       *worker.Server

	Handlers *Handlers

	logger *zap.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Handlers HTTP 处理器集合
type Handlers struct {
	Auth          *authHandlers.AuthHandler
	Prompts       *promptHandlers.Handler
	Notifications *notificationHandlers.WebSocketHandler
}

// NewAppContainer 组装所有组件，rdb 可为 nil
func NewAppContainer(db *gorm.DB, rdb redis.UniversalClient, cfg *config.Config) (*AppContainer, error) {
	log := logger.Named("app")

	promptStore := prompt.NewPromptStore(db)
	variableStore := prompt.NewVariableStore(db)
	versionStore := prompt.NewVersionStore(db)
	shareStore := prompt.NewShareStore(db)

	c := &AppContainer{Config: cfg, DB: db, Redis: rdb, logger: log}

	// 接口字段只在 Redis 可用时赋值，避免出现带类型的 nil
	var blacklist auth.Blacklist
	cacheOpts := []cache.Option{cache.WithLogger(logger.Named("cache"))}
	offline := notification.OfflineStore(notification.NewMemoryOfflineStore(cfg.Notification.OfflineLimit))
	if rdb != nil {
		blacklist = rdb
		cacheOpts = append(cacheOpts, cache.WithRemote(rdb))
		if cfg.Notification.OfflineStore == "redis" {
			offline = notification.NewRedisOfflineStore(rdb, cfg.Notification.OfflineLimit, cfg.Notification.OfflineTTL)
		}
	}

	c.JWTService = auth.NewJWTService(cfg.Auth, blacklist)
	c.Cache = cache.NewPromptCache(cfg.Redis, cfg.Cache.Capacity, cfg.Cache.TTL, cacheOpts...)
	c.Hub = notification.NewWebSocketHub(
		notification.WithOfflineStore(offline),
		notification.WithKeepAliveInterval(cfg.Notification.KeepAliveInterval),
		notification.WithHubLogger(logger.Named("ws")),
	)

	notifier := notification.FromSender(notification.MultiSender{
		notification.NewHubSender(c.Hub),
		notification.NewLogSender(logger.Named("notice")),
	}, logger.Named("notice"))

	deps := saveflow.Deps{
		Validator:   prompt.NewSchema(prompt.WithTitleChecker(prompt.NewOwnerTitles(promptStore), cfg.Save.TitleDebounce)),
		Records:     promptStore,
		Reader:      promptStore,
		Shares:      shareStore,
		Variables:   variableStore,
		Snapshots:   versionStore,
		Actors:      saveflow.ActorFunc(auth.ActorFromContext),
		Notifier:    notifier,
		Invalidator: c.Cache,
		Logger:      logger.Named("saveflow"),
	}
	if rdb != nil {
		c.Queue = queue.NewClient(cfg.Redis)
		deps.Repairs = c.Queue
		snapshots := workerHandlers.NewSnapshotHandler(versionStore, logger.Named("worker"))
		c.Worker = worker.NewServer(cfg.Redis, snapshots, logger.Named("worker"))
	}

	orch, err := saveflow.New(deps, saveflow.Config{
		MaxAttempts:      cfg.Save.MaxAttempts,
		LookupTimeout:    cfg.Save.LookupTimeout,
		PersistTimeout:   cfg.Save.PersistTimeout,
		VariablesTimeout: cfg.Save.VariablesTimeout,
		SnapshotTimeout:  cfg.Save.SnapshotTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("创建保存编排器失败: %w", err)
	}
	c.Orchestrator = orch
	c.Sessions = saveflow.NewRegistry(orch, cfg.Save.SessionTTL)

	c.RateLimiter = middlewarepkg.NewRateLimiter(middlewarepkg.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.Burst,
	})

	c.Handlers = &Handlers{
		Auth: authHandlers.NewAuthHandler(c.JWTService, logger.Named("auth")),
		Prompts: promptHandlers.NewHandler(promptHandlers.Deps{
			Sessions:  c.Sessions,
			Orch:      orch,
			Records:   promptStore,
			Variables: variableStore,
			Versions:  versionStore,
			Shares:    shareStore,
			Cache:     c.Cache,
			Logger:    logger.Named("prompts"),
		}),
		Notifications: notificationHandlers.NewWebSocketHandler(c.Hub),
	}
	return c, nil
}

// Start 启动后台任务：会话清理、缓存失效订阅与补偿 Worker
func (c *AppContainer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	sweep := c.Config.Save.SessionTTL / 2
	if sweep <= 0 {
		sweep = time.Minute
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Sessions.Run(ctx, sweep)
	}()

	if c.Redis != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.Cache.Listen(ctx, c.Redis); err != nil {
				c.logger.Warn("缓存失效订阅退出", zap.Error(err))
			}
		}()
	}

	if c.Worker != nil {
		if err := c.Worker.Start(); err != nil {
			return fmt.Errorf("启动 Worker 失败: %w", err)
		}
	}
	return nil
}

// Close 停止后台任务并释放资源
func (c *AppContainer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if c.Worker != nil {
		c.Worker.Shutdown()
	}
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			c.logger.Warn("关闭任务队列客户端失败", zap.Error(err))
		}
	}
	c.RateLimiter.Stop()
	c.Hub.Close()
}
