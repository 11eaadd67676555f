package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"compliance-engine/internal/config"
	"compliance-engine/internal/database"
	"compliance-engine/internal/escalation"
	"compliance-engine/internal/evaluator"
	"compliance-engine/internal/notifier"
	"compliance-engine/internal/repository"
	"compliance-engine/internal/storage"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EngineService 升级引擎服务
// 负责装配全部依赖并运行监控到期提醒轮询
type EngineService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client

	// 仓库
	assetRepo        *repository.AssetRepository
	templateRepo     *repository.TemplateRepository
	taskRepo         *repository.TaskRepository
	readingRepo      *repository.ReadingRepository
	calloutRepo      *repository.CalloutRepository
	completionRepo   *repository.CompletionRepository
	notificationRepo *repository.NotificationRepository

	// 组件
	notifier   *notifier.Notifier
	uploader   *storage.MinioUploader
	queue      *escalation.CalloutQueue
	scheduler  *escalation.MonitoringScheduler
	dispatcher *escalation.CalloutDispatcher
	router     *escalation.EscalationRouter
	completion *CompletionService

	stopCh chan struct{}
}

// NewEngineService 创建引擎服务
func NewEngineService(cfg *config.Config, logger *zap.Logger) (*EngineService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 初始化 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	s := &EngineService{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		stopCh:      make(chan struct{}),
	}

	// 仓库
	s.assetRepo = repository.NewAssetRepository(db, logger)
	s.templateRepo = repository.NewTemplateRepository(db, logger)
	s.taskRepo = repository.NewTaskRepository(db, logger)
	s.readingRepo = repository.NewReadingRepository(db, logger)
	s.calloutRepo = repository.NewCalloutRepository(db, logger)
	s.completionRepo = repository.NewCompletionRepository(db, logger)
	s.notificationRepo = repository.NewNotificationRepository(db, logger)

	// 通知与存储
	s.notifier = notifier.NewNotifier(
		s.notificationRepo,
		redisClient,
		cfg.Notify.Stream,
		cfg.Notify.WebhookURL,
		time.Duration(cfg.Notify.TimeoutSeconds)*time.Second,
		logger,
	)
	s.uploader, err = storage.NewMinioUploader(
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.Bucket,
		cfg.Storage.UseSSL,
		logger,
	)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("failed to initialize photo storage: %w", err)
	}

	// 升级组件
	tolerances := evaluator.Tolerances{
		Warning:  cfg.Engine.Tolerances.Warning,
		Critical: cfg.Engine.Tolerances.Critical,
	}
	s.queue = escalation.NewCalloutQueue(redisClient, cfg.Engine.Queue.KeyPrefix, logger)
	s.scheduler = escalation.NewMonitoringScheduler(
		s.taskRepo,
		s.notifier,
		time.Duration(cfg.Engine.Monitoring.DefaultDurationMinutes)*time.Minute,
		logger,
	)
	s.dispatcher = escalation.NewCalloutDispatcher(s.calloutRepo, s.assetRepo, s.queue, logger)
	s.router = escalation.NewEscalationRouter(s.scheduler, s.dispatcher, s.notifier, tolerances, logger)

	s.completion = NewCompletionService(
		s.taskRepo,
		s.templateRepo,
		s.assetRepo,
		s.readingRepo,
		s.completionRepo,
		s.router,
		s.scheduler,
		s.dispatcher,
		s.uploader,
		tolerances,
		time.Duration(cfg.Engine.Timing.EarlyGraceMinutes)*time.Minute,
		time.Duration(cfg.Engine.Timing.LateGraceMinutes)*time.Minute,
		logger,
	)

	logger.Info("Engine service initialized",
		zap.String("db_host", cfg.Database.Host),
		zap.String("redis_addr", cfg.Redis.Addr))

	return s, nil
}

// Completion 对外暴露完成服务
func (s *EngineService) Completion() *CompletionService {
	return s.completion
}

// Start 启动监控到期提醒轮询
// 到期仍 pending 的监控任务逐个推送 warning 通知；阻塞直到 ctx 取消或 Stop
func (s *EngineService) Start(ctx context.Context, siteID string) error {
	if siteID == "" {
		return fmt.Errorf("site_id is required")
	}

	interval := time.Duration(s.config.Engine.PollInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	s.logger.Info("Engine service started",
		zap.String("site_id", siteID),
		zap.Duration("poll_interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Engine service stopping: context cancelled")
			return ctx.Err()
		case <-s.stopCh:
			s.logger.Info("Engine service stopping")
			return nil
		case <-ticker.C:
			s.pollDueMonitoringTasks(ctx, siteID)
		}
	}
}

// pollDueMonitoringTasks 轮询一轮到期监控任务
func (s *EngineService) pollDueMonitoringTasks(ctx context.Context, siteID string) {
	tasks, err := s.taskRepo.ListDueMonitoringTasks(ctx, siteID, time.Now())
	if err != nil {
		s.logger.Error("Failed to list due monitoring tasks", zap.Error(err))
		return
	}
	if len(tasks) == 0 {
		return
	}

	s.logger.Info("Due monitoring tasks found",
		zap.String("site_id", siteID),
		zap.Int("count", len(tasks)))

	for _, task := range tasks {
		for _, w := range s.scheduler.NotifyDue(ctx, task) {
			s.logger.Warn("Due reminder degraded",
				zap.String("task_id", task.TaskID),
				zap.String("warning", w))
		}
	}
}

// Stop 停止服务并释放连接
func (s *EngineService) Stop() {
	close(s.stopCh)

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	s.logger.Info("Engine service stopped")
}
