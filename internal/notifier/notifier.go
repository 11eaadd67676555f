package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"compliance-engine/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// NotificationStore 通知持久化接口
type NotificationStore interface {
	CreateNotification(ctx context.Context, siteID string, n *models.Notification) error
}

// Notifier 通知分发器
// 三条通道：数据库站内通知、Redis Streams、外部 webhook
// 全部 best-effort：任何通道失败都降级为 warning，绝不使主流程失败
type Notifier struct {
	store       NotificationStore
	redisClient *redis.Client
	httpClient  *resty.Client
	stream      string // 空则跳过 Streams 通道
	webhookURL  string // 空则跳过 webhook 通道
	logger      *zap.Logger
}

// NewNotifier 创建通知分发器
func NewNotifier(store NotificationStore, redisClient *redis.Client, stream, webhookURL string, timeout time.Duration, logger *zap.Logger) *Notifier {
	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Notifier{
		store:       store,
		redisClient: redisClient,
		httpClient:  httpClient,
		stream:      stream,
		webhookURL:  webhookURL,
		logger:      logger,
	}
}

// Notify 发送通知，返回失败通道的 warning 列表（不返回 error）
func (n *Notifier) Notify(ctx context.Context, notification *models.Notification) []string {
	warnings := []string{}

	if notification == nil {
		return warnings
	}

	// 通道1: 数据库站内通知
	if n.store != nil {
		if err := n.store.CreateNotification(ctx, notification.SiteID, notification); err != nil {
			n.logger.Warn("Failed to persist notification",
				zap.String("notification_id", notification.NotificationID),
				zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("notification persist failed: %v", err))
		}
	}

	// 通道2: Redis Streams 事件发布
	if n.redisClient != nil && n.stream != "" {
		if err := n.publishStream(ctx, notification); err != nil {
			n.logger.Warn("Failed to publish notification to stream",
				zap.String("stream", n.stream),
				zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("notification stream publish failed: %v", err))
		}
	}

	// 通道3: 外部 webhook
	if n.webhookURL != "" {
		if err := n.postWebhook(ctx, notification); err != nil {
			n.logger.Warn("Failed to post notification webhook",
				zap.String("url", n.webhookURL),
				zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("notification webhook failed: %v", err))
		}
	}

	return warnings
}

// publishStream 发布到 Redis Streams（XAdd，限长防止无界增长）
func (n *Notifier) publishStream(ctx context.Context, notification *models.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = n.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{
			"site_id":  notification.SiteID,
			"severity": string(notification.Severity),
			"payload":  string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to xadd notification: %w", err)
	}

	return nil
}

// postWebhook 向外部系统推送通知
func (n *Notifier) postWebhook(ctx context.Context, notification *models.Notification) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(notification).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	return nil
}
