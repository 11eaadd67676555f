package escalation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// QueueEntry 派单队列条目
// 入队时只存最小上下文，出队时按当前数据重建（承包商指派可能已变更）
type QueueEntry struct {
	AssetID  string `json:"asset_id,omitempty"`
	Fault    string `json:"fault"`
	Priority string `json:"priority"`
}

// CalloutQueue 站点级派单 FIFO 队列（Redis List）
// 超限设备逐台排队，前一单处理后才弹出下一台，保证派单串行
type CalloutQueue struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewCalloutQueue 创建派单队列
func NewCalloutQueue(client *redis.Client, keyPrefix string, logger *zap.Logger) *CalloutQueue {
	if keyPrefix == "" {
		keyPrefix = "callout:queue:"
	}
	return &CalloutQueue{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (q *CalloutQueue) key(siteID string) string {
	return q.keyPrefix + siteID
}

// Push 入队（尾插，FIFO）
func (q *CalloutQueue) Push(ctx context.Context, siteID string, entry QueueEntry) error {
	if siteID == "" {
		return fmt.Errorf("site_id is required")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	if err := q.client.RPush(ctx, q.key(siteID), data).Err(); err != nil {
		return fmt.Errorf("failed to push queue entry: %w", err)
	}

	q.logger.Debug("Callout queue entry pushed",
		zap.String("site_id", siteID),
		zap.String("asset_id", entry.AssetID))

	return nil
}

// Pop 出队（头弹）
// 队列为空返回 (nil, nil)，不是错误
func (q *CalloutQueue) Pop(ctx context.Context, siteID string) (*QueueEntry, error) {
	if siteID == "" {
		return nil, fmt.Errorf("site_id is required")
	}

	data, err := q.client.LPop(ctx, q.key(siteID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop queue entry: %w", err)
	}

	var entry QueueEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
	}

	return &entry, nil
}

// Len 队列长度
func (q *CalloutQueue) Len(ctx context.Context, siteID string) (int64, error) {
	if siteID == "" {
		return 0, fmt.Errorf("site_id is required")
	}

	n, err := q.client.LLen(ctx, q.key(siteID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return n, nil
}

// Clear 清空站点队列
func (q *CalloutQueue) Clear(ctx context.Context, siteID string) error {
	if siteID == "" {
		return fmt.Errorf("site_id is required")
	}

	if err := q.client.Del(ctx, q.key(siteID)).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}
