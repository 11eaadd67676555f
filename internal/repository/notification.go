package repository

import (
	"context"
	"database/sql"
	"fmt"

	"compliance-engine/internal/models"

	"go.uber.org/zap"
)

// NotificationRepository 通知仓库
// 通知是 best-effort：调用方捕获错误降级为 warning，不中断主流程
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository 创建通知仓库
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// CreateNotification 写入通知
func (r *NotificationRepository) CreateNotification(ctx context.Context, siteID string, n *models.Notification) error {
	if siteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if n == nil {
		return fmt.Errorf("notification is required")
	}
	if n.SiteID != siteID {
		return fmt.Errorf("notification.site_id must match site_id parameter")
	}

	query := `
		INSERT INTO notifications (
			notification_id,
			site_id,
			severity,
			title,
			body,
			asset_id,
			task_id,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		n.NotificationID,
		n.SiteID,
		n.Severity,
		n.Title,
		n.Body,
		n.AssetID,
		n.TaskID,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}
