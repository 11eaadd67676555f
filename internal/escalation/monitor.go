package escalation

import (
	"context"
	"fmt"
	"time"

	"compliance-engine/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskCreator 任务写入接口
type TaskCreator interface {
	CreateTask(ctx context.Context, siteID string, task *models.TaskInstance) error
}

// Alerter 通知发送接口（best-effort，返回 warning 列表）
type Alerter interface {
	Notify(ctx context.Context, notification *models.Notification) []string
}

// MonitoringScheduler 监控任务调度器
// warning 级超限走 monitor 策略时，为超限设备创建短期复查任务
type MonitoringScheduler struct {
	tasks           TaskCreator
	alerter         Alerter
	defaultDuration time.Duration // 模板未配置监控时长时使用
	logger          *zap.Logger
}

// NewMonitoringScheduler 创建监控任务调度器
func NewMonitoringScheduler(tasks TaskCreator, alerter Alerter, defaultDuration time.Duration, logger *zap.Logger) *MonitoringScheduler {
	if defaultDuration <= 0 {
		defaultDuration = 2 * time.Hour
	}
	return &MonitoringScheduler{
		tasks:           tasks,
		alerter:         alerter,
		defaultDuration: defaultDuration,
		logger:          logger,
	}
}

// Schedule 为单台超限设备创建监控任务
// 监控任务是原任务负载到该设备的单次投影：
//   - flag_reason=monitoring，priority=high，status=pending
//   - 负载过滤到该设备且去掉多时段标记
//   - due = now + 监控时长（模板未配置时用默认值）
//
// 返回创建的任务和通知 warning 列表；通知失败不算错误
func (s *MonitoringScheduler) Schedule(ctx context.Context, origin *models.TaskInstance, asset *models.Asset, durationMinutes int, value *float64) (*models.TaskInstance, []string, error) {
	if origin == nil {
		return nil, nil, fmt.Errorf("origin task is required")
	}
	if asset == nil {
		return nil, nil, fmt.Errorf("asset is required")
	}

	duration := s.defaultDuration
	if durationMinutes > 0 {
		duration = time.Duration(durationMinutes) * time.Minute
	}

	now := time.Now()
	task := &models.TaskInstance{
		TaskID:       uuid.New().String(),
		SiteID:       origin.SiteID,
		TemplateID:   origin.TemplateID,
		DueAt:        now.Add(duration),
		Daypart:      origin.Daypart,
		Status:       models.TaskStatusPending,
		Priority:     models.TaskPriorityHigh,
		Flagged:      true,
		FlagReason:   models.FlagReasonMonitoring,
		Assignee:     origin.Assignee,
		CustomName:   origin.CustomName,
		Instructions: origin.Instructions,
		Payload:      models.ProjectPayloadToAsset(origin.Payload, asset.AssetID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.tasks.CreateTask(ctx, origin.SiteID, task); err != nil {
		return nil, nil, fmt.Errorf("failed to create monitoring task: %w", err)
	}

	s.logger.Info("Monitoring task scheduled",
		zap.String("site_id", origin.SiteID),
		zap.String("task_id", task.TaskID),
		zap.String("origin_task_id", origin.TaskID),
		zap.String("asset_id", asset.AssetID),
		zap.Time("due_at", task.DueAt))

	warnings := []string{}
	if s.alerter != nil {
		body := fmt.Sprintf("%s is out of range, recheck scheduled for %s",
			asset.Name, task.DueAt.Format(time.RFC3339))
		if value != nil {
			body = fmt.Sprintf("%s read %.1f, out of range, recheck scheduled for %s",
				asset.Name, *value, task.DueAt.Format(time.RFC3339))
		}
		warnings = s.alerter.Notify(ctx, &models.Notification{
			NotificationID: uuid.New().String(),
			SiteID:         origin.SiteID,
			Severity:       models.SeverityWarning,
			Title:          "Monitoring task scheduled",
			Body:           body,
			AssetID:        &asset.AssetID,
			TaskID:         &task.TaskID,
			CreatedAt:      now,
		})
	}

	return task, warnings, nil
}

// NotifyDue 到期提醒：监控任务到期仍未完成时推送
func (s *MonitoringScheduler) NotifyDue(ctx context.Context, task *models.TaskInstance) []string {
	if task == nil || s.alerter == nil {
		return nil
	}

	return s.alerter.Notify(ctx, &models.Notification{
		NotificationID: uuid.New().String(),
		SiteID:         task.SiteID,
		Severity:       models.SeverityWarning,
		Title:          "Monitoring task due",
		Body:           fmt.Sprintf("Monitoring task %s was due at %s and is still pending", task.TaskID, task.DueAt.Format(time.RFC3339)),
		TaskID:         &task.TaskID,
		CreatedAt:      time.Now(),
	})
}
