package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"compliance-engine/internal/models"

	"go.uber.org/zap"
)

// CompletionRepository 完成记录仓库
// 每个任务恰好一条记录：按 task_id 幂等合并（upsert），重复构建不产生重复行
type CompletionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompletionRepository 创建完成记录仓库
func NewCompletionRepository(db *sql.DB, logger *zap.Logger) *CompletionRepository {
	return &CompletionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateCompletionRecord 写入完成记录（按 task_id 幂等）
// 已存在时合并更新并返回原 completion_id
func (r *CompletionRepository) CreateCompletionRecord(ctx context.Context, siteID string, rec *models.CompletionRecord) (string, error) {
	if siteID == "" {
		return "", fmt.Errorf("site_id is required")
	}
	if rec == nil {
		return "", fmt.Errorf("record is required")
	}
	if rec.SiteID != siteID {
		return "", fmt.Errorf("record.site_id must match site_id parameter")
	}
	if rec.TaskID == "" {
		return "", fmt.Errorf("task_id is required")
	}

	equipmentJSON, err := json.Marshal(rec.Equipment)
	if err != nil {
		return "", fmt.Errorf("failed to marshal equipment: %w", err)
	}
	checklistJSON, err := json.Marshal(rec.Checklist)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checklist: %w", err)
	}
	photosJSON, err := json.Marshal(rec.Photos)
	if err != nil {
		return "", fmt.Errorf("failed to marshal photos: %w", err)
	}

	query := `
		INSERT INTO completion_records (
			completion_id,
			site_id,
			task_id,
			equipment,
			checklist,
			notes,
			photos,
			monitoring_task_id,
			callout_id,
			completed_by,
			completed_at,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (task_id) DO UPDATE SET
			equipment = EXCLUDED.equipment,
			checklist = EXCLUDED.checklist,
			notes = EXCLUDED.notes,
			photos = EXCLUDED.photos,
			monitoring_task_id = EXCLUDED.monitoring_task_id,
			callout_id = EXCLUDED.callout_id,
			completed_by = EXCLUDED.completed_by,
			completed_at = EXCLUDED.completed_at,
			updated_at = CURRENT_TIMESTAMP
		RETURNING completion_id
	`

	var completionID string
	err = r.db.QueryRowContext(ctx, query,
		rec.CompletionID,
		rec.SiteID,
		rec.TaskID,
		equipmentJSON,
		checklistJSON,
		rec.Notes,
		photosJSON,
		rec.MonitoringTaskID,
		rec.CalloutID,
		rec.CompletedBy,
		rec.CompletedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	).Scan(&completionID)
	if err != nil {
		return "", fmt.Errorf("failed to create completion record: %w", err)
	}

	return completionID, nil
}

// GetCompletionRecordByTask 根据 task_id 获取完成记录
func (r *CompletionRepository) GetCompletionRecordByTask(ctx context.Context, siteID, taskID string) (*models.CompletionRecord, error) {
	if siteID == "" {
		return nil, fmt.Errorf("site_id is required")
	}
	if taskID == "" {
		return nil, fmt.Errorf("task_id is required")
	}

	query := `
		SELECT
			completion_id,
			site_id,
			task_id,
			equipment,
			checklist,
			notes,
			photos,
			monitoring_task_id,
			callout_id,
			completed_by,
			completed_at,
			created_at,
			updated_at
		FROM completion_records
		WHERE site_id = $1
		  AND task_id = $2
	`

	var rec models.CompletionRecord
	var equipment, checklist, photos []byte
	var monitoringTaskID, calloutID sql.NullString

	err := r.db.QueryRowContext(ctx, query, siteID, taskID).Scan(
		&rec.CompletionID,
		&rec.SiteID,
		&rec.TaskID,
		&equipment,
		&checklist,
		&rec.Notes,
		&photos,
		&monitoringTaskID,
		&calloutID,
		&rec.CompletedBy,
		&rec.CompletedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("completion record not found: task_id=%s, site_id=%s", taskID, siteID)
		}
		return nil, fmt.Errorf("failed to get completion record: %w", err)
	}

	// 处理可空字段
	if monitoringTaskID.Valid {
		rec.MonitoringTaskID = &monitoringTaskID.String
	}
	if calloutID.Valid {
		rec.CalloutID = &calloutID.String
	}

	// 处理 JSONB 字段
	if len(equipment) > 0 && string(equipment) != "null" {
		if err := json.Unmarshal(equipment, &rec.Equipment); err != nil {
			return nil, fmt.Errorf("failed to unmarshal equipment: %w", err)
		}
	}
	if len(checklist) > 0 && string(checklist) != "null" {
		if err := json.Unmarshal(checklist, &rec.Checklist); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checklist: %w", err)
		}
	}
	if len(photos) > 0 && string(photos) != "null" {
		if err := json.Unmarshal(photos, &rec.Photos); err != nil {
			return nil, fmt.Errorf("failed to unmarshal photos: %w", err)
		}
	}

	return &rec, nil
}
