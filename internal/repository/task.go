package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"compliance-engine/internal/models"

	"go.uber.org/zap"
)

// TaskRepository 任务实例仓库
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository 创建任务仓库
func NewTaskRepository(db *sql.DB, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `
	task_id,
	site_id,
	template_id,
	due_at,
	daypart,
	status,
	priority,
	flagged,
	flag_reason,
	assignee,
	custom_name,
	instructions,
	payload,
	created_at,
	updated_at
`

// ============================================
// 基础 CRUD 操作
// ============================================

// CreateTask 创建任务实例（需验证 site_id）
func (r *TaskRepository) CreateTask(ctx context.Context, siteID string, task *models.TaskInstance) error {
	if siteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if task == nil {
		return fmt.Errorf("task is required")
	}
	if task.SiteID != siteID {
		return fmt.Errorf("task.site_id must match site_id parameter")
	}

	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO tasks (%s) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`, taskColumns)

	_, err = r.db.ExecContext(ctx, query,
		task.TaskID,
		task.SiteID,
		task.TemplateID,
		task.DueAt,
		task.Daypart,
		task.Status,
		task.Priority,
		task.Flagged,
		nullIfEmpty(string(task.FlagReason)),
		task.Assignee,
		task.CustomName,
		task.Instructions,
		payloadJSON,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

func scanTask(row interface{ Scan(...interface{}) error }) (*models.TaskInstance, error) {
	var task models.TaskInstance
	var flagReason, assignee, customName, instructions sql.NullString
	var payload []byte

	err := row.Scan(
		&task.TaskID,
		&task.SiteID,
		&task.TemplateID,
		&task.DueAt,
		&task.Daypart,
		&task.Status,
		&task.Priority,
		&task.Flagged,
		&flagReason,
		&assignee,
		&customName,
		&instructions,
		&payload,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// 处理可空字段
	if flagReason.Valid {
		task.FlagReason = models.FlagReason(flagReason.String)
	}
	if assignee.Valid {
		task.Assignee = &assignee.String
	}
	if customName.Valid {
		task.CustomName = &customName.String
	}
	if instructions.Valid {
		task.Instructions = &instructions.String
	}

	// 处理 JSONB payload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
		}
	}

	return &task, nil
}

// GetTask 根据 task_id 获取任务（需验证 site_id）
func (r *TaskRepository) GetTask(ctx context.Context, siteID, taskID string) (*models.TaskInstance, error) {
	if siteID == "" {
		return nil, fmt.Errorf("site_id is required")
	}
	if taskID == "" {
		return nil, fmt.Errorf("task_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tasks
		WHERE task_id = $1
		  AND site_id = $2
	`, taskColumns)

	task, err := scanTask(r.db.QueryRowContext(ctx, query, taskID, siteID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task not found: task_id=%s, site_id=%s", taskID, siteID)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// UpdateTask 更新任务（需验证 site_id，支持部分更新）
// updates 是一个 map，包含要更新的字段
func (r *TaskRepository) UpdateTask(ctx context.Context, siteID, taskID string, updates map[string]interface{}) error {
	if siteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if taskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if len(updates) == 0 {
		return fmt.Errorf("updates cannot be empty")
	}

	// 允许更新的字段
	allowedFields := map[string]bool{
		"status":      true,
		"priority":    true,
		"flagged":     true,
		"flag_reason": true,
		"due_at":      true,
		"payload":     true,
	}

	setParts := []string{}
	args := []interface{}{}
	argN := 1

	for field, value := range updates {
		if !allowedFields[field] {
			return fmt.Errorf("field '%s' is not allowed to update", field)
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", field, argN))
		args = append(args, value)
		argN++
	}

	// 自动更新 updated_at
	setParts = append(setParts, "updated_at = CURRENT_TIMESTAMP")

	args = append(args, taskID, siteID)
	query := fmt.Sprintf(`
		UPDATE tasks
		SET %s
		WHERE task_id = $%d AND site_id = $%d
	`, strings.Join(setParts, ", "), argN, argN+1)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: task_id=%s, site_id=%s", taskID, siteID)
	}

	return nil
}

// ============================================
// 查询操作
// ============================================

// ListDueMonitoringTasks 获取已到期、待完成的监控任务（用于到期提醒轮询）
func (r *TaskRepository) ListDueMonitoringTasks(ctx context.Context, siteID string, cutoff time.Time) ([]*models.TaskInstance, error) {
	if siteID == "" {
		return []*models.TaskInstance{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tasks
		WHERE site_id = $1
		  AND status = 'pending'
		  AND flag_reason = 'monitoring'
		  AND due_at <= $2
		ORDER BY due_at ASC
	`, taskColumns)

	rows, err := r.db.QueryContext(ctx, query, siteID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query due monitoring tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.TaskInstance{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// nullIfEmpty 空串转 NULL
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
