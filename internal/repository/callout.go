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

// CalloutRepository 承包商派单仓库
type CalloutRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCalloutRepository 创建派单仓库
func NewCalloutRepository(db *sql.DB, logger *zap.Logger) *CalloutRepository {
	return &CalloutRepository{
		db:     db,
		logger: logger,
	}
}

// ============================================
// 基础 CRUD 操作
// ============================================

// CreateCallout 创建派单（需验证 site_id）
// asset_id / contractor_id 允许为空：承包商指派转为手工跟进
func (r *CalloutRepository) CreateCallout(ctx context.Context, siteID string, callout *models.Callout) error {
	if siteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if callout == nil {
		return fmt.Errorf("callout is required")
	}
	if callout.SiteID != siteID {
		return fmt.Errorf("callout.site_id must match site_id parameter")
	}

	documentsJSON, err := json.Marshal(callout.Documents)
	if err != nil {
		return fmt.Errorf("failed to marshal callout documents: %w", err)
	}

	query := `
		INSERT INTO callouts (
			callout_id,
			site_id,
			asset_id,
			contractor_id,
			priority,
			fault_description,
			status,
			repair_summary,
			documents,
			notes,
			closed_at,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		callout.CalloutID,
		callout.SiteID,
		callout.AssetID,
		callout.ContractorID,
		callout.Priority,
		callout.FaultDescription,
		callout.Status,
		callout.RepairSummary,
		documentsJSON,
		callout.Notes,
		callout.ClosedAt,
		callout.CreatedAt,
		callout.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create callout: %w", err)
	}

	return nil
}

// GetCallout 根据 callout_id 获取派单（需验证 site_id）
func (r *CalloutRepository) GetCallout(ctx context.Context, siteID, calloutID string) (*models.Callout, error) {
	if siteID == "" {
		return nil, fmt.Errorf("site_id is required")
	}
	if calloutID == "" {
		return nil, fmt.Errorf("callout_id is required")
	}

	query := `
		SELECT
			callout_id,
			site_id,
			asset_id,
			contractor_id,
			priority,
			fault_description,
			status,
			repair_summary,
			documents,
			notes,
			closed_at,
			created_at,
			updated_at
		FROM callouts
		WHERE callout_id = $1
		  AND site_id = $2
	`

	var callout models.Callout
	var assetID, contractorID, repairSummary, notes sql.NullString
	var closedAt sql.NullTime
	var documents []byte

	err := r.db.QueryRowContext(ctx, query, calloutID, siteID).Scan(
		&callout.CalloutID,
		&callout.SiteID,
		&assetID,
		&contractorID,
		&callout.Priority,
		&callout.FaultDescription,
		&callout.Status,
		&repairSummary,
		&documents,
		&notes,
		&closedAt,
		&callout.CreatedAt,
		&callout.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("callout not found: callout_id=%s, site_id=%s", calloutID, siteID)
		}
		return nil, fmt.Errorf("failed to get callout: %w", err)
	}

	// 处理可空字段
	if assetID.Valid {
		callout.AssetID = &assetID.String
	}
	if contractorID.Valid {
		callout.ContractorID = &contractorID.String
	}
	if repairSummary.Valid {
		callout.RepairSummary = &repairSummary.String
	}
	if notes.Valid {
		callout.Notes = &notes.String
	}
	if closedAt.Valid {
		callout.ClosedAt = &closedAt.Time
	}

	// 处理 JSONB 字段
	if len(documents) > 0 && string(documents) != "null" {
		if err := json.Unmarshal(documents, &callout.Documents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal callout documents: %w", err)
		}
	}

	return &callout, nil
}

// UpdateCallout 更新派单（需验证 site_id，支持部分更新）
// updates 是一个 map，包含要更新的字段
func (r *CalloutRepository) UpdateCallout(ctx context.Context, siteID, calloutID string, updates map[string]interface{}) error {
	if siteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if calloutID == "" {
		return fmt.Errorf("callout_id is required")
	}
	if len(updates) == 0 {
		return fmt.Errorf("updates cannot be empty")
	}

	// 允许更新的字段
	allowedFields := map[string]bool{
		"status":            true,
		"contractor_id":     true,
		"priority":          true,
		"fault_description": true,
		"repair_summary":    true,
		"documents":         true,
		"notes":             true,
		"closed_at":         true,
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

	setParts = append(setParts, "updated_at = CURRENT_TIMESTAMP")

	args = append(args, calloutID, siteID)
	query := fmt.Sprintf(`
		UPDATE callouts
		SET %s
		WHERE callout_id = $%d AND site_id = $%d
	`, strings.Join(setParts, ", "), argN, argN+1)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update callout: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("callout not found: callout_id=%s, site_id=%s", calloutID, siteID)
	}

	return nil
}

// ============================================
// 状态管理
// ============================================

// CloseCallout 关闭派单（主路径）
// 只关闭 open 状态的派单，同时写入维修摘要和附件
func (r *CalloutRepository) CloseCallout(ctx context.Context, siteID, calloutID, repairSummary string, documents []string) error {
	if siteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if calloutID == "" {
		return fmt.Errorf("callout_id is required")
	}
	if repairSummary == "" {
		return fmt.Errorf("repair_summary is required")
	}

	documentsJSON, err := json.Marshal(documents)
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}

	query := `
		UPDATE callouts
		SET status = 'closed',
		    repair_summary = $1,
		    documents = $2,
		    closed_at = $3,
		    updated_at = CURRENT_TIMESTAMP
		WHERE callout_id = $4
		  AND site_id = $5
		  AND status = 'open'
	`

	result, err := r.db.ExecContext(ctx, query, repairSummary, documentsJSON, time.Now(), calloutID, siteID)
	if err != nil {
		return fmt.Errorf("failed to close callout: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("callout not found or already closed: callout_id=%s, site_id=%s", calloutID, siteID)
	}

	return nil
}
