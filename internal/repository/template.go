package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"compliance-engine/internal/models"

	"go.uber.org/zap"
)

// TemplateRepository 任务模板仓库（引擎只读）
type TemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateRepository 创建模板仓库
func NewTemplateRepository(db *sql.DB, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// GetTemplate 根据 template_id 获取模板（需验证 site_id）
func (r *TemplateRepository) GetTemplate(ctx context.Context, siteID, templateID string) (*models.Template, error) {
	if siteID == "" {
		return nil, fmt.Errorf("site_id is required")
	}
	if templateID == "" {
		return nil, fmt.Errorf("template_id is required")
	}

	query := `
		SELECT
			template_id,
			site_id,
			name,
			workflow_kind,
			evidence_kinds,
			linked_asset_id,
			repeat_field_name,
			hot_holding,
			escalation,
			document_warning_days,
			created_at,
			updated_at
		FROM task_templates
		WHERE template_id = $1
		  AND site_id = $2
	`

	var tpl models.Template
	var evidenceKinds, escalation []byte
	var linkedAssetID, repeatFieldName sql.NullString

	err := r.db.QueryRowContext(ctx, query, templateID, siteID).Scan(
		&tpl.TemplateID,
		&tpl.SiteID,
		&tpl.Name,
		&tpl.WorkflowKind,
		&evidenceKinds,
		&linkedAssetID,
		&repeatFieldName,
		&tpl.HotHolding,
		&escalation,
		&tpl.DocumentWarningDays,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("template not found: template_id=%s, site_id=%s", templateID, siteID)
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	// 处理可空字段
	if linkedAssetID.Valid {
		tpl.LinkedAssetID = &linkedAssetID.String
	}
	if repeatFieldName.Valid {
		tpl.RepeatFieldName = repeatFieldName.String
	}

	// 处理 JSONB 字段
	if len(evidenceKinds) > 0 {
		if err := json.Unmarshal(evidenceKinds, &tpl.EvidenceKinds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence kinds: %w", err)
		}
	}
	if len(escalation) > 0 && string(escalation) != "null" {
		var cfg models.EscalationConfig
		if err := json.Unmarshal(escalation, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal escalation config: %w", err)
		}
		tpl.Escalation = &cfg
	}

	return &tpl, nil
}
