package repository

import (
	"context"
	"database/sql"
	"fmt"

	"compliance-engine/internal/models"

	"go.uber.org/zap"
)

// ReadingRepository 读数仓库（只追加）
type ReadingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingRepository 创建读数仓库
func NewReadingRepository(db *sql.DB, logger *zap.Logger) *ReadingRepository {
	return &ReadingRepository{
		db:     db,
		logger: logger,
	}
}

// InsertReadings 批量写入读数（单事务，需验证 site_id）
// 读数必须先于完成记录持久化，完成记录才能引用它们
func (r *ReadingRepository) InsertReadings(ctx context.Context, siteID string, readings []*models.Reading) error {
	if siteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO readings (
			reading_id,
			site_id,
			task_id,
			asset_id,
			value,
			unit,
			severity,
			out_of_range,
			recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare reading insert: %w", err)
	}
	defer stmt.Close()

	for _, reading := range readings {
		if reading.SiteID != siteID {
			return fmt.Errorf("reading.site_id must match site_id parameter")
		}
		_, err := stmt.ExecContext(ctx,
			reading.ReadingID,
			reading.SiteID,
			reading.TaskID,
			reading.AssetID,
			reading.Value,
			reading.Unit,
			reading.Severity,
			reading.OutOfRange,
			reading.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit readings: %w", err)
	}

	return nil
}

// ListReadingsByTask 获取任务的读数列表
func (r *ReadingRepository) ListReadingsByTask(ctx context.Context, siteID, taskID string) ([]*models.Reading, error) {
	if siteID == "" {
		return nil, fmt.Errorf("site_id is required")
	}
	if taskID == "" {
		return nil, fmt.Errorf("task_id is required")
	}

	query := `
		SELECT
			reading_id,
			site_id,
			task_id,
			asset_id,
			value,
			unit,
			severity,
			out_of_range,
			recorded_at
		FROM readings
		WHERE site_id = $1
		  AND task_id = $2
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, siteID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []*models.Reading{}
	for rows.Next() {
		var reading models.Reading
		err := rows.Scan(
			&reading.ReadingID,
			&reading.SiteID,
			&reading.TaskID,
			&reading.AssetID,
			&reading.Value,
			&reading.Unit,
			&reading.Severity,
			&reading.OutOfRange,
			&reading.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, &reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}
