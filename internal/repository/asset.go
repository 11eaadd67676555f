package repository

import (
	"context"
	"database/sql"
	"fmt"

	"compliance-engine/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AssetRepository 设备仓库（引擎只读）
type AssetRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssetRepository 创建设备仓库
func NewAssetRepository(db *sql.DB, logger *zap.Logger) *AssetRepository {
	return &AssetRepository{
		db:     db,
		logger: logger,
	}
}

const assetColumns = `
	asset_id,
	site_id,
	name,
	working_temp_min,
	working_temp_max,
	reactive_contractor_id,
	ppm_contractor_id,
	warranty_contractor_id,
	created_at,
	updated_at
`

func scanAsset(row interface{ Scan(...interface{}) error }) (*models.Asset, error) {
	var asset models.Asset
	var tempMin, tempMax sql.NullFloat64
	var reactive, ppm, warranty sql.NullString

	err := row.Scan(
		&asset.AssetID,
		&asset.SiteID,
		&asset.Name,
		&tempMin,
		&tempMax,
		&reactive,
		&ppm,
		&warranty,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// 处理可空字段
	if tempMin.Valid {
		asset.WorkingTempMin = &tempMin.Float64
	}
	if tempMax.Valid {
		asset.WorkingTempMax = &tempMax.Float64
	}
	if reactive.Valid {
		asset.ReactiveContractorID = &reactive.String
	}
	if ppm.Valid {
		asset.PPMContractorID = &ppm.String
	}
	if warranty.Valid {
		asset.WarrantyContractorID = &warranty.String
	}

	return &asset, nil
}

// GetAsset 根据 asset_id 获取单台设备（需验证 site_id）
func (r *AssetRepository) GetAsset(ctx context.Context, siteID, assetID string) (*models.Asset, error) {
	if siteID == "" {
		return nil, fmt.Errorf("site_id is required")
	}
	if assetID == "" {
		return nil, fmt.Errorf("asset_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM assets
		WHERE asset_id = $1
		  AND site_id = $2
	`, assetColumns)

	asset, err := scanAsset(r.db.QueryRowContext(ctx, query, assetID, siteID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("asset not found: asset_id=%s, site_id=%s", assetID, siteID)
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return asset, nil
}

// GetAssets 批量获取设备，按 asset_id 建索引
// 缺失的 id 不报错：完成记录里允许设备无读数占位
func (r *AssetRepository) GetAssets(ctx context.Context, siteID string, assetIDs []string) (map[string]*models.Asset, error) {
	if siteID == "" {
		return nil, fmt.Errorf("site_id is required")
	}
	if len(assetIDs) == 0 {
		return map[string]*models.Asset{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM assets
		WHERE site_id = $1
		  AND asset_id = ANY($2)
	`, assetColumns)

	rows, err := r.db.QueryContext(ctx, query, siteID, pq.Array(assetIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := map[string]*models.Asset{}
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets[asset.AssetID] = asset
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assets: %w", err)
	}

	return assets, nil
}
