package models

import "time"

// Asset 受监控设备（对应 assets 表）
// 工作温度范围可为空，且允许全负数区间（如冷冻柜 -20 ~ -18）
type Asset struct {
	AssetID              string    `json:"asset_id" db:"asset_id"`
	SiteID               string    `json:"site_id" db:"site_id"`
	Name                 string    `json:"name" db:"name"`
	WorkingTempMin       *float64  `json:"working_temp_min,omitempty" db:"working_temp_min"`
	WorkingTempMax       *float64  `json:"working_temp_max,omitempty" db:"working_temp_max"`
	ReactiveContractorID *string   `json:"reactive_contractor_id,omitempty" db:"reactive_contractor_id"`
	PPMContractorID      *string   `json:"ppm_contractor_id,omitempty" db:"ppm_contractor_id"`
	WarrantyContractorID *string   `json:"warranty_contractor_id,omitempty" db:"warranty_contractor_id"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}
