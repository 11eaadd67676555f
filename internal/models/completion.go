package models

import "time"

// EquipmentEntry 完成记录的设备清单条目
// 任务涉及的每台设备都必须出现：有读数带读数，没有就带 ok 占位
type EquipmentEntry struct {
	AssetID    string   `json:"asset_id"`
	AssetName  string   `json:"asset_name,omitempty"`
	ReadingID  *string  `json:"reading_id,omitempty"`
	Value      *float64 `json:"value,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Severity   Severity `json:"severity"`
	OutOfRange bool     `json:"out_of_range"`
}

// CompletionRecord 任务发生的终态产物（对应 completion_records 表）
// 每个 TaskInstance 恰好一条；重复构建按 task_id 幂等合并，不产生重复行
type CompletionRecord struct {
	CompletionID     string           `json:"completion_id" db:"completion_id"`
	SiteID           string           `json:"site_id" db:"site_id"`
	TaskID           string           `json:"task_id" db:"task_id"`
	Equipment        []EquipmentEntry `json:"equipment" db:"equipment"` // JSONB
	Checklist        []ChecklistItem  `json:"checklist,omitempty" db:"checklist"`
	Notes            string           `json:"notes,omitempty" db:"notes"`
	Photos           []PhotoRef       `json:"photos,omitempty" db:"photos"`
	MonitoringTaskID *string          `json:"monitoring_task_id,omitempty" db:"monitoring_task_id"`
	CalloutID        *string          `json:"callout_id,omitempty" db:"callout_id"`
	CompletedBy      string           `json:"completed_by" db:"completed_by"`
	CompletedAt      time.Time        `json:"completed_at" db:"completed_at"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}
