package models

import "time"

// Severity 读数/结果的严重级别
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Reading 一次任务中针对一台设备的一条测量（对应 readings 表）
// 由引擎在完成时创建，之后只追加不修改
type Reading struct {
	ReadingID  string    `json:"reading_id" db:"reading_id"`
	SiteID     string    `json:"site_id" db:"site_id"`
	TaskID     string    `json:"task_id" db:"task_id"`
	AssetID    string    `json:"asset_id" db:"asset_id"`
	Value      float64   `json:"value" db:"value"`
	Unit       string    `json:"unit" db:"unit"`
	Severity   Severity  `json:"severity" db:"severity"`
	OutOfRange bool      `json:"out_of_range" db:"out_of_range"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}
