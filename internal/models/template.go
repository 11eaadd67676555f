package models

import "time"

// WorkflowKind 任务模板的工作流类型
type WorkflowKind string

const (
	WorkflowMeasurement     WorkflowKind = "measurement"      // 数值测量（温度等）
	WorkflowInspection      WorkflowKind = "inspection"       // pass/fail 巡检
	WorkflowChecklistVerify WorkflowKind = "checklist_verify" // 核对清单（含照片/签名证据）
	WorkflowDocumentTrack   WorkflowKind = "document_track"   // 文档有效期跟踪
	WorkflowSimpleConfirm   WorkflowKind = "simple_confirm"   // 简单确认
)

// EvidenceKind 模板要求的证据类型
type EvidenceKind string

const (
	EvidenceTemperature EvidenceKind = "temperature"
	EvidencePassFail    EvidenceKind = "pass_fail"
	EvidenceChecklist   EvidenceKind = "checklist"
	EvidenceText        EvidenceKind = "text"
	EvidencePhoto       EvidenceKind = "photo"
)

// OutOfRangeAction 超限后的升级策略
type OutOfRangeAction string

const (
	ActionMonitorPolicy OutOfRangeAction = "monitor" // 安排短期复查任务
	ActionCalloutPolicy OutOfRangeAction = "callout" // 直接派单给承包商
)

// EscalationConfig 模板的升级配置（alarm 策略的 JSONB 结构）
type EscalationConfig struct {
	OutOfRangeAction          OutOfRangeAction `json:"out_of_range_action"`
	MonitoringDurationMinutes int              `json:"monitoring_duration_minutes"`
	WarningTolerance          float64          `json:"warning_tolerance"`
	CriticalTolerance         float64          `json:"critical_tolerance"`
}

// Template 任务模板（对应 task_templates 表）
// 定义证据要求和升级策略；引擎只读
type Template struct {
	TemplateID          string            `json:"template_id" db:"template_id"`
	SiteID              string            `json:"site_id" db:"site_id"`
	Name                string            `json:"name" db:"name"`
	WorkflowKind        WorkflowKind      `json:"workflow_kind" db:"workflow_kind"`
	EvidenceKinds       []EvidenceKind    `json:"evidence_kinds" db:"evidence_kinds"` // JSONB
	LinkedAssetID       *string           `json:"linked_asset_id,omitempty" db:"linked_asset_id"`
	RepeatFieldName     string            `json:"repeat_field_name" db:"repeat_field_name"` // 任务覆盖多台设备时的可重复字段名
	HotHolding          bool              `json:"hot_holding" db:"hot_holding"`             // 热保温检查：忽略设备限值，用固定下限
	Escalation          *EscalationConfig `json:"escalation,omitempty" db:"escalation"`     // JSONB，可为空（配置缺失时不升级）
	DocumentWarningDays int               `json:"document_warning_days" db:"document_warning_days"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" db:"updated_at"`
}
