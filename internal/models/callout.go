package models

import "time"

// CalloutStatus 派单状态
type CalloutStatus string

const (
	CalloutStatusOpen   CalloutStatus = "open"
	CalloutStatusClosed CalloutStatus = "closed"
)

// 派单优先级
const (
	CalloutPriorityNormal = "normal"
	CalloutPriorityHigh   = "high"
	CalloutPriorityUrgent = "urgent"
)

// Callout 承包商派单（对应 callouts 表）
// asset_id 和 contractor_id 都可为空：无关联设备的检查（消防报警、
// 应急照明）走手工录入承包商的路径，不是错误
type Callout struct {
	CalloutID        string        `json:"callout_id" db:"callout_id"`
	SiteID           string        `json:"site_id" db:"site_id"`
	AssetID          *string       `json:"asset_id,omitempty" db:"asset_id"`
	ContractorID     *string       `json:"contractor_id,omitempty" db:"contractor_id"`
	Priority         string        `json:"priority" db:"priority"`
	FaultDescription string        `json:"fault_description" db:"fault_description"`
	Status           CalloutStatus `json:"status" db:"status"`
	RepairSummary    *string       `json:"repair_summary,omitempty" db:"repair_summary"` // 仅关闭时设置
	Documents        []string      `json:"documents,omitempty" db:"documents"`           // JSONB，关闭时附加
	Notes            *string       `json:"notes,omitempty" db:"notes"`
	ClosedAt         *time.Time    `json:"closed_at,omitempty" db:"closed_at"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}
