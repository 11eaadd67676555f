package models

import "time"

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// FlagReason 任务标记原因
// 优先级：completed_late/completed_early > monitoring > 无标记
type FlagReason string

const (
	FlagReasonNone           FlagReason = ""
	FlagReasonMonitoring     FlagReason = "monitoring"
	FlagReasonCompletedLate  FlagReason = "completed_late"
	FlagReasonCompletedEarly FlagReason = "completed_early"
)

// 任务优先级
const (
	TaskPriorityNormal = "normal"
	TaskPriorityHigh   = "high"
)

// TaskInstance 模板在某站点/日期的一次发生（对应 tasks 表）
// 引擎创建的 MonitoringTaskInstance 是 flag_reason=monitoring、
// payload 只含单台设备、且去掉多时段标记的 TaskInstance
type TaskInstance struct {
	TaskID       string      `json:"task_id" db:"task_id"`
	SiteID       string      `json:"site_id" db:"site_id"`
	TemplateID   string      `json:"template_id" db:"template_id"`
	DueAt        time.Time   `json:"due_at" db:"due_at"`
	Daypart      string      `json:"daypart" db:"daypart"`
	Status       TaskStatus  `json:"status" db:"status"`
	Priority     string      `json:"priority" db:"priority"`
	Flagged      bool        `json:"flagged" db:"flagged"`
	FlagReason   FlagReason  `json:"flag_reason,omitempty" db:"flag_reason"` // 空串存为 NULL
	Assignee     *string     `json:"assignee,omitempty" db:"assignee"`
	CustomName   *string     `json:"custom_name,omitempty" db:"custom_name"`
	Instructions *string     `json:"instructions,omitempty" db:"instructions"`
	Payload      TaskPayload `json:"payload" db:"payload"` // JSONB
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}
