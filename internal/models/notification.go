package models

import "time"

// Notification 站内通知（对应 notifications 表）
// 发送是 best-effort：失败不得阻塞也不得使主操作失败
type Notification struct {
	NotificationID string    `json:"notification_id" db:"notification_id"`
	SiteID         string    `json:"site_id" db:"site_id"`
	Severity       Severity  `json:"severity" db:"severity"`
	Title          string    `json:"title" db:"title"`
	Body           string    `json:"body" db:"body"`
	AssetID        *string   `json:"asset_id,omitempty" db:"asset_id"`
	TaskID         *string   `json:"task_id,omitempty" db:"task_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
