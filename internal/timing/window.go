// Package timing 把完成时间相对到期时间分类为 early/on_time/late
// 纯函数，供完成流程决定 flag_reason
package timing

import "time"

// Window 完成时间窗口分类
type Window string

const (
	WindowOnTime Window = "on_time"
	WindowEarly  Window = "early"
	WindowLate   Window = "late"
)

// Classify 把完成时间相对到期时间分类
// 早于 dueAt-earlyGrace 为 early，晚于 dueAt+lateGrace 为 late
func Classify(completedAt, dueAt time.Time, earlyGrace, lateGrace time.Duration) Window {
	if completedAt.Before(dueAt.Add(-earlyGrace)) {
		return WindowEarly
	}
	if completedAt.After(dueAt.Add(lateGrace)) {
		return WindowLate
	}
	return WindowOnTime
}
