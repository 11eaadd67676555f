package escalation

import (
	"context"
	"fmt"
	"time"

	"compliance-engine/internal/evaluator"
	"compliance-engine/internal/faults"
	"compliance-engine/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FollowUpAction 路由产生的后续动作
type FollowUpAction string

const (
	FollowUpNone    FollowUpAction = "none"
	FollowUpMonitor FollowUpAction = "monitor"
	FollowUpCallout FollowUpAction = "callout"
	FollowUpQueued  FollowUpAction = "queued" // 本次提交已建过派单，排入串行队列
)

// RouteContext 一次升级路由的输入
// 每次调用针对一台设备（或一个文档/结果）；多台设备超限时由调用方逐台路由
type RouteContext struct {
	Task           *models.TaskInstance
	Template       *models.Template
	Asset          *models.Asset // 可为 nil（无关联设备的检查）
	Value          *float64      // measurement 工作流
	Passed         *bool         // inspection 工作流
	DocumentName   string        // document_track 工作流
	DocumentExpiry *time.Time    // document_track 工作流
	CalloutOpen    bool          // 本次提交已创建过派单：后续派单入队而不是直接创建
}

// RouteResult 路由结果
type RouteResult struct {
	Action     FollowUpAction
	RefID      string // monitor → 监控任务 id；callout → 派单 id；其余为空
	Severity   models.Severity
	OutOfRange bool
	Message    string
	Warnings   []string
}

// EscalationRouter 按工作流类型决定并执行升级动作
type EscalationRouter struct {
	scheduler  *MonitoringScheduler
	dispatcher *CalloutDispatcher
	alerter    Alerter
	tolerances evaluator.Tolerances // 站点级默认容差，模板未配置时生效
	logger     *zap.Logger
}

// NewEscalationRouter 创建升级路由器
func NewEscalationRouter(scheduler *MonitoringScheduler, dispatcher *CalloutDispatcher, alerter Alerter, tolerances evaluator.Tolerances, logger *zap.Logger) *EscalationRouter {
	return &EscalationRouter{
		scheduler:  scheduler,
		dispatcher: dispatcher,
		alerter:    alerter,
		tolerances: tolerances,
		logger:     logger,
	}
}

// Route 路由一次升级
// 未知工作流类型返回 ConfigError；调用方上报后按"不升级"继续，
// 合规数据采集不能被配置错误阻塞
func (r *EscalationRouter) Route(ctx context.Context, rc RouteContext) (RouteResult, error) {
	if rc.Task == nil {
		return RouteResult{Action: FollowUpNone}, fmt.Errorf("task is required")
	}
	if rc.Template == nil {
		return RouteResult{Action: FollowUpNone}, fmt.Errorf("template is required")
	}

	switch rc.Template.WorkflowKind {
	case models.WorkflowMeasurement:
		return r.routeMeasurement(ctx, rc)
	case models.WorkflowInspection:
		return r.routeInspection(ctx, rc)
	case models.WorkflowDocumentTrack:
		return r.routeDocument(ctx, rc)
	case models.WorkflowChecklistVerify, models.WorkflowSimpleConfirm:
		// 清单在提交校验阶段把关，这两类没有升级语义
		return RouteResult{Action: FollowUpNone, Severity: models.SeverityOK}, nil
	default:
		return RouteResult{Action: FollowUpNone, Severity: models.SeverityOK},
			faults.Config(fmt.Sprintf("unknown workflow kind: %s", rc.Template.WorkflowKind))
	}
}

// routeMeasurement 数值测量路由
// critical 覆盖 monitor 策略直接派单；callout 策略即使 warning 也派单
func (r *EscalationRouter) routeMeasurement(ctx context.Context, rc RouteContext) (RouteResult, error) {
	if rc.Value == nil {
		return RouteResult{Action: FollowUpNone, Severity: models.SeverityOK}, nil
	}

	eval := evaluator.EvaluateForTemplate(rc.Template, rc.Asset, *rc.Value, r.tolerances)
	result := RouteResult{
		Action:     FollowUpNone,
		Severity:   eval.Severity,
		OutOfRange: eval.OutOfRange,
	}
	if !eval.OutOfRange {
		return result, nil
	}

	esc := rc.Template.Escalation
	if esc == nil {
		return result, faults.Config(fmt.Sprintf("template %s has no escalation config", rc.Template.TemplateID))
	}

	if eval.Severity == models.SeverityCritical || esc.OutOfRangeAction == models.ActionCalloutPolicy {
		return r.executeCallout(ctx, rc, result, r.faultText(rc))
	}
	return r.executeMonitor(ctx, rc, result, esc.MonitoringDurationMinutes)
}

// routeInspection pass/fail 巡检路由
// 巡检没有偏差幅度，fail 按模板策略分支
func (r *EscalationRouter) routeInspection(ctx context.Context, rc RouteContext) (RouteResult, error) {
	if rc.Passed == nil {
		return RouteResult{Action: FollowUpNone, Severity: models.SeverityOK}, nil
	}

	eval := evaluator.EvaluateInspection(*rc.Passed)
	result := RouteResult{
		Action:     FollowUpNone,
		Severity:   eval.Severity,
		OutOfRange: eval.OutOfRange,
	}
	if !eval.OutOfRange {
		return result, nil
	}

	esc := rc.Template.Escalation
	if esc == nil {
		return result, faults.Config(fmt.Sprintf("template %s has no escalation config", rc.Template.TemplateID))
	}

	if esc.OutOfRangeAction == models.ActionCalloutPolicy {
		return r.executeCallout(ctx, rc, result, r.faultText(rc))
	}
	return r.executeMonitor(ctx, rc, result, esc.MonitoringDurationMinutes)
}

// routeDocument 文档有效期路由
// 过期/临近过期只发通知，不派单不建监控任务
func (r *EscalationRouter) routeDocument(ctx context.Context, rc RouteContext) (RouteResult, error) {
	if rc.DocumentExpiry == nil {
		return RouteResult{Action: FollowUpNone, Severity: models.SeverityOK}, nil
	}

	now := time.Now()
	warningDays := rc.Template.DocumentWarningDays
	if warningDays <= 0 {
		warningDays = 30
	}

	var severity models.Severity
	var title string
	switch {
	case rc.DocumentExpiry.Before(now):
		severity = models.SeverityCritical
		title = "Document expired"
	case rc.DocumentExpiry.Before(now.AddDate(0, 0, warningDays)):
		severity = models.SeverityWarning
		title = "Document expiring soon"
	default:
		return RouteResult{Action: FollowUpNone, Severity: models.SeverityOK}, nil
	}

	result := RouteResult{
		Action:     FollowUpNone,
		Severity:   severity,
		OutOfRange: true,
		Message:    fmt.Sprintf("%s expires at %s", rc.DocumentName, rc.DocumentExpiry.Format("2006-01-02")),
	}
	if r.alerter != nil {
		result.Warnings = r.alerter.Notify(ctx, &models.Notification{
			NotificationID: uuid.New().String(),
			SiteID:         rc.Task.SiteID,
			Severity:       severity,
			Title:          title,
			Body:           result.Message,
			TaskID:         &rc.Task.TaskID,
			CreatedAt:      now,
		})
	}
	return result, nil
}

// ============================================
// 动作执行
// ============================================

func (r *EscalationRouter) executeMonitor(ctx context.Context, rc RouteContext, result RouteResult, durationMinutes int) (RouteResult, error) {
	// 监控任务必须绑定一台设备；无设备时退到派单（手工指派路径）
	if rc.Asset == nil {
		r.logger.Warn("Monitor action without asset, falling back to callout",
			zap.String("task_id", rc.Task.TaskID))
		return r.executeCallout(ctx, rc, result, r.faultText(rc))
	}

	task, warnings, err := r.scheduler.Schedule(ctx, rc.Task, rc.Asset, durationMinutes, rc.Value)
	if err != nil {
		return result, err
	}

	result.Action = FollowUpMonitor
	result.RefID = task.TaskID
	result.Message = fmt.Sprintf("recheck scheduled for %s", task.DueAt.Format(time.RFC3339))
	result.Warnings = warnings
	return result, nil
}

func (r *EscalationRouter) executeCallout(ctx context.Context, rc RouteContext, result RouteResult, fault string) (RouteResult, error) {
	priority := models.CalloutPriorityNormal
	if result.Severity == models.SeverityCritical {
		priority = models.CalloutPriorityHigh
	}

	// 串行规则：本次提交已建过派单，后续设备排队等前一单处理完
	if rc.CalloutOpen {
		assetID := ""
		if rc.Asset != nil {
			assetID = rc.Asset.AssetID
		}
		if err := r.dispatcher.Enqueue(ctx, rc.Task.SiteID, assetID, fault, priority); err != nil {
			return result, err
		}
		result.Action = FollowUpQueued
		result.Message = "callout queued behind an open callout"
		return result, nil
	}

	callout, err := r.dispatcher.Dispatch(ctx, rc.Task.SiteID, rc.Asset, fault, priority)
	if err != nil {
		return result, err
	}

	result.Action = FollowUpCallout
	result.RefID = callout.CalloutID
	if callout.ContractorID == nil {
		result.Message = "no contractor assigned, manual follow-up required"
	}
	return result, nil
}

func (r *EscalationRouter) faultText(rc RouteContext) string {
	name := "equipment"
	if rc.Asset != nil {
		name = rc.Asset.Name
	}
	if rc.Value != nil {
		return fmt.Sprintf("%s reading %.1f outside working range", name, *rc.Value)
	}
	if rc.Passed != nil && !*rc.Passed {
		return fmt.Sprintf("%s failed inspection", name)
	}
	return fmt.Sprintf("%s out of range", name)
}
