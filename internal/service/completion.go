package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"compliance-engine/internal/escalation"
	"compliance-engine/internal/evaluator"
	"compliance-engine/internal/faults"
	"compliance-engine/internal/models"
	"compliance-engine/internal/storage"
	"compliance-engine/internal/timing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================
// 协作方接口
// ============================================

// TaskStore 任务读写接口
type TaskStore interface {
	GetTask(ctx context.Context, siteID, taskID string) (*models.TaskInstance, error)
	UpdateTask(ctx context.Context, siteID, taskID string, updates map[string]interface{}) error
}

// TemplateStore 模板读取接口
type TemplateStore interface {
	GetTemplate(ctx context.Context, siteID, templateID string) (*models.Template, error)
}

// AssetStore 设备读取接口
type AssetStore interface {
	GetAsset(ctx context.Context, siteID, assetID string) (*models.Asset, error)
	GetAssets(ctx context.Context, siteID string, assetIDs []string) (map[string]*models.Asset, error)
}

// ReadingStore 读数写入接口
type ReadingStore interface {
	InsertReadings(ctx context.Context, siteID string, readings []*models.Reading) error
}

// CompletionStore 完成记录写入接口
type CompletionStore interface {
	CreateCompletionRecord(ctx context.Context, siteID string, rec *models.CompletionRecord) (string, error)
}

// ============================================
// 请求/结果类型
// ============================================

// PhotoUpload 待上传的证据照片
type PhotoUpload struct {
	PhotoID     string
	ObjectName  string
	ContentType string
	Data        []byte
}

// FormPayload 一次完成提交的表单内容
type FormPayload struct {
	SelectedAssets []string
	Temperatures   []models.TemperatureEvidence
	PassFail       []models.PassFailEvidence
	RepeatEntries  []models.RepeatEntry
	Checklist      []models.ChecklistItem
	Documents      []models.DocumentRef
	Photos         []PhotoUpload
	Notes          string
	CompletedBy    string
	CompletedAt    time.Time // 零值按当前时间处理
}

// SubmitResult 提交结果
// Warnings 承载软失败（通知、派单关闭回退），不阻塞提交
type SubmitResult struct {
	CompletionID     string
	TaskID           string
	FlagReason       models.FlagReason
	Window           timing.Window
	Readings         []*models.Reading
	MonitoringTaskID *string
	CalloutID        *string
	Warnings         []string
}

// ActionParams 操作员手动选择升级动作时的参数
type ActionParams struct {
	DurationMinutes int      // monitor：监控时长，<=0 用模板/默认值
	Fault           string   // callout：故障描述
	Priority        string   // callout：优先级，空为 normal
	Value           *float64 // 触发读数，用于通知文案
}

// ============================================
// CompletionService
// ============================================

// CompletionService 任务完成流程的唯一入口
// 引擎只在显式调用时创建实体：取消弹窗不调用任何方法，也就什么都不会创建
type CompletionService struct {
	tasks       TaskStore
	templates   TemplateStore
	assets      AssetStore
	readings    ReadingStore
	completions CompletionStore
	router      *escalation.EscalationRouter
	scheduler   *escalation.MonitoringScheduler
	dispatcher  *escalation.CalloutDispatcher
	uploader    storage.PhotoUploader
	tolerances  evaluator.Tolerances // 站点级默认容差，模板未配置时生效
	earlyGrace  time.Duration
	lateGrace   time.Duration
	logger      *zap.Logger
}

// NewCompletionService 创建完成服务
func NewCompletionService(
	tasks TaskStore,
	templates TemplateStore,
	assets AssetStore,
	readings ReadingStore,
	completions CompletionStore,
	router *escalation.EscalationRouter,
	scheduler *escalation.MonitoringScheduler,
	dispatcher *escalation.CalloutDispatcher,
	uploader storage.PhotoUploader,
	tolerances evaluator.Tolerances,
	earlyGrace, lateGrace time.Duration,
	logger *zap.Logger,
) *CompletionService {
	return &CompletionService{
		tasks:       tasks,
		templates:   templates,
		assets:      assets,
		readings:    readings,
		completions: completions,
		router:      router,
		scheduler:   scheduler,
		dispatcher:  dispatcher,
		uploader:    uploader,
		tolerances:  tolerances,
		earlyGrace:  earlyGrace,
		lateGrace:   lateGrace,
		logger:      logger,
	}
}

// SubmitCompletion 提交任务完成
// 持久化顺序：照片 → 读数 → 完成记录 → 任务状态。
// 校验失败什么都不落；硬失败中止且任务保持 pending；
// 软失败进 Warnings 不影响提交成功
func (s *CompletionService) SubmitCompletion(ctx context.Context, siteID, taskID string, form *FormPayload) (*SubmitResult, error) {
	if siteID == "" {
		return nil, faults.Validation("site_id", "is required")
	}
	if taskID == "" {
		return nil, faults.Validation("task_id", "is required")
	}
	if form == nil {
		return nil, faults.Validation("form", "is required")
	}

	task, err := s.tasks.GetTask(ctx, siteID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	tpl, err := s.templates.GetTemplate(ctx, siteID, task.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	// 1. 校验：失败即中止，什么都不持久化
	if err := validateForm(tpl, form); err != nil {
		return nil, err
	}

	completedAt := form.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	// 2. 并行上传照片，全部等完；任一失败整单中止
	if err := s.uploadPhotos(ctx, form.Photos); err != nil {
		return nil, err
	}

	// 3. 对每条读数分类，组装读数行
	assetIDs := collectAssetIDs(task, tpl, form)
	assets, err := s.assets.GetAssets(ctx, siteID, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}

	readings := []*models.Reading{}
	for _, t := range form.Temperatures {
		eval := evaluator.EvaluateForTemplate(tpl, assets[t.AssetID], t.Value, s.tolerances)
		readings = append(readings, &models.Reading{
			ReadingID:  uuid.New().String(),
			SiteID:     siteID,
			TaskID:     taskID,
			AssetID:    t.AssetID,
			Value:      t.Value,
			Unit:       t.Unit,
			Severity:   eval.Severity,
			OutOfRange: eval.OutOfRange,
			RecordedAt: completedAt,
		})
	}

	warnings := []string{}
	var followUp FollowUp

	// 4/5. 升级：监控任务复查仍超限直接升 urgent 派单，否则逐台走路由
	if task.FlagReason == models.FlagReasonMonitoring {
		followUp, warnings = s.escalateMonitoringRecheck(ctx, siteID, form, readings, assets, warnings)
	} else {
		followUp, warnings = s.routeEscalations(ctx, task, tpl, form, readings, assets, warnings)
	}

	// 6. 读数先落库，完成记录才能引用
	if err := s.readings.InsertReadings(ctx, siteID, readings); err != nil {
		return nil, fmt.Errorf("failed to persist readings: %w", err)
	}

	record := BuildCompletionRecord(task, tpl, form, readings, assets, followUp)
	completionID, err := s.completions.CreateCompletionRecord(ctx, siteID, record)
	if err != nil {
		return nil, fmt.Errorf("failed to persist completion record: %w", err)
	}

	window := timing.Classify(completedAt, task.DueAt, s.earlyGrace, s.lateGrace)
	flagReason := determineFlagReason(window, followUp)

	updates := map[string]interface{}{
		"status":  string(models.TaskStatusCompleted),
		"flagged": flagReason != models.FlagReasonNone,
	}
	if flagReason == models.FlagReasonNone {
		updates["flag_reason"] = nil
	} else {
		updates["flag_reason"] = string(flagReason)
	}
	if err := s.tasks.UpdateTask(ctx, siteID, taskID, updates); err != nil {
		return nil, fmt.Errorf("failed to mark task completed: %w", err)
	}

	s.logger.Info("Task completion submitted",
		zap.String("site_id", siteID),
		zap.String("task_id", taskID),
		zap.String("completion_id", completionID),
		zap.String("window", string(window)),
		zap.String("flag_reason", string(flagReason)),
		zap.Int("readings", len(readings)),
		zap.Int("warnings", len(warnings)))

	return &SubmitResult{
		CompletionID:     completionID,
		TaskID:           taskID,
		FlagReason:       flagReason,
		Window:           window,
		Readings:         readings,
		MonitoringTaskID: followUp.MonitoringTaskID,
		CalloutID:        followUp.CalloutID,
		Warnings:         warnings,
	}, nil
}

// escalateMonitoringRecheck 监控任务复查仍超限 → 恰好一单 urgent 派单
// 超限读数和不通过的巡检结果都算：监控任务可能来自失败的巡检。
// 监控窗口已经给过恢复机会，不再进队列、不再建第二个监控任务
func (s *CompletionService) escalateMonitoringRecheck(ctx context.Context, siteID string, form *FormPayload, readings []*models.Reading, assets map[string]*models.Asset, warnings []string) (FollowUp, []string) {
	var followUp FollowUp
	for _, reading := range readings {
		if !reading.OutOfRange {
			continue
		}
		callout, err := s.dispatcher.AutoDispatch(ctx, siteID, assets[reading.AssetID], reading.Value, reading.Unit)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("auto callout failed: %v", err))
			continue
		}
		followUp.CalloutID = &callout.CalloutID
		break // 单设备投影，最多一单
	}
	if followUp.CalloutID == nil {
		for _, pf := range form.PassFail {
			if pf.Passed {
				continue
			}
			callout, err := s.dispatcher.AutoDispatchInspection(ctx, siteID, assets[pf.AssetID])
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("auto callout failed: %v", err))
				continue
			}
			followUp.CalloutID = &callout.CalloutID
			break
		}
	}
	return followUp, warnings
}

// routeEscalations 逐台设备路由升级（串行）
// 第一台派单直接创建，后续入队；配置错误上报后按不升级继续
func (s *CompletionService) routeEscalations(ctx context.Context, task *models.TaskInstance, tpl *models.Template, form *FormPayload, readings []*models.Reading, assets map[string]*models.Asset, warnings []string) (FollowUp, []string) {
	var followUp FollowUp
	calloutOpen := false

	apply := func(result escalation.RouteResult, err error) {
		if err != nil {
			if faults.IsConfig(err) {
				s.logger.Warn("Escalation skipped on config error", zap.Error(err))
				warnings = append(warnings, fmt.Sprintf("escalation skipped: %v", err))
				return
			}
			warnings = append(warnings, fmt.Sprintf("escalation failed: %v", err))
			return
		}
		warnings = append(warnings, result.Warnings...)
		switch result.Action {
		case escalation.FollowUpMonitor:
			if followUp.MonitoringTaskID == nil {
				id := result.RefID
				followUp.MonitoringTaskID = &id
			}
		case escalation.FollowUpCallout:
			if followUp.CalloutID == nil {
				id := result.RefID
				followUp.CalloutID = &id
			}
			calloutOpen = true
		}
	}

	switch tpl.WorkflowKind {
	case models.WorkflowMeasurement:
		for _, reading := range readings {
			if !reading.OutOfRange {
				continue
			}
			value := reading.Value
			apply(s.router.Route(ctx, escalation.RouteContext{
				Task:        task,
				Template:    tpl,
				Asset:       assets[reading.AssetID],
				Value:       &value,
				CalloutOpen: calloutOpen,
			}))
		}
	case models.WorkflowInspection:
		for _, pf := range form.PassFail {
			if pf.Passed {
				continue
			}
			passed := pf.Passed
			apply(s.router.Route(ctx, escalation.RouteContext{
				Task:        task,
				Template:    tpl,
				Asset:       assets[pf.AssetID],
				Passed:      &passed,
				CalloutOpen: calloutOpen,
			}))
		}
	case models.WorkflowDocumentTrack:
		for _, doc := range form.Documents {
			apply(s.router.Route(ctx, escalation.RouteContext{
				Task:           task,
				Template:       tpl,
				DocumentName:   doc.Name,
				DocumentExpiry: doc.ExpiresAt,
			}))
		}
	}

	return followUp, warnings
}

// ============================================
// 其余对外操作
// ============================================

// EvaluateLive 录入时的实时阈值分类（不落库，纯评估）
// 与提交时用同一套规则，结果必然一致
func (s *CompletionService) EvaluateLive(ctx context.Context, siteID, templateID, assetID string, value float64) (evaluator.Result, error) {
	if siteID == "" {
		return evaluator.Result{}, faults.Validation("site_id", "is required")
	}
	tpl, err := s.templates.GetTemplate(ctx, siteID, templateID)
	if err != nil {
		return evaluator.Result{}, fmt.Errorf("failed to load template: %w", err)
	}

	var asset *models.Asset
	if assetID != "" {
		asset, err = s.assets.GetAsset(ctx, siteID, assetID)
		if err != nil {
			return evaluator.Result{}, fmt.Errorf("failed to load asset: %w", err)
		}
	}

	return evaluator.EvaluateForTemplate(tpl, asset, value, s.tolerances), nil
}

// ChooseAction 操作员手动选择升级动作（monitor 或 callout）
// 返回创建的监控任务 id 或派单 id
func (s *CompletionService) ChooseAction(ctx context.Context, siteID, taskID, assetID, action string, params ActionParams) (string, error) {
	if siteID == "" {
		return "", faults.Validation("site_id", "is required")
	}
	task, err := s.tasks.GetTask(ctx, siteID, taskID)
	if err != nil {
		return "", fmt.Errorf("failed to load task: %w", err)
	}

	var asset *models.Asset
	if assetID != "" {
		asset, err = s.assets.GetAsset(ctx, siteID, assetID)
		if err != nil {
			return "", fmt.Errorf("failed to load asset: %w", err)
		}
	}

	switch action {
	case "monitor":
		if asset == nil {
			return "", faults.Validation("asset_id", "is required for a monitoring task")
		}
		monitoring, warnings, err := s.scheduler.Schedule(ctx, task, asset, params.DurationMinutes, params.Value)
		if err != nil {
			return "", err
		}
		for _, w := range warnings {
			s.logger.Warn("Monitoring notification degraded", zap.String("warning", w))
		}
		return monitoring.TaskID, nil
	case "callout":
		fault := params.Fault
		if fault == "" && asset != nil {
			fault = fmt.Sprintf("%s out of range", asset.Name)
		}
		callout, err := s.dispatcher.Dispatch(ctx, siteID, asset, fault, params.Priority)
		if err != nil {
			return "", err
		}
		return callout.CalloutID, nil
	default:
		return "", faults.Validation("action", fmt.Sprintf("unknown action: %s", action))
	}
}

// NextCallout 弹出站点派单队列的下一单
// 队列为空返回 (nil, nil)；上下文在出队时按当前设备数据重建
func (s *CompletionService) NextCallout(ctx context.Context, siteID string) (*escalation.CalloutContext, error) {
	if siteID == "" {
		return nil, faults.Validation("site_id", "is required")
	}
	return s.dispatcher.ProcessQueue(ctx, siteID)
}

// CloseCallout 关闭派单
// 维修摘要必填；关闭失败降级为 warning，派单留在 open 状态等人工处理
func (s *CompletionService) CloseCallout(ctx context.Context, siteID, calloutID, repairSummary string, documents []string) ([]string, error) {
	if siteID == "" {
		return nil, faults.Validation("site_id", "is required")
	}
	if calloutID == "" {
		return nil, faults.Validation("callout_id", "is required")
	}
	if repairSummary == "" {
		return nil, faults.Validation("repair_summary", "is required")
	}
	return s.dispatcher.Close(ctx, siteID, calloutID, repairSummary, documents), nil
}

// UpdateCalloutNotes 更新派单备注（不关闭）
func (s *CompletionService) UpdateCalloutNotes(ctx context.Context, siteID, calloutID, notes string) error {
	if siteID == "" {
		return faults.Validation("site_id", "is required")
	}
	if calloutID == "" {
		return faults.Validation("callout_id", "is required")
	}
	return s.dispatcher.UpdateNotes(ctx, siteID, calloutID, notes)
}

// ============================================
// 内部辅助
// ============================================

// uploadPhotos 并行上传，全部 join 后统一判错
func (s *CompletionService) uploadPhotos(ctx context.Context, photos []PhotoUpload) error {
	if len(photos) == 0 {
		return nil
	}
	if s.uploader == nil {
		return fmt.Errorf("photo upload requested but storage is not configured")
	}

	var wg sync.WaitGroup
	errs := make([]error, len(photos))
	for i, photo := range photos {
		wg.Add(1)
		go func(i int, photo PhotoUpload) {
			defer wg.Done()
			errs[i] = s.uploader.UploadPhoto(ctx, photo.ObjectName, photo.Data, photo.ContentType)
		}(i, photo)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("photo upload failed: %w", err)
		}
	}
	return nil
}

// validateForm 按工作流类型校验必填证据
func validateForm(tpl *models.Template, form *FormPayload) error {
	if form.CompletedBy == "" {
		return faults.Validation("completed_by", "is required")
	}

	switch tpl.WorkflowKind {
	case models.WorkflowMeasurement:
		if len(form.Temperatures) == 0 {
			return faults.Validation("temperatures", "at least one reading is required")
		}
		for _, t := range form.Temperatures {
			if t.AssetID == "" {
				return faults.Validation("temperatures", "asset_id is required on every reading")
			}
		}
	case models.WorkflowInspection:
		if len(form.PassFail) == 0 {
			return faults.Validation("pass_fail", "at least one result is required")
		}
	case models.WorkflowChecklistVerify:
		for _, item := range form.Checklist {
			if item.Required && !item.Checked {
				return faults.Validation("checklist", fmt.Sprintf("required item '%s' is not checked", item.Label))
			}
			if item.Checked && item.RequiresPhoto && (item.PhotoID == nil || *item.PhotoID == "") {
				return faults.Validation("checklist", fmt.Sprintf("item '%s' requires a photo", item.Label))
			}
		}
	case models.WorkflowDocumentTrack:
		if len(form.Documents) == 0 {
			return faults.Validation("documents", "at least one document is required")
		}
	case models.WorkflowSimpleConfirm:
		// 签名人就是全部要求
	}

	return nil
}

// collectAssetIDs 收集本次提交涉及的全部设备 id
func collectAssetIDs(task *models.TaskInstance, tpl *models.Template, form *FormPayload) []string {
	ids := []string{}
	seen := map[string]bool{}
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	for _, id := range form.SelectedAssets {
		add(id)
	}
	for _, id := range task.Payload.SelectedAssets {
		add(id)
	}
	for _, t := range form.Temperatures {
		add(t.AssetID)
	}
	for _, pf := range form.PassFail {
		add(pf.AssetID)
	}
	for _, re := range form.RepeatEntries {
		add(re.AssetID)
	}
	if tpl.LinkedAssetID != nil {
		add(*tpl.LinkedAssetID)
	}
	return ids
}

// determineFlagReason 完成后的标记原因
// 优先级：超时/提前 > 产生了后续（监控/派单）> 无标记
func determineFlagReason(window timing.Window, followUp FollowUp) models.FlagReason {
	switch window {
	case timing.WindowLate:
		return models.FlagReasonCompletedLate
	case timing.WindowEarly:
		return models.FlagReasonCompletedEarly
	}
	if followUp.MonitoringTaskID != nil || followUp.CalloutID != nil {
		return models.FlagReasonMonitoring
	}
	return models.FlagReasonNone
}
