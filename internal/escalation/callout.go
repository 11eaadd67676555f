package escalation

import (
	"context"
	"fmt"
	"time"

	"compliance-engine/internal/evaluator"
	"compliance-engine/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CalloutStore 派单持久化接口
type CalloutStore interface {
	CreateCallout(ctx context.Context, siteID string, callout *models.Callout) error
	GetCallout(ctx context.Context, siteID, calloutID string) (*models.Callout, error)
	UpdateCallout(ctx context.Context, siteID, calloutID string, updates map[string]interface{}) error
	CloseCallout(ctx context.Context, siteID, calloutID, repairSummary string, documents []string) error
}

// AssetGetter 设备读取接口
type AssetGetter interface {
	GetAsset(ctx context.Context, siteID, assetID string) (*models.Asset, error)
}

// CalloutContext 出队后的派单处理上下文
// 承包商指派按出队时刻的设备数据重建，不用入队时的快照
type CalloutContext struct {
	Callout    *models.Callout
	Asset      *models.Asset // 无关联设备时为 nil
	Contractor *string       // 解析不到承包商时为 nil，转手工指派
}

// CalloutDispatcher 承包商派单调度器
type CalloutDispatcher struct {
	store  CalloutStore
	assets AssetGetter
	queue  *CalloutQueue
	logger *zap.Logger
}

// NewCalloutDispatcher 创建派单调度器
func NewCalloutDispatcher(store CalloutStore, assets AssetGetter, queue *CalloutQueue, logger *zap.Logger) *CalloutDispatcher {
	return &CalloutDispatcher{
		store:  store,
		assets: assets,
		queue:  queue,
		logger: logger,
	}
}

// ============================================
// 派单生命周期
// ============================================

// Dispatch 为设备创建派单
// asset 为 nil 时创建无设备派单（手工指派承包商），不是错误
func (d *CalloutDispatcher) Dispatch(ctx context.Context, siteID string, asset *models.Asset, fault, priority string) (*models.Callout, error) {
	if siteID == "" {
		return nil, fmt.Errorf("site_id is required")
	}
	if fault == "" {
		return nil, fmt.Errorf("fault description is required")
	}
	if priority == "" {
		priority = models.CalloutPriorityNormal
	}

	now := time.Now()
	callout := &models.Callout{
		CalloutID:        uuid.New().String(),
		SiteID:           siteID,
		Priority:         priority,
		FaultDescription: fault,
		Status:           models.CalloutStatusOpen,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if asset != nil {
		callout.AssetID = &asset.AssetID
		callout.ContractorID = evaluator.ResolveContractor(asset)
	}

	if err := d.store.CreateCallout(ctx, siteID, callout); err != nil {
		return nil, fmt.Errorf("failed to dispatch callout: %w", err)
	}

	d.logger.Info("Callout dispatched",
		zap.String("site_id", siteID),
		zap.String("callout_id", callout.CalloutID),
		zap.Stringp("asset_id", callout.AssetID),
		zap.Stringp("contractor_id", callout.ContractorID),
		zap.String("priority", priority))

	return callout, nil
}

// Close 关闭派单
// 主路径失败时退回通用更新路径；两条路径都失败降级为 warning，
// 派单留在 open 状态等人工处理，不阻塞完成流程
func (d *CalloutDispatcher) Close(ctx context.Context, siteID, calloutID, repairSummary string, documents []string) []string {
	warnings := []string{}

	err := d.store.CloseCallout(ctx, siteID, calloutID, repairSummary, documents)
	if err == nil {
		d.logger.Info("Callout closed",
			zap.String("site_id", siteID),
			zap.String("callout_id", calloutID))
		return warnings
	}

	d.logger.Warn("Callout close failed, trying generic update",
		zap.String("callout_id", calloutID),
		zap.Error(err))
	warnings = append(warnings, fmt.Sprintf("callout close failed: %v", err))

	now := time.Now()
	fallbackErr := d.store.UpdateCallout(ctx, siteID, calloutID, map[string]interface{}{
		"status":         string(models.CalloutStatusClosed),
		"repair_summary": repairSummary,
		"closed_at":      now,
	})
	if fallbackErr != nil {
		d.logger.Warn("Callout close fallback failed, callout stays open",
			zap.String("callout_id", calloutID),
			zap.Error(fallbackErr))
		warnings = append(warnings, fmt.Sprintf("callout close fallback failed: %v", fallbackErr))
	}

	return warnings
}

// UpdateNotes 追加派单备注
func (d *CalloutDispatcher) UpdateNotes(ctx context.Context, siteID, calloutID, notes string) error {
	if notes == "" {
		return fmt.Errorf("notes is required")
	}
	return d.store.UpdateCallout(ctx, siteID, calloutID, map[string]interface{}{
		"notes": notes,
	})
}

// ============================================
// 串行队列
// ============================================

// Enqueue 把超限设备排入站点派单队列
func (d *CalloutDispatcher) Enqueue(ctx context.Context, siteID, assetID, fault, priority string) error {
	if priority == "" {
		priority = models.CalloutPriorityNormal
	}
	return d.queue.Push(ctx, siteID, QueueEntry{
		AssetID:  assetID,
		Fault:    fault,
		Priority: priority,
	})
}

// ProcessQueue 弹出队列头并创建派单
// 队列为空返回 (nil, nil)；设备已删除时仍创建无设备派单
func (d *CalloutDispatcher) ProcessQueue(ctx context.Context, siteID string) (*CalloutContext, error) {
	entry, err := d.queue.Pop(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	var asset *models.Asset
	if entry.AssetID != "" {
		asset, err = d.assets.GetAsset(ctx, siteID, entry.AssetID)
		if err != nil {
			d.logger.Warn("Queued asset no longer resolvable, dispatching without asset",
				zap.String("site_id", siteID),
				zap.String("asset_id", entry.AssetID),
				zap.Error(err))
			asset = nil
		}
	}

	callout, err := d.Dispatch(ctx, siteID, asset, entry.Fault, entry.Priority)
	if err != nil {
		return nil, err
	}

	return &CalloutContext{
		Callout:    callout,
		Asset:      asset,
		Contractor: callout.ContractorID,
	}, nil
}

// ============================================
// 自动升级
// ============================================

// AutoDispatch 监控任务复查仍超限时自动升级为 urgent 派单
// 跳过队列直接创建：监控窗口已经给过恢复机会了
func (d *CalloutDispatcher) AutoDispatch(ctx context.Context, siteID string, asset *models.Asset, value float64, unit string) (*models.Callout, error) {
	fault := "Recheck still out of range"
	if asset != nil {
		fault = fmt.Sprintf("%s still out of range after monitoring window: %.1f%s", asset.Name, value, unit)
	}
	return d.Dispatch(ctx, siteID, asset, fault, models.CalloutPriorityUrgent)
}

// AutoDispatchInspection 监控复查巡检仍不通过时自动升级为 urgent 派单
// 与 AutoDispatch 同一条规则，只是故障文案没有读数
func (d *CalloutDispatcher) AutoDispatchInspection(ctx context.Context, siteID string, asset *models.Asset) (*models.Callout, error) {
	fault := "Recheck still failing inspection"
	if asset != nil {
		fault = fmt.Sprintf("%s still failing inspection after monitoring window", asset.Name)
	}
	return d.Dispatch(ctx, siteID, asset, fault, models.CalloutPriorityUrgent)
}
