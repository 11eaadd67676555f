package service

import (
	"time"

	"compliance-engine/internal/models"

	"github.com/google/uuid"
)

// FollowUp 一次提交产生的后续引用
type FollowUp struct {
	MonitoringTaskID *string
	CalloutID        *string
}

// BuildCompletionRecord 组装完成记录（纯函数，可重复调用）
// 设备清单的并集规则：选中设备 → 可重复条目设备 → 模板关联设备，按 id 去重；
// 有读数的设备带读数引用，没有的带 ok 占位——任务涉及的每台设备都必须出现
func BuildCompletionRecord(task *models.TaskInstance, tpl *models.Template, form *FormPayload,
	readings []*models.Reading, assets map[string]*models.Asset, followUp FollowUp) *models.CompletionRecord {

	readingByAsset := map[string]*models.Reading{}
	for _, r := range readings {
		if _, ok := readingByAsset[r.AssetID]; !ok {
			readingByAsset[r.AssetID] = r
		}
	}

	// 并集：顺序稳定，按 id 去重
	assetIDs := []string{}
	seen := map[string]bool{}
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		assetIDs = append(assetIDs, id)
	}

	selected := form.SelectedAssets
	if len(selected) == 0 {
		selected = task.Payload.SelectedAssets
	}
	for _, id := range selected {
		add(id)
	}
	for _, re := range form.RepeatEntries {
		add(re.AssetID)
	}
	if tpl != nil && tpl.LinkedAssetID != nil {
		add(*tpl.LinkedAssetID)
	}

	equipment := []models.EquipmentEntry{}
	for _, id := range assetIDs {
		entry := models.EquipmentEntry{
			AssetID:  id,
			Severity: models.SeverityOK,
		}
		if asset, ok := assets[id]; ok {
			entry.AssetName = asset.Name
		}
		if reading, ok := readingByAsset[id]; ok {
			entry.ReadingID = &reading.ReadingID
			entry.Value = &reading.Value
			entry.Unit = reading.Unit
			entry.Severity = reading.Severity
			entry.OutOfRange = reading.OutOfRange
		}
		equipment = append(equipment, entry)
	}

	photos := []models.PhotoRef{}
	for _, p := range form.Photos {
		photos = append(photos, models.PhotoRef{
			PhotoID:    p.PhotoID,
			ObjectName: p.ObjectName,
		})
	}

	completedAt := form.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	now := time.Now()
	return &models.CompletionRecord{
		CompletionID:     uuid.New().String(),
		SiteID:           task.SiteID,
		TaskID:           task.TaskID,
		Equipment:        equipment,
		Checklist:        form.Checklist,
		Notes:            form.Notes,
		Photos:           photos,
		MonitoringTaskID: followUp.MonitoringTaskID,
		CalloutID:        followUp.CalloutID,
		CompletedBy:      form.CompletedBy,
		CompletedAt:      completedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
