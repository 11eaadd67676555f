package service

import (
	"testing"
	"time"

	"compliance-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestBuildCompletionRecordEquipmentUnion(t *testing.T) {
	task := &models.TaskInstance{
		TaskID: "task-1",
		SiteID: "site-1",
		Payload: models.TaskPayload{
			SelectedAssets: []string{"fridge-1", "fridge-2"},
		},
	}
	tpl := &models.Template{LinkedAssetID: strPtr("boiler-1")}
	form := &FormPayload{
		RepeatEntries: []models.RepeatEntry{
			{AssetID: "fridge-2"}, // 与选中设备重复，必须去重
			{AssetID: "probe-1"},
		},
		CompletedBy: "alice",
	}
	readings := []*models.Reading{
		{ReadingID: "r1", AssetID: "fridge-1", Value: 4.0, Unit: "C", Severity: models.SeverityOK},
		{ReadingID: "r2", AssetID: "fridge-2", Value: 9.5, Unit: "C", Severity: models.SeverityWarning, OutOfRange: true},
	}
	assets := map[string]*models.Asset{
		"fridge-1": {AssetID: "fridge-1", Name: "Fridge 1"},
		"fridge-2": {AssetID: "fridge-2", Name: "Fridge 2"},
	}

	rec := BuildCompletionRecord(task, tpl, form, readings, assets, FollowUp{})

	// 并集顺序：选中设备 → 可重复条目 → 模板关联设备，按 id 去重
	require.Len(t, rec.Equipment, 4)
	assert.Equal(t, "fridge-1", rec.Equipment[0].AssetID)
	assert.Equal(t, "fridge-2", rec.Equipment[1].AssetID)
	assert.Equal(t, "probe-1", rec.Equipment[2].AssetID)
	assert.Equal(t, "boiler-1", rec.Equipment[3].AssetID)

	// 有读数的带读数引用
	require.NotNil(t, rec.Equipment[1].ReadingID)
	assert.Equal(t, "r2", *rec.Equipment[1].ReadingID)
	assert.Equal(t, models.SeverityWarning, rec.Equipment[1].Severity)
	assert.True(t, rec.Equipment[1].OutOfRange)
	assert.Equal(t, "Fridge 2", rec.Equipment[1].AssetName)

	// 无读数的设备仍然出现，ok 占位
	assert.Nil(t, rec.Equipment[2].ReadingID)
	assert.Equal(t, models.SeverityOK, rec.Equipment[2].Severity)
	assert.False(t, rec.Equipment[2].OutOfRange)
}

func TestBuildCompletionRecordFollowUpRefs(t *testing.T) {
	task := &models.TaskInstance{TaskID: "task-1", SiteID: "site-1"}
	form := &FormPayload{CompletedBy: "alice"}

	monID := "mon-1"
	calloutID := "callout-1"
	rec := BuildCompletionRecord(task, &models.Template{}, form, nil, nil, FollowUp{
		MonitoringTaskID: &monID,
		CalloutID:        &calloutID,
	})

	require.NotNil(t, rec.MonitoringTaskID)
	assert.Equal(t, "mon-1", *rec.MonitoringTaskID)
	require.NotNil(t, rec.CalloutID)
	assert.Equal(t, "callout-1", *rec.CalloutID)
}

// 重复构建产出等价记录：除生成的 id 和时间戳外逐字段一致
func TestBuildCompletionRecordDeterministic(t *testing.T) {
	task := &models.TaskInstance{
		TaskID:  "task-1",
		SiteID:  "site-1",
		Payload: models.TaskPayload{SelectedAssets: []string{"fridge-1"}},
	}
	form := &FormPayload{
		Notes:       "all good",
		CompletedBy: "alice",
		CompletedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	readings := []*models.Reading{
		{ReadingID: "r1", AssetID: "fridge-1", Value: 4.0, Severity: models.SeverityOK},
	}

	a := BuildCompletionRecord(task, &models.Template{}, form, readings, nil, FollowUp{})
	b := BuildCompletionRecord(task, &models.Template{}, form, readings, nil, FollowUp{})

	assert.Equal(t, a.TaskID, b.TaskID)
	assert.Equal(t, a.Equipment, b.Equipment)
	assert.Equal(t, a.Notes, b.Notes)
	assert.Equal(t, a.CompletedBy, b.CompletedBy)
	assert.Equal(t, a.CompletedAt, b.CompletedAt)
	assert.NotEqual(t, a.CompletionID, b.CompletionID) // upsert 按 task_id 合并
}
