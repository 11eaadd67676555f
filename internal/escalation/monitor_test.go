package escalation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"compliance-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTaskCreator struct {
	created []*models.TaskInstance
	err     error
}

func (f *fakeTaskCreator) CreateTask(_ context.Context, _ string, task *models.TaskInstance) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, task)
	return nil
}

type fakeAlerter struct {
	sent     []*models.Notification
	warnings []string
}

func (f *fakeAlerter) Notify(_ context.Context, n *models.Notification) []string {
	f.sent = append(f.sent, n)
	return f.warnings
}

func testOriginTask() *models.TaskInstance {
	return &models.TaskInstance{
		TaskID:     "task-1",
		SiteID:     "site-1",
		TemplateID: "tpl-1",
		DueAt:      time.Now(),
		Daypart:    "am",
		Status:     models.TaskStatusPending,
		Priority:   models.TaskPriorityNormal,
		Payload: models.TaskPayload{
			SelectedAssets: []string{"fridge-1", "fridge-2"},
			Temperatures: []models.TemperatureEvidence{
				{AssetID: "fridge-1", Value: 4.0, Unit: "C"},
				{AssetID: "fridge-2", Value: 9.5, Unit: "C"},
			},
			Dayparts: []string{"am", "pm"},
		},
	}
}

func TestScheduleCreatesMonitoringTask(t *testing.T) {
	tasks := &fakeTaskCreator{}
	alerter := &fakeAlerter{}
	s := NewMonitoringScheduler(tasks, alerter, 2*time.Hour, zap.NewNop())

	asset := &models.Asset{AssetID: "fridge-2", SiteID: "site-1", Name: "Walk-in fridge"}
	value := 9.5
	before := time.Now()

	created, warnings, err := s.Schedule(context.Background(), testOriginTask(), asset, 90, &value)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, tasks.created, 1)

	task := tasks.created[0]
	assert.Equal(t, created.TaskID, task.TaskID)
	assert.NotEqual(t, "task-1", task.TaskID)
	assert.Equal(t, "site-1", task.SiteID)
	assert.Equal(t, "tpl-1", task.TemplateID)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, models.TaskPriorityHigh, task.Priority)
	assert.True(t, task.Flagged)
	assert.Equal(t, models.FlagReasonMonitoring, task.FlagReason)

	// due = now + 90 分钟
	assert.WithinDuration(t, before.Add(90*time.Minute), task.DueAt, 5*time.Second)

	// 负载是单设备投影且去掉多时段标记
	assert.Equal(t, []string{"fridge-2"}, task.Payload.SelectedAssets)
	require.Len(t, task.Payload.Temperatures, 1)
	assert.Equal(t, "fridge-2", task.Payload.Temperatures[0].AssetID)
	assert.Empty(t, task.Payload.Dayparts)

	// warning 通知点名设备和读数
	require.Len(t, alerter.sent, 1)
	assert.Equal(t, models.SeverityWarning, alerter.sent[0].Severity)
	assert.Contains(t, alerter.sent[0].Body, "Walk-in fridge")
	assert.Contains(t, alerter.sent[0].Body, "9.5")
}

func TestScheduleDefaultDuration(t *testing.T) {
	tasks := &fakeTaskCreator{}
	s := NewMonitoringScheduler(tasks, nil, 2*time.Hour, zap.NewNop())
	before := time.Now()

	_, _, err := s.Schedule(context.Background(), testOriginTask(), &models.Asset{AssetID: "fridge-1"}, 0, nil)
	require.NoError(t, err)
	require.Len(t, tasks.created, 1)
	assert.WithinDuration(t, before.Add(2*time.Hour), tasks.created[0].DueAt, 5*time.Second)
}

func TestScheduleNotificationFailureIsWarning(t *testing.T) {
	tasks := &fakeTaskCreator{}
	alerter := &fakeAlerter{warnings: []string{"notification stream publish failed: down"}}
	s := NewMonitoringScheduler(tasks, alerter, time.Hour, zap.NewNop())

	created, warnings, err := s.Schedule(context.Background(), testOriginTask(), &models.Asset{AssetID: "fridge-1"}, 30, nil)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Len(t, warnings, 1)
}

func TestScheduleCreateFailureIsHard(t *testing.T) {
	tasks := &fakeTaskCreator{err: fmt.Errorf("db down")}
	s := NewMonitoringScheduler(tasks, &fakeAlerter{}, time.Hour, zap.NewNop())

	_, _, err := s.Schedule(context.Background(), testOriginTask(), &models.Asset{AssetID: "fridge-1"}, 30, nil)
	assert.Error(t, err)
}

func TestScheduleRequiresOriginAndAsset(t *testing.T) {
	s := NewMonitoringScheduler(&fakeTaskCreator{}, nil, time.Hour, zap.NewNop())

	_, _, err := s.Schedule(context.Background(), nil, &models.Asset{AssetID: "a"}, 30, nil)
	assert.Error(t, err)

	_, _, err = s.Schedule(context.Background(), testOriginTask(), nil, 30, nil)
	assert.Error(t, err)
}
