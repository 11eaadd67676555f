package escalation

import (
	"context"
	"testing"
	"time"

	"compliance-engine/internal/evaluator"
	"compliance-engine/internal/faults"
	"compliance-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func newTestRouter(t *testing.T, store *fakeCalloutStore, tasks *fakeTaskCreator, alerter *fakeAlerter) *EscalationRouter {
	t.Helper()
	d := newTestDispatcher(t, store, &fakeAssetGetter{})
	s := NewMonitoringScheduler(tasks, alerter, 2*time.Hour, zap.NewNop())
	return NewEscalationRouter(s, d, alerter, evaluator.DefaultTolerances(), zap.NewNop())
}

func measurementContext(action models.OutOfRangeAction, value float64) RouteContext {
	return RouteContext{
		Task: &models.TaskInstance{
			TaskID:  "task-1",
			SiteID:  "site-1",
			Payload: models.TaskPayload{SelectedAssets: []string{"fridge-1"}},
		},
		Template: &models.Template{
			TemplateID:   "tpl-1",
			WorkflowKind: models.WorkflowMeasurement,
			Escalation: &models.EscalationConfig{
				OutOfRangeAction:          action,
				MonitoringDurationMinutes: 60,
				WarningTolerance:          1,
				CriticalTolerance:         2,
			},
		},
		Asset: &models.Asset{
			AssetID:        "fridge-1",
			Name:           "Fridge",
			WorkingTempMin: floatPtr(0),
			WorkingTempMax: floatPtr(5),
		},
		Value: floatPtr(value),
	}
}

func TestRouteMeasurementInRange(t *testing.T) {
	store := &fakeCalloutStore{}
	tasks := &fakeTaskCreator{}
	r := newTestRouter(t, store, tasks, &fakeAlerter{})

	result, err := r.Route(context.Background(), measurementContext(models.ActionMonitorPolicy, 4.0))
	require.NoError(t, err)
	assert.Equal(t, FollowUpNone, result.Action)
	assert.False(t, result.OutOfRange)
	assert.Empty(t, store.created)
	assert.Empty(t, tasks.created)
}

func TestRouteMeasurementWarningMonitorPolicy(t *testing.T) {
	store := &fakeCalloutStore{}
	tasks := &fakeTaskCreator{}
	r := newTestRouter(t, store, tasks, &fakeAlerter{})

	// 6.5 超 max 1.5，warning 级 → monitor 策略建监控任务
	result, err := r.Route(context.Background(), measurementContext(models.ActionMonitorPolicy, 6.5))
	require.NoError(t, err)
	assert.Equal(t, FollowUpMonitor, result.Action)
	assert.Equal(t, models.SeverityWarning, result.Severity)
	require.Len(t, tasks.created, 1)
	assert.Equal(t, result.RefID, tasks.created[0].TaskID)
	assert.Empty(t, store.created)
}

// critical 覆盖 monitor 策略：范围 [0,5]、容差 1/2，读数 8 偏差 3 ≥ 2 → critical → 派单
func TestRouteCriticalOverridesMonitorPolicy(t *testing.T) {
	store := &fakeCalloutStore{}
	tasks := &fakeTaskCreator{}
	r := newTestRouter(t, store, tasks, &fakeAlerter{})

	result, err := r.Route(context.Background(), measurementContext(models.ActionMonitorPolicy, 8.0))
	require.NoError(t, err)
	assert.Equal(t, FollowUpCallout, result.Action)
	assert.Equal(t, models.SeverityCritical, result.Severity)
	require.Len(t, store.created, 1)
	assert.Equal(t, models.CalloutPriorityHigh, store.created[0].Priority)
	assert.Empty(t, tasks.created)
}

// callout 策略即使 warning 也派单：不对称是有意保留的
func TestRouteCalloutPolicyWinsAtWarning(t *testing.T) {
	store := &fakeCalloutStore{}
	tasks := &fakeTaskCreator{}
	r := newTestRouter(t, store, tasks, &fakeAlerter{})

	result, err := r.Route(context.Background(), measurementContext(models.ActionCalloutPolicy, 6.5))
	require.NoError(t, err)
	assert.Equal(t, FollowUpCallout, result.Action)
	assert.Equal(t, models.SeverityWarning, result.Severity)
	require.Len(t, store.created, 1)
	assert.Equal(t, models.CalloutPriorityNormal, store.created[0].Priority)
	assert.Empty(t, tasks.created)
}

func TestRouteCalloutOpenEnqueues(t *testing.T) {
	store := &fakeCalloutStore{}
	r := newTestRouter(t, store, &fakeTaskCreator{}, &fakeAlerter{})

	rc := measurementContext(models.ActionCalloutPolicy, 6.5)
	rc.CalloutOpen = true

	result, err := r.Route(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, FollowUpQueued, result.Action)
	assert.Empty(t, store.created)
}

func TestRouteMissingEscalationConfig(t *testing.T) {
	store := &fakeCalloutStore{}
	tasks := &fakeTaskCreator{}
	r := newTestRouter(t, store, tasks, &fakeAlerter{})

	rc := measurementContext(models.ActionMonitorPolicy, 6.5)
	rc.Template.Escalation = nil

	result, err := r.Route(context.Background(), rc)
	require.Error(t, err)
	assert.True(t, faults.IsConfig(err))
	assert.Equal(t, FollowUpNone, result.Action)
	assert.True(t, result.OutOfRange)
	assert.Empty(t, store.created)
	assert.Empty(t, tasks.created)
}

func TestRouteUnknownWorkflowKind(t *testing.T) {
	r := newTestRouter(t, &fakeCalloutStore{}, &fakeTaskCreator{}, &fakeAlerter{})

	rc := measurementContext(models.ActionMonitorPolicy, 6.5)
	rc.Template.WorkflowKind = "bogus"

	result, err := r.Route(context.Background(), rc)
	require.Error(t, err)
	assert.True(t, faults.IsConfig(err))
	assert.Equal(t, FollowUpNone, result.Action)
}

func TestRouteInspection(t *testing.T) {
	t.Run("pass does nothing", func(t *testing.T) {
		store := &fakeCalloutStore{}
		r := newTestRouter(t, store, &fakeTaskCreator{}, &fakeAlerter{})

		rc := measurementContext(models.ActionCalloutPolicy, 0)
		rc.Template.WorkflowKind = models.WorkflowInspection
		rc.Value = nil
		rc.Passed = boolPtr(true)

		result, err := r.Route(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, FollowUpNone, result.Action)
		assert.Empty(t, store.created)
	})

	t.Run("fail follows policy branch", func(t *testing.T) {
		store := &fakeCalloutStore{}
		tasks := &fakeTaskCreator{}
		r := newTestRouter(t, store, tasks, &fakeAlerter{})

		rc := measurementContext(models.ActionMonitorPolicy, 0)
		rc.Template.WorkflowKind = models.WorkflowInspection
		rc.Value = nil
		rc.Passed = boolPtr(false)

		result, err := r.Route(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, FollowUpMonitor, result.Action)
		require.Len(t, tasks.created, 1)
	})
}

func TestRouteChecklistHasNoEscalation(t *testing.T) {
	store := &fakeCalloutStore{}
	tasks := &fakeTaskCreator{}
	r := newTestRouter(t, store, tasks, &fakeAlerter{})

	// 清单校验在提交阶段把关，路由阶段一律不升级
	rc := measurementContext(models.ActionCalloutPolicy, 0)
	rc.Template.WorkflowKind = models.WorkflowChecklistVerify
	rc.Value = nil

	result, err := r.Route(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, FollowUpNone, result.Action)
	assert.Empty(t, store.created)
	assert.Empty(t, tasks.created)
}

func TestRouteDocumentTrack(t *testing.T) {
	t.Run("expired document notifies critical", func(t *testing.T) {
		alerter := &fakeAlerter{}
		r := newTestRouter(t, &fakeCalloutStore{}, &fakeTaskCreator{}, alerter)

		expired := time.Now().AddDate(0, 0, -1)
		rc := measurementContext(models.ActionMonitorPolicy, 0)
		rc.Template.WorkflowKind = models.WorkflowDocumentTrack
		rc.Template.DocumentWarningDays = 30
		rc.Value = nil
		rc.DocumentName = "Gas safety cert"
		rc.DocumentExpiry = &expired

		result, err := r.Route(context.Background(), rc)
		require.NoError(t, err)
		// 只通知不派单
		assert.Equal(t, FollowUpNone, result.Action)
		assert.Equal(t, models.SeverityCritical, result.Severity)
		require.Len(t, alerter.sent, 1)
		assert.Equal(t, "Document expired", alerter.sent[0].Title)
	})

	t.Run("inside warning window notifies warning", func(t *testing.T) {
		alerter := &fakeAlerter{}
		r := newTestRouter(t, &fakeCalloutStore{}, &fakeTaskCreator{}, alerter)

		soon := time.Now().AddDate(0, 0, 10)
		rc := measurementContext(models.ActionMonitorPolicy, 0)
		rc.Template.WorkflowKind = models.WorkflowDocumentTrack
		rc.Template.DocumentWarningDays = 30
		rc.Value = nil
		rc.DocumentExpiry = &soon

		result, err := r.Route(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, models.SeverityWarning, result.Severity)
		require.Len(t, alerter.sent, 1)
	})

	t.Run("far from expiry is quiet", func(t *testing.T) {
		alerter := &fakeAlerter{}
		r := newTestRouter(t, &fakeCalloutStore{}, &fakeTaskCreator{}, alerter)

		far := time.Now().AddDate(1, 0, 0)
		rc := measurementContext(models.ActionMonitorPolicy, 0)
		rc.Template.WorkflowKind = models.WorkflowDocumentTrack
		rc.Value = nil
		rc.DocumentExpiry = &far

		result, err := r.Route(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, models.SeverityOK, result.Severity)
		assert.Empty(t, alerter.sent)
	})
}

func TestRouteMonitorWithoutAssetFallsBackToCallout(t *testing.T) {
	store := &fakeCalloutStore{}
	tasks := &fakeTaskCreator{}
	r := newTestRouter(t, store, tasks, &fakeAlerter{})

	rc := measurementContext(models.ActionMonitorPolicy, 0)
	rc.Template.WorkflowKind = models.WorkflowInspection
	rc.Template.HotHolding = false
	rc.Value = nil
	rc.Passed = boolPtr(false)
	rc.Asset = nil

	result, err := r.Route(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, FollowUpCallout, result.Action)
	require.Len(t, store.created, 1)
	assert.Nil(t, store.created[0].AssetID)
	assert.Empty(t, tasks.created)
}
