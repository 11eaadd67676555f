package repository

import (
	"context"
	"testing"
	"time"

	"compliance-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCompletionRepo(t *testing.T) (*CompletionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCompletionRepository(db, zap.NewNop()), mock
}

func testRecord() *models.CompletionRecord {
	now := time.Now()
	return &models.CompletionRecord{
		CompletionID: "comp-1",
		SiteID:       "site-1",
		TaskID:       "task-1",
		Equipment: []models.EquipmentEntry{
			{AssetID: "fridge-1", Severity: models.SeverityOK},
		},
		CompletedBy: "alice",
		CompletedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateCompletionRecord(t *testing.T) {
	repo, mock := newCompletionRepo(t)

	mock.ExpectQuery("INSERT INTO completion_records").
		WillReturnRows(sqlmock.NewRows([]string{"completion_id"}).AddRow("comp-1"))

	id, err := repo.CreateCompletionRecord(context.Background(), "site-1", testRecord())
	require.NoError(t, err)
	assert.Equal(t, "comp-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

// 冲突路径：RETURNING 返回已存在行的 completion_id，不产生新行
func TestCreateCompletionRecordUpsertKeepsOriginalID(t *testing.T) {
	repo, mock := newCompletionRepo(t)

	mock.ExpectQuery("INSERT INTO completion_records").
		WillReturnRows(sqlmock.NewRows([]string{"completion_id"}).AddRow("original-id"))

	rec := testRecord()
	rec.CompletionID = "would-be-new-id"

	id, err := repo.CreateCompletionRecord(context.Background(), "site-1", rec)
	require.NoError(t, err)
	assert.Equal(t, "original-id", id)
}

func TestCreateCompletionRecordValidation(t *testing.T) {
	repo, _ := newCompletionRepo(t)
	ctx := context.Background()

	_, err := repo.CreateCompletionRecord(ctx, "", testRecord())
	assert.ErrorContains(t, err, "site_id is required")

	rec := testRecord()
	rec.TaskID = ""
	_, err = repo.CreateCompletionRecord(ctx, "site-1", rec)
	assert.ErrorContains(t, err, "task_id is required")
}

func TestGetCompletionRecordByTask(t *testing.T) {
	repo, mock := newCompletionRepo(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"completion_id", "site_id", "task_id", "equipment", "checklist",
		"notes", "photos", "monitoring_task_id", "callout_id",
		"completed_by", "completed_at", "created_at", "updated_at",
	}).AddRow(
		"comp-1", "site-1", "task-1",
		[]byte(`[{"asset_id":"fridge-1","severity":"warning","out_of_range":true}]`),
		[]byte(`null`), "note", []byte(`null`), "mon-1", nil,
		"alice", now, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM completion_records").
		WithArgs("site-1", "task-1").
		WillReturnRows(rows)

	got, err := repo.GetCompletionRecordByTask(context.Background(), "site-1", "task-1")
	require.NoError(t, err)
	require.Len(t, got.Equipment, 1)
	assert.Equal(t, models.SeverityWarning, got.Equipment[0].Severity)
	require.NotNil(t, got.MonitoringTaskID)
	assert.Equal(t, "mon-1", *got.MonitoringTaskID)
	assert.Nil(t, got.CalloutID)
}
