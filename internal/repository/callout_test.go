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

func newCalloutRepo(t *testing.T) (*CalloutRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCalloutRepository(db, zap.NewNop()), mock
}

func TestCreateCallout(t *testing.T) {
	repo, mock := newCalloutRepo(t)

	assetID := "fridge-1"
	contractorID := "contractor-1"
	callout := &models.Callout{
		CalloutID:        "c-1",
		SiteID:           "site-1",
		AssetID:          &assetID,
		ContractorID:     &contractorID,
		Priority:         models.CalloutPriorityUrgent,
		FaultDescription: "still out of range",
		Status:           models.CalloutStatusOpen,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	mock.ExpectExec("INSERT INTO callouts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateCallout(context.Background(), "site-1", callout)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCalloutWithoutAsset(t *testing.T) {
	repo, mock := newCalloutRepo(t)

	// 无设备派单：asset_id/contractor_id 存 NULL
	callout := &models.Callout{
		CalloutID:        "c-1",
		SiteID:           "site-1",
		Priority:         models.CalloutPriorityNormal,
		FaultDescription: "fire alarm fault",
		Status:           models.CalloutStatusOpen,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	mock.ExpectExec("INSERT INTO callouts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateCallout(context.Background(), "site-1", callout)
	require.NoError(t, err)
}

func TestGetCallout(t *testing.T) {
	repo, mock := newCalloutRepo(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"callout_id", "site_id", "asset_id", "contractor_id", "priority",
		"fault_description", "status", "repair_summary", "documents", "notes",
		"closed_at", "created_at", "updated_at",
	}).AddRow(
		"c-1", "site-1", "fridge-1", nil, "high",
		"over temp", "open", nil, []byte(`["invoice.pdf"]`), nil,
		nil, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM callouts").
		WithArgs("c-1", "site-1").
		WillReturnRows(rows)

	got, err := repo.GetCallout(context.Background(), "site-1", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", got.CalloutID)
	require.NotNil(t, got.AssetID)
	assert.Equal(t, "fridge-1", *got.AssetID)
	assert.Nil(t, got.ContractorID)
	assert.Equal(t, []string{"invoice.pdf"}, got.Documents)
	assert.Nil(t, got.ClosedAt)
}

func TestCloseCallout(t *testing.T) {
	repo, mock := newCalloutRepo(t)

	mock.ExpectExec("UPDATE callouts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CloseCallout(context.Background(), "site-1", "c-1", "compressor replaced", []string{"invoice.pdf"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseCalloutAlreadyClosed(t *testing.T) {
	repo, mock := newCalloutRepo(t)

	// status='open' 条件没匹配到行
	mock.ExpectExec("UPDATE callouts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CloseCallout(context.Background(), "site-1", "c-1", "done", nil)
	assert.ErrorContains(t, err, "not found or already closed")
}

func TestCloseCalloutRequiresSummary(t *testing.T) {
	repo, _ := newCalloutRepo(t)

	err := repo.CloseCallout(context.Background(), "site-1", "c-1", "", nil)
	assert.ErrorContains(t, err, "repair_summary is required")
}

func TestUpdateCalloutAllowedFields(t *testing.T) {
	repo, mock := newCalloutRepo(t)

	mock.ExpectExec("UPDATE callouts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateCallout(context.Background(), "site-1", "c-1", map[string]interface{}{
		"notes": "engineer on site",
	})
	require.NoError(t, err)

	err = repo.UpdateCallout(context.Background(), "site-1", "c-1", map[string]interface{}{
		"site_id": "site-2",
	})
	assert.ErrorContains(t, err, "not allowed to update")
}
