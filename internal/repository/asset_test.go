package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAssetRepo(t *testing.T) (*AssetRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAssetRepository(db, zap.NewNop()), mock
}

func assetColumnsRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"asset_id", "site_id", "name", "working_temp_min", "working_temp_max",
		"reactive_contractor_id", "ppm_contractor_id", "warranty_contractor_id",
		"created_at", "updated_at",
	})
}

func TestGetAsset(t *testing.T) {
	repo, mock := newAssetRepo(t)
	now := time.Now()

	// 冷冻柜：全负数工作区间
	mock.ExpectQuery("SELECT (.+) FROM assets").
		WithArgs("freezer-1", "site-1").
		WillReturnRows(assetColumnsRows().
			AddRow("freezer-1", "site-1", "Freezer", -20.0, -18.0, "reactive-1", nil, nil, now, now))

	got, err := repo.GetAsset(context.Background(), "site-1", "freezer-1")
	require.NoError(t, err)
	require.NotNil(t, got.WorkingTempMin)
	assert.Equal(t, -20.0, *got.WorkingTempMin)
	require.NotNil(t, got.WorkingTempMax)
	assert.Equal(t, -18.0, *got.WorkingTempMax)
	require.NotNil(t, got.ReactiveContractorID)
	assert.Equal(t, "reactive-1", *got.ReactiveContractorID)
	assert.Nil(t, got.PPMContractorID)
}

func TestGetAssetNullLimits(t *testing.T) {
	repo, mock := newAssetRepo(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM assets").
		WithArgs("probe-1", "site-1").
		WillReturnRows(assetColumnsRows().
			AddRow("probe-1", "site-1", "Probe", nil, nil, nil, nil, nil, now, now))

	got, err := repo.GetAsset(context.Background(), "site-1", "probe-1")
	require.NoError(t, err)
	assert.Nil(t, got.WorkingTempMin)
	assert.Nil(t, got.WorkingTempMax)
}

func TestGetAssetNotFound(t *testing.T) {
	repo, mock := newAssetRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM assets").
		WithArgs("missing", "site-1").
		WillReturnRows(assetColumnsRows())

	_, err := repo.GetAsset(context.Background(), "site-1", "missing")
	assert.ErrorContains(t, err, "asset not found")
}

func TestGetAssetsIndexesByID(t *testing.T) {
	repo, mock := newAssetRepo(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM assets").
		WillReturnRows(assetColumnsRows().
			AddRow("fridge-1", "site-1", "Fridge 1", 0.0, 5.0, nil, nil, nil, now, now).
			AddRow("fridge-2", "site-1", "Fridge 2", 0.0, 5.0, nil, nil, nil, now, now))

	// 缺失的 id 不报错：完成记录允许无读数占位
	got, err := repo.GetAssets(context.Background(), "site-1", []string{"fridge-1", "fridge-2", "gone-1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "fridge-1")
	assert.Contains(t, got, "fridge-2")
	assert.NotContains(t, got, "gone-1")
}

func TestGetAssetsEmptyInput(t *testing.T) {
	repo, _ := newAssetRepo(t)

	got, err := repo.GetAssets(context.Background(), "site-1", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
