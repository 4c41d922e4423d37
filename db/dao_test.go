package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fteops/dutyrecon/models"
)

func newTestDAO(t *testing.T) *ResultDAO {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "results.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	dao, err := NewResultDAOWithDB(gdb, nil, nil)
	require.NoError(t, err)
	return dao
}

func sampleResult(mawb string, brokerID, formatID uuid.UUID, status string) *models.Result {
	rec := &models.Result{
		MAWB:     mawb,
		BrokerID: brokerID.String(),
		FormatID: formatID.String(),
		Status:   status,
	}
	summary := models.NewSummary(mawb, "")
	_ = rec.SetSummary(summary)
	return rec
}

func TestUpsertCreatesRow(t *testing.T) {
	dao := newTestDAO(t)
	ctx := context.Background()
	brokerID, formatID := uuid.New(), uuid.New()

	require.NoError(t, dao.Upsert(ctx, sampleResult("23594731221", brokerID, formatID, models.StatusSuccess)))

	rec, err := dao.Get(ctx, "23594731221", brokerID, formatID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.StatusSuccess, rec.Status)
}

// Two runs with the same key produce at most one row; the second overwrites.
func TestUpsertOverwritesOnSameKey(t *testing.T) {
	dao := newTestDAO(t)
	ctx := context.Background()
	brokerID, formatID := uuid.New(), uuid.New()

	require.NoError(t, dao.Upsert(ctx, sampleResult("23594731221", brokerID, formatID, models.StatusFailed)))
	second := sampleResult("23594731221", brokerID, formatID, models.StatusSuccess)
	second.ArtifactPath = "netchb-duty/customizable-reports/235-94731221.xlsx"
	require.NoError(t, dao.Upsert(ctx, second))

	recs, err := dao.List(ctx, "23594731221", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.StatusSuccess, recs[0].Status)
	assert.Equal(t, "netchb-duty/customizable-reports/235-94731221.xlsx", recs[0].ArtifactPath)
}

func TestUpsertDistinctKeysKeepSeparateRows(t *testing.T) {
	dao := newTestDAO(t)
	ctx := context.Background()
	brokerID, formatA, formatB := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, dao.Upsert(ctx, sampleResult("23594731221", brokerID, formatA, models.StatusSuccess)))
	require.NoError(t, dao.Upsert(ctx, sampleResult("23594731221", brokerID, formatB, models.StatusSuccess)))

	recs, err := dao.List(ctx, "23594731221", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestGetMissingReturnsNil(t *testing.T) {
	dao := newTestDAO(t)
	rec, err := dao.Get(context.Background(), "00000000000", uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestListLimit(t *testing.T) {
	dao := newTestDAO(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, dao.Upsert(ctx, sampleResult("23594731221", uuid.New(), uuid.New(), models.StatusSuccess)))
	}
	recs, err := dao.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

// A stub that fails twice with a connection reset then succeeds must produce
// success in exactly three attempts, re-creating the client between them.
func TestWithRetryTransientFailure(t *testing.T) {
	dao := newTestDAO(t)
	attempts := 0
	err := dao.withRetry(context.Background(), "stub", func() error {
		attempts++
		if attempts <= 2 {
			return errors.New("read tcp: connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryPermanentFailure(t *testing.T) {
	dao := newTestDAO(t)
	attempts := 0
	err := dao.withRetry(context.Background(), "stub", func() error {
		attempts++
		return errors.New("syntax error at or near")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestSummaryRoundTripThroughDAO(t *testing.T) {
	dao := newTestDAO(t)
	ctx := context.Background()
	brokerID, formatID := uuid.New(), uuid.New()

	rec := sampleResult("23594731221", brokerID, formatID, models.StatusSuccess)
	summary := models.NewSummary("23594731221", "4250")
	summary[models.KeyAMSDuty] = "$1,234.56"
	require.NoError(t, rec.SetSummary(summary))
	require.NoError(t, dao.Upsert(ctx, rec))

	got, err := dao.Get(ctx, "23594731221", brokerID, formatID)
	require.NoError(t, err)
	decoded, err := got.GetSummary()
	require.NoError(t, err)
	assert.Equal(t, "$1,234.56", decoded.Get(models.KeyAMSDuty))
	assert.Equal(t, "4250", decoded.Get(models.KeyCheckbookHAWBs))
}
