package health

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zinara-backend/internal/infrastructure/database"
	"zinara-backend/internal/middleware"
	"zinara-backend/internal/models"
)

func setupTest(t *testing.T) (*gorm.DB, *redis.Client) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return db, rdb
}

func TestCollectReportsOK(t *testing.T) {
	db, rdb := setupTest(t)
	svc := &Service{DB: db, Rdb: rdb}

	out := svc.Collect(context.Background())
	assert.Equal(t, "ok", out.Status)
	assert.NotEmpty(t, out.Runtime.GoVersion)
	require.Len(t, out.Dependencies, 2)
	assert.Equal(t, "database", out.Dependencies[0].Name)
	assert.Equal(t, "ok", out.Dependencies[0].Status)
	assert.Equal(t, "redis", out.Dependencies[1].Name)
	assert.Equal(t, "ok", out.Dependencies[1].Status)
}

func TestCollectTrafficCounters(t *testing.T) {
	db, rdb := setupTest(t)
	svc := &Service{DB: db, Rdb: rdb}
	ctx := context.Background()

	require.NoError(t, rdb.Set(ctx, middleware.KeyReqTotal, 10, 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyReqErrors, 2, 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyResTimeTotal, 500, 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyResCount, 10, 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyStartTime, "2026-08-30T08:00:00Z", 0).Err())

	out := svc.Collect(ctx)
	require.NotNil(t, out.Traffic)
	assert.EqualValues(t, 10, out.Traffic.ReqTotal)
	assert.EqualValues(t, 2, out.Traffic.ReqErrors)
	assert.InDelta(t, 50.0, out.Traffic.AvgLatencyMS, 0.01)
	assert.Equal(t, "2026-08-30T08:00:00Z", out.Traffic.StartTime)
}

func TestCollectQueues(t *testing.T) {
	db, rdb := setupTest(t)
	svc := &Service{DB: db, Rdb: rdb}

	require.NoError(t, db.Create(&models.StockRequest{
		BranchID: "BR001", CertTypeID: "CMVR", Quantity: 2, Reason: "Low",
		Status: models.RequestOpen, CreatedAt: time.Now().UTC(), CreatedBy: "clerk",
	}).Error)
	require.NoError(t, db.Create(&models.Return{
		ManifestNo: "RET-20260830-111500-456", FromBranchID: "BR001", CertTypeID: "CMVR",
		Quantity: 1, Status: models.ManifestSent, Reason: "Damaged",
		CreatedAt: time.Now().UTC(), CreatedBy: "clerk",
	}).Error)

	out := svc.Collect(context.Background())
	require.NotNil(t, out.Queues)
	assert.EqualValues(t, 1, out.Queues.OpenRequests)
	assert.EqualValues(t, 0, out.Queues.SentTransfers)
	assert.EqualValues(t, 1, out.Queues.PendingReturns)
}

func TestCollectWithoutRedis(t *testing.T) {
	db, _ := setupTest(t)
	svc := &Service{DB: db}

	out := svc.Collect(context.Background())
	assert.Equal(t, "ok", out.Status)
	require.Len(t, out.Dependencies, 1)
	assert.Nil(t, out.Traffic)
}
