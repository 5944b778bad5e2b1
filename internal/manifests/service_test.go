package manifests

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zinara-backend/internal/audit"
	"zinara-backend/internal/infrastructure/database"
	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/errs"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	require.NoError(t, db.Create(&models.Branch{BranchID: "BR001", BranchName: "Harare Central", IsActive: true}).Error)
	require.NoError(t, db.Create(&models.CertificateType{CertTypeID: "CMVR", Name: "Motor Vehicle Registration", IsActive: true}).Error)
	return db
}

func newService(db *gorm.DB) *Service {
	return &Service{DB: db, Audit: &audit.Service{DB: db}}
}

var (
	hqActor     = models.Actor{UserID: "hq-admin", Role: models.RoleHQAdmin}
	branchActor = models.Actor{UserID: "clerk", Role: models.RoleBranchUser, BranchID: "BR001"}
)

func seedHQStock(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		captured := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.Create(&models.Certificate{
			CertificateNumber:    fmt.Sprintf("CERT-%04d", i+1),
			CertTypeID:           "CMVR",
			Status:               models.CertStatusHQStock,
			CurrentOwnerType:     models.OwnerHQ,
			CapturedAt:           captured,
			CapturedBy:           "hq-admin",
			CaptureMethod:        "MANUAL",
			LastMovementAt:       captured,
			CurrentOwnerBranchID: "",
		}).Error)
	}
}

func countByStatus(t *testing.T, db *gorm.DB, status models.CertificateStatus) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Certificate{}).Where("status = ?", status).Count(&n).Error)
	return n
}

func TestTransferRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	ctx := context.Background()
	seedHQStock(t, db, 5)

	transfer, err := svc.CreateTransfer(ctx, CreateTransferInput{
		ToBranchID: "BR001",
		CertTypeID: "CMVR",
		Quantity:   3,
		Actor:      hqActor,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(transfer.ManifestNo, "TRF-"))
	assert.Equal(t, models.ManifestSent, transfer.Status)
	require.Len(t, transfer.Items, 3)
	// oldest captured first
	assert.Equal(t, "CERT-0001", transfer.Items[0].CertificateNumber)

	assert.EqualValues(t, 2, countByStatus(t, db, models.CertStatusHQStock))
	assert.EqualValues(t, 3, countByStatus(t, db, models.CertStatusInTransitToBranch))

	var inTransit []models.Certificate
	require.NoError(t, db.Where("status = ?", models.CertStatusInTransitToBranch).Find(&inTransit).Error)
	for _, c := range inTransit {
		assert.Equal(t, models.OwnerBranch, c.CurrentOwnerType)
		assert.Equal(t, "BR001", c.CurrentOwnerBranchID)
		assert.Equal(t, transfer.ManifestNo, c.ManifestNo)
	}

	accepted, err := svc.AcceptTransfer(ctx, transfer.ManifestNo, "BR001", branchActor)
	require.NoError(t, err)
	assert.Equal(t, models.ManifestAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	assert.EqualValues(t, 3, countByStatus(t, db, models.CertStatusBranchStock))
	var branchStock []models.Certificate
	require.NoError(t, db.Where("status = ?", models.CertStatusBranchStock).Find(&branchStock).Error)
	for _, c := range branchStock {
		assert.Empty(t, c.ManifestNo)
	}

	var events []models.AuditEvent
	require.NoError(t, db.Order("at_utc ASC").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventTransferCreate, events[0].EventType)
	assert.Equal(t, audit.EventTransferAccept, events[1].EventType)
}

func TestCreateTransferInsufficientStockIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	seedHQStock(t, db, 2)

	_, err := svc.CreateTransfer(context.Background(), CreateTransferInput{
		ToBranchID: "BR001",
		CertTypeID: "CMVR",
		Quantity:   5,
		Actor:      hqActor,
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindInsufficientStock))

	// nothing moved, nothing written
	assert.EqualValues(t, 2, countByStatus(t, db, models.CertStatusHQStock))
	var transfers int64
	require.NoError(t, db.Model(&models.Transfer{}).Count(&transfers).Error)
	assert.EqualValues(t, 0, transfers)
	var events int64
	require.NoError(t, db.Model(&models.AuditEvent{}).Count(&events).Error)
	assert.EqualValues(t, 0, events)
}

func TestCreateTransferRejectsBranchActor(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	seedHQStock(t, db, 2)

	_, err := svc.CreateTransfer(context.Background(), CreateTransferInput{
		ToBranchID: "BR001",
		CertTypeID: "CMVR",
		Quantity:   1,
		Actor:      branchActor,
	})
	require.Error(t, err)
}

func TestAcceptTransferTwice(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	ctx := context.Background()
	seedHQStock(t, db, 2)

	transfer, err := svc.CreateTransfer(ctx, CreateTransferInput{
		ToBranchID: "BR001", CertTypeID: "CMVR", Quantity: 2, Actor: hqActor,
	})
	require.NoError(t, err)
	_, err = svc.AcceptTransfer(ctx, transfer.ManifestNo, "BR001", branchActor)
	require.NoError(t, err)

	_, err = svc.AcceptTransfer(ctx, transfer.ManifestNo, "BR001", branchActor)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindInvalidState))

	// the replay appended no extra event
	var events int64
	require.NoError(t, db.Model(&models.AuditEvent{}).Count(&events).Error)
	assert.EqualValues(t, 2, events)
}

func TestAcceptTransferWrongBranch(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	ctx := context.Background()
	seedHQStock(t, db, 1)

	transfer, err := svc.CreateTransfer(ctx, CreateTransferInput{
		ToBranchID: "BR001", CertTypeID: "CMVR", Quantity: 1, Actor: hqActor,
	})
	require.NoError(t, err)

	_, err = svc.AcceptTransfer(ctx, transfer.ManifestNo, "BR002", hqActor)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotAvailable))
}

func TestReturnRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	ctx := context.Background()
	seedHQStock(t, db, 3)

	transfer, err := svc.CreateTransfer(ctx, CreateTransferInput{
		ToBranchID: "BR001", CertTypeID: "CMVR", Quantity: 3, Actor: hqActor,
	})
	require.NoError(t, err)
	_, err = svc.AcceptTransfer(ctx, transfer.ManifestNo, "BR001", branchActor)
	require.NoError(t, err)

	ret, err := svc.CreateReturn(ctx, CreateReturnInput{
		FromBranchID: "BR001",
		CertTypeID:   "CMVR",
		Selection:    ReturnSelection{Quantity: 2},
		Reason:       "Damaged stock",
		Actor:        branchActor,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ret.ManifestNo, "RET-"))
	assert.Equal(t, models.ManifestSent, ret.Status)
	require.Len(t, ret.Items, 2)

	assert.EqualValues(t, 2, countByStatus(t, db, models.CertStatusInTransitToHQ))
	var inTransit []models.Certificate
	require.NoError(t, db.Where("status = ?", models.CertStatusInTransitToHQ).Find(&inTransit).Error)
	for _, c := range inTransit {
		assert.Equal(t, models.OwnerHQ, c.CurrentOwnerType)
		assert.Empty(t, c.CurrentOwnerBranchID)
	}

	received, err := svc.ReceiveReturn(ctx, ret.ManifestNo, hqActor)
	require.NoError(t, err)
	assert.Equal(t, models.ManifestReceived, received.Status)

	assert.EqualValues(t, 2, countByStatus(t, db, models.CertStatusHQStock))
	assert.EqualValues(t, 1, countByStatus(t, db, models.CertStatusBranchStock))

	// total unit count never changes across the whole cycle
	var total int64
	require.NoError(t, db.Model(&models.Certificate{}).Count(&total).Error)
	assert.EqualValues(t, 3, total)

	var events []models.AuditEvent
	require.NoError(t, db.Order("at_utc ASC").Find(&events).Error)
	require.Len(t, events, 4)
	assert.Equal(t, audit.EventTransferCreate, events[0].EventType)
	assert.Equal(t, audit.EventTransferAccept, events[1].EventType)
	assert.Equal(t, audit.EventReturnCreate, events[2].EventType)
	assert.Equal(t, audit.EventReturnReceive, events[3].EventType)
}

func TestCreateReturnRequiresReason(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		FromBranchID: "BR001",
		CertTypeID:   "CMVR",
		Selection:    ReturnSelection{Quantity: 1},
		Actor:        branchActor,
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestCreateReturnExplicitRejectsWholeBatch(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	ctx := context.Background()
	seedHQStock(t, db, 2)

	transfer, err := svc.CreateTransfer(ctx, CreateTransferInput{
		ToBranchID: "BR001", CertTypeID: "CMVR", Quantity: 2, Actor: hqActor,
	})
	require.NoError(t, err)
	_, err = svc.AcceptTransfer(ctx, transfer.ManifestNo, "BR001", branchActor)
	require.NoError(t, err)

	// one eligible number plus one that was never in branch stock
	_, err = svc.CreateReturn(ctx, CreateReturnInput{
		FromBranchID: "BR001",
		CertTypeID:   "CMVR",
		Selection:    ReturnSelection{CertificateNumbers: []string{"CERT-0001", "CERT-9999"}},
		Reason:       "Audit recall",
		Actor:        branchActor,
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotAvailable))

	// the eligible unit did not move
	assert.EqualValues(t, 2, countByStatus(t, db, models.CertStatusBranchStock))
	var returns int64
	require.NoError(t, db.Model(&models.Return{}).Count(&returns).Error)
	assert.EqualValues(t, 0, returns)
}

func TestReceiveReturnTwice(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	ctx := context.Background()
	seedHQStock(t, db, 1)

	transfer, err := svc.CreateTransfer(ctx, CreateTransferInput{
		ToBranchID: "BR001", CertTypeID: "CMVR", Quantity: 1, Actor: hqActor,
	})
	require.NoError(t, err)
	_, err = svc.AcceptTransfer(ctx, transfer.ManifestNo, "BR001", branchActor)
	require.NoError(t, err)
	ret, err := svc.CreateReturn(ctx, CreateReturnInput{
		FromBranchID: "BR001", CertTypeID: "CMVR",
		Selection: ReturnSelection{Quantity: 1},
		Reason:    "Damaged", Actor: branchActor,
	})
	require.NoError(t, err)
	_, err = svc.ReceiveReturn(ctx, ret.ManifestNo, hqActor)
	require.NoError(t, err)

	_, err = svc.ReceiveReturn(ctx, ret.ManifestNo, hqActor)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindInvalidState))
}

func TestListIncomingReturns(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	ctx := context.Background()
	seedHQStock(t, db, 1)

	transfer, err := svc.CreateTransfer(ctx, CreateTransferInput{
		ToBranchID: "BR001", CertTypeID: "CMVR", Quantity: 1, Actor: hqActor,
	})
	require.NoError(t, err)
	_, err = svc.AcceptTransfer(ctx, transfer.ManifestNo, "BR001", branchActor)
	require.NoError(t, err)
	ret, err := svc.CreateReturn(ctx, CreateReturnInput{
		FromBranchID: "BR001", CertTypeID: "CMVR",
		Selection: ReturnSelection{Quantity: 1},
		Reason:    "Recall", Actor: branchActor,
	})
	require.NoError(t, err)

	pending, err := svc.ListIncomingReturns(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ret.ManifestNo, pending[0].ManifestNo)

	_, err = svc.ReceiveReturn(ctx, ret.ManifestNo, hqActor)
	require.NoError(t, err)
	pending, err = svc.ListIncomingReturns(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
