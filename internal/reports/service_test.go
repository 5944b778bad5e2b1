package reports

import (
	"bytes"
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
	"zinara-backend/internal/manifests"
	"zinara-backend/internal/models"
	"zinara-backend/internal/thresholds"
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
	require.NoError(t, db.Create(&models.CertificateType{CertTypeID: "CRW", Name: "Radio Licence", IsActive: true}).Error)
	return db
}

func newService(db *gorm.DB) *Service {
	auditSvc := &audit.Service{DB: db}
	return &Service{
		DB: db,
		Thresholds: &thresholds.Service{
			DB:        db,
			Manifests: &manifests.Service{DB: db, Audit: auditSvc},
			Audit:     auditSvc,
		},
	}
}

func seedCert(t *testing.T, db *gorm.DB, num, certType string, status models.CertificateStatus) *models.Certificate {
	t.Helper()
	now := time.Now().UTC()
	cert := models.Certificate{
		CertificateNumber: num,
		CertTypeID:        certType,
		Status:            status,
		CurrentOwnerType:  models.OwnerHQ,
		CapturedAt:        now,
		CapturedBy:        "hq-admin",
		CaptureMethod:     "MANUAL",
		LastMovementAt:    now,
	}
	if status == models.CertStatusBranchStock || status == models.CertStatusIssued {
		cert.CurrentOwnerType = models.OwnerBranch
		cert.CurrentOwnerBranchID = "BR001"
	}
	require.NoError(t, db.Create(&cert).Error)
	return &cert
}

func TestHQStockSummary(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)

	seedCert(t, db, "CERT-0001", "CMVR", models.CertStatusHQStock)
	seedCert(t, db, "CERT-0002", "CMVR", models.CertStatusHQStock)
	seedCert(t, db, "CERT-0003", "CMVR", models.CertStatusBranchStock)

	rows, err := svc.HQStockSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byType := map[string]int{}
	for _, r := range rows {
		byType[r.CertTypeID] = r.HQStock
	}
	assert.Equal(t, 2, byType["CMVR"])
	assert.Equal(t, 0, byType["CRW"])
}

func TestCollectOpsCounters(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)

	require.NoError(t, db.Create(&models.StockRequest{
		BranchID: "BR001", CertTypeID: "CMVR", Quantity: 2, Reason: "Low",
		Status: models.RequestOpen, CreatedAt: time.Now().UTC(), CreatedBy: "clerk",
	}).Error)
	require.NoError(t, db.Create(&models.Transfer{
		ManifestNo: "TRF-20260830-101500-123", ToBranchID: "BR001", CertTypeID: "CMVR",
		Quantity: 2, Status: models.ManifestSent, CreatedAt: time.Now().UTC(), CreatedBy: "hq-admin",
	}).Error)

	counters, err := svc.CollectOpsCounters(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, counters.OpenRequests)
	assert.EqualValues(t, 1, counters.SentTransfers)
	assert.EqualValues(t, 0, counters.PendingReturns)
}

func TestRecentActivityMergesNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	now := time.Now().UTC()

	require.NoError(t, db.Create(&models.Transfer{
		ManifestNo: "TRF-20260830-101500-123", ToBranchID: "BR001", CertTypeID: "CMVR",
		Quantity: 2, Status: models.ManifestSent, CreatedAt: now.Add(-2 * time.Hour), CreatedBy: "hq-admin",
	}).Error)
	require.NoError(t, db.Create(&models.Return{
		ManifestNo: "RET-20260830-111500-456", FromBranchID: "BR001", CertTypeID: "CMVR",
		Quantity: 1, Status: models.ManifestSent, Reason: "Damaged",
		CreatedAt: now.Add(-1 * time.Hour), CreatedBy: "clerk",
	}).Error)
	require.NoError(t, db.Create(&models.StockRequest{
		BranchID: "BR001", CertTypeID: "CMVR", Quantity: 2, Reason: "Low",
		Status: models.RequestOpen, CreatedAt: now, CreatedBy: "clerk",
	}).Error)

	items, err := svc.RecentActivity(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "REQUEST", items[0].Type)
	assert.Equal(t, "RETURN", items[1].Type)
	assert.Equal(t, "TRANSFER", items[2].Type)
}

func issueCert(t *testing.T, db *gorm.DB, cert *models.Certificate, when time.Time) {
	t.Helper()
	branch := "BR001"
	by := "clerk"
	client := "T. Moyo"
	policy := "POL-77"
	require.NoError(t, db.Model(cert).Updates(map[string]interface{}{
		"status":                models.CertStatusIssued,
		"issued_at":             when,
		"issued_branch_id":      branch,
		"issued_by":             by,
		"issued_to_client_name": client,
		"issued_policy_number":  policy,
	}).Error)
}

func TestIssuedReportFiltersAndCSV(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	now := time.Now().UTC()

	for i := 1; i <= 3; i++ {
		cert := seedCert(t, db, fmt.Sprintf("CERT-%04d", i), "CMVR", models.CertStatusBranchStock)
		issueCert(t, db, cert, now.Add(-time.Duration(i)*time.Hour))
	}
	seedCert(t, db, "CERT-0009", "CMVR", models.CertStatusBranchStock)

	rows, err := svc.IssuedReport(context.Background(), IssuedFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// newest issuance first
	assert.Equal(t, "CERT-0001", rows[0].CertificateNumber)

	cutoff := now.Add(-90 * time.Minute)
	rows, err = svc.IssuedReport(context.Background(), IssuedFilter{From: &cutoff})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = svc.IssuedReport(context.Background(), IssuedFilter{BranchID: "BR999"})
	require.NoError(t, err)
	assert.Empty(t, rows)

	full, err := svc.IssuedReport(context.Background(), IssuedFilter{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteIssuedCSV(&buf, full))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "certificate_number")
	assert.Contains(t, lines[1], "T. Moyo")
}

func TestMovementsSummary(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	now := time.Now().UTC()

	require.NoError(t, db.Create(&models.Transfer{
		ManifestNo: "TRF-20260830-101500-123", ToBranchID: "BR001", CertTypeID: "CMVR",
		Quantity: 2, Status: models.ManifestAccepted, CreatedAt: now.Add(-time.Hour), CreatedBy: "hq-admin",
	}).Error)
	require.NoError(t, db.Create(&models.Return{
		ManifestNo: "RET-20260830-111500-456", FromBranchID: "BR001", CertTypeID: "CMVR",
		Quantity: 1, Status: models.ManifestSent, Reason: "Damaged",
		CreatedAt: now, CreatedBy: "clerk",
	}).Error)

	rows, err := svc.MovementsSummary(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "RETURN", rows[0].Kind)
	assert.Equal(t, "TRANSFER", rows[1].Kind)

	from := now.Add(-30 * time.Minute)
	rows, err = svc.MovementsSummary(context.Background(), &from, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "RETURN", rows[0].Kind)

	var buf bytes.Buffer
	full, err := svc.MovementsSummary(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, WriteMovementsCSV(&buf, full))
	assert.Contains(t, buf.String(), "TRF-20260830-101500-123")
}
