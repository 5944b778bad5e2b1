package audit

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zinara-backend/internal/infrastructure/database"
	"zinara-backend/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

var hqActor = models.Actor{UserID: "hq-admin", Role: models.RoleHQAdmin}

func appendEvents(t *testing.T, svc *Service) {
	t.Helper()
	entries := []Entry{
		{EventType: EventCapture, Actor: hqActor, EntityType: EntityCertificate, EntityID: "CERT-0001",
			Payload: map[string]interface{}{"cert_type_id": "CMVR"}},
		{EventType: EventTransferCreate, Actor: hqActor, EntityType: EntityTransfer, EntityID: "TRF-20260830-101500-123",
			Payload: map[string]interface{}{"to_branch_id": "BR001", "quantity": 3}},
		{EventType: EventIssue, Actor: models.Actor{UserID: "clerk", Role: models.RoleBranchUser, BranchID: "BR001"},
			EntityType: EntityCertificate, EntityID: "CERT-0001",
			Payload: map[string]interface{}{"client_name": "T. Moyo"}},
	}
	for _, e := range entries {
		require.NoError(t, svc.Append(svc.DB, e))
	}
}

func TestSearchNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db}
	appendEvents(t, svc)

	events, err := svc.Search(context.Background(), SearchFilter{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventIssue, events[0].EventType)
	assert.Equal(t, EventCapture, events[2].EventType)
}

func TestSearchByEventType(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db}
	appendEvents(t, svc)

	events, err := svc.Search(context.Background(), SearchFilter{EventType: "transfer_create"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "TRF-20260830-101500-123", events[0].EntityID)
}

func TestSearchByActor(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db}
	appendEvents(t, svc)

	events, err := svc.Search(context.Background(), SearchFilter{Actor: "CLERK"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventIssue, events[0].EventType)
}

func TestSearchFreeTextMatchesPayload(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db}
	appendEvents(t, svc)

	events, err := svc.Search(context.Background(), SearchFilter{Text: "moyo"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventIssue, events[0].EventType)

	events, err = svc.Search(context.Background(), SearchFilter{Text: "cert-0001"})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEventsAreAppendOnly(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db}
	appendEvents(t, svc)

	var ev models.AuditEvent
	require.NoError(t, db.First(&ev).Error)

	err := db.Model(&ev).Update("entity_id", "TAMPERED").Error
	require.Error(t, err)

	err = db.Delete(&ev).Error
	require.Error(t, err)

	var n int64
	require.NoError(t, db.Model(&models.AuditEvent{}).Count(&n).Error)
	assert.EqualValues(t, 3, n)
}
