package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEvent is one immutable record of a state-changing operation.
type AuditEvent struct {
	AuditID    uuid.UUID      `gorm:"column:audit_id;type:uuid;primaryKey" json:"audit_id"`
	AtUTC      time.Time      `gorm:"column:at_utc;not null;index" json:"at_utc"`
	EventType  string         `gorm:"column:event_type;index;not null" json:"event_type"`
	ActorID    string         `gorm:"column:actor_id;not null" json:"actor_id"`
	ActorRole  string         `gorm:"column:actor_role;not null" json:"actor_role"`
	EntityType string         `gorm:"column:entity_type;not null" json:"entity_type"`
	EntityID   string         `gorm:"column:entity_id;not null" json:"entity_id"`
	Payload    datatypes.JSON `gorm:"column:payload" json:"payload"`
}

func (AuditEvent) TableName() string {
	return "AuditEvents"
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.AuditID == uuid.Nil {
		e.AuditID = uuid.New()
	}
	return nil
}

// The ledger is append-only; there is no update or delete path.

func (e *AuditEvent) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("audit events are append-only")
}

func (e *AuditEvent) BeforeDelete(tx *gorm.DB) error {
	return errors.New("audit events are append-only")
}
