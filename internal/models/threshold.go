package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Threshold is a minimum-stock level for a certificate type. BranchID is empty
// for the type-wide default; a non-empty BranchID is a branch override. The
// composite unique index gives at most one default per type and one override per
// (branch, type) pair.
type Threshold struct {
	ThresholdID uuid.UUID `gorm:"column:threshold_id;type:uuid;primaryKey" json:"threshold_id"`
	CertTypeID  string    `gorm:"column:cert_type_id;not null;uniqueIndex:idx_thresholds_scope,priority:1" json:"cert_type_id"`
	BranchID    string    `gorm:"column:branch_id;uniqueIndex:idx_thresholds_scope,priority:2" json:"branch_id"`
	MinLevel    int       `gorm:"column:min_level;not null" json:"min_level"`

	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
	UpdatedBy string    `gorm:"column:updated_by;not null" json:"updated_by"`
}

func (Threshold) TableName() string {
	return "Thresholds"
}

func (t *Threshold) BeforeCreate(tx *gorm.DB) error {
	if t.ThresholdID == uuid.Nil {
		t.ThresholdID = uuid.New()
	}
	return nil
}
