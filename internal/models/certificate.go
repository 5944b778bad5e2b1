package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CertificateStatus is the closed set of custody states a certificate moves through.
type CertificateStatus string

const (
	CertStatusHQStock           CertificateStatus = "HQ_STOCK"
	CertStatusInTransitToBranch CertificateStatus = "IN_TRANSIT_TO_BRANCH"
	CertStatusBranchStock       CertificateStatus = "BRANCH_STOCK"
	CertStatusIssued            CertificateStatus = "ISSUED"
	CertStatusInTransitToHQ     CertificateStatus = "IN_TRANSIT_TO_HQ"
)

// OwnerType says who holds the certificate right now.
type OwnerType string

const (
	OwnerHQ     OwnerType = "HQ"
	OwnerBranch OwnerType = "BRANCH"
)

// Certificate is one serialized certificate unit. CertificateNumber is stored as
// captured; NumberKey holds the lowercased form and carries the unique index, so
// uniqueness is case-insensitive on every driver.
type Certificate struct {
	CertificateID     uuid.UUID         `gorm:"column:certificate_id;type:uuid;primaryKey" json:"certificate_id"`
	CertificateNumber string            `gorm:"column:certificate_number;not null" json:"certificate_number"`
	NumberKey         string            `gorm:"column:number_key;uniqueIndex;not null" json:"-"`
	CertTypeID        string            `gorm:"column:cert_type_id;index;not null" json:"cert_type_id"`
	BatchID           *string           `gorm:"column:batch_id" json:"batch_id"`
	Status            CertificateStatus `gorm:"column:status;type:varchar(24);not null;index" json:"status"`
	CurrentOwnerType  OwnerType         `gorm:"column:current_owner_type;type:varchar(8);not null" json:"current_owner_type"`
	// Empty when the certificate is HQ-held.
	CurrentOwnerBranchID string `gorm:"column:current_owner_branch_id;index" json:"current_owner_branch_id"`

	CapturedAt    time.Time `gorm:"column:captured_at;not null" json:"captured_at"`
	CapturedBy    string    `gorm:"column:captured_by;not null" json:"captured_by"`
	CaptureMethod string    `gorm:"column:capture_method;not null" json:"capture_method"`

	LastMovementAt time.Time `gorm:"column:last_movement_at;not null;index" json:"last_movement_at"`
	// Manifest the unit is currently bound to; empty when not in any open manifest.
	ManifestNo string `gorm:"column:manifest_no" json:"manifest_no"`

	IssuedAt           *time.Time `gorm:"column:issued_at" json:"issued_at"`
	IssuedBranchID     *string    `gorm:"column:issued_branch_id" json:"issued_branch_id"`
	IssuedBy           *string    `gorm:"column:issued_by" json:"issued_by"`
	IssuedToClientName *string    `gorm:"column:issued_to_client_name" json:"issued_to_client_name"`
	IssuedPolicyNumber *string    `gorm:"column:issued_policy_number" json:"issued_policy_number"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Certificate) TableName() string {
	return "Certificates"
}

func (c *Certificate) BeforeCreate(tx *gorm.DB) error {
	if c.CertificateID == uuid.Nil {
		c.CertificateID = uuid.New()
	}
	if c.NumberKey == "" {
		c.NumberKey = strings.ToLower(c.CertificateNumber)
	}
	return nil
}
