package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ManifestStatus covers both transfer and return manifests.
type ManifestStatus string

const (
	ManifestCreated   ManifestStatus = "CREATED"
	ManifestSent      ManifestStatus = "SENT"
	ManifestAccepted  ManifestStatus = "ACCEPTED"
	ManifestReceived  ManifestStatus = "RECEIVED"
	ManifestCancelled ManifestStatus = "CANCELLED"
)

// Transfer is an HQ -> branch manifest binding a fixed set of certificates.
type Transfer struct {
	TransferID uuid.UUID      `gorm:"column:transfer_id;type:uuid;primaryKey" json:"transfer_id"`
	ManifestNo string         `gorm:"column:manifest_no;uniqueIndex;not null" json:"manifest_no"`
	ToBranchID string         `gorm:"column:to_branch_id;index;not null" json:"to_branch_id"`
	CertTypeID string         `gorm:"column:cert_type_id;not null" json:"cert_type_id"`
	Quantity   int            `gorm:"column:quantity;not null" json:"quantity"`
	Status     ManifestStatus `gorm:"column:status;type:varchar(12);not null" json:"status"`
	Note       *string        `gorm:"column:note" json:"note"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	CreatedBy string    `gorm:"column:created_by;not null" json:"created_by"`

	SentAt *time.Time `gorm:"column:sent_at" json:"sent_at"`
	SentBy *string    `gorm:"column:sent_by" json:"sent_by"`

	AcceptedAt *time.Time `gorm:"column:accepted_at" json:"accepted_at"`
	AcceptedBy *string    `gorm:"column:accepted_by" json:"accepted_by"`

	Items []TransferItem `gorm:"foreignKey:TransferID;references:TransferID" json:"items"`
}

func (Transfer) TableName() string {
	return "Transfers"
}

func (t *Transfer) BeforeCreate(tx *gorm.DB) error {
	if t.TransferID == uuid.Nil {
		t.TransferID = uuid.New()
	}
	return nil
}

// TransferItem binds one certificate to a transfer manifest.
type TransferItem struct {
	TransferItemID    int64     `gorm:"column:transfer_item_id;primaryKey;autoIncrement" json:"transfer_item_id"`
	TransferID        uuid.UUID `gorm:"column:transfer_id;type:uuid;index;not null" json:"transfer_id"`
	CertificateID     uuid.UUID `gorm:"column:certificate_id;type:uuid;not null" json:"certificate_id"`
	CertificateNumber string    `gorm:"column:certificate_number;not null" json:"certificate_number"`
}

func (TransferItem) TableName() string {
	return "TransferItems"
}

// Return is a branch -> HQ manifest. Reason is mandatory.
type Return struct {
	ReturnID     uuid.UUID      `gorm:"column:return_id;type:uuid;primaryKey" json:"return_id"`
	ManifestNo   string         `gorm:"column:manifest_no;uniqueIndex;not null" json:"manifest_no"`
	FromBranchID string         `gorm:"column:from_branch_id;index;not null" json:"from_branch_id"`
	CertTypeID   string         `gorm:"column:cert_type_id;not null" json:"cert_type_id"`
	Quantity     int            `gorm:"column:quantity;not null" json:"quantity"`
	Status       ManifestStatus `gorm:"column:status;type:varchar(12);not null" json:"status"`
	Reason       string         `gorm:"column:reason;not null" json:"reason"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	CreatedBy string    `gorm:"column:created_by;not null" json:"created_by"`

	ReceivedAt *time.Time `gorm:"column:received_at" json:"received_at"`
	ReceivedBy *string    `gorm:"column:received_by" json:"received_by"`

	Items []ReturnItem `gorm:"foreignKey:ReturnID;references:ReturnID" json:"items"`
}

func (Return) TableName() string {
	return "Returns"
}

func (r *Return) BeforeCreate(tx *gorm.DB) error {
	if r.ReturnID == uuid.Nil {
		r.ReturnID = uuid.New()
	}
	return nil
}

// ReturnItem binds one certificate to a return manifest.
type ReturnItem struct {
	ReturnItemID      int64     `gorm:"column:return_item_id;primaryKey;autoIncrement" json:"return_item_id"`
	ReturnID          uuid.UUID `gorm:"column:return_id;type:uuid;index;not null" json:"return_id"`
	CertificateID     uuid.UUID `gorm:"column:certificate_id;type:uuid;not null" json:"certificate_id"`
	CertificateNumber string    `gorm:"column:certificate_number;not null" json:"certificate_number"`
}

func (ReturnItem) TableName() string {
	return "ReturnItems"
}
