package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus is the lifecycle of a stock request.
type RequestStatus string

const (
	RequestOpen      RequestStatus = "OPEN"
	RequestFulfilled RequestStatus = "FULFILLED"
	RequestDeclined  RequestStatus = "DECLINED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// StockRequest is a branch-initiated ask for replenishment. Once fulfilled it
// references the transfer manifest that satisfied it; a request can be
// fulfilled at most once.
type StockRequest struct {
	RequestID  uuid.UUID     `gorm:"column:request_id;type:uuid;primaryKey" json:"request_id"`
	BranchID   string        `gorm:"column:branch_id;index;not null" json:"branch_id"`
	CertTypeID string        `gorm:"column:cert_type_id;not null" json:"cert_type_id"`
	Quantity   int           `gorm:"column:quantity;not null" json:"quantity"`
	Reason     string        `gorm:"column:reason;not null" json:"reason"`
	Status     RequestStatus `gorm:"column:status;type:varchar(12);not null;index" json:"status"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	CreatedBy string    `gorm:"column:created_by;not null" json:"created_by"`

	ClosedAt *time.Time `gorm:"column:closed_at" json:"closed_at"`
	ClosedBy *string    `gorm:"column:closed_by" json:"closed_by"`

	FulfilmentManifestNo *string `gorm:"column:fulfilment_manifest_no" json:"fulfilment_manifest_no"`
}

func (StockRequest) TableName() string {
	return "StockRequests"
}

func (r *StockRequest) BeforeCreate(tx *gorm.DB) error {
	if r.RequestID == uuid.Nil {
		r.RequestID = uuid.New()
	}
	return nil
}
