package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Branch master row, e.g. "BR001".
type Branch struct {
	BranchID   string    `gorm:"column:branch_id;primaryKey" json:"branch_id"`
	BranchName string    `gorm:"column:branch_name;not null" json:"branch_name"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Branch) TableName() string {
	return "Branches"
}

// CertificateType master row, e.g. "ZINARA_LICENSE".
type CertificateType struct {
	CertTypeID string    `gorm:"column:cert_type_id;primaryKey" json:"cert_type_id"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (CertificateType) TableName() string {
	return "CertificateTypes"
}

// UserRole distinguishes head-office admins from branch operators.
type UserRole string

const (
	RoleHQAdmin    UserRole = "HQ_ADMIN"
	RoleBranchUser UserRole = "BRANCH_USER"
)

// AppUser master row. Authentication happens upstream; this service only stores
// the bcrypt hash and role/branch assignment.
type AppUser struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Username     string    `gorm:"column:username;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	DisplayName  *string   `gorm:"column:display_name" json:"display_name"`
	Role         UserRole  `gorm:"column:role;type:varchar(16);not null" json:"role"`
	// Required for BRANCH_USER, nil for HQ_ADMIN.
	BranchID  *string   `gorm:"column:branch_id" json:"branch_id"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (AppUser) TableName() string {
	return "AppUsers"
}

func (u *AppUser) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}
