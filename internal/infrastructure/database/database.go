package database

import (
	"errors"
	"strings"

	"zinara-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers (e.g. PgBouncer).
// TranslateError lets unique-constraint violations surface as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
}

// AutoMigrate runs migrations for all custody models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Branch{},
		&models.CertificateType{},
		&models.AppUser{},
		&models.Certificate{},
		&models.Transfer{},
		&models.TransferItem{},
		&models.Return{},
		&models.ReturnItem{},
		&models.Threshold{},
		&models.StockRequest{},
		&models.AuditEvent{},
	)
}

// IsUniqueViolation reports whether err is a unique-constraint failure on any
// supported driver (translated or raw sqlite/postgres messages).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
