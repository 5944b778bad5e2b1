package certificates

import (
	"context"
	"errors"
	"strings"
	"time"

	"zinara-backend/internal/audit"
	"zinara-backend/internal/infrastructure/database"
	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the certificate ledger: it owns all certificate mutation.
type Service struct {
	DB    *gorm.DB
	Audit *audit.Service
}

// CaptureInput describes one HQ capture.
type CaptureInput struct {
	CertTypeID        string
	CertificateNumber string
	BatchID           string
	Method            string
	Actor             models.Actor
}

const defaultCaptureMethod = "MANUAL"

// Capture books a new certificate into HQ stock. Numbers are unique
// case-insensitively; only HQ admins may capture.
func (s *Service) Capture(ctx context.Context, in CaptureInput) (*models.Certificate, error) {
	certType := strings.TrimSpace(in.CertTypeID)
	num := strings.TrimSpace(in.CertificateNumber)
	if certType == "" {
		return nil, errs.Validation("Certificate Type is required.")
	}
	if num == "" {
		return nil, errs.Validation("Certificate Number is required.")
	}
	if !in.Actor.IsHQ() {
		return nil, errs.Validation("Only HQ users may capture to HQ stock.")
	}
	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = defaultCaptureMethod
	}

	var cert models.Certificate
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Certificate{}).
			Where("number_key = ?", strings.ToLower(num)).
			Count(&n).Error; err != nil {
			return errs.Persistence(err)
		}
		if n > 0 {
			return errs.Duplicate("Duplicate certificate number: %s", num)
		}

		now := time.Now().UTC()
		cert = models.Certificate{
			CertificateNumber:    num,
			CertTypeID:           certType,
			Status:               models.CertStatusHQStock,
			CurrentOwnerType:     models.OwnerHQ,
			CurrentOwnerBranchID: "",
			CapturedAt:           now,
			CapturedBy:           in.Actor.UserID,
			CaptureMethod:        method,
			LastMovementAt:       now,
		}
		if batch := strings.TrimSpace(in.BatchID); batch != "" {
			cert.BatchID = &batch
		}
		if err := tx.Create(&cert).Error; err != nil {
			// The unique index stays authoritative if a concurrent capture
			// slipped past the pre-check.
			if database.IsUniqueViolation(err) {
				return errs.Duplicate("Duplicate certificate number: %s", num)
			}
			return errs.Persistence(err)
		}

		return s.Audit.Append(tx, audit.Entry{
			EventType:  audit.EventCapture,
			Actor:      in.Actor,
			EntityType: audit.EntityCertificate,
			EntityID:   num,
			Payload: map[string]interface{}{
				"cert_type_id": certType,
				"batch_id":     strings.TrimSpace(in.BatchID),
				"method":       method,
				"status":       models.CertStatusHQStock,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// StockScope narrows a stock lookup to HQ or to one branch.
type StockScope struct {
	OwnerType models.OwnerType
	BranchID  string
}

func scoped(q *gorm.DB, scope StockScope) *gorm.DB {
	q = q.Where("current_owner_type = ?", scope.OwnerType)
	if scope.OwnerType == models.OwnerBranch {
		q = q.Where("current_owner_branch_id = ?", scope.BranchID)
	}
	return q
}

// LookupAvailable lists units in the given scope/type/status, oldest movement
// first so allocation stays FIFO. The ordering rides the last_movement_at
// index rather than re-sorting the collection.
func (s *Service) LookupAvailable(ctx context.Context, scope StockScope, certTypeID string, status models.CertificateStatus, limit int) ([]models.Certificate, error) {
	if limit <= 0 {
		limit = 200
	}
	var certs []models.Certificate
	q := s.DB.WithContext(ctx).
		Where("cert_type_id = ? AND status = ?", certTypeID, status)
	q = scoped(q, scope)
	if err := q.Order("last_movement_at ASC, certificate_number ASC").
		Limit(limit).
		Find(&certs).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	return certs, nil
}

// CountAvailable counts units in the given scope/type/status.
func (s *Service) CountAvailable(ctx context.Context, scope StockScope, certTypeID string, status models.CertificateStatus) (int64, error) {
	var n int64
	q := s.DB.WithContext(ctx).Model(&models.Certificate{}).
		Where("cert_type_id = ? AND status = ?", certTypeID, status)
	q = scoped(q, scope)
	if err := q.Count(&n).Error; err != nil {
		return 0, errs.Persistence(err)
	}
	return n, nil
}

// IssueInput describes an issuance. An empty CertificateNumber means "next":
// the oldest BRANCH_STOCK unit of the type at the branch.
type IssueInput struct {
	BranchID          string
	CertTypeID        string
	CertificateNumber string
	ClientName        string
	PolicyNumber      string
	Actor             models.Actor
}

// Issue hands one certificate to an end client. Next and specific issuance
// share the one entry point and both stamp the issuing branch.
func (s *Service) Issue(ctx context.Context, in IssueInput) (*models.Certificate, error) {
	branch := strings.TrimSpace(in.BranchID)
	name := strings.TrimSpace(in.ClientName)
	policy := strings.TrimSpace(in.PolicyNumber)
	num := strings.TrimSpace(in.CertificateNumber)
	certType := strings.TrimSpace(in.CertTypeID)

	if branch == "" {
		return nil, errs.Validation("Branch is required.")
	}
	if num == "" && certType == "" {
		return nil, errs.Validation("Certificate Type is required.")
	}
	if name == "" {
		return nil, errs.Validation("Client Name is required.")
	}
	if policy == "" {
		return nil, errs.Validation("Policy Number is required.")
	}
	if !in.Actor.ActsForBranch(branch) {
		return nil, errs.Validation("Actor may not issue for branch %s.", branch)
	}

	var cert models.Certificate
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ? AND current_owner_type = ? AND current_owner_branch_id = ?",
			models.CertStatusBranchStock, models.OwnerBranch, branch)
		if certType != "" {
			q = q.Where("cert_type_id = ?", certType)
		}
		if num != "" {
			q = q.Where("number_key = ?", strings.ToLower(num))
		}
		err := q.Order("last_movement_at ASC, certificate_number ASC").First(&cert).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if num != "" {
				return errs.NotAvailable("That certificate is not available in your branch stock.")
			}
			return errs.NoStock("No available certificates in branch stock.")
		}
		if err != nil {
			return errs.Persistence(err)
		}

		now := time.Now().UTC()
		if err := ApplyMovement(tx, Movement{
			IDs:                   []uuid.UUID{cert.CertificateID},
			From:                  models.CertStatusBranchStock,
			To:                    models.CertStatusIssued,
			ExpectedOwnerType:     models.OwnerBranch,
			ExpectedOwnerBranchID: branch,
			NewOwnerType:          models.OwnerBranch,
			NewOwnerBranchID:      branch,
			ManifestNo:            "",
			At:                    now,
		}); err != nil {
			// A concurrent issuance claimed the unit between select and update.
			if errs.Is(err, errs.KindInvalidState) {
				if num != "" {
					return errs.NotAvailable("That certificate is not available in your branch stock.")
				}
				return errs.NoStock("No available certificates in branch stock.")
			}
			return err
		}

		actorID := in.Actor.UserID
		updates := map[string]interface{}{
			"issued_at":             now,
			"issued_branch_id":      branch,
			"issued_by":             actorID,
			"issued_to_client_name": name,
			"issued_policy_number":  policy,
		}
		if err := tx.Model(&models.Certificate{}).
			Where("certificate_id = ?", cert.CertificateID).
			Updates(updates).Error; err != nil {
			return errs.Persistence(err)
		}

		mode := "AUTO"
		if num != "" {
			mode = "MANUAL"
		}
		if err := s.Audit.Append(tx, audit.Entry{
			EventType:  audit.EventIssue,
			Actor:      in.Actor,
			EntityType: audit.EntityCertificate,
			EntityID:   cert.CertificateNumber,
			Payload: map[string]interface{}{
				"branch_id":     branch,
				"cert_type_id":  cert.CertTypeID,
				"client_name":   name,
				"policy_number": policy,
				"mode":          mode,
			},
		}); err != nil {
			return err
		}

		return tx.Where("certificate_id = ?", cert.CertificateID).First(&cert).Error
	})
	if err != nil {
		return nil, err
	}
	return &cert, nil
}
