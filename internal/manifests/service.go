package manifests

import (
	"context"
	"errors"
	"strings"
	"time"

	"zinara-backend/internal/audit"
	"zinara-backend/internal/certificates"
	"zinara-backend/internal/infrastructure/database"
	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the manifest engine: it owns transfer and return lifecycles and is
// the only writer of movement-driven certificate transitions.
type Service struct {
	DB    *gorm.DB
	Audit *audit.Service
}

const manifestNoAttempts = 5

// CreateTransferInput describes one HQ -> branch batch movement.
type CreateTransferInput struct {
	ToBranchID string
	CertTypeID string
	Quantity   int
	Note       string
	Actor      models.Actor
}

// CreateTransfer allocates the oldest-captured HQ stock of the type, binds it
// to a new SENT manifest and moves it in transit, all in one transaction.
func (s *Service) CreateTransfer(ctx context.Context, in CreateTransferInput) (*models.Transfer, error) {
	var out *models.Transfer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.createTransferTx(tx, in)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTransferIn runs the transfer creation inside an existing transaction.
// Used by the replenishment service so request fulfilment and the transfer it
// spawns commit or roll back together.
func (s *Service) CreateTransferIn(tx *gorm.DB, in CreateTransferInput) (*models.Transfer, error) {
	return s.createTransferTx(tx, in)
}

func (s *Service) createTransferTx(tx *gorm.DB, in CreateTransferInput) (*models.Transfer, error) {
	branch := strings.TrimSpace(in.ToBranchID)
	certType := strings.TrimSpace(in.CertTypeID)
	if branch == "" || certType == "" || in.Quantity <= 0 {
		return nil, errs.Validation("Branch, Certificate Type and Quantity are required.")
	}
	if !in.Actor.IsHQ() {
		return nil, errs.Validation("Only HQ users may create transfers.")
	}

	// Oldest captured first; certificate number breaks ties deterministically.
	var units []models.Certificate
	if err := tx.Where("cert_type_id = ? AND status = ? AND current_owner_type = ?",
		certType, models.CertStatusHQStock, models.OwnerHQ).
		Order("captured_at ASC, certificate_number ASC").
		Limit(in.Quantity).
		Find(&units).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	if len(units) < in.Quantity {
		return nil, errs.InsufficientStock("Not enough HQ stock. Available: %d, requested: %d.", len(units), in.Quantity)
	}

	now := time.Now().UTC()
	actorID := in.Actor.UserID

	transfer := models.Transfer{
		ToBranchID: branch,
		CertTypeID: certType,
		Quantity:   in.Quantity,
		Status:     models.ManifestSent,
		CreatedAt:  now,
		CreatedBy:  actorID,
		SentAt:     &now,
		SentBy:     &actorID,
	}
	if note := strings.TrimSpace(in.Note); note != "" {
		transfer.Note = &note
	}
	if err := createWithFreshManifestNo(tx, &transfer, prefixTransfer, func(no string) {
		transfer.ManifestNo = no
		transfer.TransferID = uuid.Nil
	}); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(units))
	numbers := make([]string, len(units))
	items := make([]models.TransferItem, len(units))
	for i, u := range units {
		ids[i] = u.CertificateID
		numbers[i] = u.CertificateNumber
		items[i] = models.TransferItem{
			TransferID:        transfer.TransferID,
			CertificateID:     u.CertificateID,
			CertificateNumber: u.CertificateNumber,
		}
	}

	if err := certificates.ApplyMovement(tx, certificates.Movement{
		IDs:               ids,
		From:              models.CertStatusHQStock,
		To:                models.CertStatusInTransitToBranch,
		ExpectedOwnerType: models.OwnerHQ,
		NewOwnerType:      models.OwnerBranch,
		NewOwnerBranchID:  branch,
		ManifestNo:        transfer.ManifestNo,
		At:                now,
	}); err != nil {
		// A racing allocation claimed part of the selection; the loser fails
		// whole, never partially.
		if errs.Is(err, errs.KindInvalidState) {
			return nil, errs.InsufficientStock("HQ stock changed during allocation, please retry.")
		}
		return nil, err
	}

	if err := tx.Create(&items).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	transfer.Items = items

	if err := s.Audit.Append(tx, audit.Entry{
		EventType:  audit.EventTransferCreate,
		Actor:      in.Actor,
		EntityType: audit.EntityTransfer,
		EntityID:   transfer.ManifestNo,
		Payload: map[string]interface{}{
			"to_branch_id":        branch,
			"cert_type_id":        certType,
			"quantity":            in.Quantity,
			"certificate_numbers": numbers,
			"note":                strings.TrimSpace(in.Note),
		},
	}); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// createWithFreshManifestNo creates the manifest row, regenerating the number
// on a unique-index collision.
func createWithFreshManifestNo(tx *gorm.DB, record interface{}, prefix string, assign func(no string)) error {
	for attempt := 0; attempt < manifestNoAttempts; attempt++ {
		assign(newManifestNo(prefix, time.Now()))
		err := tx.Create(record).Error
		if err == nil {
			return nil
		}
		if database.IsUniqueViolation(err) {
			continue
		}
		return errs.Persistence(err)
	}
	return errs.Persistence(errors.New("could not allocate a unique manifest number"))
}

// AcceptTransfer books a SENT transfer into branch stock.
func (s *Service) AcceptTransfer(ctx context.Context, manifestNo, branchID string, actor models.Actor) (*models.Transfer, error) {
	branch := strings.TrimSpace(branchID)
	no := strings.TrimSpace(manifestNo)
	if no == "" || branch == "" {
		return nil, errs.Validation("Manifest number and branch are required.")
	}
	if !actor.ActsForBranch(branch) {
		return nil, errs.Validation("Actor may not accept transfers for branch %s.", branch)
	}

	var transfer models.Transfer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").Where("manifest_no = ?", no).First(&transfer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("Transfer not found.")
			}
			return errs.Persistence(err)
		}
		if transfer.ToBranchID != branch {
			return errs.NotAvailable("Transfer %s is not addressed to branch %s.", no, branch)
		}
		if transfer.Status != models.ManifestSent {
			return errs.InvalidState("Transfer cannot be accepted in status: %s", transfer.Status)
		}

		now := time.Now().UTC()
		ids := make([]uuid.UUID, len(transfer.Items))
		for i, it := range transfer.Items {
			ids[i] = it.CertificateID
		}
		if err := certificates.ApplyMovement(tx, certificates.Movement{
			IDs:                   ids,
			From:                  models.CertStatusInTransitToBranch,
			To:                    models.CertStatusBranchStock,
			ExpectedOwnerType:     models.OwnerBranch,
			ExpectedOwnerBranchID: branch,
			NewOwnerType:          models.OwnerBranch,
			NewOwnerBranchID:      branch,
			ManifestNo:            "",
			At:                    now,
		}); err != nil {
			return err
		}

		actorID := actor.UserID
		res := tx.Model(&models.Transfer{}).
			Where("transfer_id = ? AND status = ?", transfer.TransferID, models.ManifestSent).
			Updates(map[string]interface{}{
				"status":      models.ManifestAccepted,
				"accepted_at": now,
				"accepted_by": actorID,
			})
		if res.Error != nil {
			return errs.Persistence(res.Error)
		}
		if res.RowsAffected != 1 {
			return errs.InvalidState("Transfer cannot be accepted in status: %s", transfer.Status)
		}
		transfer.Status = models.ManifestAccepted
		transfer.AcceptedAt = &now
		transfer.AcceptedBy = &actorID

		return s.Audit.Append(tx, audit.Entry{
			EventType:  audit.EventTransferAccept,
			Actor:      actor,
			EntityType: audit.EntityTransfer,
			EntityID:   no,
			Payload: map[string]interface{}{
				"branch_id": branch,
				"quantity":  transfer.Quantity,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// ReturnSelection picks certificates for a return: a positive Quantity selects
// the oldest branch stock FIFO, otherwise CertificateNumbers lists them
// explicitly.
type ReturnSelection struct {
	Quantity           int
	CertificateNumbers []string
}

// CreateReturnInput describes one branch -> HQ batch movement.
type CreateReturnInput struct {
	FromBranchID string
	CertTypeID   string
	Selection    ReturnSelection
	Reason       string
	Actor        models.Actor
}

// CreateReturn sends branch stock back to HQ under a new SENT manifest. In
// explicit mode any ineligible certificate rejects the whole request.
func (s *Service) CreateReturn(ctx context.Context, in CreateReturnInput) (*models.Return, error) {
	branch := strings.TrimSpace(in.FromBranchID)
	certType := strings.TrimSpace(in.CertTypeID)
	reason := strings.TrimSpace(in.Reason)
	if branch == "" || certType == "" {
		return nil, errs.Validation("Branch and Certificate Type are required.")
	}
	if reason == "" {
		return nil, errs.Validation("Return reason is required.")
	}
	if !in.Actor.ActsForBranch(branch) {
		return nil, errs.Validation("Actor may not create returns for branch %s.", branch)
	}

	explicit := normalizeNumbers(in.Selection.CertificateNumbers)
	if len(explicit) == 0 && in.Selection.Quantity <= 0 {
		return nil, errs.Validation("Quantity must be a positive number.")
	}

	var ret models.Return
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var units []models.Certificate
		base := tx.Where("cert_type_id = ? AND status = ? AND current_owner_type = ? AND current_owner_branch_id = ?",
			certType, models.CertStatusBranchStock, models.OwnerBranch, branch)

		if len(explicit) > 0 {
			keys := make([]string, len(explicit))
			for i, n := range explicit {
				keys[i] = strings.ToLower(n)
			}
			if err := base.Where("number_key IN ?", keys).Find(&units).Error; err != nil {
				return errs.Persistence(err)
			}
			if len(units) != len(explicit) {
				return errs.NotAvailable("One or more selected certificates are not available in branch stock (they may have been issued or already in transit).")
			}
		} else {
			if err := base.Order("last_movement_at ASC, certificate_number ASC").
				Limit(in.Selection.Quantity).
				Find(&units).Error; err != nil {
				return errs.Persistence(err)
			}
			if len(units) < in.Selection.Quantity {
				return errs.InsufficientStock("Not enough branch stock to return. Available: %d, requested: %d.", len(units), in.Selection.Quantity)
			}
		}

		now := time.Now().UTC()
		ret = models.Return{
			FromBranchID: branch,
			CertTypeID:   certType,
			Quantity:     len(units),
			Status:       models.ManifestSent,
			Reason:       reason,
			CreatedAt:    now,
			CreatedBy:    in.Actor.UserID,
		}
		if err := createWithFreshManifestNo(tx, &ret, prefixReturn, func(no string) {
			ret.ManifestNo = no
			ret.ReturnID = uuid.Nil
		}); err != nil {
			return err
		}

		ids := make([]uuid.UUID, len(units))
		numbers := make([]string, len(units))
		items := make([]models.ReturnItem, len(units))
		for i, u := range units {
			ids[i] = u.CertificateID
			numbers[i] = u.CertificateNumber
			items[i] = models.ReturnItem{
				ReturnID:          ret.ReturnID,
				CertificateID:     u.CertificateID,
				CertificateNumber: u.CertificateNumber,
			}
		}

		if err := certificates.ApplyMovement(tx, certificates.Movement{
			IDs:                   ids,
			From:                  models.CertStatusBranchStock,
			To:                    models.CertStatusInTransitToHQ,
			ExpectedOwnerType:     models.OwnerBranch,
			ExpectedOwnerBranchID: branch,
			NewOwnerType:          models.OwnerHQ,
			NewOwnerBranchID:      "",
			ManifestNo:            ret.ManifestNo,
			At:                    now,
		}); err != nil {
			if errs.Is(err, errs.KindInvalidState) {
				if len(explicit) > 0 {
					return errs.NotAvailable("One or more selected certificates left branch stock during the operation.")
				}
				return errs.InsufficientStock("Branch stock changed during allocation, please retry.")
			}
			return err
		}

		if err := tx.Create(&items).Error; err != nil {
			return errs.Persistence(err)
		}
		ret.Items = items

		mode := "AUTO"
		if len(explicit) > 0 {
			mode = "MANUAL"
		}
		return s.Audit.Append(tx, audit.Entry{
			EventType:  audit.EventReturnCreate,
			Actor:      in.Actor,
			EntityType: audit.EntityReturn,
			EntityID:   ret.ManifestNo,
			Payload: map[string]interface{}{
				"from_branch_id":      branch,
				"cert_type_id":        certType,
				"quantity":            len(units),
				"certificate_numbers": numbers,
				"reason":              reason,
				"mode":                mode,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// ReceiveReturn books a SENT return back into HQ stock and clears the manifest
// binding on every unit.
func (s *Service) ReceiveReturn(ctx context.Context, manifestNo string, actor models.Actor) (*models.Return, error) {
	no := strings.TrimSpace(manifestNo)
	if no == "" {
		return nil, errs.Validation("Manifest number is required.")
	}
	if !actor.IsHQ() {
		return nil, errs.Validation("Only HQ users may receive returns.")
	}

	var ret models.Return
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").Where("manifest_no = ?", no).First(&ret).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("Return not found.")
			}
			return errs.Persistence(err)
		}
		if ret.Status != models.ManifestSent {
			return errs.InvalidState("Return cannot be received in status: %s", ret.Status)
		}

		now := time.Now().UTC()
		ids := make([]uuid.UUID, len(ret.Items))
		for i, it := range ret.Items {
			ids[i] = it.CertificateID
		}
		if err := certificates.ApplyMovement(tx, certificates.Movement{
			IDs:               ids,
			From:              models.CertStatusInTransitToHQ,
			To:                models.CertStatusHQStock,
			ExpectedOwnerType: models.OwnerHQ,
			NewOwnerType:      models.OwnerHQ,
			NewOwnerBranchID:  "",
			ManifestNo:        "",
			At:                now,
		}); err != nil {
			return err
		}

		actorID := actor.UserID
		res := tx.Model(&models.Return{}).
			Where("return_id = ? AND status = ?", ret.ReturnID, models.ManifestSent).
			Updates(map[string]interface{}{
				"status":      models.ManifestReceived,
				"received_at": now,
				"received_by": actorID,
			})
		if res.Error != nil {
			return errs.Persistence(res.Error)
		}
		if res.RowsAffected != 1 {
			return errs.InvalidState("Return cannot be received in status: %s", ret.Status)
		}
		ret.Status = models.ManifestReceived
		ret.ReceivedAt = &now
		ret.ReceivedBy = &actorID

		return s.Audit.Append(tx, audit.Entry{
			EventType:  audit.EventReturnReceive,
			Actor:      actor,
			EntityType: audit.EntityReturn,
			EntityID:   no,
			Payload: map[string]interface{}{
				"from_branch_id": ret.FromBranchID,
				"quantity":       ret.Quantity,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// ListTransfersForBranch returns transfers addressed to a branch, newest first.
func (s *Service) ListTransfersForBranch(ctx context.Context, branchID string) ([]models.Transfer, error) {
	var transfers []models.Transfer
	if err := s.DB.WithContext(ctx).Preload("Items").
		Where("to_branch_id = ?", branchID).
		Order("created_at DESC").
		Find(&transfers).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	return transfers, nil
}

// ListReturnsForBranch returns returns raised by a branch, newest first.
func (s *Service) ListReturnsForBranch(ctx context.Context, branchID string) ([]models.Return, error) {
	var returns []models.Return
	if err := s.DB.WithContext(ctx).Preload("Items").
		Where("from_branch_id = ?", branchID).
		Order("created_at DESC").
		Find(&returns).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	return returns, nil
}

// ListIncomingReturns returns returns awaiting HQ receipt, newest first.
func (s *Service) ListIncomingReturns(ctx context.Context) ([]models.Return, error) {
	var returns []models.Return
	if err := s.DB.WithContext(ctx).Preload("Items").
		Where("status = ?", models.ManifestSent).
		Order("created_at DESC").
		Find(&returns).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	return returns, nil
}

func normalizeNumbers(nums []string) []string {
	seen := make(map[string]bool, len(nums))
	out := make([]string, 0, len(nums))
	for _, n := range nums {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
