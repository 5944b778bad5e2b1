package certificates

import (
	"time"

	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// allowedMoves is the exhaustive custody transition table. Anything outside it
// is rejected at the single choke point below; no transition skips a state.
var allowedMoves = map[models.CertificateStatus]map[models.CertificateStatus]bool{
	models.CertStatusHQStock:           {models.CertStatusInTransitToBranch: true},
	models.CertStatusInTransitToBranch: {models.CertStatusBranchStock: true},
	models.CertStatusBranchStock: {
		models.CertStatusIssued:        true,
		models.CertStatusInTransitToHQ: true,
	},
	models.CertStatusInTransitToHQ: {models.CertStatusHQStock: true},
}

// Movement is one batch custody transition. Expected* pin the pre-state every
// unit must still be in; New* describe the post-state.
type Movement struct {
	IDs []uuid.UUID

	From models.CertificateStatus
	To   models.CertificateStatus

	ExpectedOwnerType     models.OwnerType
	ExpectedOwnerBranchID string

	NewOwnerType     models.OwnerType
	NewOwnerBranchID string

	// ManifestNo binds the units to an open manifest; empty clears the binding.
	ManifestNo string
	At         time.Time
}

// ApplyMovement performs the batch transition as a single conditional UPDATE
// keyed on current status and owner. If any unit has moved on since it was
// selected the row count comes up short, the whole batch fails with
// InvalidState and the caller's transaction rolls back: all-or-nothing.
// Only the manifest engine (and Issue below) call this.
func ApplyMovement(tx *gorm.DB, m Movement) error {
	if len(m.IDs) == 0 {
		return errs.Validation("no certificates to move")
	}
	if !allowedMoves[m.From][m.To] {
		return errs.InvalidState("illegal certificate transition %s -> %s", m.From, m.To)
	}

	q := tx.Model(&models.Certificate{}).
		Where("certificate_id IN ?", m.IDs).
		Where("status = ?", m.From).
		Where("current_owner_type = ?", m.ExpectedOwnerType)
	if m.ExpectedOwnerType == models.OwnerBranch {
		q = q.Where("current_owner_branch_id = ?", m.ExpectedOwnerBranchID)
	}

	res := q.Updates(map[string]interface{}{
		"status":                  m.To,
		"current_owner_type":      m.NewOwnerType,
		"current_owner_branch_id": m.NewOwnerBranchID,
		"manifest_no":             m.ManifestNo,
		"last_movement_at":        m.At,
	})
	if res.Error != nil {
		return errs.Persistence(res.Error)
	}
	if res.RowsAffected != int64(len(m.IDs)) {
		return errs.InvalidState(
			"certificate batch changed state during the operation (%d of %d moved %s -> %s)",
			res.RowsAffected, len(m.IDs), m.From, m.To)
	}
	return nil
}
