package thresholds

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"zinara-backend/internal/audit"
	"zinara-backend/internal/manifests"
	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service computes effective minimum-stock thresholds and turns shortages into
// stock requests, fulfilled through the manifest engine.
type Service struct {
	DB        *gorm.DB
	Manifests *manifests.Service
	Audit     *audit.Service
}

// SetDefaultThreshold upserts the type-wide minimum stock level.
func (s *Service) SetDefaultThreshold(ctx context.Context, certTypeID string, value int, actor models.Actor) error {
	return s.setThreshold(ctx, strings.TrimSpace(certTypeID), "", value, actor)
}

// SetBranchOverride upserts a branch-specific minimum stock level.
func (s *Service) SetBranchOverride(ctx context.Context, branchID, certTypeID string, value int, actor models.Actor) error {
	branch := strings.TrimSpace(branchID)
	if branch == "" {
		return errs.Validation("Branch is required.")
	}
	return s.setThreshold(ctx, strings.TrimSpace(certTypeID), branch, value, actor)
}

func (s *Service) setThreshold(ctx context.Context, certType, branch string, value int, actor models.Actor) error {
	if certType == "" {
		return errs.Validation("Certificate Type is required.")
	}
	if value < 0 {
		return errs.Validation("Threshold must be a number >= 0.")
	}
	if branch == "" && !actor.IsHQ() {
		return errs.Validation("Only HQ users may set default thresholds.")
	}
	if branch != "" && !actor.ActsForBranch(branch) {
		return errs.Validation("Actor may not set thresholds for branch %s.", branch)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var row models.Threshold
		err := tx.Where("cert_type_id = ? AND branch_id = ?", certType, branch).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.Threshold{
				CertTypeID: certType,
				BranchID:   branch,
				MinLevel:   value,
				UpdatedAt:  now,
				UpdatedBy:  actor.UserID,
			}
			if err := tx.Create(&row).Error; err != nil {
				return errs.Persistence(err)
			}
		case err != nil:
			return errs.Persistence(err)
		default:
			if err := tx.Model(&row).Updates(map[string]interface{}{
				"min_level":  value,
				"updated_at": now,
				"updated_by": actor.UserID,
			}).Error; err != nil {
				return errs.Persistence(err)
			}
		}

		eventType := audit.EventThresholdDefaultSet
		entityID := certType
		payload := map[string]interface{}{"cert_type_id": certType, "value": value}
		if branch != "" {
			eventType = audit.EventThresholdOverrideSet
			entityID = branch + "::" + certType
			payload["branch_id"] = branch
		}
		return s.Audit.Append(tx, audit.Entry{
			EventType:  eventType,
			Actor:      actor,
			EntityType: audit.EntityThreshold,
			EntityID:   entityID,
			Payload:    payload,
		})
	})
}

// ClearBranchOverride removes a branch override; clearing an absent override is
// a no-op.
func (s *Service) ClearBranchOverride(ctx context.Context, branchID, certTypeID string, actor models.Actor) error {
	branch := strings.TrimSpace(branchID)
	certType := strings.TrimSpace(certTypeID)
	if branch == "" || certType == "" {
		return errs.Validation("Branch and Certificate Type are required.")
	}
	if !actor.ActsForBranch(branch) {
		return errs.Validation("Actor may not clear thresholds for branch %s.", branch)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("cert_type_id = ? AND branch_id = ?", certType, branch).
			Delete(&models.Threshold{})
		if res.Error != nil {
			return errs.Persistence(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return s.Audit.Append(tx, audit.Entry{
			EventType:  audit.EventThresholdOverrideClear,
			Actor:      actor,
			EntityType: audit.EntityThreshold,
			EntityID:   branch + "::" + certType,
			Payload:    map[string]interface{}{"branch_id": branch, "cert_type_id": certType},
		})
	})
}

// EffectiveThreshold is the branch override if present, else the type default,
// else 0.
func (s *Service) EffectiveThreshold(ctx context.Context, branchID, certTypeID string) (int, error) {
	var rows []models.Threshold
	if err := s.DB.WithContext(ctx).
		Where("cert_type_id = ? AND branch_id IN ?", certTypeID, []string{branchID, ""}).
		Find(&rows).Error; err != nil {
		return 0, errs.Persistence(err)
	}
	value := 0
	for _, r := range rows {
		if r.BranchID == branchID && branchID != "" {
			return r.MinLevel, nil
		}
		if r.BranchID == "" {
			value = r.MinLevel
		}
	}
	return value, nil
}

// CreateStockRequest opens a replenishment request for a branch.
func (s *Service) CreateStockRequest(ctx context.Context, branchID, certTypeID string, quantity int, reason string, actor models.Actor) (*models.StockRequest, error) {
	branch := strings.TrimSpace(branchID)
	certType := strings.TrimSpace(certTypeID)
	why := strings.TrimSpace(reason)
	if branch == "" || certType == "" {
		return nil, errs.Validation("Branch and Certificate Type are required.")
	}
	if quantity <= 0 {
		return nil, errs.Validation("Quantity must be a positive number.")
	}
	if why == "" {
		return nil, errs.Validation("Reason is required.")
	}
	if !actor.ActsForBranch(branch) {
		return nil, errs.Validation("Actor may not request stock for branch %s.", branch)
	}

	req := models.StockRequest{
		BranchID:   branch,
		CertTypeID: certType,
		Quantity:   quantity,
		Reason:     why,
		Status:     models.RequestOpen,
		CreatedAt:  time.Now().UTC(),
		CreatedBy:  actor.UserID,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&req).Error; err != nil {
			return errs.Persistence(err)
		}
		return s.Audit.Append(tx, audit.Entry{
			EventType:  audit.EventRequestCreate,
			Actor:      actor,
			EntityType: audit.EntityRequest,
			EntityID:   req.RequestID.String(),
			Payload: map[string]interface{}{
				"branch_id":    branch,
				"cert_type_id": certType,
				"quantity":     quantity,
				"reason":       why,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FulfilResult pairs the fulfilled request with the transfer that satisfied it.
type FulfilResult struct {
	Request  models.StockRequest `json:"request"`
	Transfer models.Transfer     `json:"transfer"`
}

// FulfilRequest creates the replenishment transfer and marks the request
// fulfilled in one transaction. If the transfer fails (e.g. insufficient HQ
// stock) everything rolls back and the request stays OPEN.
func (s *Service) FulfilRequest(ctx context.Context, requestID uuid.UUID, actor models.Actor) (*FulfilResult, error) {
	if !actor.IsHQ() {
		return nil, errs.Validation("Only HQ users may fulfil stock requests.")
	}

	var out FulfilResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.StockRequest
		if err := tx.Where("request_id = ?", requestID).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("Stock request not found.")
			}
			return errs.Persistence(err)
		}
		if req.Status != models.RequestOpen {
			return errs.InvalidState("Request cannot be fulfilled in status: %s", req.Status)
		}

		transfer, err := s.Manifests.CreateTransferIn(tx, manifests.CreateTransferInput{
			ToBranchID: req.BranchID,
			CertTypeID: req.CertTypeID,
			Quantity:   req.Quantity,
			Note:       "Fulfil request " + req.RequestID.String() + ": " + req.Reason,
			Actor:      actor,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		actorID := actor.UserID
		// Conditional update keyed on OPEN: a request is fulfilled at most once.
		res := tx.Model(&models.StockRequest{}).
			Where("request_id = ? AND status = ?", req.RequestID, models.RequestOpen).
			Updates(map[string]interface{}{
				"status":                 models.RequestFulfilled,
				"closed_at":              now,
				"closed_by":              actorID,
				"fulfilment_manifest_no": transfer.ManifestNo,
			})
		if res.Error != nil {
			return errs.Persistence(res.Error)
		}
		if res.RowsAffected != 1 {
			return errs.InvalidState("Request cannot be fulfilled in status: %s", req.Status)
		}
		req.Status = models.RequestFulfilled
		req.ClosedAt = &now
		req.ClosedBy = &actorID
		req.FulfilmentManifestNo = &transfer.ManifestNo
		out = FulfilResult{Request: req, Transfer: *transfer}

		return s.Audit.Append(tx, audit.Entry{
			EventType:  audit.EventRequestFulfil,
			Actor:      actor,
			EntityType: audit.EntityRequest,
			EntityID:   req.RequestID.String(),
			Payload: map[string]interface{}{
				"branch_id":    req.BranchID,
				"cert_type_id": req.CertTypeID,
				"quantity":     req.Quantity,
				"manifest_no":  transfer.ManifestNo,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeclineRequest closes an OPEN request without stock movement (HQ decision).
// The decline reason goes to the audit trail, not the request row.
func (s *Service) DeclineRequest(ctx context.Context, requestID uuid.UUID, reason string, actor models.Actor) (*models.StockRequest, error) {
	if !actor.IsHQ() {
		return nil, errs.Validation("Only HQ users may decline stock requests.")
	}
	return s.closeRequest(ctx, requestID, models.RequestDeclined, audit.EventRequestDecline, strings.TrimSpace(reason), actor)
}

// CancelRequest withdraws an OPEN request (branch decision).
func (s *Service) CancelRequest(ctx context.Context, requestID uuid.UUID, actor models.Actor) (*models.StockRequest, error) {
	return s.closeRequest(ctx, requestID, models.RequestCancelled, audit.EventRequestCancel, "", actor)
}

func (s *Service) closeRequest(ctx context.Context, requestID uuid.UUID, to models.RequestStatus, eventType, note string, actor models.Actor) (*models.StockRequest, error) {
	var req models.StockRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("request_id = ?", requestID).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("Stock request not found.")
			}
			return errs.Persistence(err)
		}
		if to == models.RequestCancelled && !actor.ActsForBranch(req.BranchID) {
			return errs.Validation("Actor may not cancel requests for branch %s.", req.BranchID)
		}
		if req.Status != models.RequestOpen {
			return errs.InvalidState("Request cannot be closed in status: %s", req.Status)
		}

		now := time.Now().UTC()
		actorID := actor.UserID
		res := tx.Model(&models.StockRequest{}).
			Where("request_id = ? AND status = ?", req.RequestID, models.RequestOpen).
			Updates(map[string]interface{}{
				"status":    to,
				"closed_at": now,
				"closed_by": actorID,
			})
		if res.Error != nil {
			return errs.Persistence(res.Error)
		}
		if res.RowsAffected != 1 {
			return errs.InvalidState("Request cannot be closed in status: %s", req.Status)
		}
		req.Status = to
		req.ClosedAt = &now
		req.ClosedBy = &actorID

		payload := map[string]interface{}{
			"branch_id":    req.BranchID,
			"cert_type_id": req.CertTypeID,
			"quantity":     req.Quantity,
		}
		if note != "" {
			payload["note"] = note
		}
		return s.Audit.Append(tx, audit.Entry{
			EventType:  eventType,
			Actor:      actor,
			EntityType: audit.EntityRequest,
			EntityID:   req.RequestID.String(),
			Payload:    payload,
		})
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListRequests lists stock requests, optionally scoped to a branch and/or
// status, newest first.
func (s *Service) ListRequests(ctx context.Context, branchID string, status models.RequestStatus) ([]models.StockRequest, error) {
	q := s.DB.WithContext(ctx).Model(&models.StockRequest{}).Order("created_at DESC")
	if branchID != "" {
		q = q.Where("branch_id = ?", branchID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var requests []models.StockRequest
	if err := q.Find(&requests).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	return requests, nil
}

// ShortageRow is one branch/type stock position against its effective threshold.
type ShortageRow struct {
	BranchID     string `json:"branch_id"`
	BranchName   string `json:"branch_name"`
	CertTypeID   string `json:"cert_type_id"`
	CertTypeName string `json:"cert_type_name"`
	Stock        int    `json:"stock"`
	Threshold    int    `json:"threshold"`
	Shortage     int    `json:"shortage"`
	Status       string `json:"status"`
}

const (
	shortageShort = "SHORT"
	shortageOK    = "OK"
)

// ShortageReport crosses active branches with active certificate types and
// reports stock vs effective threshold, biggest shortages first.
func (s *Service) ShortageReport(ctx context.Context) ([]ShortageRow, error) {
	db := s.DB.WithContext(ctx)

	var branches []models.Branch
	if err := db.Where("is_active = ?", true).Order("branch_name ASC").Find(&branches).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	var types []models.CertificateType
	if err := db.Where("is_active = ?", true).Order("name ASC").Find(&types).Error; err != nil {
		return nil, errs.Persistence(err)
	}

	// One grouped scan instead of a count query per cell.
	type stockCount struct {
		BranchID   string
		CertTypeID string
		N          int
	}
	var counts []stockCount
	if err := db.Model(&models.Certificate{}).
		Select("current_owner_branch_id AS branch_id, cert_type_id, COUNT(*) AS n").
		Where("status = ?", models.CertStatusBranchStock).
		Group("current_owner_branch_id, cert_type_id").
		Scan(&counts).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	stock := make(map[string]int, len(counts))
	for _, c := range counts {
		stock[c.BranchID+"::"+c.CertTypeID] = c.N
	}

	var thresholdRows []models.Threshold
	if err := db.Find(&thresholdRows).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	defaults := make(map[string]int)
	overrides := make(map[string]int)
	for _, t := range thresholdRows {
		if t.BranchID == "" {
			defaults[t.CertTypeID] = t.MinLevel
		} else {
			overrides[t.BranchID+"::"+t.CertTypeID] = t.MinLevel
		}
	}

	rows := make([]ShortageRow, 0, len(branches)*len(types))
	for _, b := range branches {
		for _, t := range types {
			key := b.BranchID + "::" + t.CertTypeID
			threshold, ok := overrides[key]
			if !ok {
				threshold = defaults[t.CertTypeID]
			}
			n := stock[key]
			shortage := threshold - n
			if shortage < 0 {
				shortage = 0
			}
			status := shortageOK
			if shortage > 0 {
				status = shortageShort
			}
			rows = append(rows, ShortageRow{
				BranchID:     b.BranchID,
				BranchName:   b.BranchName,
				CertTypeID:   t.CertTypeID,
				CertTypeName: t.Name,
				Stock:        n,
				Threshold:    threshold,
				Shortage:     shortage,
				Status:       status,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Shortage != rows[j].Shortage {
			return rows[i].Shortage > rows[j].Shortage
		}
		return rows[i].BranchName < rows[j].BranchName
	})
	return rows, nil
}
