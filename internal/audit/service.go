package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/errs"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event type vocabulary. Every mutating operation appends exactly one of these.
const (
	EventCapture                = "CAPTURE"
	EventTransferCreate         = "TRANSFER_CREATE"
	EventTransferAccept         = "TRANSFER_ACCEPT"
	EventIssue                  = "ISSUE"
	EventReturnCreate           = "RETURN_CREATE"
	EventReturnReceive          = "RETURN_RECEIVE"
	EventThresholdDefaultSet    = "THRESHOLD_DEFAULT_SET"
	EventThresholdOverrideSet   = "THRESHOLD_OVERRIDE_SET"
	EventThresholdOverrideClear = "THRESHOLD_OVERRIDE_CLEAR"
	EventRequestCreate          = "REQUEST_CREATE"
	EventRequestFulfil          = "REQUEST_FULFIL"
	EventRequestDecline         = "REQUEST_DECLINE"
	EventRequestCancel          = "REQUEST_CANCEL"
)

// Entity types referenced by audit events.
const (
	EntityCertificate = "CERTIFICATE"
	EntityTransfer    = "TRANSFER"
	EntityReturn      = "RETURN"
	EntityThreshold   = "THRESHOLD"
	EntityRequest     = "REQUEST"
)

// Service owns the append-only audit ledger.
type Service struct {
	DB *gorm.DB
}

// Entry is one event to append.
type Entry struct {
	EventType  string
	Actor      models.Actor
	EntityType string
	EntityID   string
	Payload    map[string]interface{}
}

// Append writes the event inside the caller's transaction, so a failed append
// rolls back the state change it records and vice versa.
func (s *Service) Append(tx *gorm.DB, e Entry) error {
	var payload datatypes.JSON
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return errs.Persistence(err)
		}
		payload = datatypes.JSON(b)
	}
	ev := models.AuditEvent{
		AtUTC:      time.Now().UTC(),
		EventType:  e.EventType,
		ActorID:    e.Actor.UserID,
		ActorRole:  string(e.Actor.Role),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Payload:    payload,
	}
	if err := tx.Create(&ev).Error; err != nil {
		return errs.Persistence(err)
	}
	return nil
}

// SearchFilter narrows an audit search. Zero values mean "no filter".
type SearchFilter struct {
	Text      string
	EventType string
	Actor     string
	Limit     int
}

const defaultSearchLimit = 200

// scanCap bounds how many rows the free-text pass will examine.
const scanCap = 1000

// Search returns events newest-first. EventType matches exactly
// (case-insensitive), Actor and Text match as case-insensitive substrings; the
// free-text filter runs over the JSON-serialized event, like the audit screen
// expects.
func (s *Service) Search(ctx context.Context, f SearchFilter) ([]models.AuditEvent, error) {
	limit := f.Limit
	if limit <= 0 || limit > defaultSearchLimit {
		limit = defaultSearchLimit
	}

	q := s.DB.WithContext(ctx).Model(&models.AuditEvent{}).Order("at_utc DESC")
	if et := strings.ToUpper(strings.TrimSpace(f.EventType)); et != "" {
		q = q.Where("event_type = ?", et)
	}
	if ac := strings.ToLower(strings.TrimSpace(f.Actor)); ac != "" {
		q = q.Where("LOWER(actor_id) LIKE ?", "%"+ac+"%")
	}

	text := strings.ToLower(strings.TrimSpace(f.Text))
	if text == "" {
		var events []models.AuditEvent
		if err := q.Limit(limit).Find(&events).Error; err != nil {
			return nil, errs.Persistence(err)
		}
		return events, nil
	}

	var events []models.AuditEvent
	if err := q.Limit(scanCap).Find(&events).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	matched := make([]models.AuditEvent, 0, limit)
	for _, ev := range events {
		blob, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(blob)), text) {
			matched = append(matched, ev)
			if len(matched) == limit {
				break
			}
		}
	}
	return matched, nil
}
