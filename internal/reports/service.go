package reports

import (
	"context"
	"sort"
	"time"

	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/errs"
	"zinara-backend/internal/thresholds"

	"gorm.io/gorm"
)

// Service computes read-only projections over custody state. Nothing here
// mutates.
type Service struct {
	DB         *gorm.DB
	Thresholds *thresholds.Service
}

// HQStockRow is HQ stock on hand for one certificate type.
type HQStockRow struct {
	CertTypeID   string `json:"cert_type_id"`
	CertTypeName string `json:"cert_type_name"`
	HQStock      int    `json:"hq_stock"`
}

// HQStockSummary counts HQ_STOCK per active certificate type.
func (s *Service) HQStockSummary(ctx context.Context) ([]HQStockRow, error) {
	db := s.DB.WithContext(ctx)
	var types []models.CertificateType
	if err := db.Where("is_active = ?", true).Order("name ASC").Find(&types).Error; err != nil {
		return nil, errs.Persistence(err)
	}

	type countRow struct {
		CertTypeID string
		N          int
	}
	var counts []countRow
	if err := db.Model(&models.Certificate{}).
		Select("cert_type_id, COUNT(*) AS n").
		Where("status = ?", models.CertStatusHQStock).
		Group("cert_type_id").
		Scan(&counts).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	byType := make(map[string]int, len(counts))
	for _, c := range counts {
		byType[c.CertTypeID] = c.N
	}

	rows := make([]HQStockRow, 0, len(types))
	for _, t := range types {
		rows = append(rows, HQStockRow{
			CertTypeID:   t.CertTypeID,
			CertTypeName: t.Name,
			HQStock:      byType[t.CertTypeID],
		})
	}
	return rows, nil
}

// BranchStockStatus is the branch stock vs effective-threshold view.
func (s *Service) BranchStockStatus(ctx context.Context) ([]thresholds.ShortageRow, error) {
	return s.Thresholds.ShortageReport(ctx)
}

// OpsCounters are the HQ operational queues.
type OpsCounters struct {
	OpenRequests   int64 `json:"open_requests"`
	SentTransfers  int64 `json:"sent_transfers"`
	PendingReturns int64 `json:"pending_returns"`
}

// CollectOpsCounters counts open requests and in-flight manifests.
func (s *Service) CollectOpsCounters(ctx context.Context) (*OpsCounters, error) {
	db := s.DB.WithContext(ctx)
	var out OpsCounters
	if err := db.Model(&models.StockRequest{}).
		Where("status = ?", models.RequestOpen).
		Count(&out.OpenRequests).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	if err := db.Model(&models.Transfer{}).
		Where("status = ?", models.ManifestSent).
		Count(&out.SentTransfers).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	if err := db.Model(&models.Return{}).
		Where("status = ?", models.ManifestSent).
		Count(&out.PendingReturns).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	return &out, nil
}

// ActivityItem is one row of the merged recent-activity feed.
type ActivityItem struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	When       time.Time `json:"when"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Quantity   int       `json:"quantity"`
	CertTypeID string    `json:"cert_type_id"`
}

// RecentActivity merges transfers, returns and requests, newest first.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]ActivityItem, error) {
	if limit <= 0 {
		limit = 15
	}
	db := s.DB.WithContext(ctx)

	var transfers []models.Transfer
	if err := db.Order("created_at DESC").Limit(limit).Find(&transfers).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	var returns []models.Return
	if err := db.Order("created_at DESC").Limit(limit).Find(&returns).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	var requests []models.StockRequest
	if err := db.Order("created_at DESC").Limit(limit).Find(&requests).Error; err != nil {
		return nil, errs.Persistence(err)
	}

	items := make([]ActivityItem, 0, len(transfers)+len(returns)+len(requests))
	for _, t := range transfers {
		items = append(items, ActivityItem{
			Type:       "TRANSFER",
			ID:         t.ManifestNo,
			When:       t.CreatedAt,
			Title:      "Transfer " + t.ManifestNo + " to " + t.ToBranchID,
			Status:     string(t.Status),
			Quantity:   t.Quantity,
			CertTypeID: t.CertTypeID,
		})
	}
	for _, r := range returns {
		items = append(items, ActivityItem{
			Type:       "RETURN",
			ID:         r.ManifestNo,
			When:       r.CreatedAt,
			Title:      "Return " + r.ManifestNo + " from " + r.FromBranchID,
			Status:     string(r.Status),
			Quantity:   r.Quantity,
			CertTypeID: r.CertTypeID,
		})
	}
	for _, r := range requests {
		items = append(items, ActivityItem{
			Type:       "REQUEST",
			ID:         r.RequestID.String(),
			When:       r.CreatedAt,
			Title:      "Request " + r.RequestID.String() + " from " + r.BranchID,
			Status:     string(r.Status),
			Quantity:   r.Quantity,
			CertTypeID: r.CertTypeID,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].When.After(items[j].When)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// IssuedRow is one issued certificate in the issuance report.
type IssuedRow struct {
	CertificateNumber string     `json:"certificate_number"`
	CertTypeID        string     `json:"cert_type_id"`
	ClientName        string     `json:"client_name"`
	PolicyNumber      string     `json:"policy_number"`
	IssuedAt          *time.Time `json:"issued_at"`
	IssuedBy          string     `json:"issued_by"`
	BranchID          string     `json:"branch_id"`
}

// IssuedFilter narrows the issuance report; zero values mean "no filter".
type IssuedFilter struct {
	From       *time.Time
	To         *time.Time
	BranchID   string
	CertTypeID string
}

// IssuedReport lists issued certificates newest first.
func (s *Service) IssuedReport(ctx context.Context, f IssuedFilter) ([]IssuedRow, error) {
	q := s.DB.WithContext(ctx).Model(&models.Certificate{}).
		Where("status = ?", models.CertStatusIssued)
	if f.From != nil {
		q = q.Where("issued_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("issued_at <= ?", *f.To)
	}
	if f.BranchID != "" {
		q = q.Where("issued_branch_id = ?", f.BranchID)
	}
	if f.CertTypeID != "" {
		q = q.Where("cert_type_id = ?", f.CertTypeID)
	}

	var certs []models.Certificate
	if err := q.Order("issued_at DESC").Find(&certs).Error; err != nil {
		return nil, errs.Persistence(err)
	}

	rows := make([]IssuedRow, 0, len(certs))
	for _, c := range certs {
		row := IssuedRow{
			CertificateNumber: c.CertificateNumber,
			CertTypeID:        c.CertTypeID,
			IssuedAt:          c.IssuedAt,
		}
		if c.IssuedToClientName != nil {
			row.ClientName = *c.IssuedToClientName
		}
		if c.IssuedPolicyNumber != nil {
			row.PolicyNumber = *c.IssuedPolicyNumber
		}
		if c.IssuedBy != nil {
			row.IssuedBy = *c.IssuedBy
		}
		if c.IssuedBranchID != nil {
			row.BranchID = *c.IssuedBranchID
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MovementRow is one transfer or return in the movements report.
type MovementRow struct {
	Kind         string     `json:"kind"`
	ManifestNo   string     `json:"manifest_no"`
	Counterparty string     `json:"counterparty"`
	CertTypeID   string     `json:"cert_type_id"`
	Quantity     int        `json:"quantity"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ReceivedAt   *time.Time `json:"received_at"`
}

// MovementsSummary merges transfers and returns within a date range, newest
// first.
func (s *Service) MovementsSummary(ctx context.Context, from, to *time.Time) ([]MovementRow, error) {
	db := s.DB.WithContext(ctx)

	tq := db.Model(&models.Transfer{})
	rq := db.Model(&models.Return{})
	if from != nil {
		tq = tq.Where("created_at >= ?", *from)
		rq = rq.Where("created_at >= ?", *from)
	}
	if to != nil {
		tq = tq.Where("created_at <= ?", *to)
		rq = rq.Where("created_at <= ?", *to)
	}

	var transfers []models.Transfer
	if err := tq.Find(&transfers).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	var returns []models.Return
	if err := rq.Find(&returns).Error; err != nil {
		return nil, errs.Persistence(err)
	}

	rows := make([]MovementRow, 0, len(transfers)+len(returns))
	for _, t := range transfers {
		rows = append(rows, MovementRow{
			Kind:         "TRANSFER",
			ManifestNo:   t.ManifestNo,
			Counterparty: t.ToBranchID,
			CertTypeID:   t.CertTypeID,
			Quantity:     t.Quantity,
			Status:       string(t.Status),
			CreatedAt:    t.CreatedAt,
			ReceivedAt:   t.AcceptedAt,
		})
	}
	for _, r := range returns {
		rows = append(rows, MovementRow{
			Kind:         "RETURN",
			ManifestNo:   r.ManifestNo,
			Counterparty: r.FromBranchID,
			CertTypeID:   r.CertTypeID,
			Quantity:     r.Quantity,
			Status:       string(r.Status),
			CreatedAt:    r.CreatedAt,
			ReceivedAt:   r.ReceivedAt,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows, nil
}
