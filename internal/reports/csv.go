package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteIssuedCSV streams the issuance report as CSV.
func WriteIssuedCSV(w io.Writer, rows []IssuedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"certificate_number", "cert_type_id", "client_name", "policy_number", "issued_at", "issued_by", "branch_id"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.CertificateNumber, r.CertTypeID, r.ClientName, r.PolicyNumber,
			fmtTime(r.IssuedAt), r.IssuedBy, r.BranchID,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMovementsCSV streams the movements report as CSV.
func WriteMovementsCSV(w io.Writer, rows []MovementRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "manifest_no", "counterparty", "cert_type_id", "quantity", "status", "created_at", "received_at"}); err != nil {
		return err
	}
	for _, r := range rows {
		created := r.CreatedAt
		if err := cw.Write([]string{
			r.Kind, r.ManifestNo, r.Counterparty, r.CertTypeID,
			strconv.Itoa(r.Quantity), r.Status,
			fmtTime(&created), fmtTime(r.ReceivedAt),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
