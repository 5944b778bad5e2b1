package reports

import (
	"bytes"
	"time"

	"github.com/gofiber/fiber/v2"

	"zinara-backend/internal/middleware"
	"zinara-backend/internal/pkg/errs"
	"zinara-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

func (h *Handlers) HQStock(c *fiber.Ctx) error {
	rows, err := h.Service.HQStockSummary(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, rows)
}

func (h *Handlers) BranchStock(c *fiber.Ctx) error {
	rows, err := h.Service.BranchStockStatus(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, rows)
}

func (h *Handlers) Ops(c *fiber.Ctx) error {
	counters, err := h.Service.CollectOpsCounters(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, counters)
}

func (h *Handlers) Activity(c *fiber.Ctx) error {
	items, err := h.Service.RecentActivity(c.Context(), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return response.Success(c, items)
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errs.Validation("Invalid date: %s (use YYYY-MM-DD or RFC3339).", raw)
}

func (h *Handlers) Issued(c *fiber.Ctx) error {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		return err
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		return err
	}
	rows, err := h.Service.IssuedReport(c.Context(), IssuedFilter{
		From:       from,
		To:         to,
		BranchID:   c.Query("branch_id"),
		CertTypeID: c.Query("cert_type_id"),
	})
	if err != nil {
		return err
	}
	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		if err := WriteIssuedCSV(&buf, rows); err != nil {
			return errs.Persistence(err)
		}
		return sendCSV(c, "issued.csv", buf.Bytes())
	}
	return response.Success(c, rows)
}

func (h *Handlers) Movements(c *fiber.Ctx) error {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		return err
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		return err
	}
	rows, err := h.Service.MovementsSummary(c.Context(), from, to)
	if err != nil {
		return err
	}
	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		if err := WriteMovementsCSV(&buf, rows); err != nil {
			return errs.Persistence(err)
		}
		return sendCSV(c, "movements.csv", buf.Bytes())
	}
	return response.Success(c, rows)
}

func sendCSV(c *fiber.Ctx, filename string, body []byte) error {
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(body)
}

func (h *Handlers) RegisterRoutes(router fiber.Router) {
	g := router.Group("/reports")
	g.Get("/hq-stock", middleware.RequireHQ(), h.HQStock)
	g.Get("/branch-stock", middleware.RequireHQ(), h.BranchStock)
	g.Get("/ops", middleware.RequireHQ(), h.Ops)
	g.Get("/activity", middleware.RequireHQ(), h.Activity)
	g.Get("/issued", h.Issued)
	g.Get("/movements", middleware.RequireHQ(), h.Movements)
}
