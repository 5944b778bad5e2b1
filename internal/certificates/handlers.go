package certificates

import (
	"github.com/gofiber/fiber/v2"

	"zinara-backend/internal/middleware"
	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/errs"
	"zinara-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

type captureRequest struct {
	CertTypeID        string `json:"cert_type_id"`
	CertificateNumber string `json:"certificate_number"`
	BatchID           string `json:"batch_id"`
	Method            string `json:"method"`
}

func (h *Handlers) Capture(c *fiber.Ctx) error {
	var req captureRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	cert, err := h.Service.Capture(c.Context(), CaptureInput{
		CertTypeID:        req.CertTypeID,
		CertificateNumber: req.CertificateNumber,
		BatchID:           req.BatchID,
		Method:            req.Method,
		Actor:             middleware.GetActor(c),
	})
	if err != nil {
		return err
	}
	return response.Created(c, cert)
}

type captureBatchRequest struct {
	CertTypeID         string   `json:"cert_type_id"`
	CertificateNumbers []string `json:"certificate_numbers"`
	BatchID            string   `json:"batch_id"`
	Method             string   `json:"method"`
}

type captureBatchResult struct {
	Captured []string          `json:"captured"`
	Failed   map[string]string `json:"failed"`
}

// CaptureBatch books a list of numbers one by one; per-number failures are
// reported without aborting the rest.
func (h *Handlers) CaptureBatch(c *fiber.Ctx) error {
	var req captureBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	if len(req.CertificateNumbers) == 0 {
		return errs.Validation("Certificate Numbers are required.")
	}

	actor := middleware.GetActor(c)
	out := captureBatchResult{Failed: map[string]string{}}
	for _, num := range req.CertificateNumbers {
		cert, err := h.Service.Capture(c.Context(), CaptureInput{
			CertTypeID:        req.CertTypeID,
			CertificateNumber: num,
			BatchID:           req.BatchID,
			Method:            req.Method,
			Actor:             actor,
		})
		if err != nil {
			out.Failed[num] = err.Error()
			continue
		}
		out.Captured = append(out.Captured, cert.CertificateNumber)
	}
	return response.Created(c, out)
}

func (h *Handlers) ListAvailable(c *fiber.Ctx) error {
	scope := StockScope{OwnerType: models.OwnerHQ}
	if branch := c.Query("branch_id"); branch != "" {
		scope = StockScope{OwnerType: models.OwnerBranch, BranchID: branch}
	}
	status := models.CertificateStatus(c.Query("status"))
	if status == "" {
		status = models.CertStatusHQStock
		if scope.OwnerType == models.OwnerBranch {
			status = models.CertStatusBranchStock
		}
	}
	certType := c.Query("cert_type_id")
	if certType == "" {
		return errs.Validation("cert_type_id query parameter is required.")
	}

	certs, err := h.Service.LookupAvailable(c.Context(), scope, certType, status, c.QueryInt("limit"))
	if err != nil {
		return err
	}
	n, err := h.Service.CountAvailable(c.Context(), scope, certType, status)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"total": n, "certificates": certs})
}

type issueRequest struct {
	BranchID          string `json:"branch_id"`
	CertTypeID        string `json:"cert_type_id"`
	CertificateNumber string `json:"certificate_number"`
	ClientName        string `json:"client_name"`
	PolicyNumber      string `json:"policy_number"`
}

func (h *Handlers) Issue(c *fiber.Ctx) error {
	var req issueRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	cert, err := h.Service.Issue(c.Context(), IssueInput{
		BranchID:          req.BranchID,
		CertTypeID:        req.CertTypeID,
		CertificateNumber: req.CertificateNumber,
		ClientName:        req.ClientName,
		PolicyNumber:      req.PolicyNumber,
		Actor:             middleware.GetActor(c),
	})
	if err != nil {
		return err
	}
	return response.Success(c, cert)
}

func (h *Handlers) RegisterRoutes(router fiber.Router) {
	g := router.Group("/certificates")
	g.Post("/", middleware.RequireHQ(), h.Capture)
	g.Post("/batch", middleware.RequireHQ(), h.CaptureBatch)
	g.Get("/available", h.ListAvailable)
	g.Post("/issue", h.Issue)
}
