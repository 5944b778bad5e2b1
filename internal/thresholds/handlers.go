package thresholds

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"zinara-backend/internal/middleware"
	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/errs"
	"zinara-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

type setThresholdRequest struct {
	BranchID   string `json:"branch_id"`
	CertTypeID string `json:"cert_type_id"`
	Value      int    `json:"value"`
}

func (h *Handlers) SetDefault(c *fiber.Ctx) error {
	var req setThresholdRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	if err := h.Service.SetDefaultThreshold(c.Context(), req.CertTypeID, req.Value, middleware.GetActor(c)); err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"cert_type_id": req.CertTypeID, "value": req.Value})
}

func (h *Handlers) SetOverride(c *fiber.Ctx) error {
	var req setThresholdRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	if err := h.Service.SetBranchOverride(c.Context(), req.BranchID, req.CertTypeID, req.Value, middleware.GetActor(c)); err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"branch_id": req.BranchID, "cert_type_id": req.CertTypeID, "value": req.Value})
}

func (h *Handlers) ClearOverride(c *fiber.Ctx) error {
	branch := c.Query("branch_id")
	certType := c.Query("cert_type_id")
	if err := h.Service.ClearBranchOverride(c.Context(), branch, certType, middleware.GetActor(c)); err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"branch_id": branch, "cert_type_id": certType})
}

func (h *Handlers) Effective(c *fiber.Ctx) error {
	branch := c.Query("branch_id")
	certType := c.Query("cert_type_id")
	if branch == "" || certType == "" {
		return errs.Validation("branch_id and cert_type_id query parameters are required.")
	}
	value, err := h.Service.EffectiveThreshold(c.Context(), branch, certType)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"branch_id": branch, "cert_type_id": certType, "threshold": value})
}

func (h *Handlers) Shortages(c *fiber.Ctx) error {
	rows, err := h.Service.ShortageReport(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, rows)
}

type createRequestRequest struct {
	BranchID   string `json:"branch_id"`
	CertTypeID string `json:"cert_type_id"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason"`
}

func (h *Handlers) CreateRequest(c *fiber.Ctx) error {
	var req createRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	actor := middleware.GetActor(c)
	branch := req.BranchID
	if branch == "" {
		branch = actor.BranchID
	}
	out, err := h.Service.CreateStockRequest(c.Context(), branch, req.CertTypeID, req.Quantity, req.Reason, actor)
	if err != nil {
		return err
	}
	return response.Created(c, out)
}

func (h *Handlers) requestID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("requestID"))
	if err != nil {
		return uuid.Nil, errs.Validation("Invalid request id.")
	}
	return id, nil
}

func (h *Handlers) FulfilRequest(c *fiber.Ctx) error {
	id, err := h.requestID(c)
	if err != nil {
		return err
	}
	out, err := h.Service.FulfilRequest(c.Context(), id, middleware.GetActor(c))
	if err != nil {
		return err
	}
	return response.Success(c, out)
}

type declineRequestRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) DeclineRequest(c *fiber.Ctx) error {
	id, err := h.requestID(c)
	if err != nil {
		return err
	}
	var req declineRequestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errs.Validation("Invalid request body.")
		}
	}
	out, err := h.Service.DeclineRequest(c.Context(), id, req.Reason, middleware.GetActor(c))
	if err != nil {
		return err
	}
	return response.Success(c, out)
}

func (h *Handlers) CancelRequest(c *fiber.Ctx) error {
	id, err := h.requestID(c)
	if err != nil {
		return err
	}
	out, err := h.Service.CancelRequest(c.Context(), id, middleware.GetActor(c))
	if err != nil {
		return err
	}
	return response.Success(c, out)
}

func (h *Handlers) ListRequests(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	branch := c.Query("branch_id")
	if !actor.IsHQ() {
		branch = actor.BranchID
	}
	requests, err := h.Service.ListRequests(c.Context(), branch, models.RequestStatus(c.Query("status")))
	if err != nil {
		return err
	}
	return response.Success(c, requests)
}

func (h *Handlers) RegisterRoutes(router fiber.Router) {
	t := router.Group("/thresholds")
	t.Put("/default", middleware.RequireHQ(), h.SetDefault)
	t.Put("/override", h.SetOverride)
	t.Delete("/override", h.ClearOverride)
	t.Get("/effective", h.Effective)
	t.Get("/shortages", middleware.RequireHQ(), h.Shortages)

	r := router.Group("/requests")
	r.Post("/", h.CreateRequest)
	r.Post("/:requestID/fulfil", middleware.RequireHQ(), h.FulfilRequest)
	r.Post("/:requestID/decline", middleware.RequireHQ(), h.DeclineRequest)
	r.Post("/:requestID/cancel", h.CancelRequest)
	r.Get("/", h.ListRequests)
}
