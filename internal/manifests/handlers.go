package manifests

import (
	"github.com/gofiber/fiber/v2"

	"zinara-backend/internal/middleware"
	"zinara-backend/internal/pkg/errs"
	"zinara-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

type createTransferRequest struct {
	ToBranchID string `json:"to_branch_id"`
	CertTypeID string `json:"cert_type_id"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note"`
}

func (h *Handlers) CreateTransfer(c *fiber.Ctx) error {
	var req createTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	transfer, err := h.Service.CreateTransfer(c.Context(), CreateTransferInput{
		ToBranchID: req.ToBranchID,
		CertTypeID: req.CertTypeID,
		Quantity:   req.Quantity,
		Note:       req.Note,
		Actor:      middleware.GetActor(c),
	})
	if err != nil {
		return err
	}
	return response.Created(c, transfer)
}

type acceptTransferRequest struct {
	BranchID string `json:"branch_id"`
}

func (h *Handlers) AcceptTransfer(c *fiber.Ctx) error {
	var req acceptTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	actor := middleware.GetActor(c)
	branch := req.BranchID
	if branch == "" {
		branch = actor.BranchID
	}
	transfer, err := h.Service.AcceptTransfer(c.Context(), c.Params("manifestNo"), branch, actor)
	if err != nil {
		return err
	}
	return response.Success(c, transfer)
}

func (h *Handlers) ListTransfers(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	branch := c.Query("branch_id")
	if branch == "" {
		branch = actor.BranchID
	}
	if branch == "" {
		return errs.Validation("branch_id query parameter is required.")
	}
	if !actor.ActsForBranch(branch) {
		return errs.Validation("Actor may not list transfers for branch %s.", branch)
	}
	transfers, err := h.Service.ListTransfersForBranch(c.Context(), branch)
	if err != nil {
		return err
	}
	return response.Success(c, transfers)
}

type createReturnRequest struct {
	FromBranchID       string   `json:"from_branch_id"`
	CertTypeID         string   `json:"cert_type_id"`
	Quantity           int      `json:"quantity"`
	CertificateNumbers []string `json:"certificate_numbers"`
	Reason             string   `json:"reason"`
}

func (h *Handlers) CreateReturn(c *fiber.Ctx) error {
	var req createReturnRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	actor := middleware.GetActor(c)
	branch := req.FromBranchID
	if branch == "" {
		branch = actor.BranchID
	}
	ret, err := h.Service.CreateReturn(c.Context(), CreateReturnInput{
		FromBranchID: branch,
		CertTypeID:   req.CertTypeID,
		Selection: ReturnSelection{
			Quantity:           req.Quantity,
			CertificateNumbers: req.CertificateNumbers,
		},
		Reason: req.Reason,
		Actor:  actor,
	})
	if err != nil {
		return err
	}
	return response.Created(c, ret)
}

func (h *Handlers) ReceiveReturn(c *fiber.Ctx) error {
	ret, err := h.Service.ReceiveReturn(c.Context(), c.Params("manifestNo"), middleware.GetActor(c))
	if err != nil {
		return err
	}
	return response.Success(c, ret)
}

func (h *Handlers) ListReturns(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	branch := c.Query("branch_id")
	if branch == "" {
		branch = actor.BranchID
	}
	if branch == "" {
		return errs.Validation("branch_id query parameter is required.")
	}
	if !actor.ActsForBranch(branch) {
		return errs.Validation("Actor may not list returns for branch %s.", branch)
	}
	returns, err := h.Service.ListReturnsForBranch(c.Context(), branch)
	if err != nil {
		return err
	}
	return response.Success(c, returns)
}

func (h *Handlers) ListIncomingReturns(c *fiber.Ctx) error {
	returns, err := h.Service.ListIncomingReturns(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, returns)
}

func (h *Handlers) RegisterRoutes(router fiber.Router) {
	t := router.Group("/transfers")
	t.Post("/", middleware.RequireHQ(), h.CreateTransfer)
	t.Post("/:manifestNo/accept", h.AcceptTransfer)
	t.Get("/", h.ListTransfers)

	r := router.Group("/returns")
	r.Post("/", h.CreateReturn)
	r.Post("/:manifestNo/receive", middleware.RequireHQ(), h.ReceiveReturn)
	r.Get("/incoming", middleware.RequireHQ(), h.ListIncomingReturns)
	r.Get("/", h.ListReturns)
}
