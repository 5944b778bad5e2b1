package masters

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

type branchRequest struct {
	BranchID   string `json:"branch_id"`
	BranchName string `json:"branch_name"`
	IsActive   *bool  `json:"is_active"`
}

func (h *Handlers) UpsertBranch(c *fiber.Ctx) error {
	var req branchRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	branch, err := h.Service.UpsertBranch(c.Context(), req.BranchID, req.BranchName, active)
	if err != nil {
		return err
	}
	return response.Success(c, branch)
}

type activeRequest struct {
	IsActive bool `json:"is_active"`
}

func (h *Handlers) SetBranchActive(c *fiber.Ctx) error {
	var req activeRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	if err := h.Service.SetBranchActive(c.Context(), c.Params("branchID"), req.IsActive); err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"branch_id": c.Params("branchID"), "is_active": req.IsActive})
}

func (h *Handlers) ListBranches(c *fiber.Ctx) error {
	branches, err := h.Service.ListBranches(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, branches)
}

type certTypeRequest struct {
	CertTypeID string `json:"cert_type_id"`
	Name       string `json:"name"`
	IsActive   *bool  `json:"is_active"`
}

func (h *Handlers) UpsertCertificateType(c *fiber.Ctx) error {
	var req certTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	ct, err := h.Service.UpsertCertificateType(c.Context(), req.CertTypeID, req.Name, active)
	if err != nil {
		return err
	}
	return response.Success(c, ct)
}

func (h *Handlers) SetCertificateTypeActive(c *fiber.Ctx) error {
	var req activeRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	if err := h.Service.SetCertificateTypeActive(c.Context(), c.Params("certTypeID"), req.IsActive); err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"cert_type_id": c.Params("certTypeID"), "is_active": req.IsActive})
}

func (h *Handlers) ListCertificateTypes(c *fiber.Ctx) error {
	types, err := h.Service.ListCertificateTypes(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, types)
}

type userRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	BranchID    string `json:"branch_id"`
	IsActive    *bool  `json:"is_active"`
}

func (h *Handlers) UpsertUser(c *fiber.Ctx) error {
	var req userRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	user, err := h.Service.UpsertUser(c.Context(), UpsertUserInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        models.UserRole(req.Role),
		BranchID:    req.BranchID,
		IsActive:    active,
	})
	if err != nil {
		return err
	}
	return response.Success(c, user)
}

func (h *Handlers) SetUserActive(c *fiber.Ctx) error {
	var req activeRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validation("Invalid request body.")
	}
	if err := h.Service.SetUserActive(c.Context(), c.Params("username"), req.IsActive); err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"username": c.Params("username"), "is_active": req.IsActive})
}

func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	users, err := h.Service.ListUsers(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, users)
}

func (h *Handlers) RegisterRoutes(router fiber.Router) {
	g := router.Group("/masters", middleware.RequireHQ())

	g.Put("/branches", h.UpsertBranch)
	g.Patch("/branches/:branchID/active", h.SetBranchActive)
	g.Get("/branches", h.ListBranches)

	g.Put("/cert-types", h.UpsertCertificateType)
	g.Patch("/cert-types/:certTypeID/active", h.SetCertificateTypeActive)
	g.Get("/cert-types", h.ListCertificateTypes)

	g.Put("/users", h.UpsertUser)
	g.Patch("/users/:username/active", h.SetUserActive)
	g.Get("/users", h.ListUsers)
}
