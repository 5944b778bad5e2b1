package audit

import (
	"github.com/gofiber/fiber/v2"

	"zinara-backend/internal/middleware"
	"zinara-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

func (h *Handlers) Search(c *fiber.Ctx) error {
	events, err := h.Service.Search(c.Context(), SearchFilter{
		Text:      c.Query("text"),
		EventType: c.Query("event_type"),
		Actor:     c.Query("actor"),
		Limit:     c.QueryInt("limit"),
	})
	if err != nil {
		return err
	}
	return response.Success(c, events)
}

func (h *Handlers) RegisterRoutes(router fiber.Router) {
	g := router.Group("/audit")
	g.Get("/", middleware.RequireHQ(), h.Search)
}
