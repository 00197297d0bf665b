package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/repositories"
)

type DashboardHandler struct {
	repo repositories.DashboardRepo
}

func NewDashboardHandler(repo repositories.DashboardRepo) *DashboardHandler {
	return &DashboardHandler{repo: repo}
}

// GET /api/dashboard/stats
//
// Agents get statistics over their own conversations; admins get the whole
// system.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	principal, ok := principalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var scope *uuid.UUID
	if principal.Role == models.RoleAgent {
		scope = &principal.ID
	}

	stats, err := h.repo.Stats(c.Context(), scope)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch dashboard stats"})
	}

	return c.JSON(stats)
}
