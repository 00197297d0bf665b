package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/repositories"
)

// DirectoryHandler serves the thin lead/user listings backing the dashboard.
type DirectoryHandler struct {
	leadRepo repositories.LeadRepo
	userRepo repositories.UserRepo
}

func NewDirectoryHandler(leadRepo repositories.LeadRepo, userRepo repositories.UserRepo) *DirectoryHandler {
	return &DirectoryHandler{leadRepo: leadRepo, userRepo: userRepo}
}

// GET /api/leads
func (h *DirectoryHandler) ListLeads(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	leads, total, err := h.leadRepo.List(c.Context(), limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch leads"})
	}

	return c.JSON(fiber.Map{
		"leads": leads,
		"total": total,
	})
}

// GET /api/leads/:id
func (h *DirectoryHandler) GetLead(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid lead id"})
	}

	lead, err := h.leadRepo.FindByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "lead not found"})
	}

	return c.JSON(lead)
}

// GET /api/users
func (h *DirectoryHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.userRepo.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch users"})
	}

	return c.JSON(fiber.Map{"users": users})
}
