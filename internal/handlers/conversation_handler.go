package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/repositories"
	"github.com/primaruang/realty-crm-be/internal/services"
)

type ConversationHandler struct {
	convService *services.ConversationService
	msgService  *services.MessageService
}

func NewConversationHandler(convService *services.ConversationService, msgService *services.MessageService) *ConversationHandler {
	return &ConversationHandler{convService: convService, msgService: msgService}
}

// GET /api/conversations
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	principal, ok := principalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	filter := repositories.ConversationFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Tag:      c.Query("tag"),
		Search:   c.Query("search"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 20),
	}

	rows, total, err := h.convService.List(c.Context(), principal, filter)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversations": rows,
		"total":         total,
		"page":          filter.Page,
		"limit":         filter.Limit,
	})
}

// GET /api/conversations/:id
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	principal, ok := principalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid conversation id"})
	}

	conv, err := h.convService.Get(c.Context(), principal, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(conv)
}

// POST /api/conversations/:id/claim
func (h *ConversationHandler) Claim(c *fiber.Ctx) error {
	principal, ok := principalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid conversation id"})
	}

	conv, err := h.convService.Claim(c.Context(), principal, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(conv)
}

// PATCH /api/conversations/:id/read
func (h *ConversationHandler) MarkRead(c *fiber.Ctx) error {
	principal, ok := principalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid conversation id"})
	}

	if err := h.convService.MarkRead(c.Context(), principal, id); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

type statusRequest struct {
	Status string `json:"status"`
}

// PATCH /api/conversations/:id/status
func (h *ConversationHandler) SetStatus(c *fiber.Ctx) error {
	principal, ok := principalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid conversation id"})
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	if err := h.convService.SetStatus(c.Context(), principal, id, req.Status); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

// GET /api/conversations/:id/messages
func (h *ConversationHandler) Messages(c *fiber.Ctx) error {
	principal, ok := principalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid conversation id"})
	}

	rows, total, err := h.msgService.List(c.Context(), principal, id, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages": rows,
		"total":    total,
	})
}

type sendMessageRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// POST /api/conversations/:id/messages
func (h *ConversationHandler) SendMessage(c *fiber.Ctx) error {
	principal, ok := principalFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid conversation id"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	msg, err := h.msgService.Send(c.Context(), principal, id, req.Content, req.ContentType)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}
