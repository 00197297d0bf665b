package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/primaruang/realty-crm-be/internal/services"
)

// ChatHandler is the unauthenticated public widget surface.
type ChatHandler struct {
	chatService *services.ChatService
}

func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type startChatRequest struct {
	Name            string                 `json:"name"`
	Email           string                 `json:"email"`
	Phone           string                 `json:"phone"`
	ProjectInterest string                 `json:"project_interest"`
	Message         string                 `json:"message"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// POST /api/chat/start
func (h *ChatHandler) Start(c *fiber.Ctx) error {
	var req startChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	input := services.StartChatInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		ProjectInterest: req.ProjectInterest,
		Message:         req.Message,
	}
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid metadata"})
		}
		input.Metadata = raw
	}

	result, err := h.chatService.Start(c.Context(), input)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// GET /api/chat/:token/messages
func (h *ChatHandler) Messages(c *fiber.Ctx) error {
	rows, total, err := h.chatService.Messages(c.Context(), c.Params("token"), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages": rows,
		"total":    total,
	})
}

type chatMessageRequest struct {
	Content string `json:"content"`
}

// POST /api/chat/:token/messages
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req chatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	msg, err := h.chatService.SendMessage(c.Context(), c.Params("token"), req.Content)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}
