package handlers

import (
	"context"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/core/auth"
	"github.com/primaruang/realty-crm-be/internal/core/realtime"
	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/services"
)

const wsAuthTimeout = 5 * time.Second

// WSHandler owns both realtime endpoints: the agent socket (JWT, may join any
// conversation it can access) and the public chat socket (chat token, pinned
// to its own conversation).
type WSHandler struct {
	hub         *realtime.Hub
	jwtService  *auth.JWTService
	access      *services.AccessPolicy
	chatService *services.ChatService
}

func NewWSHandler(hub *realtime.Hub, jwtService *auth.JWTService, access *services.AccessPolicy, chatService *services.ChatService) *WSHandler {
	return &WSHandler{
		hub:         hub,
		jwtService:  jwtService,
		access:      access,
		chatService: chatService,
	}
}

// AgentAuth guards GET /ws. Browsers cannot set headers on the websocket
// handshake, so the token is also accepted as ?token=.
func (h *WSHandler) AgentAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "websocket upgrade required"})
	}

	token := auth.TokenFromRequest(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing token"})
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
	}

	c.Locals("userID", claims.UserID)
	c.Locals("userName", claims.Name)
	c.Locals("role", claims.Role)
	return c.Next()
}

// HandleAgentSocket runs one agent session. Join requests re-check access per
// conversation: a valid session is identity, not room authorization.
func (h *WSHandler) HandleAgentSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("userID").(string)
	role, _ := conn.Locals("role").(string)

	id, err := uuid.Parse(userID)
	if err != nil {
		_ = conn.Close()
		return
	}
	principal := services.Principal{ID: id, Role: role}

	client := realtime.NewClient(h.hub, conn, userID)
	h.hub.Register(client)
	go client.WritePump()

	client.ReadPump(func(conversationID string) error {
		convID, err := uuid.Parse(conversationID)
		if err != nil {
			return realtime.ErrInvalidConversationID
		}

		ctx, cancel := context.WithTimeout(context.Background(), wsAuthTimeout)
		defer cancel()

		ok, err := h.access.CanAccessConversation(ctx, principal, convID)
		if err != nil {
			return err
		}
		if !ok {
			return services.ErrForbidden
		}
		return nil
	})
}

// PublicAuth guards GET /ws/chat. The chat token issued at chat start is the
// only credential; archived conversations do not get a socket.
func (h *WSHandler) PublicAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "websocket upgrade required"})
	}

	conv, err := h.chatService.Resolve(c.Context(), c.Query("chat_token"))
	if err != nil {
		return respondServiceError(c, err)
	}
	if conv.Status == models.StatusArchived {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conversation is archived"})
	}

	c.Locals("conversationID", conv.ID.String())
	return c.Next()
}

// HandlePublicSocket runs one widget session. It is auto-joined to its own
// conversation and can never join another.
func (h *WSHandler) HandlePublicSocket(conn *websocket.Conn) {
	conversationID, _ := conn.Locals("conversationID").(string)
	if conversationID == "" {
		_ = conn.Close()
		return
	}

	client := realtime.NewClient(h.hub, conn, "lead:"+conversationID)
	h.hub.Register(client)
	h.hub.Join(client, conversationID)
	go client.WritePump()

	client.ReadPump(func(requested string) error {
		if requested != conversationID {
			return services.ErrForbidden
		}
		return nil
	})
}
