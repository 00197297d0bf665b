package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/services"
	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

// principalFromCtx rebuilds the principal stored in locals by the auth
// middleware. Routes behind AuthRequired always have it.
func principalFromCtx(c *fiber.Ctx) (services.Principal, bool) {
	userID, _ := c.Locals("userID").(string)
	name, _ := c.Locals("userName").(string)
	role, _ := c.Locals("role").(string)

	id, err := uuid.Parse(userID)
	if err != nil {
		return services.Principal{}, false
	}

	return services.Principal{ID: id, Name: name, Role: role}, true
}

// respondServiceError maps the service sentinels to HTTP statuses. Anything
// unrecognized is a 500 with the detail kept in the log, not the response.
func respondServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	case errors.Is(err, services.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conversation already assigned"})
	case errors.Is(err, services.ErrArchived):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conversation is archived"})
	default:
		utils.LogError("request failed", err, map[string]interface{}{
			"path": c.Path(),
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}
