package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/middleware"
	"github.com/prolean/ProleanBack/internal/services"
)

var errMissingPrincipal = errors.New("missing principal")

func principalFrom(c *fiber.Ctx) (access.Principal, error) {
	principal, ok := c.Locals(middleware.LocalPrincipal).(access.Principal)
	if !ok {
		return access.Principal{}, errMissingPrincipal
	}
	return principal, nil
}

func userIDFrom(c *fiber.Ctx) (int64, error) {
	userID, ok := c.Locals(middleware.LocalUserID).(int64)
	if !ok || userID <= 0 {
		return 0, errMissingPrincipal
	}
	return userID, nil
}

func parseIDParam(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseIDList reads repeated or comma separated ids from a query string.
func parseIDList(raw string) ([]int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

// mapServiceError is the single translation from service sentinels to HTTP.
// Scope and role failures share one message so callers cannot tell which
// check refused them.
func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	case errors.Is(err, services.ErrScopeViolation), errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
	case errors.Is(err, services.ErrInactiveAccount):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "account is not active"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already exists"})
	case errors.Is(err, services.ErrSessionClosed):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "session is closed"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrProfileMissing):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "access temporarily unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process request"})
	}
}
