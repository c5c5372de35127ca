package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/metrics"
	"github.com/prolean/ProleanBack/internal/services"
	"github.com/prolean/ProleanBack/pkg/logger"
	"github.com/prolean/ProleanBack/pkg/utils"
)

const (
	LocalUserID    = "user_id"
	LocalPrincipal = "principal"
	LocalRequestID = "request_id"

	HeaderRequestID = "X-Request-ID"
)

func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		tokenString, ok := BearerToken(authHeader)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}
		userID, err := utils.UserIDFromClaims(claims)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(LocalUserID, userID)
		return c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(header), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type principalResolver interface {
	Resolve(ctx context.Context, userID int64) (access.Principal, error)
}

// LoadPrincipal resolves the caller's role and scope on every request. A
// user without a profile is refused rather than given a default role.
func LoadPrincipal(resolver principalResolver, log *logger.Logger, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals(LocalUserID).(int64)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}

		principal, err := resolver.Resolve(c.Context(), userID)
		if err != nil {
			if errors.Is(err, services.ErrProfileMissing) {
				m.ProfileMissing()
				log.Warn("authenticated user has no profile",
					logger.Int64("user_id", userID),
					logger.String("path", c.Path()),
					logger.Any("request_id", c.Locals(LocalRequestID)),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "access temporarily unavailable",
				})
			}
			log.Error("resolve principal failed", logger.Int64("user_id", userID), logger.Err(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve caller"})
		}

		c.Locals(LocalPrincipal, principal)
		return c.Next()
	}
}

// RequestID reuses the caller's X-Request-ID or issues a new one.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(HeaderRequestID))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Locals(LocalRequestID, id)
		c.Set(HeaderRequestID, id)
		return c.Next()
	}
}
