package handlers

import (
	"context"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/services"
)

type AuthHandler struct {
	service authApplicationService
}

type authApplicationService interface {
	Register(ctx context.Context, input services.RegisterInput) (*services.Account, error)
	Login(ctx context.Context, email string, password string) (string, *models.User, error)
	Me(ctx context.Context, userID int64) (*services.Account, error)
}

func NewAuthHandler(service *services.IdentityService) *AuthHandler {
	return &AuthHandler{service: service}
}

type registerRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FullName    string  `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	email, ok := normalizeEmail(req.Email)
	if !ok {
		return badRequest(c, "Invalid email format")
	}
	if len(req.Password) < 8 {
		return badRequest(c, "Password must be at least 8 characters")
	}
	if strings.TrimSpace(req.FullName) == "" {
		return badRequest(c, "full_name is required")
	}

	account, err := h.service.Register(c.Context(), services.RegisterInput{
		Email:       email,
		Password:    req.Password,
		FullName:    strings.TrimSpace(req.FullName),
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(account)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	email, ok := normalizeEmail(req.Email)
	if !ok {
		return badRequest(c, "Invalid email format")
	}

	token, user, err := h.service.Login(c.Context(), email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

// Me reports the caller's profile including the role and status. It runs
// behind AuthRequired only, so a missing profile surfaces here as 503.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	account, err := h.service.Me(c.Context(), userID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(account)
}

func normalizeEmail(raw string) (string, bool) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return strings.ToLower(parsed.Address), true
}
