package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/services"
)

type StaffHandler struct {
	service staffApplicationService
}

type staffApplicationService interface {
	CreateStudent(ctx context.Context, actor access.Principal, input services.CreateStudentInput) (*models.StudentProfile, error)
	SetStatus(ctx context.Context, actor access.Principal, profileID int64, status models.ProfileStatus) (*models.Profile, error)
	ToggleStudentStatus(ctx context.Context, actor access.Principal, studentID int64) (*models.Profile, error)
	ChangeRole(ctx context.Context, actor access.Principal, profileID int64, role models.Role) (*models.Profile, error)
	AssignCities(ctx context.Context, actor access.Principal, assistantID int64, cityIDs []int64) (*models.AssistantProfile, error)
}

func NewStaffHandler(service *services.IdentityService) *StaffHandler {
	return &StaffHandler{service: service}
}

type createStudentRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FullName    string  `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	NationalID  *string `json:"national_id"`
	CityID      *int64  `json:"city_id"`
	Status      string  `json:"status"`
	TrainingIDs []int64 `json:"training_ids"`
	SessionID   *int64  `json:"session_id"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type citiesRequest struct {
	CityIDs []int64 `json:"city_ids"`
}

func (h *StaffHandler) CreateStudent(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	var req createStudentRequest
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
	status, msg := parseOptionalStatus(req.Status)
	if msg != "" {
		return badRequest(c, msg)
	}
	if msg := validateIDs("training_ids", req.TrainingIDs, false); msg != "" {
		return badRequest(c, msg)
	}

	student, err := h.service.CreateStudent(c.Context(), actor, services.CreateStudentInput{
		RegisterInput: services.RegisterInput{
			Email:       email,
			Password:    req.Password,
			FullName:    strings.TrimSpace(req.FullName),
			PhoneNumber: optionalString(req.PhoneNumber),
		},
		Status:      status,
		NationalID:  optionalString(req.NationalID),
		CityID:      req.CityID,
		TrainingIDs: req.TrainingIDs,
		SessionID:   req.SessionID,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"student": student})
}

func (h *StaffHandler) SetStatus(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	profileID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid profile id")
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	status, msg := parseStatus(req.Status)
	if msg != "" {
		return badRequest(c, msg)
	}

	profile, err := h.service.SetStatus(c.Context(), actor, profileID, status)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"profile": profile})
}

func (h *StaffHandler) ToggleStudentStatus(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	studentID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid student id")
	}

	profile, err := h.service.ToggleStudentStatus(c.Context(), actor, studentID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"profile": profile})
}

func (h *StaffHandler) ChangeRole(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	profileID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid profile id")
	}

	var req roleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	role, msg := parseRole(req.Role)
	if msg != "" {
		return badRequest(c, msg)
	}

	profile, err := h.service.ChangeRole(c.Context(), actor, profileID, role)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"profile": profile})
}

func (h *StaffHandler) AssignCities(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	assistantID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid assistant id")
	}

	var req citiesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateIDs("city_ids", req.CityIDs, false); msg != "" {
		return badRequest(c, msg)
	}

	assistant, err := h.service.AssignCities(c.Context(), actor, assistantID, req.CityIDs)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"assistant": assistant})
}
