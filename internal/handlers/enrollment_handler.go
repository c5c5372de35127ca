package handlers

import (
	"context"
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/services"
)

type EnrollmentHandler struct {
	service enrollmentApplicationService
}

type enrollmentApplicationService interface {
	Authorize(ctx context.Context, actor access.Principal, studentID int64, trainingIDs []int64) (*models.StudentProfile, error)
	Revoke(ctx context.Context, actor access.Principal, studentID int64, trainingIDs []int64) (*models.StudentProfile, error)
	Set(ctx context.Context, actor access.Principal, studentID int64, trainingIDs []int64) (*models.StudentProfile, error)
	AuthorizeAllActive(ctx context.Context, actor access.Principal, studentID int64) (*models.StudentProfile, error)
	RecordPayment(ctx context.Context, actor access.Principal, studentID int64, amountPaid float64) (*models.StudentProfile, error)
	GetBalance(ctx context.Context, actor access.Principal, studentID int64) (*models.StudentBalance, error)
}

func NewEnrollmentHandler(service *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

type trainingsRequest struct {
	TrainingIDs []int64 `json:"training_ids"`
}

type paymentRequest struct {
	AmountPaid *float64 `json:"amount_paid"`
}

type enrollmentMutation func(ctx context.Context, actor access.Principal, studentID int64, trainingIDs []int64) (*models.StudentProfile, error)

func (h *EnrollmentHandler) Authorize(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Authorize, true)
}

func (h *EnrollmentHandler) Revoke(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Revoke, true)
}

// Set replaces the authorized set; an empty list clears it.
func (h *EnrollmentHandler) Set(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Set, false)
}

func (h *EnrollmentHandler) AuthorizeAll(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	studentID, ok := parseIDParam(c, "studentId")
	if !ok {
		return badRequest(c, "Invalid student id")
	}

	student, err := h.service.AuthorizeAllActive(c.Context(), actor, studentID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"student": student})
}

func (h *EnrollmentHandler) RecordPayment(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	studentID, ok := parseIDParam(c, "studentId")
	if !ok {
		return badRequest(c, "Invalid student id")
	}

	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.AmountPaid == nil || *req.AmountPaid < 0 || math.IsNaN(*req.AmountPaid) || math.IsInf(*req.AmountPaid, 0) {
		return badRequest(c, "amount_paid must be a non-negative number")
	}

	student, err := h.service.RecordPayment(c.Context(), actor, studentID, *req.AmountPaid)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"student": student})
}

func (h *EnrollmentHandler) GetBalance(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	studentID, ok := parseIDParam(c, "studentId")
	if !ok {
		return badRequest(c, "Invalid student id")
	}

	balance, err := h.service.GetBalance(c.Context(), actor, studentID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"balance": balance})
}

func (h *EnrollmentHandler) mutate(c *fiber.Ctx, op enrollmentMutation, requireIDs bool) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	studentID, ok := parseIDParam(c, "studentId")
	if !ok {
		return badRequest(c, "Invalid student id")
	}

	var req trainingsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateIDs("training_ids", req.TrainingIDs, requireIDs); msg != "" {
		return badRequest(c, msg)
	}

	student, err := op(c.Context(), actor, studentID, req.TrainingIDs)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"student": student})
}
