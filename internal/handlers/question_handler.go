package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/services"
)

type QuestionHandler struct {
	service questionApplicationService
}

type questionApplicationService interface {
	Ask(ctx context.Context, actor access.Principal, videoID int64, content string) (*models.Question, error)
	Answer(ctx context.Context, actor access.Principal, questionID int64, content string) (*models.Question, error)
	Delete(ctx context.Context, actor access.Principal, questionID int64) error
	ListForVideo(ctx context.Context, actor access.Principal, videoID int64) ([]models.Question, error)
}

func NewQuestionHandler(service *services.QuestionService) *QuestionHandler {
	return &QuestionHandler{service: service}
}

type contentRequest struct {
	Content string `json:"content"`
}

func (h *QuestionHandler) Ask(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	videoID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid video id")
	}

	content, msg := parseContent(c)
	if msg != "" {
		return badRequest(c, msg)
	}

	question, err := h.service.Ask(c.Context(), actor, videoID, content)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"question": question})
}

func (h *QuestionHandler) List(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	videoID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid video id")
	}

	questions, err := h.service.ListForVideo(c.Context(), actor, videoID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"questions": questions})
}

func (h *QuestionHandler) Answer(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	questionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid question id")
	}

	content, msg := parseContent(c)
	if msg != "" {
		return badRequest(c, msg)
	}

	question, err := h.service.Answer(c.Context(), actor, questionID, content)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"question": question})
}

func (h *QuestionHandler) Delete(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	questionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid question id")
	}

	if err := h.service.Delete(c.Context(), actor, questionID); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseContent(c *fiber.Ctx) (string, string) {
	var req contentRequest
	if err := c.BodyParser(&req); err != nil {
		return "", "Invalid request body"
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return "", "content is required"
	}
	return content, ""
}
