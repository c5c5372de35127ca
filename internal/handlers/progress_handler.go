package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/services"
)

type ProgressHandler struct {
	service progressApplicationService
}

type progressApplicationService interface {
	RecordProgress(ctx context.Context, actor access.Principal, videoID int64, watchedSeconds int, completed *bool) (*models.VideoProgress, error)
	Summary(ctx context.Context, actor access.Principal, trainingIDs []int64) (models.ProgressSummary, error)
	JoinLive(ctx context.Context, actor access.Principal, streamID int64) (*models.AttendanceLog, error)
	Heartbeat(ctx context.Context, actor access.Principal, streamID int64) (*models.AttendanceLog, error)
}

func NewProgressHandler(service *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

type recordProgressRequest struct {
	WatchedSeconds *int  `json:"watched_seconds"`
	Completed      *bool `json:"completed"`
}

func (h *ProgressHandler) RecordProgress(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	videoID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid video id")
	}

	var req recordProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.WatchedSeconds == nil || *req.WatchedSeconds < 0 {
		return badRequest(c, "watched_seconds must be a non-negative integer")
	}

	progress, err := h.service.RecordProgress(c.Context(), actor, videoID, *req.WatchedSeconds, req.Completed)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"progress": progress})
}

func (h *ProgressHandler) Summary(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	trainingIDs, ok := parseIDList(c.Query("training_id"))
	if !ok {
		return badRequest(c, "training_id must be a comma separated list of ids")
	}

	summary, err := h.service.Summary(c.Context(), actor, trainingIDs)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"summary": summary})
}

func (h *ProgressHandler) JoinLive(c *fiber.Ctx) error {
	return h.attendance(c, h.service.JoinLive)
}

func (h *ProgressHandler) Heartbeat(c *fiber.Ctx) error {
	return h.attendance(c, h.service.Heartbeat)
}

func (h *ProgressHandler) attendance(
	c *fiber.Ctx,
	op func(ctx context.Context, actor access.Principal, streamID int64) (*models.AttendanceLog, error),
) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	streamID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid stream id")
	}

	attendance, err := op(c.Context(), actor, streamID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"attendance": attendance})
}
