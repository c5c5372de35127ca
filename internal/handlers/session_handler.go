package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/services"
)

type SessionHandler struct {
	service sessionApplicationService
}

type sessionApplicationService interface {
	CreateSession(ctx context.Context, actor access.Principal, input services.CreateSessionInput) (*models.Session, error)
	ListSessions(ctx context.Context, actor access.Principal) ([]models.Session, error)
	GetSession(ctx context.Context, actor access.Principal, sessionID int64) (*models.SessionDetail, error)
	Transition(ctx context.Context, actor access.Principal, sessionID int64, next models.SessionStatus) (*models.Session, error)
	AddSeance(ctx context.Context, actor access.Principal, sessionID int64, input services.AddSeanceInput) (*models.Seance, string, error)
	AssignStudent(ctx context.Context, actor access.Principal, studentID int64, sessionID int64) (*models.StudentProfile, error)
	UnassignStudent(ctx context.Context, actor access.Principal, studentID int64) (*models.StudentProfile, error)
	Notify(ctx context.Context, actor access.Principal, sessionID int64, input services.NotifyInput) ([]models.Notification, error)
	StartLive(ctx context.Context, actor access.Principal, sessionID int64, title string) (*models.LiveStream, bool, error)
	EndLive(ctx context.Context, actor access.Principal, streamID int64) (*models.LiveStream, error)
}

func NewSessionHandler(service *services.CohortService) *SessionHandler {
	return &SessionHandler{service: service}
}

type createSessionRequest struct {
	TrainingIDs []int64 `json:"training_ids"`
	ProfessorID int64   `json:"professor_id"`
	CityID      *int64  `json:"city_id"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	IsLive      bool    `json:"is_live"`
}

type updateSessionStatusRequest struct {
	Status string `json:"status"`
}

type addSeanceRequest struct {
	Title     string `json:"title"`
	Type      string `json:"type"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Location  string `json:"location"`
}

type assignStudentRequest struct {
	StudentID int64 `json:"student_id"`
}

type notifyRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Link    string `json:"link"`
}

type startLiveRequest struct {
	Title string `json:"title"`
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := validateIDs("training_ids", req.TrainingIDs, true); msg != "" {
		return badRequest(c, msg)
	}
	if req.ProfessorID <= 0 {
		return badRequest(c, "professor_id is required")
	}
	startDate, msg := parseDate("start_date", req.StartDate)
	if msg != "" {
		return badRequest(c, msg)
	}
	endDate, msg := parseDate("end_date", req.EndDate)
	if msg != "" {
		return badRequest(c, msg)
	}

	session, err := h.service.CreateSession(c.Context(), actor, services.CreateSessionInput{
		TrainingIDs: req.TrainingIDs,
		ProfessorID: req.ProfessorID,
		CityID:      req.CityID,
		StartDate:   startDate,
		EndDate:     endDate,
		IsLive:      req.IsLive,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	sessions, err := h.service.ListSessions(c.Context(), actor)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	detail, err := h.service.GetSession(c.Context(), actor, sessionID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"session": detail})
}

func (h *SessionHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	var req updateSessionStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	next, ok := models.ParseSessionStatus(req.Status)
	if !ok {
		return badRequest(c, "status must be one of CREATED, ONGOING, COMPLETED")
	}

	session, err := h.service.Transition(c.Context(), actor, sessionID, next)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) AddSeance(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	var req addSeanceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return badRequest(c, "title is required")
	}
	seanceType, ok := models.ParseSeanceType(req.Type)
	if !ok {
		return badRequest(c, "type must be THEORETICAL or PRACTICAL")
	}
	date, msg := parseDate("date", req.Date)
	if msg != "" {
		return badRequest(c, msg)
	}

	seance, warning, err := h.service.AddSeance(c.Context(), actor, sessionID, services.AddSeanceInput{
		Title:     strings.TrimSpace(req.Title),
		Type:      seanceType,
		Date:      date,
		StartTime: strings.TrimSpace(req.StartTime),
		Location:  strings.TrimSpace(req.Location),
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	response := fiber.Map{"seance": seance}
	if warning != "" {
		response["warning"] = warning
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

func (h *SessionHandler) AssignStudent(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	var req assignStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.StudentID <= 0 {
		return badRequest(c, "student_id is required")
	}

	student, err := h.service.AssignStudent(c.Context(), actor, req.StudentID, sessionID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"student": student})
}

func (h *SessionHandler) UnassignStudent(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	studentID, ok := parseIDParam(c, "studentId")
	if !ok {
		return badRequest(c, "Invalid student id")
	}

	student, err := h.service.UnassignStudent(c.Context(), actor, studentID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"student": student})
}

func (h *SessionHandler) Notify(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	var req notifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" {
		return badRequest(c, "title and message are required")
	}

	sent, err := h.service.Notify(c.Context(), actor, sessionID, services.NotifyInput{
		Title:   strings.TrimSpace(req.Title),
		Message: strings.TrimSpace(req.Message),
		Type:    models.ParseNotificationType(req.Type),
		Link:    strings.TrimSpace(req.Link),
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"sent": len(sent)})
}

// StartLive answers 201 when a stream was opened and 200 when the session's
// active stream is reused.
func (h *SessionHandler) StartLive(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	var req startLiveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	stream, created, err := h.service.StartLive(c.Context(), actor, sessionID, strings.TrimSpace(req.Title))
	if err != nil {
		return mapServiceError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"stream": stream})
}

func (h *SessionHandler) EndLive(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	streamID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid stream id")
	}

	stream, err := h.service.EndLive(c.Context(), actor, streamID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"stream": stream})
}
