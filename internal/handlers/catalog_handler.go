package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/services"
	"github.com/prolean/ProleanBack/pkg/i18n"
)

type CatalogHandler struct {
	service catalogApplicationService
}

type catalogApplicationService interface {
	ListActive(ctx context.Context, lang string) ([]models.TrainingView, error)
	GetBySlug(ctx context.Context, slug string, lang string) (*models.TrainingView, error)
	ListCities(ctx context.Context) ([]models.City, error)
	Create(ctx context.Context, actor access.Principal, input services.TrainingInput) (*models.Training, error)
	Update(ctx context.Context, actor access.Principal, trainingID int64, input services.TrainingInput) (*models.Training, error)
	SetActive(ctx context.Context, actor access.Principal, trainingID int64, active bool) (*models.Training, error)
}

func NewCatalogHandler(service *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

type trainingRequest struct {
	Slug         string      `json:"slug"`
	PriceMAD     float64     `json:"price_mad"`
	DurationDays int         `json:"duration_days"`
	MaxStudents  int         `json:"max_students"`
	IsActive     *bool       `json:"is_active"`
	Content      i18n.Fields `json:"content"`
}

type activeRequest struct {
	IsActive *bool `json:"is_active"`
}

func (r trainingRequest) toInput() services.TrainingInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return services.TrainingInput{
		Slug:         strings.TrimSpace(r.Slug),
		PriceMAD:     r.PriceMAD,
		DurationDays: r.DurationDays,
		MaxStudents:  r.MaxStudents,
		IsActive:     active,
		Content:      r.Content,
	}
}

func (h *CatalogHandler) ListTrainings(c *fiber.Ctx) error {
	trainings, err := h.service.ListActive(c.Context(), requestLanguage(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"trainings": trainings})
}

func (h *CatalogHandler) GetTraining(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return badRequest(c, "Invalid training slug")
	}

	training, err := h.service.GetBySlug(c.Context(), slug, requestLanguage(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"training": training})
}

func (h *CatalogHandler) ListCities(c *fiber.Ctx) error {
	cities, err := h.service.ListCities(c.Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"cities": cities})
}

func (h *CatalogHandler) CreateTraining(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	var req trainingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	training, err := h.service.Create(c.Context(), actor, req.toInput())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"training": training})
}

func (h *CatalogHandler) UpdateTraining(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	trainingID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid training id")
	}

	var req trainingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	training, err := h.service.Update(c.Context(), actor, trainingID, req.toInput())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"training": training})
}

func (h *CatalogHandler) SetTrainingActive(c *fiber.Ctx) error {
	actor, err := principalFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	trainingID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid training id")
	}

	var req activeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.IsActive == nil {
		return badRequest(c, "is_active is required")
	}

	training, err := h.service.SetActive(c.Context(), actor, trainingID, *req.IsActive)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"training": training})
}

// requestLanguage prefers ?lang= and falls back to the first Accept-Language
// tag. The service resolves unsupported values to the site default.
func requestLanguage(c *fiber.Ctx) string {
	if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
		return lang
	}
	header := c.Get(fiber.HeaderAcceptLanguage)
	if idx := strings.IndexAny(header, ",;"); idx >= 0 {
		header = header[:idx]
	}
	return strings.TrimSpace(header)
}
