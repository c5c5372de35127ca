package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/services"
)

type stubCatalogService struct {
	listResult     []models.TrainingView
	getResult      *models.TrainingView
	cities         []models.City
	trainingResult *models.Training
	err            error
	lastLang       string
	lastSlug       string
	lastInput      services.TrainingInput
	lastID         int64
	lastActive     *bool
}

func (s *stubCatalogService) ListActive(_ context.Context, lang string) ([]models.TrainingView, error) {
	s.lastLang = lang
	return s.listResult, s.err
}

func (s *stubCatalogService) GetBySlug(_ context.Context, slug string, lang string) (*models.TrainingView, error) {
	s.lastSlug = slug
	s.lastLang = lang
	return s.getResult, s.err
}

func (s *stubCatalogService) ListCities(context.Context) ([]models.City, error) {
	return s.cities, s.err
}

func (s *stubCatalogService) Create(_ context.Context, _ access.Principal, input services.TrainingInput) (*models.Training, error) {
	s.lastInput = input
	return s.trainingResult, s.err
}

func (s *stubCatalogService) Update(_ context.Context, _ access.Principal, trainingID int64, input services.TrainingInput) (*models.Training, error) {
	s.lastID = trainingID
	s.lastInput = input
	return s.trainingResult, s.err
}

func (s *stubCatalogService) SetActive(_ context.Context, _ access.Principal, trainingID int64, active bool) (*models.Training, error) {
	s.lastID = trainingID
	s.lastActive = &active
	return s.trainingResult, s.err
}

func TestListTrainingsPicksLanguage(t *testing.T) {
	service := &stubCatalogService{listResult: []models.TrainingView{{ID: 1, Slug: "caces-r489", Language: "ar"}}}
	handler := &CatalogHandler{service: service}
	app := fiber.New()
	app.Get("/api/catalog/trainings", handler.ListTrainings)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/trainings", nil)
	req.Header.Set("Accept-Language", "ar-MA,ar;q=0.9,fr;q=0.8")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastLang != "ar-MA" {
		t.Fatalf("expected header language, got %q", service.lastLang)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/catalog/trainings?lang=en", nil)
	req.Header.Set("Accept-Language", "ar")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if service.lastLang != "en" {
		t.Fatalf("expected query language to win, got %q", service.lastLang)
	}
}

func TestGetTrainingNotFound(t *testing.T) {
	service := &stubCatalogService{err: services.ErrNotFound}
	handler := &CatalogHandler{service: service}
	app := fiber.New()
	app.Get("/api/catalog/trainings/:slug", handler.GetTraining)

	resp, _ := doJSON(t, app, http.MethodGet, "/api/catalog/trainings/retired-course", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if service.lastSlug != "retired-course" {
		t.Fatalf("unexpected slug %q", service.lastSlug)
	}
}

func TestCreateTrainingDefaultsActive(t *testing.T) {
	service := &stubCatalogService{trainingResult: &models.Training{ID: 3, Slug: "secourisme"}}
	handler := &CatalogHandler{service: service}
	admin := adminPrincipal()
	app := newTestApp(&admin)
	app.Post("/api/v1/staff/trainings", handler.CreateTraining)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/staff/trainings", `{
		"slug": " secourisme ",
		"price_mad": 1200,
		"duration_days": 3,
		"content": {"title": {"fr": "Secourisme", "ar": "الإسعافات"}}
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if !service.lastInput.IsActive || service.lastInput.Slug != "secourisme" {
		t.Fatalf("unexpected input %+v", service.lastInput)
	}
	if service.lastInput.Content["title"]["ar"] == "" {
		t.Fatalf("expected multilingual content to be forwarded")
	}
}

func TestSetTrainingActiveRequiresFlag(t *testing.T) {
	service := &stubCatalogService{trainingResult: &models.Training{ID: 3}}
	handler := &CatalogHandler{service: service}
	admin := adminPrincipal()
	app := newTestApp(&admin)
	app.Put("/api/v1/staff/trainings/:id/active", handler.SetTrainingActive)

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/staff/trainings/3/active", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, http.MethodPut, "/api/v1/staff/trainings/3/active", `{"is_active": false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActive == nil || *service.lastActive || service.lastID != 3 {
		t.Fatalf("expected deactivation of training 3")
	}
}
