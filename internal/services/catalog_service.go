package services

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"

	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/cache"
	"github.com/prolean/ProleanBack/internal/config"
	"github.com/prolean/ProleanBack/internal/metrics"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/repository"
	"github.com/prolean/ProleanBack/pkg/i18n"
	"github.com/prolean/ProleanBack/pkg/logger"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type catalogStore interface {
	ledgerStore
	ListActiveTrainings(ctx context.Context) ([]models.Training, error)
	GetTrainingByID(ctx context.Context, trainingID int64) (*models.Training, error)
	GetTrainingBySlug(ctx context.Context, slug string) (*models.Training, error)
	CreateTraining(ctx context.Context, training *models.Training) error
	UpdateTraining(ctx context.Context, training *models.Training) error
	SetTrainingActive(ctx context.Context, trainingID int64, active bool) (*models.Training, error)
	ListTrainingStudentIDs(ctx context.Context, trainingID int64) ([]int64, error)
	ListCities(ctx context.Context) ([]models.City, error)
}

type catalogCache interface {
	GetActiveTrainings(ctx context.Context) ([]models.Training, error)
	SetActiveTrainings(ctx context.Context, trainings []models.Training) error
	GetTraining(ctx context.Context, slug string) (*models.Training, error)
	SetTraining(ctx context.Context, training *models.Training) error
	GetCities(ctx context.Context) ([]models.City, error)
	SetCities(ctx context.Context, cities []models.City) error
	InvalidateTrainings(ctx context.Context, slugs ...string) error
}

type CatalogService struct {
	ledger
	store catalogStore
	inTx  txRunner[catalogStore]
	cache catalogCache
	site  config.SiteSettings
}

// NewCatalogService accepts a nil cache, which disables caching.
func NewCatalogService(
	db repository.DBTX,
	tx *repository.Transactor,
	catalog *cache.CatalogCache,
	site config.SiteSettings,
	log *logger.Logger,
	m *metrics.Metrics,
) *CatalogService {
	s := &CatalogService{
		ledger: ledger{log: log, metrics: m},
		store:  repository.NewQueries(db),
		inTx:   pgxRunner[catalogStore](tx),
		site:   site,
	}
	if catalog != nil {
		s.cache = catalog
	}
	return s
}

type TrainingInput struct {
	Slug         string
	PriceMAD     float64
	DurationDays int
	MaxStudents  int
	IsActive     bool
	Content      i18n.Fields
}

func (s *CatalogService) ListActive(ctx context.Context, lang string) ([]models.TrainingView, error) {
	trainings, err := s.activeTrainings(ctx)
	if err != nil {
		return nil, err
	}
	lang = s.language(lang)
	views := make([]models.TrainingView, 0, len(trainings))
	for _, training := range trainings {
		views = append(views, training.Localized(lang, s.site.DefaultCurrency))
	}
	return views, nil
}

func (s *CatalogService) GetBySlug(ctx context.Context, slug string, lang string) (*models.TrainingView, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	training, err := s.trainingBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !training.IsActive {
		return nil, ErrNotFound
	}
	view := training.Localized(s.language(lang), s.site.DefaultCurrency)
	return &view, nil
}

func (s *CatalogService) ListCities(ctx context.Context) ([]models.City, error) {
	if s.cache != nil {
		cities, err := s.cache.GetCities(ctx)
		if err == nil {
			return cities, nil
		}
		s.logCacheError("read cities", err)
	}
	cities, err := s.store.ListCities(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetCities(ctx, cities); err != nil {
			s.logCacheError("write cities", err)
		}
	}
	return cities, nil
}

func (s *CatalogService) Create(ctx context.Context, actor access.Principal, input TrainingInput) (*models.Training, error) {
	if !access.IsStaff(actor) {
		return nil, ErrForbidden
	}
	training, err := trainingFromInput(input)
	if err != nil {
		return nil, err
	}
	training.IsActive = input.IsActive

	if err := s.store.CreateTraining(ctx, training); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	s.invalidate(ctx, training.Slug)
	return training, nil
}

// Update rewrites a training. A price change is carried into the total due
// of every student holding the training, in the same transaction.
func (s *CatalogService) Update(
	ctx context.Context,
	actor access.Principal,
	trainingID int64,
	input TrainingInput,
) (*models.Training, error) {
	if !access.IsStaff(actor) {
		return nil, ErrForbidden
	}
	training, err := trainingFromInput(input)
	if err != nil {
		return nil, err
	}
	training.ID = trainingID

	var previousSlug string
	err = s.inTx(ctx, func(q catalogStore) error {
		current, err := q.GetTrainingByID(ctx, trainingID)
		if err != nil {
			return notFound(err)
		}
		previousSlug = current.Slug

		if err := q.UpdateTraining(ctx, training); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return notFound(err)
		}
		if current.PriceMAD == training.PriceMAD {
			return nil
		}

		studentIDs, err := q.ListTrainingStudentIDs(ctx, trainingID)
		if err != nil {
			return err
		}
		for _, studentID := range studentIDs {
			if _, err := q.LockStudent(ctx, studentID); err != nil {
				return err
			}
			if _, _, err := s.recomputeDue(ctx, q, studentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, previousSlug, training.Slug)
	return training, nil
}

// SetActive only changes catalog visibility. Authorized sets are untouched.
func (s *CatalogService) SetActive(
	ctx context.Context,
	actor access.Principal,
	trainingID int64,
	active bool,
) (*models.Training, error) {
	if !access.IsStaff(actor) {
		return nil, ErrForbidden
	}
	training, err := s.store.SetTrainingActive(ctx, trainingID, active)
	if err != nil {
		return nil, notFound(err)
	}
	s.invalidate(ctx, training.Slug)
	return training, nil
}

func (s *CatalogService) activeTrainings(ctx context.Context) ([]models.Training, error) {
	if s.cache != nil {
		trainings, err := s.cache.GetActiveTrainings(ctx)
		if err == nil {
			return trainings, nil
		}
		s.logCacheError("read active trainings", err)
	}
	trainings, err := s.store.ListActiveTrainings(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetActiveTrainings(ctx, trainings); err != nil {
			s.logCacheError("write active trainings", err)
		}
	}
	return trainings, nil
}

func (s *CatalogService) trainingBySlug(ctx context.Context, slug string) (*models.Training, error) {
	if s.cache != nil {
		training, err := s.cache.GetTraining(ctx, slug)
		if err == nil {
			return training, nil
		}
		s.logCacheError("read training", err)
	}
	training, err := s.store.GetTrainingBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err)
	}
	if s.cache != nil {
		if err := s.cache.SetTraining(ctx, training); err != nil {
			s.logCacheError("write training", err)
		}
	}
	return training, nil
}

func (s *CatalogService) invalidate(ctx context.Context, slugs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTrainings(ctx, slugs...); err != nil {
		s.logCacheError("invalidate trainings", err)
	}
}

func (s *CatalogService) logCacheError(action string, err error) {
	if errors.Is(err, cache.ErrCacheMiss) {
		return
	}
	s.log.Warn("catalog cache "+action+" failed", logger.Err(err))
}

func (s *CatalogService) language(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return i18n.NormalizeLanguage(s.site.DefaultLanguage)
	}
	return i18n.NormalizeLanguage(lang)
}

func trainingFromInput(input TrainingInput) (*models.Training, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, ErrInvalidInput
	}
	if input.PriceMAD < 0 || math.IsNaN(input.PriceMAD) || math.IsInf(input.PriceMAD, 0) ||
		input.DurationDays < 0 || input.MaxStudents < 0 {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(i18n.LocalizeWithFallback(input.Content, models.TrainingFieldTitle, i18n.Primary, "")) == "" {
		return nil, ErrInvalidInput
	}

	content := i18n.Fields{}
	for field, values := range input.Content {
		for lang, value := range values {
			if !i18n.Supported(lang) {
				return nil, ErrInvalidInput
			}
			content.Set(field, lang, value)
		}
	}
	return &models.Training{
		Slug:         slug,
		PriceMAD:     math.Round(input.PriceMAD*100) / 100,
		DurationDays: input.DurationDays,
		MaxStudents:  input.MaxStudents,
		Content:      content,
	}, nil
}
