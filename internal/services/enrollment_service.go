package services

import (
	"context"
	"math"

	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/metrics"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/repository"
	"github.com/prolean/ProleanBack/pkg/logger"
)

type enrollmentStore interface {
	ledgerStore
	UpdateAmountPaid(ctx context.Context, studentID int64, amount float64) error
	ListStudentIDs(ctx context.Context) ([]int64, error)
}

type EnrollmentService struct {
	ledger
	store    enrollmentStore
	inTx     txRunner[enrollmentStore]
	currency string
}

func NewEnrollmentService(
	db repository.DBTX,
	tx *repository.Transactor,
	currency string,
	log *logger.Logger,
	m *metrics.Metrics,
) *EnrollmentService {
	return &EnrollmentService{
		ledger:   ledger{log: log, metrics: m},
		store:    repository.NewQueries(db),
		inTx:     pgxRunner[enrollmentStore](tx),
		currency: currency,
	}
}

func (s *EnrollmentService) Authorize(
	ctx context.Context,
	actor access.Principal,
	studentID int64,
	trainingIDs []int64,
) (*models.StudentProfile, error) {
	ids := uniqueIDs(trainingIDs)
	return s.mutate(ctx, actor, studentID, "enrollment.authorize", fixedIDs(ids), func(q enrollmentStore, ids []int64) error {
		return s.authorize(ctx, q, studentID, ids)
	})
}

func (s *EnrollmentService) Revoke(
	ctx context.Context,
	actor access.Principal,
	studentID int64,
	trainingIDs []int64,
) (*models.StudentProfile, error) {
	ids := uniqueIDs(trainingIDs)
	return s.mutate(ctx, actor, studentID, "enrollment.revoke", fixedIDs(ids), func(q enrollmentStore, ids []int64) error {
		return s.revoke(ctx, q, studentID, ids)
	})
}

// Set replaces the authorized set. An empty list clears it.
func (s *EnrollmentService) Set(
	ctx context.Context,
	actor access.Principal,
	studentID int64,
	trainingIDs []int64,
) (*models.StudentProfile, error) {
	ids := uniqueIDs(trainingIDs)
	return s.mutate(ctx, actor, studentID, "enrollment.set", fixedIDs(ids), func(q enrollmentStore, ids []int64) error {
		return s.set(ctx, q, studentID, ids)
	})
}

func (s *EnrollmentService) AuthorizeAllActive(
	ctx context.Context,
	actor access.Principal,
	studentID int64,
) (*models.StudentProfile, error) {
	activeIDs := func(q enrollmentStore) ([]int64, error) {
		return q.ListActiveTrainingIDs(ctx)
	}
	return s.mutate(ctx, actor, studentID, "enrollment.authorize_all", activeIDs, func(q enrollmentStore, ids []int64) error {
		return s.authorize(ctx, q, studentID, ids)
	})
}

func (s *EnrollmentService) RecordPayment(
	ctx context.Context,
	actor access.Principal,
	studentID int64,
	amountPaid float64,
) (*models.StudentProfile, error) {
	if amountPaid < 0 || math.IsNaN(amountPaid) || math.IsInf(amountPaid, 0) {
		return nil, ErrInvalidInput
	}
	return s.mutate(ctx, actor, studentID, "enrollment.payment", nil, func(q enrollmentStore, _ []int64) error {
		return q.UpdateAmountPaid(ctx, studentID, amountPaid)
	})
}

// RecomputeDue recomputes one student's total under its row lock.
func (s *EnrollmentService) RecomputeDue(ctx context.Context, studentID int64) (float64, error) {
	var total float64
	err := s.inTx(ctx, func(q enrollmentStore) error {
		if _, err := q.LockStudent(ctx, studentID); err != nil {
			return notFound(err)
		}
		var err error
		total, _, err = s.recomputeDue(ctx, q, studentID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// RecalculateAll recomputes every student, one transaction each, and
// returns how many stored totals changed.
func (s *EnrollmentService) RecalculateAll(ctx context.Context) (int, error) {
	studentIDs, err := s.store.ListStudentIDs(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, studentID := range studentIDs {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		err := s.inTx(ctx, func(q enrollmentStore) error {
			if _, err := q.LockStudent(ctx, studentID); err != nil {
				return notFound(err)
			}
			_, changed, err := s.recomputeDue(ctx, q, studentID)
			if changed {
				updated++
			}
			return err
		})
		if err != nil {
			return updated, err
		}
	}
	return updated, nil
}

func (s *EnrollmentService) GetBalance(
	ctx context.Context,
	actor access.Principal,
	studentID int64,
) (*models.StudentBalance, error) {
	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, notFound(err)
	}

	self := access.CanViewAsStudent(actor) && actor.StudentID != nil && *actor.StudentID == student.ID
	if !self && !access.CanActAsAssistant(actor, student.CityID) {
		if access.IsStaff(actor) {
			s.metrics.ScopeViolation("enrollment.balance")
			return nil, ErrScopeViolation
		}
		return nil, ErrForbidden
	}

	return &models.StudentBalance{
		StudentID:       student.ID,
		TotalAmountDue:  student.TotalAmountDue,
		AmountPaid:      student.AmountPaid,
		AmountRemaining: student.AmountRemaining(),
		Currency:        s.currency,
	}, nil
}

type trainingResolver func(q enrollmentStore) ([]int64, error)

func fixedIDs(ids []int64) trainingResolver {
	return func(enrollmentStore) ([]int64, error) { return ids, nil }
}

// mutate runs fn under the ledger's lock order: the resolved training rows,
// then the student row.
func (s *EnrollmentService) mutate(
	ctx context.Context,
	actor access.Principal,
	studentID int64,
	operation string,
	trainings trainingResolver,
	fn func(q enrollmentStore, trainingIDs []int64) error,
) (*models.StudentProfile, error) {
	if !access.IsStaff(actor) {
		return nil, ErrForbidden
	}

	var student *models.StudentProfile
	err := s.inTx(ctx, func(q enrollmentStore) error {
		var trainingIDs []int64
		if trainings != nil {
			ids, err := trainings(q)
			if err != nil {
				return err
			}
			if err := s.lockTrainings(ctx, q, ids); err != nil {
				return err
			}
			trainingIDs = ids
		}
		if _, err := s.lockInScope(ctx, q, actor, studentID, operation); err != nil {
			return err
		}
		if err := fn(q, trainingIDs); err != nil {
			return err
		}
		var err error
		student, err = q.GetStudent(ctx, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}
