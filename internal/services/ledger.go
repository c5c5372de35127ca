package services

import (
	"context"

	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/metrics"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/pkg/logger"
)

type ledgerStore interface {
	LockStudent(ctx context.Context, studentID int64) (*models.StudentProfile, error)
	GetStudent(ctx context.Context, studentID int64) (*models.StudentProfile, error)
	LockTrainingsForShare(ctx context.Context, trainingIDs []int64) ([]int64, error)
	ListActiveTrainingIDs(ctx context.Context) ([]int64, error)
	AddAuthorizedTrainings(ctx context.Context, studentID int64, trainingIDs []int64) error
	RemoveAuthorizedTrainings(ctx context.Context, studentID int64, trainingIDs []int64) error
	ClearAuthorizedTrainings(ctx context.Context, studentID int64) error
	SumAuthorizedPrices(ctx context.Context, studentID int64) (float64, error)
	UpdateTotalAmountDueIfChanged(ctx context.Context, studentID int64, total float64) (bool, error)
}

// ledger owns the authorized-trainings set and the derived total. Every
// membership change is followed by recomputeDue in the same transaction,
// with the student row locked by the caller. Lock order is training rows
// first, then the student row, the same order a price update takes them.
type ledger struct {
	log     *logger.Logger
	metrics *metrics.Metrics
}

func (l ledger) lockTrainings(ctx context.Context, q ledgerStore, trainingIDs []int64) error {
	if len(trainingIDs) == 0 {
		return nil
	}
	existing, err := q.LockTrainingsForShare(ctx, trainingIDs)
	if err != nil {
		return err
	}
	if len(existing) != len(trainingIDs) {
		return ErrNotFound
	}
	return nil
}

func (l ledger) lockInScope(
	ctx context.Context,
	q ledgerStore,
	actor access.Principal,
	studentID int64,
	operation string,
) (*models.StudentProfile, error) {
	student, err := q.LockStudent(ctx, studentID)
	if err != nil {
		return nil, notFound(err)
	}
	if !access.CanActAsAssistant(actor, student.CityID) {
		l.metrics.ScopeViolation(operation)
		return nil, ErrScopeViolation
	}
	return student, nil
}

func (l ledger) authorize(ctx context.Context, q ledgerStore, studentID int64, trainingIDs []int64) error {
	if err := l.lockTrainings(ctx, q, trainingIDs); err != nil {
		return err
	}
	if err := q.AddAuthorizedTrainings(ctx, studentID, trainingIDs); err != nil {
		return err
	}
	_, _, err := l.recomputeDue(ctx, q, studentID)
	return err
}

func (l ledger) revoke(ctx context.Context, q ledgerStore, studentID int64, trainingIDs []int64) error {
	if err := l.lockTrainings(ctx, q, trainingIDs); err != nil {
		return err
	}
	if err := q.RemoveAuthorizedTrainings(ctx, studentID, trainingIDs); err != nil {
		return err
	}
	_, _, err := l.recomputeDue(ctx, q, studentID)
	return err
}

func (l ledger) set(ctx context.Context, q ledgerStore, studentID int64, trainingIDs []int64) error {
	if err := l.lockTrainings(ctx, q, trainingIDs); err != nil {
		return err
	}
	if err := q.ClearAuthorizedTrainings(ctx, studentID); err != nil {
		return err
	}
	if err := q.AddAuthorizedTrainings(ctx, studentID, trainingIDs); err != nil {
		return err
	}
	_, _, err := l.recomputeDue(ctx, q, studentID)
	return err
}

// recomputeDue sums prices over the current authorized set and writes the
// total only when it differs from the stored value.
func (l ledger) recomputeDue(ctx context.Context, q ledgerStore, studentID int64) (float64, bool, error) {
	total, err := q.SumAuthorizedPrices(ctx, studentID)
	if err != nil {
		return 0, false, err
	}
	changed, err := q.UpdateTotalAmountDueIfChanged(ctx, studentID, total)
	if err != nil {
		return 0, false, err
	}
	l.metrics.DueRecomputed(changed)
	l.log.Debug("total amount due recomputed",
		logger.Int64("student_id", studentID),
		logger.Float64("total", total),
		logger.Bool("changed", changed),
	)
	return total, changed, nil
}
