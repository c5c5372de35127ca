package repository

import (
	"context"

	"github.com/prolean/ProleanBack/internal/models"
)

type TrainingRepository struct {
	db DBTX
}

func NewTrainingRepository(db DBTX) *TrainingRepository {
	return &TrainingRepository{db: db}
}

const trainingColumns = `id, slug, price_mad, duration_days, max_students, is_active, content, created_at, updated_at`

func scanTraining(row interface{ Scan(dest ...any) error }) (*models.Training, error) {
	var training models.Training
	err := row.Scan(
		&training.ID,
		&training.Slug,
		&training.PriceMAD,
		&training.DurationDays,
		&training.MaxStudents,
		&training.IsActive,
		&training.Content,
		&training.CreatedAt,
		&training.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &training, nil
}

func (r *TrainingRepository) CreateTraining(ctx context.Context, training *models.Training) error {
	query := `
		INSERT INTO trainings (slug, price_mad, duration_days, max_students, is_active, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		training.Slug,
		training.PriceMAD,
		training.DurationDays,
		training.MaxStudents,
		training.IsActive,
		training.Content,
	).Scan(&training.ID, &training.CreatedAt, &training.UpdatedAt)
}

func (r *TrainingRepository) UpdateTraining(ctx context.Context, training *models.Training) error {
	query := `
		UPDATE trainings
		SET slug = $2, price_mad = $3, duration_days = $4, max_students = $5, content = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING is_active, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		training.ID,
		training.Slug,
		training.PriceMAD,
		training.DurationDays,
		training.MaxStudents,
		training.Content,
	).Scan(&training.IsActive, &training.CreatedAt, &training.UpdatedAt)
}

func (r *TrainingRepository) SetTrainingActive(ctx context.Context, trainingID int64, active bool) (*models.Training, error) {
	query := `
		UPDATE trainings
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + trainingColumns
	return scanTraining(r.db.QueryRow(ctx, query, trainingID, active))
}

func (r *TrainingRepository) GetTrainingByID(ctx context.Context, trainingID int64) (*models.Training, error) {
	return scanTraining(r.db.QueryRow(ctx, `SELECT `+trainingColumns+` FROM trainings WHERE id = $1`, trainingID))
}

func (r *TrainingRepository) GetTrainingBySlug(ctx context.Context, slug string) (*models.Training, error) {
	return scanTraining(r.db.QueryRow(ctx, `SELECT `+trainingColumns+` FROM trainings WHERE slug = $1`, slug))
}

func (r *TrainingRepository) ListActiveTrainings(ctx context.Context) ([]models.Training, error) {
	rows, err := r.db.Query(ctx, `SELECT `+trainingColumns+` FROM trainings WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trainings := make([]models.Training, 0)
	for rows.Next() {
		training, err := scanTraining(rows)
		if err != nil {
			return nil, err
		}
		trainings = append(trainings, *training)
	}
	return trainings, rows.Err()
}

func (r *TrainingRepository) ListActiveTrainingIDs(ctx context.Context) ([]int64, error) {
	return collectInt64s(r.db.Query(ctx, `SELECT id FROM trainings WHERE is_active ORDER BY id`))
}

// LockTrainingsForShare returns the subset of ids that exist and holds a
// share lock on those rows until the transaction ends. A concurrent price
// change waits for the lock holder, and the holder waits for an in-flight
// price change.
func (r *TrainingRepository) LockTrainingsForShare(ctx context.Context, trainingIDs []int64) ([]int64, error) {
	return collectInt64s(r.db.Query(ctx,
		`SELECT id FROM trainings WHERE id = ANY($1::bigint[]) ORDER BY id FOR SHARE`,
		trainingIDs,
	))
}

// ListExistingTrainingIDs returns the subset of ids that exist, active or not.
func (r *TrainingRepository) ListExistingTrainingIDs(ctx context.Context, trainingIDs []int64) ([]int64, error) {
	return collectInt64s(r.db.Query(ctx,
		`SELECT id FROM trainings WHERE id = ANY($1::bigint[]) ORDER BY id`,
		trainingIDs,
	))
}
