package repository

import (
	"context"

	"github.com/prolean/ProleanBack/internal/models"
)

type StudentRepository struct {
	db DBTX
}

func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentSelect = `
	SELECT sp.id, sp.profile_id, p.user_id, p.full_name, p.status, p.city_id, sp.session_id,
		   sp.amount_paid, sp.total_amount_due,
		   COALESCE(ARRAY(
			   SELECT st.training_id FROM student_trainings st
			   WHERE st.student_id = sp.id ORDER BY st.training_id
		   ), '{}')
	FROM student_profiles sp
	JOIN profiles p ON p.id = sp.profile_id
`

func scanStudent(row interface{ Scan(dest ...any) error }) (*models.StudentProfile, error) {
	var student models.StudentProfile
	err := row.Scan(
		&student.ID,
		&student.ProfileID,
		&student.UserID,
		&student.FullName,
		&student.Status,
		&student.CityID,
		&student.SessionID,
		&student.AmountPaid,
		&student.TotalAmountDue,
		&student.AuthorizedTrainingIDs,
	)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepository) GetStudent(ctx context.Context, studentID int64) (*models.StudentProfile, error) {
	return scanStudent(r.db.QueryRow(ctx, studentSelect+` WHERE sp.id = $1`, studentID))
}

// LockStudent reads the student and holds its row lock until the transaction ends.
func (r *StudentRepository) LockStudent(ctx context.Context, studentID int64) (*models.StudentProfile, error) {
	return scanStudent(r.db.QueryRow(ctx, studentSelect+` WHERE sp.id = $1 FOR UPDATE OF sp`, studentID))
}

func (r *StudentRepository) AddAuthorizedTrainings(ctx context.Context, studentID int64, trainingIDs []int64) error {
	if len(trainingIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO student_trainings (student_id, training_id)
		SELECT $1, training_id FROM unnest($2::bigint[]) AS training_id
		ON CONFLICT DO NOTHING
	`, studentID, trainingIDs)
	return err
}

func (r *StudentRepository) RemoveAuthorizedTrainings(ctx context.Context, studentID int64, trainingIDs []int64) error {
	if len(trainingIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`DELETE FROM student_trainings WHERE student_id = $1 AND training_id = ANY($2::bigint[])`,
		studentID, trainingIDs,
	)
	return err
}

func (r *StudentRepository) ClearAuthorizedTrainings(ctx context.Context, studentID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM student_trainings WHERE student_id = $1`, studentID)
	return err
}

func (r *StudentRepository) SumAuthorizedPrices(ctx context.Context, studentID int64) (float64, error) {
	query := `
		SELECT COALESCE(SUM(t.price_mad), 0)
		FROM student_trainings st
		JOIN trainings t ON t.id = st.training_id
		WHERE st.student_id = $1
	`
	var total float64
	err := r.db.QueryRow(ctx, query, studentID).Scan(&total)
	return total, err
}

// UpdateTotalAmountDueIfChanged reports whether a row was written.
func (r *StudentRepository) UpdateTotalAmountDueIfChanged(ctx context.Context, studentID int64, total float64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE student_profiles
		SET total_amount_due = $2, updated_at = NOW()
		WHERE id = $1 AND total_amount_due IS DISTINCT FROM $2::numeric(10, 2)
	`, studentID, total)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *StudentRepository) UpdateAmountPaid(ctx context.Context, studentID int64, amount float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE student_profiles SET amount_paid = $2, updated_at = NOW() WHERE id = $1`,
		studentID, amount,
	)
	return err
}

func (r *StudentRepository) UpdateStudentSession(ctx context.Context, studentID int64, sessionID *int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE student_profiles SET session_id = $2, updated_at = NOW() WHERE id = $1`,
		studentID, sessionID,
	)
	return err
}

func (r *StudentRepository) ListStudentIDs(ctx context.Context) ([]int64, error) {
	return collectInt64s(r.db.Query(ctx, `SELECT id FROM student_profiles ORDER BY id`))
}

func (r *StudentRepository) ListSessionStudentUserIDs(ctx context.Context, sessionID int64) ([]int64, error) {
	return collectInt64s(r.db.Query(ctx, `
		SELECT p.user_id
		FROM student_profiles sp
		JOIN profiles p ON p.id = sp.profile_id
		WHERE sp.session_id = $1
		ORDER BY p.user_id
	`, sessionID))
}

func (r *StudentRepository) CountSessionStudents(ctx context.Context, sessionID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM student_profiles WHERE session_id = $1`, sessionID).Scan(&count)
	return count, err
}

func (r *StudentRepository) ListTrainingStudentIDs(ctx context.Context, trainingID int64) ([]int64, error) {
	return collectInt64s(r.db.Query(ctx,
		`SELECT student_id FROM student_trainings WHERE training_id = $1 ORDER BY student_id`,
		trainingID,
	))
}
