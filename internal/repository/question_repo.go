package repository

import (
	"context"

	"github.com/prolean/ProleanBack/internal/models"
)

type QuestionRepository struct {
	db DBTX
}

func NewQuestionRepository(db DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

const questionColumns = `id, video_id, student_id, answered_by, content, answer_content, is_answered, is_deleted, created_at`

func scanQuestion(row interface{ Scan(dest ...any) error }) (*models.Question, error) {
	var question models.Question
	err := row.Scan(
		&question.ID,
		&question.VideoID,
		&question.StudentID,
		&question.AnsweredBy,
		&question.Content,
		&question.AnswerContent,
		&question.IsAnswered,
		&question.IsDeleted,
		&question.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuestionRepository) CreateQuestion(ctx context.Context, question *models.Question) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO questions (video_id, student_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, question.VideoID, question.StudentID, question.Content).Scan(&question.ID, &question.CreatedAt)
}

func (r *QuestionRepository) GetQuestionByID(ctx context.Context, questionID int64) (*models.Question, error) {
	return scanQuestion(r.db.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1 AND NOT is_deleted`,
		questionID,
	))
}

func (r *QuestionRepository) AnswerQuestion(
	ctx context.Context,
	questionID int64,
	professorID int64,
	content string,
) (*models.Question, error) {
	return scanQuestion(r.db.QueryRow(ctx, `
		UPDATE questions
		SET answered_by = $2, answer_content = $3, is_answered = TRUE
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+questionColumns, questionID, professorID, content))
}

func (r *QuestionRepository) SoftDeleteQuestion(ctx context.Context, questionID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE questions SET is_deleted = TRUE WHERE id = $1`, questionID)
	return err
}

// ListVideoQuestions lists a video's questions, limited to the askers in
// sessionID when one is given.
func (r *QuestionRepository) ListVideoQuestions(ctx context.Context, videoID int64, sessionID *int64) ([]models.Question, error) {
	query := `
		SELECT q.id, q.video_id, q.student_id, q.answered_by, q.content, q.answer_content,
			   q.is_answered, q.is_deleted, q.created_at
		FROM questions q
		JOIN student_profiles sp ON sp.id = q.student_id
		WHERE q.video_id = $1
		  AND NOT q.is_deleted
		  AND ($2::bigint IS NULL OR sp.session_id = $2)
		ORDER BY q.created_at DESC, q.id DESC
	`
	rows, err := r.db.Query(ctx, query, videoID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]models.Question, 0)
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *question)
	}
	return questions, rows.Err()
}
