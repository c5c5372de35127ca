package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prolean/ProleanBack/internal/models"
)

type CreateSessionInput struct {
	ProfessorID int64
	CityID      *int64
	StartDate   time.Time
	EndDate     time.Time
	IsLive      bool
}

// SessionListFilter narrows ListSessions. A nil CityIDs means every city.
type SessionListFilter struct {
	ProfessorID *int64
	CityIDs     []int64
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionSelect = `
	SELECT s.id, s.professor_id, s.city_id, s.start_date, s.end_date, s.status, s.is_live, s.is_active,
		   s.created_at,
		   COALESCE(ARRAY(
			   SELECT st.training_id FROM session_trainings st
			   WHERE st.session_id = s.id ORDER BY st.training_id
		   ), '{}')
	FROM sessions s
`

func scanSession(row interface{ Scan(dest ...any) error }) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.ProfessorID,
		&session.CityID,
		&session.StartDate,
		&session.EndDate,
		&session.Status,
		&session.IsLive,
		&session.IsActive,
		&session.CreatedAt,
		&session.TrainingIDs,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) CreateSession(ctx context.Context, input CreateSessionInput) (*models.Session, error) {
	query := `
		INSERT INTO sessions (professor_id, city_id, start_date, end_date, status, is_live)
		VALUES ($1, $2, $3, $4, 'CREATED', $5)
		RETURNING id, professor_id, city_id, start_date, end_date, status, is_live, is_active, created_at
	`
	var session models.Session
	err := r.db.QueryRow(ctx, query,
		input.ProfessorID,
		input.CityID,
		input.StartDate,
		input.EndDate,
		input.IsLive,
	).Scan(
		&session.ID,
		&session.ProfessorID,
		&session.CityID,
		&session.StartDate,
		&session.EndDate,
		&session.Status,
		&session.IsLive,
		&session.IsActive,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.TrainingIDs = []int64{}
	return &session, nil
}

func (r *SessionRepository) AddSessionTrainings(ctx context.Context, sessionID int64, trainingIDs []int64) error {
	if len(trainingIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO session_trainings (session_id, training_id)
		SELECT $1, training_id FROM unnest($2::bigint[]) AS training_id
		ON CONFLICT DO NOTHING
	`, sessionID, trainingIDs)
	return err
}

func (r *SessionRepository) GetSessionByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	return scanSession(r.db.QueryRow(ctx, sessionSelect+` WHERE s.id = $1`, sessionID))
}

func (r *SessionRepository) GetSessionByIDForUpdate(ctx context.Context, sessionID int64) (*models.Session, error) {
	return scanSession(r.db.QueryRow(ctx, sessionSelect+` WHERE s.id = $1 FOR UPDATE OF s`, sessionID))
}

func (r *SessionRepository) ListSessions(ctx context.Context, filter SessionListFilter) ([]models.Session, error) {
	args := []any{}
	whereParts := []string{"s.is_active"}

	if filter.ProfessorID != nil {
		args = append(args, *filter.ProfessorID)
		whereParts = append(whereParts, fmt.Sprintf("s.professor_id = $%d", len(args)))
	}
	if filter.CityIDs != nil {
		args = append(args, filter.CityIDs)
		whereParts = append(whereParts, fmt.Sprintf("s.city_id = ANY($%d::bigint[])", len(args)))
	}

	query := sessionSelect + ` WHERE ` + strings.Join(whereParts, " AND ") + ` ORDER BY s.start_date DESC, s.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// UpdateSessionStatusIfCurrent returns pgx.ErrNoRows when the status moved underneath.
func (r *SessionRepository) UpdateSessionStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	nextStatus models.SessionStatus,
) error {
	var id int64
	return r.db.QueryRow(ctx, `
		UPDATE sessions
		SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING id
	`, sessionID, currentStatus, nextStatus).Scan(&id)
}

func (r *SessionRepository) CreateSeance(ctx context.Context, seance *models.Seance) error {
	query := `
		INSERT INTO seances (session_id, title, type, date, start_time, location)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query,
		seance.SessionID,
		seance.Title,
		seance.Type,
		seance.Date,
		seance.StartTime,
		seance.Location,
	).Scan(&seance.ID)
}

func (r *SessionRepository) ListSeances(ctx context.Context, sessionID int64) ([]models.Seance, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, title, type, date, start_time, location
		FROM seances
		WHERE session_id = $1
		ORDER BY date, start_time, id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seances := make([]models.Seance, 0)
	for rows.Next() {
		var seance models.Seance
		if err := rows.Scan(
			&seance.ID,
			&seance.SessionID,
			&seance.Title,
			&seance.Type,
			&seance.Date,
			&seance.StartTime,
			&seance.Location,
		); err != nil {
			return nil, err
		}
		seances = append(seances, seance)
	}
	return seances, rows.Err()
}

func (r *SessionRepository) CountSeancesByType(ctx context.Context, sessionID int64, seanceType models.SeanceType) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM seances WHERE session_id = $1 AND type = $2`,
		sessionID, seanceType,
	).Scan(&count)
	return count, err
}

func (r *SessionRepository) ProfessorExists(ctx context.Context, professorID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM professor_profiles WHERE id = $1 AND active)`,
		professorID,
	).Scan(&exists)
	return exists, err
}

func (r *SessionRepository) GetProfessorUserID(ctx context.Context, professorID int64) (int64, error) {
	var userID int64
	err := r.db.QueryRow(ctx, `
		SELECT p.user_id
		FROM professor_profiles pp
		JOIN profiles p ON p.id = pp.profile_id
		WHERE pp.id = $1
	`, professorID).Scan(&userID)
	return userID, err
}

// ListTrainingProfessorUserIDs returns every professor with a session covering the training.
func (r *SessionRepository) ListTrainingProfessorUserIDs(ctx context.Context, trainingID int64) ([]int64, error) {
	return collectInt64s(r.db.Query(ctx, `
		SELECT DISTINCT p.user_id
		FROM session_trainings st
		JOIN sessions s ON s.id = st.session_id
		JOIN professor_profiles pp ON pp.id = s.professor_id
		JOIN profiles p ON p.id = pp.profile_id
		WHERE st.training_id = $1
		ORDER BY p.user_id
	`, trainingID))
}
