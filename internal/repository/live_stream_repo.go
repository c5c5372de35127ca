package repository

import (
	"context"
	"time"

	"github.com/prolean/ProleanBack/internal/models"
)

type LiveStreamRepository struct {
	db DBTX
}

func NewLiveStreamRepository(db DBTX) *LiveStreamRepository {
	return &LiveStreamRepository{db: db}
}

const liveStreamColumns = `id, session_id, title, channel, is_active, started_at, ended_at`

func scanLiveStream(row interface{ Scan(dest ...any) error }) (*models.LiveStream, error) {
	var stream models.LiveStream
	err := row.Scan(
		&stream.ID,
		&stream.SessionID,
		&stream.Title,
		&stream.Channel,
		&stream.IsActive,
		&stream.StartedAt,
		&stream.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &stream, nil
}

func (r *LiveStreamRepository) CreateLiveStream(ctx context.Context, stream *models.LiveStream) error {
	query := `
		INSERT INTO live_streams (session_id, title, channel, is_active, started_at)
		VALUES ($1, $2, $3, TRUE, $4)
		RETURNING id, is_active
	`
	return r.db.QueryRow(ctx, query, stream.SessionID, stream.Title, stream.Channel, stream.StartedAt).
		Scan(&stream.ID, &stream.IsActive)
}

func (r *LiveStreamRepository) GetActiveLiveStream(ctx context.Context, sessionID int64) (*models.LiveStream, error) {
	return scanLiveStream(r.db.QueryRow(ctx, `
		SELECT `+liveStreamColumns+`
		FROM live_streams
		WHERE session_id = $1 AND is_active
		ORDER BY started_at DESC
		LIMIT 1
	`, sessionID))
}

func (r *LiveStreamRepository) GetLiveStreamByID(ctx context.Context, streamID int64) (*models.LiveStream, error) {
	return scanLiveStream(r.db.QueryRow(ctx, `SELECT `+liveStreamColumns+` FROM live_streams WHERE id = $1`, streamID))
}

func (r *LiveStreamRepository) EndLiveStream(ctx context.Context, streamID int64, at time.Time) (*models.LiveStream, error) {
	return scanLiveStream(r.db.QueryRow(ctx, `
		UPDATE live_streams
		SET is_active = FALSE, ended_at = COALESCE(ended_at, $2)
		WHERE id = $1
		RETURNING `+liveStreamColumns, streamID, at))
}

// EndActiveLiveStreams returns how many streams were still active.
func (r *LiveStreamRepository) EndActiveLiveStreams(ctx context.Context, sessionID int64, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE live_streams
		SET is_active = FALSE, ended_at = $2
		WHERE session_id = $1 AND is_active
	`, sessionID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const attendanceColumns = `id, student_id, live_stream_id, session_id, join_time, leave_time, duration_seconds`

func scanAttendance(row interface{ Scan(dest ...any) error }) (*models.AttendanceLog, error) {
	var log models.AttendanceLog
	err := row.Scan(
		&log.ID,
		&log.StudentID,
		&log.LiveStreamID,
		&log.SessionID,
		&log.JoinTime,
		&log.LeaveTime,
		&log.DurationSeconds,
	)
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// EnsureAttendance is get-or-create on (student, stream); an existing log keeps its join time.
func (r *LiveStreamRepository) EnsureAttendance(
	ctx context.Context,
	studentID int64,
	streamID int64,
	sessionID int64,
	at time.Time,
) (*models.AttendanceLog, error) {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO attendance_logs (student_id, live_stream_id, session_id, join_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, live_stream_id) DO NOTHING
	`, studentID, streamID, sessionID, at); err != nil {
		return nil, err
	}
	return scanAttendance(r.db.QueryRow(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_logs
		WHERE student_id = $1 AND live_stream_id = $2
	`, studentID, streamID))
}

func (r *LiveStreamRepository) GetAttendanceForUpdate(ctx context.Context, studentID int64, streamID int64) (*models.AttendanceLog, error) {
	return scanAttendance(r.db.QueryRow(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_logs
		WHERE student_id = $1 AND live_stream_id = $2
		FOR UPDATE
	`, studentID, streamID))
}

func (r *LiveStreamRepository) UpdateAttendanceLeave(
	ctx context.Context,
	logID int64,
	leaveTime time.Time,
	durationSeconds int,
) (*models.AttendanceLog, error) {
	return scanAttendance(r.db.QueryRow(ctx, `
		UPDATE attendance_logs
		SET leave_time = $2, duration_seconds = $3
		WHERE id = $1
		RETURNING `+attendanceColumns, logID, leaveTime, durationSeconds))
}
