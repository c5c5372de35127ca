package repository

import (
	"context"

	"github.com/prolean/ProleanBack/internal/models"
)

type VideoRepository struct {
	db DBTX
}

func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) GetVideoByID(ctx context.Context, videoID int64) (*models.RecordedVideo, error) {
	query := `
		SELECT id, training_id, title, description, provider, provider_video_id, duration_seconds, is_active, created_at
		FROM recorded_videos
		WHERE id = $1
	`
	var video models.RecordedVideo
	err := r.db.QueryRow(ctx, query, videoID).Scan(
		&video.ID,
		&video.TrainingID,
		&video.Title,
		&video.Description,
		&video.Provider,
		&video.ProviderVideoID,
		&video.DurationSeconds,
		&video.IsActive,
		&video.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *VideoRepository) EnsureVideoProgress(ctx context.Context, studentID int64, videoID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO video_progress (student_id, video_id)
		VALUES ($1, $2)
		ON CONFLICT (student_id, video_id) DO NOTHING
	`, studentID, videoID)
	return err
}

func (r *VideoRepository) GetVideoProgressForUpdate(ctx context.Context, studentID int64, videoID int64) (*models.VideoProgress, error) {
	query := `
		SELECT id, student_id, video_id, watched_seconds, completed, last_watched_at
		FROM video_progress
		WHERE student_id = $1 AND video_id = $2
		FOR UPDATE
	`
	var progress models.VideoProgress
	err := r.db.QueryRow(ctx, query, studentID, videoID).Scan(
		&progress.ID,
		&progress.StudentID,
		&progress.VideoID,
		&progress.WatchedSeconds,
		&progress.Completed,
		&progress.LastWatchedAt,
	)
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *VideoRepository) UpdateVideoProgress(ctx context.Context, progress *models.VideoProgress) error {
	return r.db.QueryRow(ctx, `
		UPDATE video_progress
		SET watched_seconds = $2, completed = $3, last_watched_at = NOW()
		WHERE id = $1
		RETURNING last_watched_at
	`, progress.ID, progress.WatchedSeconds, progress.Completed).Scan(&progress.LastWatchedAt)
}

// SummarizeProgress counts active videos of the trainings and the student's
// progress on them.
func (r *VideoRepository) SummarizeProgress(
	ctx context.Context,
	studentID int64,
	trainingIDs []int64,
) (models.ProgressSummary, error) {
	query := `
		SELECT COUNT(v.id),
			   COUNT(vp.id) FILTER (WHERE vp.completed),
			   COALESCE(SUM(vp.watched_seconds), 0)
		FROM recorded_videos v
		LEFT JOIN video_progress vp ON vp.video_id = v.id AND vp.student_id = $1
		WHERE v.is_active AND v.training_id = ANY($2::bigint[])
	`
	var total, completed, watched int
	if err := r.db.QueryRow(ctx, query, studentID, trainingIDs).Scan(&total, &completed, &watched); err != nil {
		return models.ProgressSummary{}, err
	}
	return models.NewProgressSummary(total, completed, watched), nil
}
