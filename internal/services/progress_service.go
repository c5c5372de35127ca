package services

import (
	"context"
	"time"

	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/repository"
)

type progressStore interface {
	GetStudent(ctx context.Context, studentID int64) (*models.StudentProfile, error)
	GetVideoByID(ctx context.Context, videoID int64) (*models.RecordedVideo, error)
	EnsureVideoProgress(ctx context.Context, studentID int64, videoID int64) error
	GetVideoProgressForUpdate(ctx context.Context, studentID int64, videoID int64) (*models.VideoProgress, error)
	UpdateVideoProgress(ctx context.Context, progress *models.VideoProgress) error
	SummarizeProgress(ctx context.Context, studentID int64, trainingIDs []int64) (models.ProgressSummary, error)
	GetLiveStreamByID(ctx context.Context, streamID int64) (*models.LiveStream, error)
	EnsureAttendance(ctx context.Context, studentID int64, streamID int64, sessionID int64, at time.Time) (*models.AttendanceLog, error)
	GetAttendanceForUpdate(ctx context.Context, studentID int64, streamID int64) (*models.AttendanceLog, error)
	UpdateAttendanceLeave(ctx context.Context, logID int64, leaveTime time.Time, durationSeconds int) (*models.AttendanceLog, error)
}

type ProgressService struct {
	store progressStore
	inTx  txRunner[progressStore]
	now   func() time.Time
}

func NewProgressService(db repository.DBTX, tx *repository.Transactor) *ProgressService {
	return &ProgressService{
		store: repository.NewQueries(db),
		inTx:  pgxRunner[progressStore](tx),
		now:   time.Now,
	}
}

// RecordProgress stores the reported watch time as-is; completion latches.
func (s *ProgressService) RecordProgress(
	ctx context.Context,
	actor access.Principal,
	videoID int64,
	watchedSeconds int,
	completed *bool,
) (*models.VideoProgress, error) {
	if watchedSeconds < 0 {
		return nil, ErrInvalidInput
	}
	student, err := s.activeStudent(ctx, actor)
	if err != nil {
		return nil, err
	}
	video, err := s.store.GetVideoByID(ctx, videoID)
	if err != nil {
		return nil, notFound(err)
	}
	if !video.IsActive {
		return nil, ErrNotFound
	}
	if !student.IsAuthorizedFor(video.TrainingID) {
		return nil, ErrForbidden
	}

	var progress *models.VideoProgress
	err = s.inTx(ctx, func(q progressStore) error {
		if err := q.EnsureVideoProgress(ctx, student.ID, video.ID); err != nil {
			return err
		}
		var err error
		progress, err = q.GetVideoProgressForUpdate(ctx, student.ID, video.ID)
		if err != nil {
			return err
		}
		progress.Apply(watchedSeconds, completed)
		return q.UpdateVideoProgress(ctx, progress)
	})
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// Summary totals the active videos of the given trainings, or of every
// authorized training when none are given.
func (s *ProgressService) Summary(
	ctx context.Context,
	actor access.Principal,
	trainingIDs []int64,
) (models.ProgressSummary, error) {
	student, err := s.activeStudent(ctx, actor)
	if err != nil {
		return models.ProgressSummary{}, err
	}

	ids := uniqueIDs(trainingIDs)
	if len(ids) == 0 {
		ids = student.AuthorizedTrainingIDs
	}
	for _, id := range ids {
		if !student.IsAuthorizedFor(id) {
			return models.ProgressSummary{}, ErrForbidden
		}
	}
	if len(ids) == 0 {
		return models.NewProgressSummary(0, 0, 0), nil
	}
	return s.store.SummarizeProgress(ctx, student.ID, ids)
}

// JoinLive opens or reuses the attendance log of a stream of the student's session.
func (s *ProgressService) JoinLive(
	ctx context.Context,
	actor access.Principal,
	streamID int64,
) (*models.AttendanceLog, error) {
	student, err := s.activeStudent(ctx, actor)
	if err != nil {
		return nil, err
	}
	stream, err := s.store.GetLiveStreamByID(ctx, streamID)
	if err != nil {
		return nil, notFound(err)
	}
	if student.SessionID == nil || *student.SessionID != stream.SessionID {
		return nil, ErrForbidden
	}
	if !stream.IsActive {
		return nil, ErrSessionClosed
	}
	return s.store.EnsureAttendance(ctx, student.ID, stream.ID, stream.SessionID, s.now())
}

// Heartbeat moves the leave time to now and recomputes the duration from
// the join time.
func (s *ProgressService) Heartbeat(
	ctx context.Context,
	actor access.Principal,
	streamID int64,
) (*models.AttendanceLog, error) {
	if !access.CanActAsStudent(actor) {
		return nil, ErrForbidden
	}
	studentID := *actor.StudentID

	var log *models.AttendanceLog
	err := s.inTx(ctx, func(q progressStore) error {
		current, err := q.GetAttendanceForUpdate(ctx, studentID, streamID)
		if err != nil {
			return notFound(err)
		}
		now := s.now()
		duration := int(now.Sub(current.JoinTime) / time.Second)
		if duration < 0 {
			duration = 0
		}
		log, err = q.UpdateAttendanceLeave(ctx, current.ID, now, duration)
		return err
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

func (s *ProgressService) activeStudent(ctx context.Context, actor access.Principal) (*models.StudentProfile, error) {
	if !access.CanActAsStudent(actor) {
		return nil, ErrForbidden
	}
	student, err := s.store.GetStudent(ctx, *actor.StudentID)
	if err != nil {
		return nil, notFound(err)
	}
	return student, nil
}
