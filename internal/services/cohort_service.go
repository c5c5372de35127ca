package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/metrics"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/repository"
	"github.com/prolean/ProleanBack/pkg/logger"
)

type assignmentStore interface {
	LockStudent(ctx context.Context, studentID int64) (*models.StudentProfile, error)
	GetSessionByIDForUpdate(ctx context.Context, sessionID int64) (*models.Session, error)
	UpdateStudentSession(ctx context.Context, studentID int64, sessionID *int64) error
}

type cohortStore interface {
	assignmentStore
	GetStudent(ctx context.Context, studentID int64) (*models.StudentProfile, error)
	CountSessionStudents(ctx context.Context, sessionID int64) (int, error)
	ListSessionStudentUserIDs(ctx context.Context, sessionID int64) ([]int64, error)
	ListExistingTrainingIDs(ctx context.Context, trainingIDs []int64) ([]int64, error)
	ProfessorExists(ctx context.Context, professorID int64) (bool, error)
	CreateSession(ctx context.Context, input repository.CreateSessionInput) (*models.Session, error)
	AddSessionTrainings(ctx context.Context, sessionID int64, trainingIDs []int64) error
	GetSessionByID(ctx context.Context, sessionID int64) (*models.Session, error)
	ListSessions(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, error)
	UpdateSessionStatusIfCurrent(ctx context.Context, sessionID int64, current models.SessionStatus, next models.SessionStatus) error
	CreateSeance(ctx context.Context, seance *models.Seance) error
	ListSeances(ctx context.Context, sessionID int64) ([]models.Seance, error)
	CountSeancesByType(ctx context.Context, sessionID int64, seanceType models.SeanceType) (int, error)
	CreateLiveStream(ctx context.Context, stream *models.LiveStream) error
	GetActiveLiveStream(ctx context.Context, sessionID int64) (*models.LiveStream, error)
	GetLiveStreamByID(ctx context.Context, streamID int64) (*models.LiveStream, error)
	EndLiveStream(ctx context.Context, streamID int64, at time.Time) (*models.LiveStream, error)
	EndActiveLiveStreams(ctx context.Context, sessionID int64, at time.Time) (int64, error)
	CreateNotifications(ctx context.Context, notifications []models.Notification) ([]models.Notification, error)
}

// notificationPusher delivers stored notifications to connected clients.
type notificationPusher interface {
	Push(userID int64, notification models.Notification)
}

type CohortService struct {
	store   cohortStore
	inTx    txRunner[cohortStore]
	pusher  notificationPusher
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewCohortService(
	db repository.DBTX,
	tx *repository.Transactor,
	pusher notificationPusher,
	log *logger.Logger,
	m *metrics.Metrics,
) *CohortService {
	return &CohortService{
		store:   repository.NewQueries(db),
		inTx:    pgxRunner[cohortStore](tx),
		pusher:  pusher,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

type CreateSessionInput struct {
	TrainingIDs []int64
	ProfessorID int64
	CityID      *int64
	StartDate   time.Time
	EndDate     time.Time
	IsLive      bool
}

type AddSeanceInput struct {
	Title     string
	Type      models.SeanceType
	Date      time.Time
	StartTime string
	Location  string
}

type NotifyInput struct {
	Title   string
	Message string
	Type    models.NotificationType
	Link    string
}

func (s *CohortService) CreateSession(
	ctx context.Context,
	actor access.Principal,
	input CreateSessionInput,
) (*models.Session, error) {
	if !access.IsStaff(actor) {
		return nil, ErrForbidden
	}
	if !access.CanActAsAssistant(actor, input.CityID) {
		s.metrics.ScopeViolation("cohort.create_session")
		return nil, ErrScopeViolation
	}
	trainingIDs := uniqueIDs(input.TrainingIDs)
	if len(trainingIDs) == 0 || input.ProfessorID <= 0 ||
		input.StartDate.IsZero() || input.EndDate.Before(input.StartDate) {
		return nil, ErrInvalidInput
	}

	var session *models.Session
	err := s.inTx(ctx, func(q cohortStore) error {
		exists, err := q.ProfessorExists(ctx, input.ProfessorID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		existing, err := q.ListExistingTrainingIDs(ctx, trainingIDs)
		if err != nil {
			return err
		}
		if len(existing) != len(trainingIDs) {
			return ErrNotFound
		}

		session, err = q.CreateSession(ctx, repository.CreateSessionInput{
			ProfessorID: input.ProfessorID,
			CityID:      input.CityID,
			StartDate:   input.StartDate,
			EndDate:     input.EndDate,
			IsLive:      input.IsLive,
		})
		if err != nil {
			return err
		}
		if err := q.AddSessionTrainings(ctx, session.ID, trainingIDs); err != nil {
			return err
		}
		session.TrainingIDs = trainingIDs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// AssignStudent moves the student to the session, replacing any previous one.
func (s *CohortService) AssignStudent(
	ctx context.Context,
	actor access.Principal,
	studentID int64,
	sessionID int64,
) (*models.StudentProfile, error) {
	if !access.IsStaff(actor) {
		return nil, ErrForbidden
	}

	var student *models.StudentProfile
	err := s.inTx(ctx, func(q cohortStore) error {
		if err := assignStudent(ctx, q, actor, studentID, sessionID); err != nil {
			if errors.Is(err, ErrScopeViolation) {
				s.metrics.ScopeViolation("cohort.assign_student")
			}
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

// assignStudent requires scope over both the student's and the session's city.
func assignStudent(
	ctx context.Context,
	q assignmentStore,
	actor access.Principal,
	studentID int64,
	sessionID int64,
) error {
	student, err := q.LockStudent(ctx, studentID)
	if err != nil {
		return notFound(err)
	}
	session, err := q.GetSessionByIDForUpdate(ctx, sessionID)
	if err != nil {
		return notFound(err)
	}
	if !access.CanActAsAssistant(actor, student.CityID) || !access.CanActAsAssistant(actor, session.CityID) {
		return ErrScopeViolation
	}
	if session.Status.IsClosed() {
		return ErrSessionClosed
	}
	return q.UpdateStudentSession(ctx, studentID, &session.ID)
}

func (s *CohortService) UnassignStudent(
	ctx context.Context,
	actor access.Principal,
	studentID int64,
) (*models.StudentProfile, error) {
	if !access.IsStaff(actor) {
		return nil, ErrForbidden
	}

	var student *models.StudentProfile
	err := s.inTx(ctx, func(q cohortStore) error {
		current, err := q.LockStudent(ctx, studentID)
		if err != nil {
			return notFound(err)
		}
		if !access.CanActAsAssistant(actor, current.CityID) {
			s.metrics.ScopeViolation("cohort.unassign_student")
			return ErrScopeViolation
		}
		if err := q.UpdateStudentSession(ctx, studentID, nil); err != nil {
			return err
		}
		student, err = q.GetStudent(ctx, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// Transition moves a session forward. Completing it ends its live streams
// in the same transaction.
func (s *CohortService) Transition(
	ctx context.Context,
	actor access.Principal,
	sessionID int64,
	next models.SessionStatus,
) (*models.Session, error) {
	var (
		session *models.Session
		ended   int64
	)
	err := s.inTx(ctx, func(q cohortStore) error {
		var err error
		session, err = q.GetSessionByIDForUpdate(ctx, sessionID)
		if err != nil {
			return notFound(err)
		}
		if err := s.authorizeSessionActor(actor, session, "cohort.transition"); err != nil {
			return err
		}
		if !session.Status.CanTransitionTo(next) {
			return ErrInvalidStateTransition
		}
		if err := q.UpdateSessionStatusIfCurrent(ctx, session.ID, session.Status, next); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrConflict
			}
			return err
		}
		session.Status = next

		if next == models.SessionCompleted {
			ended, err = q.EndActiveLiveStreams(ctx, session.ID, s.now())
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SessionTransition(string(next))
	if ended > 0 {
		s.metrics.LiveStreamsEnded(ended)
		s.log.Info("live streams ended with session",
			logger.Int64("session_id", session.ID),
			logger.Int64("streams", ended),
		)
	}
	return session, nil
}

// AddSeance schedules a seance. Going past the usual count per type only
// yields a warning.
func (s *CohortService) AddSeance(
	ctx context.Context,
	actor access.Principal,
	sessionID int64,
	input AddSeanceInput,
) (*models.Seance, string, error) {
	title := strings.TrimSpace(input.Title)
	seanceType, ok := models.ParseSeanceType(string(input.Type))
	if title == "" || !ok || input.Date.IsZero() {
		return nil, "", ErrInvalidInput
	}

	var (
		seance  *models.Seance
		warning string
	)
	err := s.inTx(ctx, func(q cohortStore) error {
		session, err := q.GetSessionByIDForUpdate(ctx, sessionID)
		if err != nil {
			return notFound(err)
		}
		if err := s.authorizeSessionActor(actor, session, "cohort.add_seance"); err != nil {
			return err
		}
		if session.Status.IsClosed() {
			return ErrSessionClosed
		}

		count, err := q.CountSeancesByType(ctx, session.ID, seanceType)
		if err != nil {
			return err
		}
		if count >= models.AdvisorySeancesPerType {
			warning = fmt.Sprintf("session already has %d %s seances", count, strings.ToLower(string(seanceType)))
		}

		seance = &models.Seance{
			SessionID: session.ID,
			Title:     title,
			Type:      seanceType,
			Date:      input.Date,
			StartTime: strings.TrimSpace(input.StartTime),
			Location:  strings.TrimSpace(input.Location),
		}
		return q.CreateSeance(ctx, seance)
	})
	if err != nil {
		return nil, "", err
	}
	return seance, warning, nil
}

// StartLive returns the session's active stream when there is one, and
// reports whether a new one was created.
func (s *CohortService) StartLive(
	ctx context.Context,
	actor access.Principal,
	sessionID int64,
	title string,
) (*models.LiveStream, bool, error) {
	var (
		stream  *models.LiveStream
		created bool
	)
	err := s.inTx(ctx, func(q cohortStore) error {
		session, err := q.GetSessionByIDForUpdate(ctx, sessionID)
		if err != nil {
			return notFound(err)
		}
		if !access.CanActAsProfessor(actor, session) {
			return ErrForbidden
		}
		if session.Status.IsClosed() {
			return ErrSessionClosed
		}
		if session.Status != models.SessionOngoing {
			return ErrInvalidStateTransition
		}

		stream, err = q.GetActiveLiveStream(ctx, session.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		title = strings.TrimSpace(title)
		if title == "" {
			title = fmt.Sprintf("Session %d live", session.ID)
		}
		stream = &models.LiveStream{
			SessionID: session.ID,
			Title:     title,
			Channel:   fmt.Sprintf("session-%d-%s", session.ID, uuid.NewString()),
			StartedAt: s.now(),
		}
		created = true
		return q.CreateLiveStream(ctx, stream)
	})
	if err != nil {
		return nil, false, err
	}
	return stream, created, nil
}

func (s *CohortService) EndLive(
	ctx context.Context,
	actor access.Principal,
	streamID int64,
) (*models.LiveStream, error) {
	var stream *models.LiveStream
	err := s.inTx(ctx, func(q cohortStore) error {
		current, err := q.GetLiveStreamByID(ctx, streamID)
		if err != nil {
			return notFound(err)
		}
		session, err := q.GetSessionByID(ctx, current.SessionID)
		if err != nil {
			return notFound(err)
		}
		if err := s.authorizeSessionActor(actor, session, "cohort.end_live"); err != nil {
			return err
		}
		stream, err = q.EndLiveStream(ctx, streamID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Notify stores one notification per student of the session and pushes
// them after commit.
func (s *CohortService) Notify(
	ctx context.Context,
	actor access.Principal,
	sessionID int64,
	input NotifyInput,
) ([]models.Notification, error) {
	title := strings.TrimSpace(input.Title)
	message := strings.TrimSpace(input.Message)
	if title == "" || message == "" {
		return nil, ErrInvalidInput
	}

	var created []models.Notification
	err := s.inTx(ctx, func(q cohortStore) error {
		session, err := q.GetSessionByID(ctx, sessionID)
		if err != nil {
			return notFound(err)
		}
		if err := s.authorizeSessionActor(actor, session, "cohort.notify"); err != nil {
			return err
		}
		if session.Status.IsClosed() {
			return ErrSessionClosed
		}

		userIDs, err := q.ListSessionStudentUserIDs(ctx, session.ID)
		if err != nil {
			return err
		}
		pending := make([]models.Notification, 0, len(userIDs))
		for _, userID := range userIDs {
			pending = append(pending, models.Notification{
				UserID:    userID,
				SessionID: &session.ID,
				Title:     title,
				Message:   message,
				Type:      models.ParseNotificationType(string(input.Type)),
				Link:      input.Link,
			})
		}
		created, err = storeNotifications(ctx, q, pending)
		return err
	})
	if err != nil {
		return nil, err
	}

	pushAll(s.pusher, created)
	return created, nil
}

// ListSessions shows professors their own sessions, assistants the sessions
// of their cities and admins everything.
func (s *CohortService) ListSessions(ctx context.Context, actor access.Principal) ([]models.Session, error) {
	filter := repository.SessionListFilter{}
	switch actor.Role() {
	case models.RoleAdmin:
	case models.RoleAssistant:
		filter.CityIDs = append([]int64{}, actor.AssignedCityIDs...)
	case models.RoleProfessor:
		if actor.ProfessorID == nil {
			return nil, ErrForbidden
		}
		filter.ProfessorID = actor.ProfessorID
	default:
		return nil, ErrForbidden
	}
	return s.store.ListSessions(ctx, filter)
}

func (s *CohortService) GetSession(
	ctx context.Context,
	actor access.Principal,
	sessionID int64,
) (*models.SessionDetail, error) {
	session, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, notFound(err)
	}

	allowed := access.CanActAsProfessor(actor, session) ||
		(access.IsStaff(actor) && access.CanActAsAssistant(actor, session.CityID))
	if !allowed && access.CanActAsStudent(actor) {
		student, err := s.store.GetStudent(ctx, *actor.StudentID)
		if err != nil {
			return nil, notFound(err)
		}
		allowed = student.SessionID != nil && *student.SessionID == session.ID
	}
	if !allowed {
		return nil, ErrForbidden
	}

	seances, err := s.store.ListSeances(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountSessionStudents(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &models.SessionDetail{Session: *session, Seances: seances, StudentCount: count}, nil
}

// authorizeSessionActor admits the session's professor and staff scoped to
// the session's city.
func (s *CohortService) authorizeSessionActor(actor access.Principal, session *models.Session, operation string) error {
	if access.CanActAsProfessor(actor, session) {
		return nil
	}
	if access.IsStaff(actor) {
		if access.CanActAsAssistant(actor, session.CityID) {
			return nil
		}
		s.metrics.ScopeViolation(operation)
		return ErrScopeViolation
	}
	return ErrForbidden
}
