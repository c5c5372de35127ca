package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/repository"
)

type questionStore interface {
	GetStudent(ctx context.Context, studentID int64) (*models.StudentProfile, error)
	GetVideoByID(ctx context.Context, videoID int64) (*models.RecordedVideo, error)
	GetSessionByID(ctx context.Context, sessionID int64) (*models.Session, error)
	GetProfessorUserID(ctx context.Context, professorID int64) (int64, error)
	ListTrainingProfessorUserIDs(ctx context.Context, trainingID int64) ([]int64, error)
	CreateQuestion(ctx context.Context, question *models.Question) error
	GetQuestionByID(ctx context.Context, questionID int64) (*models.Question, error)
	AnswerQuestion(ctx context.Context, questionID int64, professorID int64, content string) (*models.Question, error)
	SoftDeleteQuestion(ctx context.Context, questionID int64) error
	ListVideoQuestions(ctx context.Context, videoID int64, sessionID *int64) ([]models.Question, error)
	CreateNotifications(ctx context.Context, notifications []models.Notification) ([]models.Notification, error)
}

type QuestionService struct {
	store  questionStore
	inTx   txRunner[questionStore]
	pusher notificationPusher
}

func NewQuestionService(db repository.DBTX, tx *repository.Transactor, pusher notificationPusher) *QuestionService {
	return &QuestionService{
		store:  repository.NewQueries(db),
		inTx:   pgxRunner[questionStore](tx),
		pusher: pusher,
	}
}

// Ask stores the question and notifies the professors who can answer it.
func (s *QuestionService) Ask(
	ctx context.Context,
	actor access.Principal,
	videoID int64,
	content string,
) (*models.Question, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidInput
	}
	if !access.CanActAsStudent(actor) {
		return nil, ErrForbidden
	}

	var (
		question *models.Question
		created  []models.Notification
	)
	err := s.inTx(ctx, func(q questionStore) error {
		student, video, err := authorizedVideo(ctx, q, *actor.StudentID, videoID)
		if err != nil {
			return err
		}

		question = &models.Question{VideoID: video.ID, StudentID: student.ID, Content: content}
		if err := q.CreateQuestion(ctx, question); err != nil {
			return err
		}

		session, err := openSession(ctx, q, student)
		if err != nil {
			return err
		}
		var sessionID *int64
		if session != nil {
			sessionID = &session.ID
		}
		recipients, err := questionRecipients(ctx, q, session, video)
		if err != nil {
			return err
		}
		pending := make([]models.Notification, 0, len(recipients))
		for _, userID := range recipients {
			pending = append(pending, models.Notification{
				UserID:    userID,
				SessionID: sessionID,
				Title:     "New question",
				Message:   fmt.Sprintf("%s asked a question on %q", student.FullName, video.Title),
				Type:      models.NotificationInfo,
				Link:      fmt.Sprintf("/videos/%d#question-%d", video.ID, question.ID),
			})
		}
		created, err = storeNotifications(ctx, q, pending)
		return err
	})
	if err != nil {
		return nil, err
	}

	pushAll(s.pusher, created)
	return question, nil
}

// Answer is open to the professors the question was routed to, until the
// asker's session completes.
func (s *QuestionService) Answer(
	ctx context.Context,
	actor access.Principal,
	questionID int64,
	content string,
) (*models.Question, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidInput
	}
	if actor.Role() != models.RoleProfessor || actor.ProfessorID == nil {
		return nil, ErrForbidden
	}

	var (
		answered *models.Question
		created  []models.Notification
	)
	err := s.inTx(ctx, func(q questionStore) error {
		question, err := q.GetQuestionByID(ctx, questionID)
		if err != nil {
			return notFound(err)
		}
		student, err := q.GetStudent(ctx, question.StudentID)
		if err != nil {
			return notFound(err)
		}
		video, err := q.GetVideoByID(ctx, question.VideoID)
		if err != nil {
			return notFound(err)
		}

		var session *models.Session
		if student.SessionID != nil {
			session, err = q.GetSessionByID(ctx, *student.SessionID)
			if err != nil {
				return notFound(err)
			}
			if session.Status.IsClosed() {
				return ErrSessionClosed
			}
		}

		recipients, err := questionRecipients(ctx, q, session, video)
		if err != nil {
			return err
		}
		if !containsID(recipients, actor.UserID()) {
			return ErrForbidden
		}

		answered, err = q.AnswerQuestion(ctx, question.ID, *actor.ProfessorID, content)
		if err != nil {
			return notFound(err)
		}
		created, err = storeNotifications(ctx, q, []models.Notification{{
			UserID:    student.UserID,
			SessionID: student.SessionID,
			Title:     "Question answered",
			Message:   fmt.Sprintf("Your question on %q has an answer", video.Title),
			Type:      models.NotificationSuccess,
			Link:      fmt.Sprintf("/videos/%d#question-%d", video.ID, question.ID),
		}})
		return err
	})
	if err != nil {
		return nil, err
	}

	pushAll(s.pusher, created)
	return answered, nil
}

// Delete hides a question. Only the student who asked it may do so.
func (s *QuestionService) Delete(ctx context.Context, actor access.Principal, questionID int64) error {
	if !access.CanActAsStudent(actor) {
		return ErrForbidden
	}
	question, err := s.store.GetQuestionByID(ctx, questionID)
	if err != nil {
		return notFound(err)
	}
	if question.StudentID != *actor.StudentID {
		return ErrForbidden
	}
	return s.store.SoftDeleteQuestion(ctx, questionID)
}

// ListForVideo shows a student the questions of its own session when that
// session covers the video's training. Staff and professors see all.
func (s *QuestionService) ListForVideo(
	ctx context.Context,
	actor access.Principal,
	videoID int64,
) ([]models.Question, error) {
	switch {
	case access.CanActAsStudent(actor):
		student, video, err := authorizedVideo(ctx, s.store, *actor.StudentID, videoID)
		if err != nil {
			return nil, err
		}
		var sessionID *int64
		if student.SessionID != nil {
			session, err := s.store.GetSessionByID(ctx, *student.SessionID)
			if err != nil {
				return nil, notFound(err)
			}
			if session.CoversTraining(video.TrainingID) {
				sessionID = &session.ID
			}
		}
		return s.store.ListVideoQuestions(ctx, video.ID, sessionID)
	case actor.Role() == models.RoleProfessor, access.IsStaff(actor):
		if _, err := s.store.GetVideoByID(ctx, videoID); err != nil {
			return nil, notFound(err)
		}
		return s.store.ListVideoQuestions(ctx, videoID, nil)
	default:
		return nil, ErrForbidden
	}
}

type videoAccessStore interface {
	GetStudent(ctx context.Context, studentID int64) (*models.StudentProfile, error)
	GetVideoByID(ctx context.Context, videoID int64) (*models.RecordedVideo, error)
}

func authorizedVideo(
	ctx context.Context,
	q videoAccessStore,
	studentID int64,
	videoID int64,
) (*models.StudentProfile, *models.RecordedVideo, error) {
	student, err := q.GetStudent(ctx, studentID)
	if err != nil {
		return nil, nil, notFound(err)
	}
	video, err := q.GetVideoByID(ctx, videoID)
	if err != nil {
		return nil, nil, notFound(err)
	}
	if !video.IsActive {
		return nil, nil, ErrNotFound
	}
	if !student.IsAuthorizedFor(video.TrainingID) {
		return nil, nil, ErrForbidden
	}
	return student, video, nil
}

// openSession is the student's session unless it has completed. A
// completed session no longer takes notifications, so the student is
// treated as unassigned.
func openSession(
	ctx context.Context,
	q questionStore,
	student *models.StudentProfile,
) (*models.Session, error) {
	if student.SessionID == nil {
		return nil, nil
	}
	session, err := q.GetSessionByID(ctx, *student.SessionID)
	if err != nil {
		return nil, notFound(err)
	}
	if session.Status.IsClosed() {
		return nil, nil
	}
	return session, nil
}

// questionRecipients is the professor of the session when it covers the
// training, otherwise every professor who teaches the training.
func questionRecipients(
	ctx context.Context,
	q questionStore,
	session *models.Session,
	video *models.RecordedVideo,
) ([]int64, error) {
	if session != nil && session.CoversTraining(video.TrainingID) {
		userID, err := q.GetProfessorUserID(ctx, session.ProfessorID)
		if err != nil {
			return nil, notFound(err)
		}
		return []int64{userID}, nil
	}
	return q.ListTrainingProfessorUserIDs(ctx, video.TrainingID)
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
