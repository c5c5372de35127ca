package services

import (
	"context"
	"strings"

	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/repository"
)

const (
	DefaultNotificationLimit = 10
	MaxNotificationLimit     = 50
)

type notificationStore interface {
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int, offset int) ([]models.Notification, int, error)
	MarkNotificationRead(ctx context.Context, userID int64, notificationID int64) (bool, error)
}

type NotificationService struct {
	store notificationStore
}

func NewNotificationService(db repository.DBTX) *NotificationService {
	return &NotificationService{store: repository.NewQueries(db)}
}

type NotificationPage struct {
	Items []models.Notification
	Page  int
	Limit int
	Total int
}

func (s *NotificationService) List(
	ctx context.Context,
	userID int64,
	unreadOnly bool,
	page int,
	limit int,
) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}

	items, total, err := s.store.ListNotifications(ctx, userID, unreadOnly, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Items: items, Page: page, Limit: limit, Total: total}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID int64, notificationID int64) error {
	ok, err := s.store.MarkNotificationRead(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

type notificationWriter interface {
	CreateNotifications(ctx context.Context, notifications []models.Notification) ([]models.Notification, error)
}

// storeNotifications is the single write path for notifications. It runs
// inside the caller's transaction; the caller pushes the result with
// pushAll once the transaction commits.
func storeNotifications(
	ctx context.Context,
	q notificationWriter,
	pending []models.Notification,
) ([]models.Notification, error) {
	if len(pending) == 0 {
		return []models.Notification{}, nil
	}
	for i := range pending {
		if pending[i].UserID <= 0 || strings.TrimSpace(pending[i].Title) == "" {
			return nil, ErrInvalidInput
		}
		pending[i].Type = models.ParseNotificationType(string(pending[i].Type))
	}
	return q.CreateNotifications(ctx, pending)
}

func pushAll(pusher notificationPusher, notifications []models.Notification) {
	if pusher == nil {
		return
	}
	for _, n := range notifications {
		pusher.Push(n.UserID, n)
	}
}
