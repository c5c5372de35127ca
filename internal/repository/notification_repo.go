package repository

import (
	"context"

	"github.com/prolean/ProleanBack/internal/models"
)

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, session_id, title, message, type, link, is_read, created_at`

func (r *NotificationRepository) CreateNotifications(
	ctx context.Context,
	notifications []models.Notification,
) ([]models.Notification, error) {
	created := make([]models.Notification, 0, len(notifications))
	for _, n := range notifications {
		err := r.db.QueryRow(ctx, `
			INSERT INTO notifications (user_id, session_id, title, message, type, link)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, is_read, created_at
		`, n.UserID, n.SessionID, n.Title, n.Message, n.Type, n.Link).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		created = append(created, n)
	}
	return created, nil
}

func (r *NotificationRepository) ListNotifications(
	ctx context.Context,
	userID int64,
	unreadOnly bool,
	limit int,
	offset int,
) ([]models.Notification, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
	`, userID, unreadOnly).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.SessionID,
			&n.Title,
			&n.Message,
			&n.Type,
			&n.Link,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// MarkNotificationRead reports false when the notification is not the user's.
func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, userID int64, notificationID int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
