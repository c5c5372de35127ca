package models

import "time"

type RecordedVideo struct {
	ID              int64     `json:"id"`
	TrainingID      int64     `json:"training_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Provider        string    `json:"provider"`
	ProviderVideoID *string   `json:"provider_video_id"`
	DurationSeconds int       `json:"duration_seconds"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// VideoProgress is unique per (student, video).
type VideoProgress struct {
	ID             int64     `json:"id"`
	StudentID      int64     `json:"student_id"`
	VideoID        int64     `json:"video_id"`
	WatchedSeconds int       `json:"watched_seconds"`
	Completed      bool      `json:"completed"`
	LastWatchedAt  time.Time `json:"last_watched_at"`
}

// Apply stores the reported watch time as-is. Completion only ever moves
// from false to true.
func (p *VideoProgress) Apply(watchedSeconds int, completed *bool) {
	p.WatchedSeconds = watchedSeconds
	if completed != nil && *completed {
		p.Completed = true
	}
}

type ProgressSummary struct {
	TotalVideos       int     `json:"total_videos"`
	CompletedVideos   int     `json:"completed_videos"`
	TotalWatchSeconds int     `json:"total_watch_seconds"`
	CompletionPercent float64 `json:"completion_percent"`
}

func NewProgressSummary(totalVideos, completedVideos, totalWatchSeconds int) ProgressSummary {
	summary := ProgressSummary{
		TotalVideos:       totalVideos,
		CompletedVideos:   completedVideos,
		TotalWatchSeconds: totalWatchSeconds,
	}
	if totalVideos > 0 {
		summary.CompletionPercent = float64(completedVideos) * 100 / float64(totalVideos)
	}
	return summary
}

type Question struct {
	ID            int64     `json:"id"`
	VideoID       int64     `json:"video_id"`
	StudentID     int64     `json:"student_id"`
	AnsweredBy    *int64    `json:"answered_by"`
	Content       string    `json:"content"`
	AnswerContent string    `json:"answer_content"`
	IsAnswered    bool      `json:"is_answered"`
	IsDeleted     bool      `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

func ParseNotificationType(value string) NotificationType {
	switch NotificationType(value) {
	case NotificationSuccess, NotificationWarning, NotificationError:
		return NotificationType(value)
	default:
		return NotificationInfo
	}
}

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	SessionID *int64           `json:"session_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Link      string           `json:"link"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
