package models

import (
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionCreated   SessionStatus = "CREATED"
	SessionOngoing   SessionStatus = "ONGOING"
	SessionCompleted SessionStatus = "COMPLETED"
)

func ParseSessionStatus(value string) (SessionStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "CREATED":
		return SessionCreated, true
	case "ONGOING", "START", "STARTED":
		return SessionOngoing, true
	case "COMPLETED", "COMPLETE":
		return SessionCompleted, true
	default:
		return "", false
	}
}

// CanTransitionTo allows only CREATED -> ONGOING -> COMPLETED.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionCreated:
		return next == SessionOngoing
	case SessionOngoing:
		return next == SessionCompleted
	default:
		return false
	}
}

func (s SessionStatus) IsClosed() bool {
	return s == SessionCompleted
}

// Session is a delivery cohort of one or more trainings taught by one professor.
type Session struct {
	ID          int64         `json:"id"`
	TrainingIDs []int64       `json:"training_ids"`
	ProfessorID int64         `json:"professor_id"`
	CityID      *int64        `json:"city_id"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`
	Status      SessionStatus `json:"status"`
	IsLive      bool          `json:"is_live"`
	IsActive    bool          `json:"is_active"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (s Session) CoversTraining(trainingID int64) bool {
	for _, id := range s.TrainingIDs {
		if id == trainingID {
			return true
		}
	}
	return false
}

type SeanceType string

const (
	SeanceTheoretical SeanceType = "THEORETICAL"
	SeancePractical   SeanceType = "PRACTICAL"
)

// AdvisorySeancesPerType is shown as a warning only; sessions may exceed it.
const AdvisorySeancesPerType = 2

func ParseSeanceType(value string) (SeanceType, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "THEORETICAL", "THEORIQUE", "THEORY":
		return SeanceTheoretical, true
	case "PRACTICAL", "PRATIQUE", "PRACTICE":
		return SeancePractical, true
	default:
		return "", false
	}
}

type Seance struct {
	ID        int64      `json:"id"`
	SessionID int64      `json:"session_id"`
	Title     string     `json:"title"`
	Type      SeanceType `json:"type"`
	Date      time.Time  `json:"date"`
	StartTime string     `json:"start_time"`
	Location  string     `json:"location"`
}

type SessionDetail struct {
	Session
	Seances      []Seance `json:"seances"`
	StudentCount int      `json:"student_count"`
}

type LiveStream struct {
	ID        int64      `json:"id"`
	SessionID int64      `json:"session_id"`
	Title     string     `json:"title"`
	Channel   string     `json:"channel"`
	IsActive  bool       `json:"is_active"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

type AttendanceLog struct {
	ID              int64      `json:"id"`
	StudentID       int64      `json:"student_id"`
	LiveStreamID    int64      `json:"live_stream_id"`
	SessionID       int64      `json:"session_id"`
	JoinTime        time.Time  `json:"join_time"`
	LeaveTime       *time.Time `json:"leave_time"`
	DurationSeconds int        `json:"duration_seconds"`
}
