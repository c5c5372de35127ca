package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleProfessor Role = "PROFESSOR"
	RoleAssistant Role = "ASSISTANT"
	RoleAdmin     Role = "ADMIN"
)

func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	switch role {
	case RoleStudent, RoleProfessor, RoleAssistant, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

type ProfileStatus string

const (
	StatusPending   ProfileStatus = "PENDING"
	StatusActive    ProfileStatus = "ACTIVE"
	StatusSuspended ProfileStatus = "SUSPENDED"
)

func ParseProfileStatus(value string) (ProfileStatus, bool) {
	status := ProfileStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusActive, StatusSuspended:
		return status, true
	default:
		return "", false
	}
}

// Profile is the role/status record attached 1:1 to a user account.
type Profile struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id"`
	Role          Role          `json:"role"`
	Status        ProfileStatus `json:"status"`
	FullName      string        `json:"full_name"`
	PhoneNumber   *string       `json:"phone_number"`
	NationalID    *string       `json:"national_id"`
	CityID        *int64        `json:"city_id"`
	EmailVerified bool          `json:"email_verified"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type StudentProfile struct {
	ID                    int64         `json:"id"`
	ProfileID             int64         `json:"profile_id"`
	UserID                int64         `json:"user_id"`
	FullName              string        `json:"full_name"`
	Status                ProfileStatus `json:"status"`
	CityID                *int64        `json:"city_id"`
	SessionID             *int64        `json:"session_id"`
	AmountPaid            float64       `json:"amount_paid"`
	TotalAmountDue        float64       `json:"total_amount_due"`
	AuthorizedTrainingIDs []int64       `json:"authorized_training_ids"`
}

// AmountRemaining is signed: an overpaid student has a negative balance.
func (s StudentProfile) AmountRemaining() float64 {
	return s.TotalAmountDue - s.AmountPaid
}

func (s StudentProfile) IsAuthorizedFor(trainingID int64) bool {
	for _, id := range s.AuthorizedTrainingIDs {
		if id == trainingID {
			return true
		}
	}
	return false
}

type ProfessorProfile struct {
	ID             int64  `json:"id"`
	ProfileID      int64  `json:"profile_id"`
	Active         bool   `json:"active"`
	Specialization string `json:"specialization"`
	Bio            string `json:"bio"`
}

type AssistantProfile struct {
	ID              int64   `json:"id"`
	ProfileID       int64   `json:"profile_id"`
	Notes           string  `json:"notes"`
	AssignedCityIDs []int64 `json:"assigned_city_ids"`
}

type City struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Region   string `json:"region"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	IsActive bool   `json:"is_active"`
}

type StudentBalance struct {
	StudentID       int64   `json:"student_id"`
	TotalAmountDue  float64 `json:"total_amount_due"`
	AmountPaid      float64 `json:"amount_paid"`
	AmountRemaining float64 `json:"amount_remaining"`
	Currency        string  `json:"currency"`
}
