// Package access holds the per-request authorization predicates. They keep no
// state and never touch storage; callers resolve a Principal first.
package access

import "github.com/prolean/ProleanBack/internal/models"

// Principal is the resolved identity of the caller for a single request.
type Principal struct {
	Profile         models.Profile
	StudentID       *int64
	ProfessorID     *int64
	AssistantID     *int64
	AssignedCityIDs []int64
}

func (p Principal) Role() models.Role {
	return p.Profile.Role
}

func (p Principal) UserID() int64 {
	return p.Profile.UserID
}

// CanActAsStudent is the strict check used for content access.
func CanActAsStudent(p Principal) bool {
	return p.Profile.Role == models.RoleStudent &&
		p.Profile.Status == models.StatusActive &&
		p.StudentID != nil
}

// CanViewAsStudent lets pending or suspended students reach their status pages.
func CanViewAsStudent(p Principal) bool {
	return p.Profile.Role == models.RoleStudent
}

func CanActAsProfessor(p Principal, session *models.Session) bool {
	if session == nil || p.Profile.Role != models.RoleProfessor || p.ProfessorID == nil {
		return false
	}
	return *p.ProfessorID == session.ProfessorID
}

// CanActAsAssistant authorizes admins for any city and assistants only for
// their assigned cities. A nil city is never in an assistant's scope.
func CanActAsAssistant(p Principal, cityID *int64) bool {
	switch p.Profile.Role {
	case models.RoleAdmin:
		return true
	case models.RoleAssistant:
		if cityID == nil {
			return false
		}
		for _, assigned := range p.AssignedCityIDs {
			if assigned == *cityID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func IsStaff(p Principal) bool {
	return p.Profile.Role == models.RoleAdmin || p.Profile.Role == models.RoleAssistant
}

func IsAdmin(p Principal) bool {
	return p.Profile.Role == models.RoleAdmin
}
