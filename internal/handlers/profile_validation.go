package handlers

import (
	"strings"
	"time"

	"github.com/prolean/ProleanBack/internal/models"
)

const dateLayout = "2006-01-02"

func parseRole(raw string) (models.Role, string) {
	role := models.Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case models.RoleStudent, models.RoleProfessor, models.RoleAssistant, models.RoleAdmin:
		return role, ""
	default:
		return "", "role must be one of STUDENT, PROFESSOR, ASSISTANT, ADMIN"
	}
}

func parseStatus(raw string) (models.ProfileStatus, string) {
	status := models.ProfileStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case models.StatusPending, models.StatusActive, models.StatusSuspended:
		return status, ""
	default:
		return "", "status must be one of PENDING, ACTIVE, SUSPENDED"
	}
}

// parseOptionalStatus defaults to PENDING, the state self-registered and
// staff-created students start in.
func parseOptionalStatus(raw string) (models.ProfileStatus, string) {
	if strings.TrimSpace(raw) == "" {
		return models.StatusPending, ""
	}
	return parseStatus(raw)
}

func validateIDs(field string, ids []int64, required bool) string {
	if required && len(ids) == 0 {
		return field + " must contain at least one id"
	}
	for _, id := range ids {
		if id <= 0 {
			return field + " must contain positive ids"
		}
	}
	return ""
}

func parseDate(field, raw string) (time.Time, string) {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(dateLayout, raw); err == nil {
		return parsed, ""
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), ""
	}
	return time.Time{}, field + " must be a YYYY-MM-DD date"
}

func optionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
