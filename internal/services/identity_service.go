package services

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/metrics"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/repository"
	"github.com/prolean/ProleanBack/pkg/logger"
	"github.com/prolean/ProleanBack/pkg/utils"
)

const minPasswordLength = 8

type identityStore interface {
	ledgerStore
	assignmentStore
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateProfile(ctx context.Context, input repository.CreateProfileInput) (*models.Profile, error)
	GetProfileByUserID(ctx context.Context, userID int64) (*models.Profile, error)
	GetProfileByIDForUpdate(ctx context.Context, profileID int64) (*models.Profile, error)
	UpdateProfileRole(ctx context.Context, profileID int64, role models.Role) (*models.Profile, error)
	UpdateProfileStatus(ctx context.Context, profileID int64, status models.ProfileStatus) (*models.Profile, error)
	EnsureStudentProfile(ctx context.Context, profileID int64) (int64, error)
	EnsureProfessorProfile(ctx context.Context, profileID int64) (int64, error)
	EnsureAssistantProfile(ctx context.Context, profileID int64) (int64, error)
	GetRoleProfileIDs(ctx context.Context, profileID int64) (repository.RoleProfileIDs, error)
	GetAssistantProfile(ctx context.Context, assistantID int64) (*models.AssistantProfile, error)
	ListAssistantCityIDs(ctx context.Context, assistantID int64) ([]int64, error)
	ReplaceAssistantCities(ctx context.Context, assistantID int64, cityIDs []int64) error
	ListExistingCityIDs(ctx context.Context, cityIDs []int64) ([]int64, error)
}

type IdentityService struct {
	ledger
	store     identityStore
	inTx      txRunner[identityStore]
	jwtSecret string
}

func NewIdentityService(
	db repository.DBTX,
	tx *repository.Transactor,
	jwtSecret string,
	log *logger.Logger,
	m *metrics.Metrics,
) *IdentityService {
	return &IdentityService{
		ledger:    ledger{log: log, metrics: m},
		store:     repository.NewQueries(db),
		inTx:      pgxRunner[identityStore](tx),
		jwtSecret: jwtSecret,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	FullName    string
	PhoneNumber *string
}

type AccountInput struct {
	RegisterInput
	Role       models.Role
	Status     models.ProfileStatus
	NationalID *string
	CityID     *int64
}

type CreateStudentInput struct {
	RegisterInput
	Status      models.ProfileStatus
	NationalID  *string
	CityID      *int64
	TrainingIDs []int64
	SessionID   *int64
}

// Account is a user with its profile.
type Account struct {
	User    *models.User    `json:"user"`
	Profile *models.Profile `json:"profile"`
}

// Register creates a self-service student account awaiting activation.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	return s.CreateAccount(ctx, AccountInput{
		RegisterInput: input,
		Role:          models.RoleStudent,
		Status:        models.StatusPending,
	})
}

// CreateAccount creates the user, its profile and the role sub-profile in
// one transaction. A user never exists without a profile.
func (s *IdentityService) CreateAccount(ctx context.Context, input AccountInput) (*Account, error) {
	var account *Account
	err := s.inTx(ctx, func(q identityStore) error {
		var err error
		account, err = s.createAccount(ctx, q, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *IdentityService) createAccount(ctx context.Context, q identityStore, input AccountInput) (*Account, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" || len(input.Password) < minPasswordLength {
		return nil, ErrInvalidInput
	}
	if input.Role == "" {
		input.Role = models.RoleStudent
	}
	if input.Status == "" {
		input.Status = models.StatusPending
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: email, PasswordHash: hash}
	if err := q.CreateUser(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	profile, err := q.CreateProfile(ctx, repository.CreateProfileInput{
		UserID:      user.ID,
		Role:        input.Role,
		Status:      input.Status,
		FullName:    fullName,
		PhoneNumber: trimmedOrNil(input.PhoneNumber),
		NationalID:  trimmedOrNil(input.NationalID),
		CityID:      input.CityID,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	if err := ensureRoleProfile(ctx, q, profile); err != nil {
		return nil, err
	}
	return &Account{User: user, Profile: profile}, nil
}

// Login never puts the role in the token; it is resolved on every request.
func (s *IdentityService) Login(ctx context.Context, email string, password string) (string, *models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), s.jwtSecret)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *IdentityService) Me(ctx context.Context, userID int64) (*Account, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	profile, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, ErrProfileMissing
		}
		return nil, err
	}
	return &Account{User: user, Profile: profile}, nil
}

// Resolve reads the caller's profile, role sub-profiles and city scope.
func (s *IdentityService) Resolve(ctx context.Context, userID int64) (access.Principal, error) {
	profile, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return access.Principal{}, ErrProfileMissing
		}
		return access.Principal{}, err
	}

	ids, err := s.store.GetRoleProfileIDs(ctx, profile.ID)
	if err != nil {
		return access.Principal{}, err
	}

	principal := access.Principal{
		Profile:     *profile,
		StudentID:   ids.StudentID,
		ProfessorID: ids.ProfessorID,
		AssistantID: ids.AssistantID,
	}
	if profile.Role == models.RoleAssistant && ids.AssistantID != nil {
		cityIDs, err := s.store.ListAssistantCityIDs(ctx, *ids.AssistantID)
		if err != nil {
			return access.Principal{}, err
		}
		principal.AssignedCityIDs = cityIDs
	}
	return principal, nil
}

func (s *IdentityService) ChangeRole(
	ctx context.Context,
	actor access.Principal,
	profileID int64,
	role models.Role,
) (*models.Profile, error) {
	if !access.IsAdmin(actor) {
		return nil, ErrForbidden
	}
	if _, ok := models.ParseRole(string(role)); !ok {
		return nil, ErrInvalidInput
	}

	var profile *models.Profile
	err := s.inTx(ctx, func(q identityStore) error {
		if _, err := q.GetProfileByIDForUpdate(ctx, profileID); err != nil {
			return notFound(err)
		}
		var err error
		profile, err = q.UpdateProfileRole(ctx, profileID, role)
		if err != nil {
			return err
		}
		return ensureRoleProfile(ctx, q, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SetStatus lets an assistant change students in its cities and an admin
// change anyone.
func (s *IdentityService) SetStatus(
	ctx context.Context,
	actor access.Principal,
	profileID int64,
	status models.ProfileStatus,
) (*models.Profile, error) {
	if _, ok := models.ParseProfileStatus(string(status)); !ok {
		return nil, ErrInvalidInput
	}
	return s.updateStatus(ctx, actor, profileID, func(models.ProfileStatus) models.ProfileStatus {
		return status
	})
}

// ToggleStudentStatus flips a student between ACTIVE and PENDING.
func (s *IdentityService) ToggleStudentStatus(
	ctx context.Context,
	actor access.Principal,
	studentID int64,
) (*models.Profile, error) {
	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, notFound(err)
	}
	return s.updateStatus(ctx, actor, student.ProfileID, func(current models.ProfileStatus) models.ProfileStatus {
		if current == models.StatusActive {
			return models.StatusPending
		}
		return models.StatusActive
	})
}

func (s *IdentityService) updateStatus(
	ctx context.Context,
	actor access.Principal,
	profileID int64,
	next func(models.ProfileStatus) models.ProfileStatus,
) (*models.Profile, error) {
	if !access.IsStaff(actor) {
		return nil, ErrForbidden
	}

	var profile *models.Profile
	err := s.inTx(ctx, func(q identityStore) error {
		current, err := q.GetProfileByIDForUpdate(ctx, profileID)
		if err != nil {
			return notFound(err)
		}
		if !access.CanActAsAssistant(actor, current.CityID) {
			s.metrics.ScopeViolation("identity.status")
			return ErrScopeViolation
		}
		if !access.IsAdmin(actor) && current.Role != models.RoleStudent {
			return ErrForbidden
		}
		profile, err = q.UpdateProfileStatus(ctx, profileID, next(current.Status))
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// CreateStudent is the back-office account creation. Initial trainings and
// session go through the ledger and the assigner in the same transaction.
func (s *IdentityService) CreateStudent(
	ctx context.Context,
	actor access.Principal,
	input CreateStudentInput,
) (*models.StudentProfile, error) {
	if !access.IsStaff(actor) {
		return nil, ErrForbidden
	}
	if !access.CanActAsAssistant(actor, input.CityID) {
		s.metrics.ScopeViolation("identity.create_student")
		return nil, ErrScopeViolation
	}
	status := input.Status
	if status == "" {
		status = models.StatusActive
	}

	var student *models.StudentProfile
	err := s.inTx(ctx, func(q identityStore) error {
		account, err := s.createAccount(ctx, q, AccountInput{
			RegisterInput: input.RegisterInput,
			Role:          models.RoleStudent,
			Status:        status,
			NationalID:    input.NationalID,
			CityID:        input.CityID,
		})
		if err != nil {
			return err
		}

		studentID, err := q.EnsureStudentProfile(ctx, account.Profile.ID)
		if err != nil {
			return err
		}
		if _, err := q.LockStudent(ctx, studentID); err != nil {
			return err
		}
		if ids := uniqueIDs(input.TrainingIDs); len(ids) > 0 {
			if err := s.authorize(ctx, q, studentID, ids); err != nil {
				return err
			}
		}
		if input.SessionID != nil {
			if err := assignStudent(ctx, q, actor, studentID, *input.SessionID); err != nil {
				return err
			}
		}

		student, err = q.GetStudent(ctx, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// AssignCities replaces an assistant's city scope.
func (s *IdentityService) AssignCities(
	ctx context.Context,
	actor access.Principal,
	assistantID int64,
	cityIDs []int64,
) (*models.AssistantProfile, error) {
	if !access.IsAdmin(actor) {
		return nil, ErrForbidden
	}
	ids := uniqueIDs(cityIDs)

	var assistant *models.AssistantProfile
	err := s.inTx(ctx, func(q identityStore) error {
		if _, err := q.GetAssistantProfile(ctx, assistantID); err != nil {
			return notFound(err)
		}
		if len(ids) > 0 {
			existing, err := q.ListExistingCityIDs(ctx, ids)
			if err != nil {
				return err
			}
			if len(existing) != len(ids) {
				return ErrNotFound
			}
		}
		if err := q.ReplaceAssistantCities(ctx, assistantID, ids); err != nil {
			return err
		}
		var err error
		assistant, err = q.GetAssistantProfile(ctx, assistantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return assistant, nil
}

type roleProfileStore interface {
	EnsureStudentProfile(ctx context.Context, profileID int64) (int64, error)
	EnsureProfessorProfile(ctx context.Context, profileID int64) (int64, error)
	EnsureAssistantProfile(ctx context.Context, profileID int64) (int64, error)
}

// ensureRoleProfile creates the sub-profile for the profile's current role
// if it does not exist yet. Admins have none.
func ensureRoleProfile(ctx context.Context, q roleProfileStore, profile *models.Profile) error {
	var err error
	switch profile.Role {
	case models.RoleStudent:
		_, err = q.EnsureStudentProfile(ctx, profile.ID)
	case models.RoleProfessor:
		_, err = q.EnsureProfessorProfile(ctx, profile.ID)
	case models.RoleAssistant:
		_, err = q.EnsureAssistantProfile(ctx, profile.ID)
	}
	return err
}

func normalizeEmail(value string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(value))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidInput
	}
	return email, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
