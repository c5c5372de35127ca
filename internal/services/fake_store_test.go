package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/repository"
	"github.com/prolean/ProleanBack/pkg/i18n"
	"github.com/prolean/ProleanBack/pkg/logger"
)

var (
	_ identityStore     = (*fakeStore)(nil)
	_ enrollmentStore   = (*fakeStore)(nil)
	_ cohortStore       = (*fakeStore)(nil)
	_ progressStore     = (*fakeStore)(nil)
	_ questionStore     = (*fakeStore)(nil)
	_ notificationStore = (*fakeStore)(nil)
	_ catalogStore      = (*fakeStore)(nil)
)

type fakeStudentRow struct {
	ProfileID      int64
	SessionID      *int64
	AmountPaid     float64
	TotalAmountDue float64
}

// fakeState is JSON-copyable so a failed transaction can be rolled back.
type fakeState struct {
	NextID           int64
	Users            map[int64]*models.User
	Profiles         map[int64]*models.Profile
	Students         map[int64]*fakeStudentRow
	StudentTrainings map[int64]map[int64]bool
	Professors       map[int64]*models.ProfessorProfile
	Assistants       map[int64]*models.AssistantProfile
	Cities           map[int64]*models.City
	Trainings        map[int64]*models.Training
	Sessions         map[int64]*models.Session
	Seances          []models.Seance
	Streams          map[int64]*models.LiveStream
	Attendance       map[int64]*models.AttendanceLog
	Videos           map[int64]*models.RecordedVideo
	Progress         map[int64]*models.VideoProgress
	Questions        map[int64]*models.Question
	Notifications    []models.Notification
	DueWrites        int
}

type fakeStore struct {
	fakeState
	txMu     sync.Mutex
	failures map[string]error
	// locks records row locks in the order they were taken.
	locks []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fakeState: fakeState{
			Users:            map[int64]*models.User{},
			Profiles:         map[int64]*models.Profile{},
			Students:         map[int64]*fakeStudentRow{},
			StudentTrainings: map[int64]map[int64]bool{},
			Professors:       map[int64]*models.ProfessorProfile{},
			Assistants:       map[int64]*models.AssistantProfile{},
			Cities:           map[int64]*models.City{},
			Trainings:        map[int64]*models.Training{},
			Sessions:         map[int64]*models.Session{},
			Streams:          map[int64]*models.LiveStream{},
			Attendance:       map[int64]*models.AttendanceLog{},
			Videos:           map[int64]*models.RecordedVideo{},
			Progress:         map[int64]*models.VideoProgress{},
			Questions:        map[int64]*models.Question{},
		},
		failures: map[string]error{},
	}
}

// fakeTx serializes transactions and restores the state when fn fails.
func fakeTx[S any](f *fakeStore) txRunner[S] {
	return func(_ context.Context, fn func(S) error) error {
		f.txMu.Lock()
		defer f.txMu.Unlock()

		snapshot, err := json.Marshal(f.fakeState)
		if err != nil {
			panic(err)
		}
		if err := fn(any(f).(S)); err != nil {
			var restored fakeState
			if err := json.Unmarshal(snapshot, &restored); err != nil {
				panic(err)
			}
			f.fakeState = restored
			return err
		}
		return nil
	}
}

func (f *fakeStore) id() int64 {
	f.NextID++
	return f.NextID
}

func (f *fakeStore) fail(method string) error {
	return f.failures[method]
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortedKeys(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ---- seeding helpers ----

func (f *fakeStore) seedCity(name string) int64 {
	id := f.id()
	f.Cities[id] = &models.City{ID: id, Name: name, IsActive: true}
	return id
}

func (f *fakeStore) seedTraining(slug string, price float64, active bool) int64 {
	id := f.id()
	content := i18n.Fields{}
	content.Set(models.TrainingFieldTitle, i18n.French, strings.ToUpper(slug))
	f.Trainings[id] = &models.Training{ID: id, Slug: slug, PriceMAD: price, IsActive: active, Content: content}
	return id
}

func (f *fakeStore) seedProfile(role models.Role, status models.ProfileStatus, cityID *int64) *models.Profile {
	userID := f.id()
	f.Users[userID] = &models.User{ID: userID, Email: fmt.Sprintf("user%d@prolean.ma", userID)}
	profileID := f.id()
	profile := &models.Profile{ID: profileID, UserID: userID, Role: role, Status: status, CityID: cityID, FullName: string(role)}
	f.Profiles[profileID] = profile
	return profile
}

func (f *fakeStore) seedStudent(cityID *int64, status models.ProfileStatus) (access.Principal, int64) {
	profile := f.seedProfile(models.RoleStudent, status, cityID)
	studentID, _ := f.EnsureStudentProfile(context.Background(), profile.ID)
	return access.Principal{Profile: *profile, StudentID: &studentID}, studentID
}

func (f *fakeStore) seedProfessor() (access.Principal, int64) {
	profile := f.seedProfile(models.RoleProfessor, models.StatusActive, nil)
	professorID, _ := f.EnsureProfessorProfile(context.Background(), profile.ID)
	return access.Principal{Profile: *profile, ProfessorID: &professorID}, professorID
}

func (f *fakeStore) seedAssistant(cityIDs ...int64) access.Principal {
	profile := f.seedProfile(models.RoleAssistant, models.StatusActive, nil)
	assistantID, _ := f.EnsureAssistantProfile(context.Background(), profile.ID)
	_ = f.ReplaceAssistantCities(context.Background(), assistantID, cityIDs)
	return access.Principal{Profile: *profile, AssistantID: &assistantID, AssignedCityIDs: append([]int64{}, cityIDs...)}
}

func (f *fakeStore) seedAdmin() access.Principal {
	profile := f.seedProfile(models.RoleAdmin, models.StatusActive, nil)
	return access.Principal{Profile: *profile}
}

func (f *fakeStore) seedSession(professorID int64, cityID *int64, status models.SessionStatus, trainingIDs ...int64) int64 {
	id := f.id()
	f.Sessions[id] = &models.Session{
		ID:          id,
		ProfessorID: professorID,
		CityID:      cityID,
		Status:      status,
		TrainingIDs: append([]int64{}, trainingIDs...),
		IsActive:    true,
		StartDate:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	return id
}

func (f *fakeStore) seedVideo(trainingID int64, active bool) int64 {
	id := f.id()
	f.Videos[id] = &models.RecordedVideo{ID: id, TrainingID: trainingID, Title: "Video", IsActive: active}
	return id
}

func testLedger() ledger {
	return ledger{log: logger.Nop()}
}

// ---- users and profiles ----

func (f *fakeStore) CreateUser(_ context.Context, user *models.User) error {
	if err := f.fail("CreateUser"); err != nil {
		return err
	}
	for _, existing := range f.Users {
		if existing.Email == strings.ToLower(user.Email) {
			return uniqueViolation()
		}
	}
	user.ID = f.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.Users[user.ID] = &copied
	return nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range f.Users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := f.Users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) CreateProfile(_ context.Context, input repository.CreateProfileInput) (*models.Profile, error) {
	if err := f.fail("CreateProfile"); err != nil {
		return nil, err
	}
	for _, existing := range f.Profiles {
		if existing.UserID == input.UserID {
			return nil, uniqueViolation()
		}
		if input.PhoneNumber != nil && existing.PhoneNumber != nil && *existing.PhoneNumber == *input.PhoneNumber {
			return nil, uniqueViolation()
		}
	}
	profile := &models.Profile{
		ID:          f.id(),
		UserID:      input.UserID,
		Role:        input.Role,
		Status:      input.Status,
		FullName:    input.FullName,
		PhoneNumber: input.PhoneNumber,
		NationalID:  input.NationalID,
		CityID:      input.CityID,
	}
	f.Profiles[profile.ID] = profile
	copied := *profile
	return &copied, nil
}

func (f *fakeStore) GetProfileByUserID(_ context.Context, userID int64) (*models.Profile, error) {
	for _, profile := range f.Profiles {
		if profile.UserID == userID {
			copied := *profile
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) GetProfileByIDForUpdate(_ context.Context, profileID int64) (*models.Profile, error) {
	profile, ok := f.Profiles[profileID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *profile
	return &copied, nil
}

func (f *fakeStore) UpdateProfileRole(_ context.Context, profileID int64, role models.Role) (*models.Profile, error) {
	profile, ok := f.Profiles[profileID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	profile.Role = role
	copied := *profile
	return &copied, nil
}

func (f *fakeStore) UpdateProfileStatus(_ context.Context, profileID int64, status models.ProfileStatus) (*models.Profile, error) {
	profile, ok := f.Profiles[profileID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	profile.Status = status
	copied := *profile
	return &copied, nil
}

func (f *fakeStore) EnsureStudentProfile(_ context.Context, profileID int64) (int64, error) {
	for id, row := range f.Students {
		if row.ProfileID == profileID {
			return id, nil
		}
	}
	id := f.id()
	f.Students[id] = &fakeStudentRow{ProfileID: profileID}
	return id, nil
}

func (f *fakeStore) EnsureProfessorProfile(_ context.Context, profileID int64) (int64, error) {
	for id, row := range f.Professors {
		if row.ProfileID == profileID {
			return id, nil
		}
	}
	id := f.id()
	f.Professors[id] = &models.ProfessorProfile{ID: id, ProfileID: profileID, Active: true}
	return id, nil
}

func (f *fakeStore) EnsureAssistantProfile(_ context.Context, profileID int64) (int64, error) {
	for id, row := range f.Assistants {
		if row.ProfileID == profileID {
			return id, nil
		}
	}
	id := f.id()
	f.Assistants[id] = &models.AssistantProfile{ID: id, ProfileID: profileID}
	return id, nil
}

func (f *fakeStore) GetRoleProfileIDs(_ context.Context, profileID int64) (repository.RoleProfileIDs, error) {
	if _, ok := f.Profiles[profileID]; !ok {
		return repository.RoleProfileIDs{}, pgx.ErrNoRows
	}
	var ids repository.RoleProfileIDs
	for id, row := range f.Students {
		if row.ProfileID == profileID {
			id := id
			ids.StudentID = &id
		}
	}
	for id, row := range f.Professors {
		if row.ProfileID == profileID {
			id := id
			ids.ProfessorID = &id
		}
	}
	for id, row := range f.Assistants {
		if row.ProfileID == profileID {
			id := id
			ids.AssistantID = &id
		}
	}
	return ids, nil
}

func (f *fakeStore) GetAssistantProfile(_ context.Context, assistantID int64) (*models.AssistantProfile, error) {
	assistant, ok := f.Assistants[assistantID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *assistant
	copied.AssignedCityIDs = append([]int64{}, assistant.AssignedCityIDs...)
	return &copied, nil
}

func (f *fakeStore) ListAssistantCityIDs(_ context.Context, assistantID int64) ([]int64, error) {
	assistant, ok := f.Assistants[assistantID]
	if !ok {
		return []int64{}, nil
	}
	return append([]int64{}, assistant.AssignedCityIDs...), nil
}

func (f *fakeStore) ReplaceAssistantCities(_ context.Context, assistantID int64, cityIDs []int64) error {
	assistant, ok := f.Assistants[assistantID]
	if !ok {
		return pgx.ErrNoRows
	}
	assistant.AssignedCityIDs = uniqueIDs(cityIDs)
	return nil
}

func (f *fakeStore) ListExistingCityIDs(_ context.Context, cityIDs []int64) ([]int64, error) {
	out := []int64{}
	for _, id := range cityIDs {
		if _, ok := f.Cities[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeStore) ListCities(_ context.Context) ([]models.City, error) {
	cities := make([]models.City, 0, len(f.Cities))
	for _, city := range f.Cities {
		cities = append(cities, *city)
	}
	sort.Slice(cities, func(i, j int) bool { return cities[i].Name < cities[j].Name })
	return cities, nil
}

// ---- students and ledger ----

func (f *fakeStore) GetStudent(_ context.Context, studentID int64) (*models.StudentProfile, error) {
	row, ok := f.Students[studentID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	profile := f.Profiles[row.ProfileID]
	return &models.StudentProfile{
		ID:                    studentID,
		ProfileID:             row.ProfileID,
		UserID:                profile.UserID,
		FullName:              profile.FullName,
		Status:                profile.Status,
		CityID:                profile.CityID,
		SessionID:             row.SessionID,
		AmountPaid:            row.AmountPaid,
		TotalAmountDue:        row.TotalAmountDue,
		AuthorizedTrainingIDs: sortedKeys(f.StudentTrainings[studentID]),
	}, nil
}

func (f *fakeStore) LockStudent(ctx context.Context, studentID int64) (*models.StudentProfile, error) {
	f.locks = append(f.locks, fmt.Sprintf("student:%d", studentID))
	return f.GetStudent(ctx, studentID)
}

func (f *fakeStore) AddAuthorizedTrainings(_ context.Context, studentID int64, trainingIDs []int64) error {
	if err := f.fail("AddAuthorizedTrainings"); err != nil {
		return err
	}
	if f.StudentTrainings[studentID] == nil {
		f.StudentTrainings[studentID] = map[int64]bool{}
	}
	for _, id := range trainingIDs {
		f.StudentTrainings[studentID][id] = true
	}
	return nil
}

func (f *fakeStore) RemoveAuthorizedTrainings(_ context.Context, studentID int64, trainingIDs []int64) error {
	for _, id := range trainingIDs {
		delete(f.StudentTrainings[studentID], id)
	}
	return nil
}

func (f *fakeStore) ClearAuthorizedTrainings(_ context.Context, studentID int64) error {
	delete(f.StudentTrainings, studentID)
	return nil
}

func (f *fakeStore) SumAuthorizedPrices(_ context.Context, studentID int64) (float64, error) {
	total := 0.0
	for id := range f.StudentTrainings[studentID] {
		total += f.Trainings[id].PriceMAD
	}
	return round2(total), nil
}

func (f *fakeStore) UpdateTotalAmountDueIfChanged(_ context.Context, studentID int64, total float64) (bool, error) {
	if err := f.fail("UpdateTotalAmountDueIfChanged"); err != nil {
		return false, err
	}
	row := f.Students[studentID]
	if round2(row.TotalAmountDue) == round2(total) {
		return false, nil
	}
	row.TotalAmountDue = round2(total)
	f.DueWrites++
	return true, nil
}

func (f *fakeStore) UpdateAmountPaid(_ context.Context, studentID int64, amount float64) error {
	f.Students[studentID].AmountPaid = amount
	return nil
}

func (f *fakeStore) UpdateStudentSession(_ context.Context, studentID int64, sessionID *int64) error {
	row, ok := f.Students[studentID]
	if !ok {
		return pgx.ErrNoRows
	}
	if sessionID == nil {
		row.SessionID = nil
		return nil
	}
	id := *sessionID
	row.SessionID = &id
	return nil
}

func (f *fakeStore) ListStudentIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(f.Students))
	for id := range f.Students {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) ListSessionStudentUserIDs(_ context.Context, sessionID int64) ([]int64, error) {
	ids := []int64{}
	for _, row := range f.Students {
		if row.SessionID != nil && *row.SessionID == sessionID {
			ids = append(ids, f.Profiles[row.ProfileID].UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) CountSessionStudents(ctx context.Context, sessionID int64) (int, error) {
	ids, _ := f.ListSessionStudentUserIDs(ctx, sessionID)
	return len(ids), nil
}

func (f *fakeStore) ListTrainingStudentIDs(_ context.Context, trainingID int64) ([]int64, error) {
	ids := []int64{}
	for studentID, set := range f.StudentTrainings {
		if set[trainingID] {
			ids = append(ids, studentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ---- trainings ----

func (f *fakeStore) slugTaken(slug string, except int64) bool {
	for id, training := range f.Trainings {
		if id != except && training.Slug == slug {
			return true
		}
	}
	return false
}

func (f *fakeStore) CreateTraining(_ context.Context, training *models.Training) error {
	if f.slugTaken(training.Slug, 0) {
		return uniqueViolation()
	}
	training.ID = f.id()
	copied := *training
	f.Trainings[training.ID] = &copied
	return nil
}

func (f *fakeStore) UpdateTraining(_ context.Context, training *models.Training) error {
	current, ok := f.Trainings[training.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if f.slugTaken(training.Slug, training.ID) {
		return uniqueViolation()
	}
	training.IsActive = current.IsActive
	copied := *training
	f.Trainings[training.ID] = &copied
	return nil
}

func (f *fakeStore) SetTrainingActive(_ context.Context, trainingID int64, active bool) (*models.Training, error) {
	training, ok := f.Trainings[trainingID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	training.IsActive = active
	copied := *training
	return &copied, nil
}

func (f *fakeStore) GetTrainingByID(_ context.Context, trainingID int64) (*models.Training, error) {
	training, ok := f.Trainings[trainingID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *training
	return &copied, nil
}

func (f *fakeStore) GetTrainingBySlug(_ context.Context, slug string) (*models.Training, error) {
	for _, training := range f.Trainings {
		if training.Slug == slug {
			copied := *training
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) ListActiveTrainings(_ context.Context) ([]models.Training, error) {
	out := []models.Training{}
	for _, training := range f.Trainings {
		if training.IsActive {
			out = append(out, *training)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListActiveTrainingIDs(ctx context.Context) ([]int64, error) {
	trainings, _ := f.ListActiveTrainings(ctx)
	ids := make([]int64, 0, len(trainings))
	for _, training := range trainings {
		ids = append(ids, training.ID)
	}
	return ids, nil
}

func (f *fakeStore) LockTrainingsForShare(ctx context.Context, trainingIDs []int64) ([]int64, error) {
	for _, id := range trainingIDs {
		f.locks = append(f.locks, fmt.Sprintf("training:%d", id))
	}
	return f.ListExistingTrainingIDs(ctx, trainingIDs)
}

func (f *fakeStore) ListExistingTrainingIDs(_ context.Context, trainingIDs []int64) ([]int64, error) {
	out := []int64{}
	for _, id := range trainingIDs {
		if _, ok := f.Trainings[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// ---- sessions ----

func (f *fakeStore) CreateSession(_ context.Context, input repository.CreateSessionInput) (*models.Session, error) {
	id := f.id()
	session := &models.Session{
		ID:          id,
		ProfessorID: input.ProfessorID,
		CityID:      input.CityID,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Status:      models.SessionCreated,
		IsLive:      input.IsLive,
		IsActive:    true,
		TrainingIDs: []int64{},
	}
	f.Sessions[id] = session
	copied := *session
	return &copied, nil
}

func (f *fakeStore) AddSessionTrainings(_ context.Context, sessionID int64, trainingIDs []int64) error {
	session := f.Sessions[sessionID]
	session.TrainingIDs = uniqueIDs(append(session.TrainingIDs, trainingIDs...))
	return nil
}

func (f *fakeStore) GetSessionByID(_ context.Context, sessionID int64) (*models.Session, error) {
	session, ok := f.Sessions[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *session
	copied.TrainingIDs = append([]int64{}, session.TrainingIDs...)
	return &copied, nil
}

func (f *fakeStore) GetSessionByIDForUpdate(ctx context.Context, sessionID int64) (*models.Session, error) {
	return f.GetSessionByID(ctx, sessionID)
}

func (f *fakeStore) ListSessions(_ context.Context, filter repository.SessionListFilter) ([]models.Session, error) {
	out := []models.Session{}
	for _, session := range f.Sessions {
		if filter.ProfessorID != nil && session.ProfessorID != *filter.ProfessorID {
			continue
		}
		if filter.CityIDs != nil && (session.CityID == nil || !containsID(filter.CityIDs, *session.CityID)) {
			continue
		}
		out = append(out, *session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateSessionStatusIfCurrent(_ context.Context, sessionID int64, current models.SessionStatus, next models.SessionStatus) error {
	session, ok := f.Sessions[sessionID]
	if !ok || session.Status != current {
		return pgx.ErrNoRows
	}
	session.Status = next
	return nil
}

func (f *fakeStore) CreateSeance(_ context.Context, seance *models.Seance) error {
	seance.ID = f.id()
	f.Seances = append(f.Seances, *seance)
	return nil
}

func (f *fakeStore) ListSeances(_ context.Context, sessionID int64) ([]models.Seance, error) {
	out := []models.Seance{}
	for _, seance := range f.Seances {
		if seance.SessionID == sessionID {
			out = append(out, seance)
		}
	}
	return out, nil
}

func (f *fakeStore) CountSeancesByType(ctx context.Context, sessionID int64, seanceType models.SeanceType) (int, error) {
	seances, _ := f.ListSeances(ctx, sessionID)
	count := 0
	for _, seance := range seances {
		if seance.Type == seanceType {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ProfessorExists(_ context.Context, professorID int64) (bool, error) {
	professor, ok := f.Professors[professorID]
	return ok && professor.Active, nil
}

func (f *fakeStore) GetProfessorUserID(_ context.Context, professorID int64) (int64, error) {
	professor, ok := f.Professors[professorID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return f.Profiles[professor.ProfileID].UserID, nil
}

func (f *fakeStore) ListTrainingProfessorUserIDs(ctx context.Context, trainingID int64) ([]int64, error) {
	seen := map[int64]bool{}
	for _, session := range f.Sessions {
		if session.CoversTraining(trainingID) {
			userID, err := f.GetProfessorUserID(ctx, session.ProfessorID)
			if err == nil {
				seen[userID] = true
			}
		}
	}
	return sortedKeys(seen), nil
}

// ---- live streams and attendance ----

func (f *fakeStore) CreateLiveStream(_ context.Context, stream *models.LiveStream) error {
	stream.ID = f.id()
	stream.IsActive = true
	copied := *stream
	f.Streams[stream.ID] = &copied
	return nil
}

func (f *fakeStore) GetActiveLiveStream(_ context.Context, sessionID int64) (*models.LiveStream, error) {
	for _, stream := range f.Streams {
		if stream.SessionID == sessionID && stream.IsActive {
			copied := *stream
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) GetLiveStreamByID(_ context.Context, streamID int64) (*models.LiveStream, error) {
	stream, ok := f.Streams[streamID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stream
	return &copied, nil
}

func (f *fakeStore) EndLiveStream(_ context.Context, streamID int64, at time.Time) (*models.LiveStream, error) {
	stream, ok := f.Streams[streamID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	stream.IsActive = false
	if stream.EndedAt == nil {
		stream.EndedAt = &at
	}
	copied := *stream
	return &copied, nil
}

func (f *fakeStore) EndActiveLiveStreams(_ context.Context, sessionID int64, at time.Time) (int64, error) {
	var n int64
	for _, stream := range f.Streams {
		if stream.SessionID == sessionID && stream.IsActive {
			stream.IsActive = false
			ended := at
			stream.EndedAt = &ended
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) EnsureAttendance(_ context.Context, studentID int64, streamID int64, sessionID int64, at time.Time) (*models.AttendanceLog, error) {
	for _, log := range f.Attendance {
		if log.StudentID == studentID && log.LiveStreamID == streamID {
			copied := *log
			return &copied, nil
		}
	}
	log := &models.AttendanceLog{ID: f.id(), StudentID: studentID, LiveStreamID: streamID, SessionID: sessionID, JoinTime: at}
	f.Attendance[log.ID] = log
	copied := *log
	return &copied, nil
}

func (f *fakeStore) GetAttendanceForUpdate(_ context.Context, studentID int64, streamID int64) (*models.AttendanceLog, error) {
	for _, log := range f.Attendance {
		if log.StudentID == studentID && log.LiveStreamID == streamID {
			copied := *log
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) UpdateAttendanceLeave(_ context.Context, logID int64, leaveTime time.Time, durationSeconds int) (*models.AttendanceLog, error) {
	log, ok := f.Attendance[logID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	log.LeaveTime = &leaveTime
	log.DurationSeconds = durationSeconds
	copied := *log
	return &copied, nil
}

// ---- videos and progress ----

func (f *fakeStore) GetVideoByID(_ context.Context, videoID int64) (*models.RecordedVideo, error) {
	video, ok := f.Videos[videoID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *video
	return &copied, nil
}

func (f *fakeStore) EnsureVideoProgress(_ context.Context, studentID int64, videoID int64) error {
	for _, progress := range f.Progress {
		if progress.StudentID == studentID && progress.VideoID == videoID {
			return nil
		}
	}
	id := f.id()
	f.Progress[id] = &models.VideoProgress{ID: id, StudentID: studentID, VideoID: videoID}
	return nil
}

func (f *fakeStore) GetVideoProgressForUpdate(_ context.Context, studentID int64, videoID int64) (*models.VideoProgress, error) {
	for _, progress := range f.Progress {
		if progress.StudentID == studentID && progress.VideoID == videoID {
			copied := *progress
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) UpdateVideoProgress(_ context.Context, progress *models.VideoProgress) error {
	if _, ok := f.Progress[progress.ID]; !ok {
		return pgx.ErrNoRows
	}
	progress.LastWatchedAt = time.Now()
	copied := *progress
	f.Progress[progress.ID] = &copied
	return nil
}

func (f *fakeStore) SummarizeProgress(_ context.Context, studentID int64, trainingIDs []int64) (models.ProgressSummary, error) {
	total, completed, watched := 0, 0, 0
	for _, video := range f.Videos {
		if !video.IsActive || !containsID(trainingIDs, video.TrainingID) {
			continue
		}
		total++
		for _, progress := range f.Progress {
			if progress.StudentID == studentID && progress.VideoID == video.ID {
				watched += progress.WatchedSeconds
				if progress.Completed {
					completed++
				}
			}
		}
	}
	return models.NewProgressSummary(total, completed, watched), nil
}

// ---- questions ----

func (f *fakeStore) CreateQuestion(_ context.Context, question *models.Question) error {
	question.ID = f.id()
	question.CreatedAt = time.Now()
	copied := *question
	f.Questions[question.ID] = &copied
	return nil
}

func (f *fakeStore) GetQuestionByID(_ context.Context, questionID int64) (*models.Question, error) {
	question, ok := f.Questions[questionID]
	if !ok || question.IsDeleted {
		return nil, pgx.ErrNoRows
	}
	copied := *question
	return &copied, nil
}

func (f *fakeStore) AnswerQuestion(_ context.Context, questionID int64, professorID int64, content string) (*models.Question, error) {
	question, ok := f.Questions[questionID]
	if !ok || question.IsDeleted {
		return nil, pgx.ErrNoRows
	}
	question.AnsweredBy = &professorID
	question.AnswerContent = content
	question.IsAnswered = true
	copied := *question
	return &copied, nil
}

func (f *fakeStore) SoftDeleteQuestion(_ context.Context, questionID int64) error {
	if question, ok := f.Questions[questionID]; ok {
		question.IsDeleted = true
	}
	return nil
}

func (f *fakeStore) ListVideoQuestions(_ context.Context, videoID int64, sessionID *int64) ([]models.Question, error) {
	out := []models.Question{}
	for _, question := range f.Questions {
		if question.VideoID != videoID || question.IsDeleted {
			continue
		}
		if sessionID != nil {
			row := f.Students[question.StudentID]
			if row.SessionID == nil || *row.SessionID != *sessionID {
				continue
			}
		}
		out = append(out, *question)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ---- notifications ----

func (f *fakeStore) CreateNotifications(_ context.Context, notifications []models.Notification) ([]models.Notification, error) {
	created := make([]models.Notification, 0, len(notifications))
	for _, n := range notifications {
		n.ID = f.id()
		n.CreatedAt = time.Now()
		f.Notifications = append(f.Notifications, n)
		created = append(created, n)
	}
	return created, nil
}

func (f *fakeStore) ListNotifications(_ context.Context, userID int64, unreadOnly bool, limit int, offset int) ([]models.Notification, int, error) {
	matching := []models.Notification{}
	for i := len(f.Notifications) - 1; i >= 0; i-- {
		n := f.Notifications[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		matching = append(matching, n)
	}
	total := len(matching)
	if offset >= total {
		return []models.Notification{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matching[offset:end], total, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, userID int64, notificationID int64) (bool, error) {
	for i := range f.Notifications {
		if f.Notifications[i].ID == notificationID && f.Notifications[i].UserID == userID {
			f.Notifications[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

type recordingPusher struct {
	mu     sync.Mutex
	pushed map[int64][]models.Notification
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{pushed: map[int64][]models.Notification{}}
}

func (p *recordingPusher) Push(userID int64, n models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed[userID] = append(p.pushed[userID], n)
}
