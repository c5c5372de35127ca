package repository

import (
	"context"

	"github.com/prolean/ProleanBack/internal/models"
)

type CreateProfileInput struct {
	UserID      int64
	Role        models.Role
	Status      models.ProfileStatus
	FullName    string
	PhoneNumber *string
	NationalID  *string
	CityID      *int64
}

// RoleProfileIDs are the ids of the role sub-profiles that exist for a profile.
type RoleProfileIDs struct {
	StudentID   *int64
	ProfessorID *int64
	AssistantID *int64
}

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, user_id, role, status, full_name, phone_number, national_id, city_id,
	email_verified, created_at, updated_at`

func scanProfile(row interface{ Scan(dest ...any) error }) (*models.Profile, error) {
	var profile models.Profile
	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Role,
		&profile.Status,
		&profile.FullName,
		&profile.PhoneNumber,
		&profile.NationalID,
		&profile.CityID,
		&profile.EmailVerified,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) CreateProfile(ctx context.Context, input CreateProfileInput) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (user_id, role, status, full_name, phone_number, national_id, city_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + profileColumns
	return scanProfile(r.db.QueryRow(ctx, query,
		input.UserID,
		input.Role,
		input.Status,
		input.FullName,
		input.PhoneNumber,
		input.NationalID,
		input.CityID,
	))
}

func (r *ProfileRepository) GetProfileByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	return scanProfile(r.db.QueryRow(ctx, query, userID))
}

func (r *ProfileRepository) GetProfileByID(ctx context.Context, profileID int64) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.db.QueryRow(ctx, query, profileID))
}

func (r *ProfileRepository) GetProfileByIDForUpdate(ctx context.Context, profileID int64) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 FOR UPDATE`
	return scanProfile(r.db.QueryRow(ctx, query, profileID))
}

func (r *ProfileRepository) UpdateProfileRole(
	ctx context.Context,
	profileID int64,
	role models.Role,
) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET role = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns
	return scanProfile(r.db.QueryRow(ctx, query, profileID, role))
}

func (r *ProfileRepository) UpdateProfileStatus(
	ctx context.Context,
	profileID int64,
	status models.ProfileStatus,
) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns
	return scanProfile(r.db.QueryRow(ctx, query, profileID, status))
}

func (r *ProfileRepository) EnsureStudentProfile(ctx context.Context, profileID int64) (int64, error) {
	return r.ensureRoleProfile(ctx, "student_profiles", profileID)
}

func (r *ProfileRepository) EnsureProfessorProfile(ctx context.Context, profileID int64) (int64, error) {
	return r.ensureRoleProfile(ctx, "professor_profiles", profileID)
}

func (r *ProfileRepository) EnsureAssistantProfile(ctx context.Context, profileID int64) (int64, error) {
	return r.ensureRoleProfile(ctx, "assistant_profiles", profileID)
}

// ensureRoleProfile is get-or-create keyed on the unique profile_id column.
// table is one of the three constant names above.
func (r *ProfileRepository) ensureRoleProfile(ctx context.Context, table string, profileID int64) (int64, error) {
	insert := `INSERT INTO ` + table + ` (profile_id) VALUES ($1) ON CONFLICT (profile_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, insert, profileID); err != nil {
		return 0, err
	}
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM `+table+` WHERE profile_id = $1`, profileID).Scan(&id)
	return id, err
}

func (r *ProfileRepository) GetRoleProfileIDs(ctx context.Context, profileID int64) (RoleProfileIDs, error) {
	query := `
		SELECT sp.id, pp.id, ap.id
		FROM profiles p
		LEFT JOIN student_profiles sp ON sp.profile_id = p.id
		LEFT JOIN professor_profiles pp ON pp.profile_id = p.id
		LEFT JOIN assistant_profiles ap ON ap.profile_id = p.id
		WHERE p.id = $1
	`
	var ids RoleProfileIDs
	err := r.db.QueryRow(ctx, query, profileID).Scan(&ids.StudentID, &ids.ProfessorID, &ids.AssistantID)
	return ids, err
}

func (r *ProfileRepository) GetAssistantProfile(ctx context.Context, assistantID int64) (*models.AssistantProfile, error) {
	query := `SELECT id, profile_id, notes FROM assistant_profiles WHERE id = $1`
	var assistant models.AssistantProfile
	if err := r.db.QueryRow(ctx, query, assistantID).Scan(
		&assistant.ID,
		&assistant.ProfileID,
		&assistant.Notes,
	); err != nil {
		return nil, err
	}
	cityIDs, err := r.ListAssistantCityIDs(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	assistant.AssignedCityIDs = cityIDs
	return &assistant, nil
}

func (r *ProfileRepository) ListAssistantCityIDs(ctx context.Context, assistantID int64) ([]int64, error) {
	return collectInt64s(r.db.Query(ctx,
		`SELECT city_id FROM assistant_cities WHERE assistant_id = $1 ORDER BY city_id`,
		assistantID,
	))
}

func (r *ProfileRepository) ReplaceAssistantCities(ctx context.Context, assistantID int64, cityIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM assistant_cities WHERE assistant_id = $1`, assistantID); err != nil {
		return err
	}
	if len(cityIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO assistant_cities (assistant_id, city_id)
		SELECT $1, city_id FROM unnest($2::bigint[]) AS city_id
		ON CONFLICT DO NOTHING
	`, assistantID, cityIDs)
	return err
}

func (r *ProfileRepository) ListExistingCityIDs(ctx context.Context, cityIDs []int64) ([]int64, error) {
	return collectInt64s(r.db.Query(ctx,
		`SELECT id FROM cities WHERE id = ANY($1::bigint[]) ORDER BY id`,
		cityIDs,
	))
}

func (r *ProfileRepository) ListCities(ctx context.Context) ([]models.City, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, region, phone, address, is_active
		FROM cities
		WHERE is_active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cities := make([]models.City, 0)
	for rows.Next() {
		var city models.City
		if err := rows.Scan(&city.ID, &city.Name, &city.Region, &city.Phone, &city.Address, &city.IsActive); err != nil {
			return nil, err
		}
		cities = append(cities, city)
	}
	return cities, rows.Err()
}
