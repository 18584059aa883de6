package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"servicehub/internal/domain"
)

type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

var _ domain.ProfileRepository = (*ProfileRepo)(nil)

const profileColumns = `id, email, password_hash, full_name, avatar_url, user_type, phone,
	business_name, business_description, service_area, years_experience, verified, created_at, updated_at`

func (r *ProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.UserType == "" {
		p.UserType = domain.RoleCustomer
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.Email, p.PasswordHash, p.FullName, p.AvatarURL, p.UserType, p.Phone,
		p.BusinessName, p.BusinessDescription, p.ServiceArea, p.YearsExperience, p.Verified,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	return r.scanOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.scanOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = ? COLLATE NOCASE`, email)
}

func (r *ProfileRepo) Update(ctx context.Context, p *domain.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE profiles
		SET full_name = ?, avatar_url = ?, user_type = ?, phone = ?, business_name = ?,
			business_description = ?, service_area = ?, years_experience = ?, verified = ?, updated_at = ?
		WHERE id = ?
	`,
		p.FullName, p.AvatarURL, p.UserType, p.Phone, p.BusinessName,
		p.BusinessDescription, p.ServiceArea, p.YearsExperience, p.Verified, p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (r *ProfileRepo) scanOne(ctx context.Context, query string, args ...any) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.FullName,
		&p.AvatarURL,
		&p.UserType,
		&p.Phone,
		&p.BusinessName,
		&p.BusinessDescription,
		&p.ServiceArea,
		&p.YearsExperience,
		&p.Verified,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}
