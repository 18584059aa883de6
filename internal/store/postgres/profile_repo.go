package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"servicehub/internal/domain"
)

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
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

	_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
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
	return r.scanOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.scanOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *ProfileRepo) Update(ctx context.Context, p *domain.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE profiles
		SET full_name = $1, avatar_url = $2, user_type = $3, phone = $4, business_name = $5,
			business_description = $6, service_area = $7, years_experience = $8, verified = $9, updated_at = $10
		WHERE id = $11
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

func (r *ProfileRepo) scanOne(ctx context.Context, query string, params ...any) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.pool.QueryRow(ctx, query, params...).Scan(
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
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}
