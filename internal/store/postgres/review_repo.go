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

type ReviewRepo struct {
	pool *pgxpool.Pool
}

func NewReviewRepo(pool *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{pool: pool}
}

var _ domain.ReviewRepository = (*ReviewRepo)(nil)

const reviewSelect = `
	SELECT rv.id, rv.booking_id, rv.customer_id, rv.provider_id, rv.service_id, rv.rating,
		rv.comment, rv.created_at, COALESCE(s.title, ''), COALESCE(cp.full_name, ''),
		COALESCE(pp.full_name, '')
	FROM reviews rv
	LEFT JOIN services s ON s.id = rv.service_id
	LEFT JOIN profiles cp ON cp.id = rv.customer_id
	LEFT JOIN profiles pp ON pp.id = rv.provider_id
`

func (r *ReviewRepo) Create(ctx context.Context, rv *domain.Review) error {
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	rv.CreatedAt = time.Now().UTC()

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO reviews (id, booking_id, customer_id, provider_id, service_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (booking_id) DO NOTHING
	`, rv.ID, rv.BookingID, rv.CustomerID, rv.ProviderID, rv.ServiceID, rv.Rating, rv.Comment, rv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *ReviewRepo) GetByBooking(ctx context.Context, bookingID string) (*domain.Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, reviewSelect+` WHERE rv.booking_id = $1`, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

func (r *ReviewRepo) ListForService(ctx context.Context, serviceID string) ([]*domain.Review, error) {
	return r.list(ctx, reviewSelect+` WHERE rv.service_id = $1 ORDER BY rv.created_at DESC`, serviceID)
}

func (r *ReviewRepo) ListByRole(ctx context.Context, userID string, role domain.Role, limit int) ([]*domain.Review, error) {
	var params args
	query := reviewSelect + ` WHERE rv.` + role.Column() + ` = ` + params.add(userID) + ` ORDER BY rv.created_at DESC`
	if limit > 0 {
		query += ` LIMIT ` + params.add(limit)
	}
	return r.list(ctx, query, params...)
}

func (r *ReviewRepo) list(ctx context.Context, query string, params ...any) ([]*domain.Review, error) {
	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var res []*domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}

func scanReview(s scanner) (*domain.Review, error) {
	rv := &domain.Review{}
	if err := s.Scan(
		&rv.ID,
		&rv.BookingID,
		&rv.CustomerID,
		&rv.ProviderID,
		&rv.ServiceID,
		&rv.Rating,
		&rv.Comment,
		&rv.CreatedAt,
		&rv.ServiceTitle,
		&rv.CustomerName,
		&rv.ProviderName,
	); err != nil {
		return nil, err
	}
	return rv, nil
}
