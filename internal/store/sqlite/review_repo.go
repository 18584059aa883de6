package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"servicehub/internal/domain"
)

type ReviewRepo struct {
	db *sql.DB
}

func NewReviewRepo(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

var _ domain.ReviewRepository = (*ReviewRepo)(nil)

const reviewSelect = `
	SELECT rv.id, rv.booking_id, rv.customer_id, rv.provider_id, rv.service_id, rv.rating,
		rv.comment, rv.created_at, s.title, cp.full_name, pp.full_name
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

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (id, booking_id, customer_id, provider_id, service_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (booking_id) DO NOTHING
	`, rv.ID, rv.BookingID, rv.CustomerID, rv.ProviderID, rv.ServiceID, rv.Rating, rv.Comment, rv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *ReviewRepo) GetByBooking(ctx context.Context, bookingID string) (*domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, reviewSelect+` WHERE rv.booking_id = ?`, bookingID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

func (r *ReviewRepo) ListForService(ctx context.Context, serviceID string) ([]*domain.Review, error) {
	return r.list(ctx, reviewSelect+` WHERE rv.service_id = ? ORDER BY rv.created_at DESC`, serviceID)
}

func (r *ReviewRepo) ListByRole(ctx context.Context, userID string, role domain.Role, limit int) ([]*domain.Review, error) {
	query := reviewSelect + ` WHERE rv.` + role.Column() + ` = ? ORDER BY rv.created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

func (r *ReviewRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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
	var title, customerName, providerName sql.NullString
	if err := s.Scan(
		&rv.ID,
		&rv.BookingID,
		&rv.CustomerID,
		&rv.ProviderID,
		&rv.ServiceID,
		&rv.Rating,
		&rv.Comment,
		&rv.CreatedAt,
		&title,
		&customerName,
		&providerName,
	); err != nil {
		return nil, err
	}
	rv.ServiceTitle = title.String
	rv.CustomerName = customerName.String
	rv.ProviderName = providerName.String
	return rv, nil
}
