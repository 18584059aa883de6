package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"servicehub/internal/domain"
)

type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

var _ domain.ListingRepository = (*ListingRepo)(nil)

const listingSelect = `
	SELECT s.id, s.provider_id, s.title, s.description, s.category, s.specific_service,
		s.pricing_type, s.pricing_amount, s.currency, s.location_address, s.location_city,
		s.location_state, s.location_zip, s.service_radius, s.availability_days,
		s.availability_start, s.availability_end, s.features, s.requirements, s.images,
		s.status, s.views, s.rating, s.review_count, s.created_at, s.updated_at,
		COALESCE(p.full_name, ''), p.business_name
	FROM services s
	LEFT JOIN profiles p ON p.id = s.provider_id
`

func (r *ListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (
			id, provider_id, title, description, category, specific_service,
			pricing_type, pricing_amount, currency, location_address, location_city,
			location_state, location_zip, service_radius, availability_days,
			availability_start, availability_end, features, requirements, images,
			status, views, rating, review_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26)
	`,
		l.ID, l.ProviderID, l.Title, l.Description, l.Category, l.SpecificService,
		l.PricingType, l.PricingAmount, l.Currency, l.LocationAddress, l.LocationCity,
		l.LocationState, l.LocationZip, l.ServiceRadius, textArray(l.AvailabilityDays),
		l.AvailabilityStart, l.AvailabilityEnd, textArray(l.Features), l.Requirements, textArray(l.Images),
		l.Status, l.Views, l.Rating, l.ReviewCount, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (r *ListingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := scanListing(r.pool.QueryRow(ctx, listingSelect+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *ListingRepo) List(ctx context.Context, f domain.ListingFilter) ([]*domain.Listing, error) {
	var (
		where  []string
		params args
	)
	if f.ProviderID != "" {
		where = append(where, "s.provider_id = "+params.add(f.ProviderID))
	}
	if f.Status != "" {
		where = append(where, "s.status = "+params.add(f.Status))
	}
	if f.Category != "" {
		where = append(where, "s.category = "+params.add(f.Category))
	}
	if f.City != "" {
		where = append(where, "LOWER(s.location_city) = LOWER("+params.add(f.City)+")")
	}

	query := listingSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.created_at DESC"

	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var res []*domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func (r *ListingRepo) Update(ctx context.Context, l *domain.Listing) error {
	l.UpdatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE services
		SET title = $1, description = $2, category = $3, specific_service = $4, pricing_type = $5,
			pricing_amount = $6, currency = $7, location_address = $8, location_city = $9,
			location_state = $10, location_zip = $11, service_radius = $12, availability_days = $13,
			availability_start = $14, availability_end = $15, features = $16, requirements = $17,
			updated_at = $18
		WHERE id = $19
	`,
		l.Title, l.Description, l.Category, l.SpecificService, l.PricingType,
		l.PricingAmount, l.Currency, l.LocationAddress, l.LocationCity,
		l.LocationState, l.LocationZip, l.ServiceRadius, textArray(l.AvailabilityDays),
		l.AvailabilityStart, l.AvailabilityEnd, textArray(l.Features), l.Requirements,
		l.UpdatedAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return nil
}

func (r *ListingRepo) UpdateStatus(ctx context.Context, id string, status domain.ListingStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE services SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	return nil
}

func (r *ListingRepo) SetImages(ctx context.Context, id string, images []string) error {
	_, err := r.pool.Exec(ctx, `UPDATE services SET images = $1, updated_at = $2 WHERE id = $3`,
		textArray(images), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set listing images: %w", err)
	}
	return nil
}

func (r *ListingRepo) IncrementViews(ctx context.Context, id string) (int, error) {
	var views int
	err := r.pool.QueryRow(ctx,
		`UPDATE services SET views = views + 1 WHERE id = $1 RETURNING views`, id,
	).Scan(&views)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return views, nil
}

func (r *ListingRepo) RefreshRating(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE services s
		SET rating = COALESCE(agg.avg_rating, 0), review_count = agg.cnt, updated_at = $2
		FROM (
			SELECT AVG(rating)::DOUBLE PRECISION AS avg_rating, COUNT(*)::INTEGER AS cnt
			FROM reviews WHERE service_id = $1
		) agg
		WHERE s.id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("refresh rating: %w", err)
	}
	return nil
}

func (r *ListingRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

func scanListing(s scanner) (*domain.Listing, error) {
	l := &domain.Listing{}
	err := s.Scan(
		&l.ID,
		&l.ProviderID,
		&l.Title,
		&l.Description,
		&l.Category,
		&l.SpecificService,
		&l.PricingType,
		&l.PricingAmount,
		&l.Currency,
		&l.LocationAddress,
		&l.LocationCity,
		&l.LocationState,
		&l.LocationZip,
		&l.ServiceRadius,
		&l.AvailabilityDays,
		&l.AvailabilityStart,
		&l.AvailabilityEnd,
		&l.Features,
		&l.Requirements,
		&l.Images,
		&l.Status,
		&l.Views,
		&l.Rating,
		&l.ReviewCount,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.ProviderName,
		&l.ProviderBusinessName,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
