package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"servicehub/internal/domain"
)

type ListingRepo struct {
	db *sql.DB
}

func NewListingRepo(db *sql.DB) *ListingRepo {
	return &ListingRepo{db: db}
}

var _ domain.ListingRepository = (*ListingRepo)(nil)

const listingSelect = `
	SELECT s.id, s.provider_id, s.title, s.description, s.category, s.specific_service,
		s.pricing_type, s.pricing_amount, s.currency, s.location_address, s.location_city,
		s.location_state, s.location_zip, s.service_radius, s.availability_days,
		s.availability_start, s.availability_end, s.features, s.requirements, s.images,
		s.status, s.views, s.rating, s.review_count, s.created_at, s.updated_at,
		p.full_name, p.business_name
	FROM services s
	LEFT JOIN profiles p ON p.id = s.provider_id
`

func (r *ListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO services (
			id, provider_id, title, description, category, specific_service,
			pricing_type, pricing_amount, currency, location_address, location_city,
			location_state, location_zip, service_radius, availability_days,
			availability_start, availability_end, features, requirements, images,
			status, views, rating, review_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID, l.ProviderID, l.Title, l.Description, l.Category, l.SpecificService,
		l.PricingType, l.PricingAmount, l.Currency, l.LocationAddress, l.LocationCity,
		l.LocationState, l.LocationZip, l.ServiceRadius, encodeList(l.AvailabilityDays),
		l.AvailabilityStart, l.AvailabilityEnd, encodeList(l.Features), l.Requirements, encodeList(l.Images),
		l.Status, l.Views, l.Rating, l.ReviewCount, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (r *ListingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, listingSelect+` WHERE s.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *ListingRepo) List(ctx context.Context, f domain.ListingFilter) ([]*domain.Listing, error) {
	var (
		where []string
		args  []any
	)
	if f.ProviderID != "" {
		where = append(where, "s.provider_id = ?")
		args = append(args, f.ProviderID)
	}
	if f.Status != "" {
		where = append(where, "s.status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where = append(where, "s.category = ?")
		args = append(args, f.Category)
	}
	if f.City != "" {
		where = append(where, "s.location_city = ? COLLATE NOCASE")
		args = append(args, f.City)
	}

	query := listingSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	_, err := r.db.ExecContext(ctx, `
		UPDATE services
		SET title = ?, description = ?, category = ?, specific_service = ?, pricing_type = ?,
			pricing_amount = ?, currency = ?, location_address = ?, location_city = ?,
			location_state = ?, location_zip = ?, service_radius = ?, availability_days = ?,
			availability_start = ?, availability_end = ?, features = ?, requirements = ?,
			updated_at = ?
		WHERE id = ?
	`,
		l.Title, l.Description, l.Category, l.SpecificService, l.PricingType,
		l.PricingAmount, l.Currency, l.LocationAddress, l.LocationCity,
		l.LocationState, l.LocationZip, l.ServiceRadius, encodeList(l.AvailabilityDays),
		l.AvailabilityStart, l.AvailabilityEnd, encodeList(l.Features), l.Requirements,
		l.UpdatedAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return nil
}

func (r *ListingRepo) UpdateStatus(ctx context.Context, id string, status domain.ListingStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE services SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	return nil
}

func (r *ListingRepo) SetImages(ctx context.Context, id string, images []string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE services SET images = ?, updated_at = ? WHERE id = ?`,
		encodeList(images), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set listing images: %w", err)
	}
	return nil
}

func (r *ListingRepo) IncrementViews(ctx context.Context, id string) (int, error) {
	var views int
	err := r.db.QueryRowContext(ctx,
		`UPDATE services SET views = views + 1 WHERE id = ? RETURNING views`, id,
	).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return views, nil
}

func (r *ListingRepo) RefreshRating(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE services
		SET rating = COALESCE((SELECT AVG(rating) FROM reviews WHERE service_id = ?), 0),
			review_count = (SELECT COUNT(*) FROM reviews WHERE service_id = ?),
			updated_at = ?
		WHERE id = ?
	`, id, id, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("refresh rating: %w", err)
	}
	return nil
}

func (r *ListingRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

func scanListing(s scanner) (*domain.Listing, error) {
	l := &domain.Listing{}
	var (
		days, features, images string
		providerName           sql.NullString
	)
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
		&days,
		&l.AvailabilityStart,
		&l.AvailabilityEnd,
		&features,
		&l.Requirements,
		&images,
		&l.Status,
		&l.Views,
		&l.Rating,
		&l.ReviewCount,
		&l.CreatedAt,
		&l.UpdatedAt,
		&providerName,
		&l.ProviderBusinessName,
	)
	if err != nil {
		return nil, err
	}
	l.AvailabilityDays = decodeList(days)
	l.Features = decodeList(features)
	l.Images = decodeList(images)
	l.ProviderName = providerName.String
	return l, nil
}
