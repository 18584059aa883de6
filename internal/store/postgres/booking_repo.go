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

type BookingRepo struct {
	pool *pgxpool.Pool
}

func NewBookingRepo(pool *pgxpool.Pool) *BookingRepo {
	return &BookingRepo{pool: pool}
}

var _ domain.BookingRepository = (*BookingRepo)(nil)

const bookingSelect = `
	SELECT b.id, b.service_id, b.customer_id, b.provider_id, b.customer_name, b.customer_phone,
		b.customer_email, b.service_address, b.service_details, b.booking_date, b.booking_time,
		b.urgency, b.status, b.total_amount, b.created_at, b.updated_at,
		COALESCE(s.title, ''), COALESCE(c.full_name, ''), COALESCE(p.full_name, '')
	FROM bookings b
	LEFT JOIN services s ON s.id = b.service_id
	LEFT JOIN profiles c ON c.id = b.customer_id
	LEFT JOIN profiles p ON p.id = b.provider_id
`

func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (
			id, service_id, customer_id, provider_id, customer_name, customer_phone,
			customer_email, service_address, service_details, booking_date, booking_time,
			urgency, status, total_amount, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		b.ID, b.ServiceID, b.CustomerID, b.ProviderID, b.CustomerName, b.CustomerPhone,
		b.CustomerEmail, b.ServiceAddress, b.ServiceDetails, b.BookingDate, b.BookingTime,
		b.Urgency, b.Status, b.TotalAmount, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *BookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, bookingSelect+` WHERE b.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepo) List(ctx context.Context, f domain.BookingFilter) ([]*domain.Booking, error) {
	var params args
	where := []string{"b." + f.Role.Column() + " = " + params.add(f.UserID)}
	if f.Status != "" {
		where = append(where, "b.status = "+params.add(f.Status))
	}
	if f.DateFrom != "" {
		where = append(where, "b.booking_date >= "+params.add(f.DateFrom))
	}
	if f.DateTo != "" {
		where = append(where, "b.booking_date <= "+params.add(f.DateTo))
	}
	if f.ServiceID != "" {
		where = append(where, "b.service_id = "+params.add(f.ServiceID))
	}

	query := bookingSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY b.created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + params.add(f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var res []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func (r *BookingRepo) UpdateStatus(ctx context.Context, id string, u domain.BookingUpdate) error {
	var params args
	sets := []string{
		"status = " + params.add(u.Status),
		"updated_at = " + params.add(time.Now().UTC()),
	}
	if u.TotalAmount != nil {
		sets = append(sets, "total_amount = "+params.add(*u.TotalAmount))
	}
	if u.ServiceDetails != nil {
		sets = append(sets, "service_details = "+params.add(*u.ServiceDetails))
	}
	query := `UPDATE bookings SET ` + strings.Join(sets, ", ") + ` WHERE id = ` + params.add(id)

	tag, err := r.pool.Exec(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanBooking(s scanner) (*domain.Booking, error) {
	b := &domain.Booking{}
	err := s.Scan(
		&b.ID,
		&b.ServiceID,
		&b.CustomerID,
		&b.ProviderID,
		&b.CustomerName,
		&b.CustomerPhone,
		&b.CustomerEmail,
		&b.ServiceAddress,
		&b.ServiceDetails,
		&b.BookingDate,
		&b.BookingTime,
		&b.Urgency,
		&b.Status,
		&b.TotalAmount,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.ServiceTitle,
		&b.CustomerFullName,
		&b.ProviderFullName,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}
