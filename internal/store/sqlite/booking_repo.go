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

type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

var _ domain.BookingRepository = (*BookingRepo)(nil)

const bookingSelect = `
	SELECT b.id, b.service_id, b.customer_id, b.provider_id, b.customer_name, b.customer_phone,
		b.customer_email, b.service_address, b.service_details, b.booking_date, b.booking_time,
		b.urgency, b.status, b.total_amount, b.created_at, b.updated_at,
		s.title, c.full_name, p.full_name
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

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bookings (
			id, service_id, customer_id, provider_id, customer_name, customer_phone,
			customer_email, service_address, service_details, booking_date, booking_time,
			urgency, status, total_amount, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
	b, err := scanBooking(r.db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepo) List(ctx context.Context, f domain.BookingFilter) ([]*domain.Booking, error) {
	where := []string{"b." + f.Role.Column() + " = ?"}
	args := []any{f.UserID}
	if f.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, f.Status)
	}
	if f.DateFrom != "" {
		where = append(where, "b.booking_date >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		where = append(where, "b.booking_date <= ?")
		args = append(args, f.DateTo)
	}
	if f.ServiceID != "" {
		where = append(where, "b.service_id = ?")
		args = append(args, f.ServiceID)
	}

	query := bookingSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY b.created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{u.Status, time.Now().UTC()}
	if u.TotalAmount != nil {
		sets = append(sets, "total_amount = ?")
		args = append(args, *u.TotalAmount)
	}
	if u.ServiceDetails != nil {
		sets = append(sets, "service_details = ?")
		args = append(args, *u.ServiceDetails)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanBooking(s scanner) (*domain.Booking, error) {
	b := &domain.Booking{}
	var title, customerName, providerName sql.NullString
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
		&title,
		&customerName,
		&providerName,
	)
	if err != nil {
		return nil, err
	}
	b.ServiceTitle = title.String
	b.CustomerFullName = customerName.String
	b.ProviderFullName = providerName.String
	return b, nil
}
