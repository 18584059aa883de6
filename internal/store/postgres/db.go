package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"servicehub/internal/domain"
)

// Open creates a pgx connection pool and verifies connectivity.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewRepositories wires every PostgreSQL repository over pool.
func NewRepositories(pool *pgxpool.Pool) domain.Repositories {
	return domain.Repositories{
		Profiles:      NewProfileRepo(pool),
		Listings:      NewListingRepo(pool),
		Bookings:      NewBookingRepo(pool),
		Conversations: NewConversationRepo(pool),
		Messages:      NewMessageRepo(pool),
		Reviews:       NewReviewRepo(pool),
	}
}

// Migrate runs idempotent DDL migrations for the marketplace schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id                   TEXT        PRIMARY KEY,
			email                TEXT        NOT NULL,
			password_hash        TEXT        NOT NULL,
			full_name            TEXT        NOT NULL DEFAULT '',
			avatar_url           TEXT,
			user_type            TEXT        NOT NULL DEFAULT 'customer' CHECK (user_type IN ('customer', 'provider')),
			phone                TEXT,
			business_name        TEXT,
			business_description TEXT,
			service_area         TEXT,
			years_experience     INTEGER,
			verified             BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_email ON profiles (LOWER(email))`,

		`CREATE TABLE IF NOT EXISTS services (
			id                 TEXT             PRIMARY KEY,
			provider_id        TEXT             NOT NULL REFERENCES profiles(id),
			title              TEXT             NOT NULL,
			description        TEXT             NOT NULL,
			category           TEXT             NOT NULL,
			specific_service   TEXT             NOT NULL DEFAULT '',
			pricing_type       TEXT             NOT NULL DEFAULT 'hourly' CHECK (pricing_type IN ('hourly', 'fixed', 'custom')),
			pricing_amount     DOUBLE PRECISION,
			currency           TEXT             NOT NULL DEFAULT 'USD',
			location_address   TEXT             NOT NULL DEFAULT '',
			location_city      TEXT             NOT NULL,
			location_state     TEXT             NOT NULL,
			location_zip       TEXT             NOT NULL DEFAULT '',
			service_radius     INTEGER          NOT NULL DEFAULT 10,
			availability_days  TEXT[]           NOT NULL DEFAULT '{}',
			availability_start TEXT             NOT NULL DEFAULT '09:00',
			availability_end   TEXT             NOT NULL DEFAULT '17:00',
			features           TEXT[]           NOT NULL DEFAULT '{}',
			requirements       TEXT             NOT NULL DEFAULT '',
			images             TEXT[]           NOT NULL DEFAULT '{}',
			status             TEXT             NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paused', 'inactive')),
			views              INTEGER          NOT NULL DEFAULT 0,
			rating             DOUBLE PRECISION NOT NULL DEFAULT 0,
			review_count       INTEGER          NOT NULL DEFAULT 0,
			created_at         TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		)`,

		// service_id stays a plain reference so deleting a listing leaves its bookings intact.
		`CREATE TABLE IF NOT EXISTS bookings (
			id              TEXT             PRIMARY KEY,
			service_id      TEXT             NOT NULL,
			customer_id     TEXT             NOT NULL REFERENCES profiles(id),
			provider_id     TEXT             NOT NULL REFERENCES profiles(id),
			customer_name   TEXT             NOT NULL,
			customer_phone  TEXT             NOT NULL,
			customer_email  TEXT             NOT NULL,
			service_address TEXT             NOT NULL,
			service_details TEXT             NOT NULL DEFAULT '',
			booking_date    TEXT             NOT NULL,
			booking_time    TEXT             NOT NULL,
			urgency         TEXT             NOT NULL DEFAULT 'normal' CHECK (urgency IN ('normal', 'urgent', 'emergency')),
			status          TEXT             NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'confirmed', 'completed', 'cancelled')),
			total_amount    DOUBLE PRECISION,
			created_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id              TEXT        PRIMARY KEY,
			customer_id     TEXT        NOT NULL REFERENCES profiles(id),
			provider_id     TEXT        NOT NULL REFERENCES profiles(id),
			service_id      TEXT,
			last_message    TEXT,
			last_message_at TIMESTAMPTZ,
			customer_unread INTEGER     NOT NULL DEFAULT 0,
			provider_unread INTEGER     NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (customer_id, provider_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id              TEXT        PRIMARY KEY,
			conversation_id TEXT        NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       TEXT        NOT NULL REFERENCES profiles(id),
			message         TEXT        NOT NULL,
			client_id       TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS reviews (
			id          TEXT        PRIMARY KEY,
			booking_id  TEXT        NOT NULL UNIQUE,
			customer_id TEXT        NOT NULL REFERENCES profiles(id),
			provider_id TEXT        NOT NULL REFERENCES profiles(id),
			service_id  TEXT        NOT NULL,
			rating      INTEGER     NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment     TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_services_provider ON services(provider_id)`,
		`CREATE INDEX IF NOT EXISTS idx_services_status_category ON services(status, category)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_provider ON bookings(provider_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_provider ON conversations(provider_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_service ON reviews(service_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_provider ON reviews(provider_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_customer ON reviews(customer_id)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// textArray keeps NOT NULL array columns from receiving NULL for nil slices.
func textArray(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nullString(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// args accumulates positional parameters and returns their $n placeholders.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}
